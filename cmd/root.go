package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "sitrep"}

	root.AddCommand(serveCMD(), workerCMD(), scanCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
