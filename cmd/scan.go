package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/job"
)

func scanCMD() *cobra.Command {
	var cfgPath string
	var window string
	var cmd = &cobra.Command{
		Use:   "scan [topic]",
		Short: "Run a single scan and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			topic := strings.Join(args, " ")
			if window == "72h" {
				topic = "MODE_72H:" + topic
			}

			store := job.NewMemoryStore()
			controller, err := buildController(cfg, store, nil)
			if err != nil {
				return err
			}

			j := job.NewJob(uuid.NewString(), topic)
			if err := store.Save(ctx, j); err != nil {
				return err
			}
			if err := controller.Run(ctx, j.ID); err != nil {
				return err
			}

			final, err := store.Get(ctx, j.ID)
			if err != nil {
				return err
			}
			if final.Status != job.StatusCompleted {
				return fmt.Errorf("scan %s: %s", strings.ToLower(string(final.Status)), final.Message)
			}
			fmt.Println(final.Result)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	cmd.Flags().StringVar(&window, "window", "week", "reporting window: week or 72h")

	return cmd
}
