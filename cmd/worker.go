package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/aggregate"
	"github.com/fwerner/sitrep/internal/job"
	"github.com/fwerner/sitrep/internal/queue/streams"
	"github.com/fwerner/sitrep/internal/report"
	"github.com/fwerner/sitrep/internal/resolve"
	"github.com/fwerner/sitrep/internal/source"
	"github.com/fwerner/sitrep/internal/telemetry"
	"github.com/fwerner/sitrep/internal/worker"
	"github.com/fwerner/sitrep/provider"
)

const workerGroup = "sitrep-workers"

func workerCMD() *cobra.Command {
	var cfgPath string
	var cmd = &cobra.Command{
		Use:   "worker",
		Short: "Run scan pipeline worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			rdb, err := job.Conn(ctx, cfg.Redis)
			if err != nil {
				return fmt.Errorf("worker redis: %w", err)
			}
			defer func() { _ = rdb.Close() }()

			if err := streams.EnsureGroup(ctx, rdb, streams.JobStream, workerGroup); err != nil {
				return fmt.Errorf("worker ensure group: %w", err)
			}

			var metrics *telemetry.Metrics
			if cfg.Telemetry.Enabled {
				metrics = telemetry.New(prometheus.DefaultRegisterer)
			}

			store := job.NewRedisStore(rdb, 0)
			controller, err := buildController(cfg, store, metrics)
			if err != nil {
				return err
			}

			consumerName := fmt.Sprintf("worker-%s", uuid.NewString()[:8])
			consumer := streams.NewConsumer(rdb, workerGroup, consumerName)
			logger := log.New(os.Stdout, "[WORKER] ", log.LstdFlags)

			return worker.New(logger, consumer, controller).Start(ctx)
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}

// buildController assembles the full scan pipeline from configuration.
func buildController(cfg *config.Config, store job.Store, metrics *telemetry.Metrics) (*job.Controller, error) {
	srcLogger := log.New(log.Writer(), "[SOURCE] ", log.LstdFlags)
	adapters := source.Build(cfg.Sources, cfg.Report.SnippetLimit, srcLogger)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no source adapters configured (sources.google_news.locales/vectors)")
	}

	scorer := aggregate.NewScorer(cfg.Scoring, cfg.Sources.Lexicon, cfg.Sources.PriorityDomains)
	agg := aggregate.New(adapters, scorer, cfg.Report, metrics, log.New(log.Writer(), "[AGG] ", log.LstdFlags))

	resolver := resolve.New(cfg.Resolver, metrics, log.New(log.Writer(), "[RESOLVE] ", log.LstdFlags))
	var enricher *resolve.Enricher
	if cfg.Resolver.Enrich {
		enricher = resolve.NewEnricher(cfg.Resolver, cfg.Report.SnippetLimit)
	}

	if err := cfg.LLM.Validate(); err != nil {
		return nil, fmt.Errorf("llm config: %w", err)
	}
	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	synth := report.NewSynthesizer(llm, log.New(log.Writer(), "[REPORT] ", log.LstdFlags))

	jobLogger := log.New(log.Writer(), "[JOB] ", log.LstdFlags)
	return job.NewController(store, agg, resolver, enricher, synth, metrics, jobLogger), nil
}
