package aggregate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/intel"
	"github.com/fwerner/sitrep/internal/source"
	"github.com/fwerner/sitrep/internal/telemetry"
)

// Aggregator fans a topic out to every configured source adapter, merges the
// results and reduces them to a ranked, deduplicated evidence set.
type Aggregator struct {
	adapters []source.Adapter
	scorer   *Scorer
	maxItems int
	metrics  *telemetry.Metrics
	logger   *log.Logger
	now      func() time.Time
}

func New(adapters []source.Adapter, scorer *Scorer, reportCfg config.ReportConfig, metrics *telemetry.Metrics, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.New(log.Writer(), "[AGG] ", log.LstdFlags)
	}
	maxItems := reportCfg.MaxItems
	if maxItems <= 0 {
		maxItems = 50
	}
	return &Aggregator{
		adapters: adapters,
		scorer:   scorer,
		maxItems: maxItems,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Collect queries all adapters concurrently and returns the merged raw items.
// Adapter failures surface as empty slices, never as errors; a topic with no
// hits anywhere yields an empty result.
func (a *Aggregator) Collect(ctx context.Context, topic string, window intel.Window) []intel.Item {
	results := make([][]intel.Item, len(a.adapters))
	var wg sync.WaitGroup
	for i, adapter := range a.adapters {
		wg.Add(1)
		go func(i int, adapter source.Adapter) {
			defer wg.Done()
			items := adapter.Fetch(ctx, topic, window)
			a.logger.Printf("source %s returned %d items", adapter.Name(), len(items))
			a.metrics.SourceItems(adapter.Name(), len(items))
			if len(items) == 0 {
				// Adapters swallow their own errors, so an empty batch is
				// the only failure signal that reaches this level.
				a.metrics.SourceFailure(adapter.Name())
			}
			results[i] = items
		}(i, adapter)
	}
	wg.Wait()

	var merged []intel.Item
	for _, batch := range results {
		merged = append(merged, batch...)
	}
	return merged
}

// Reduce scores the merged items, deduplicates and caps the set at the report
// limit. Only the strict 72h window excludes by age: items older than the
// cutoff, or without a trustworthy timestamp, are dropped rather than guessed
// at. In the loose weekly window age influences scoring only, never exclusion.
func (a *Aggregator) Reduce(items []intel.Item, window intel.Window) []intel.Item {
	filtered := items
	if window.Strict() {
		cutoff := window.Cutoff(a.now())
		filtered = make([]intel.Item, 0, len(items))
		for _, item := range items {
			if !item.HasDate() || item.PublishedAt.Before(cutoff) {
				continue
			}
			filtered = append(filtered, item)
		}
	}

	ranked := a.scorer.Rank(filtered)
	if len(ranked) > a.maxItems {
		ranked = ranked[:a.maxItems]
	}
	return ranked
}

// Run is the full gather stage: collect, window-filter, score, dedupe, cap.
func (a *Aggregator) Run(ctx context.Context, topic string, window intel.Window) []intel.Item {
	return a.Reduce(a.Collect(ctx, topic, window), window)
}
