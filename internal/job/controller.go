package job

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fwerner/sitrep/internal/aggregate"
	"github.com/fwerner/sitrep/internal/intel"
	"github.com/fwerner/sitrep/internal/resolve"
	"github.com/fwerner/sitrep/internal/report"
	"github.com/fwerner/sitrep/internal/telemetry"
)

// Controller drives a job through the scan pipeline, persisting every status
// transition so pollers always see current progress.
type Controller struct {
	store      Store
	aggregator *aggregate.Aggregator
	resolver   *resolve.Resolver
	enricher   *resolve.Enricher
	synth      *report.Synthesizer
	metrics    *telemetry.Metrics
	logger     *log.Logger
	tracer     trace.Tracer
}

func NewController(store Store, aggregator *aggregate.Aggregator, resolver *resolve.Resolver, enricher *resolve.Enricher, synth *report.Synthesizer, metrics *telemetry.Metrics, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(log.Writer(), "[JOB] ", log.LstdFlags)
	}
	return &Controller{
		store:      store,
		aggregator: aggregator,
		resolver:   resolver,
		enricher:   enricher,
		synth:      synth,
		metrics:    metrics,
		logger:     logger,
		tracer:     otel.Tracer("sitrep/job"),
	}
}

// Run executes the pipeline for the given job id. The record must already
// exist in QUEUED state. Run never returns an error for domain failures;
// those end the job in FAILED with an explanatory message. An error return
// means the job record itself could not be loaded.
func (c *Controller) Run(ctx context.Context, id string) error {
	j, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load job %s: %w", id, err)
	}
	if j.Status.Terminal() {
		c.logger.Printf("job %s already %s, skipping", id, j.Status)
		return nil
	}

	ctx, span := c.tracer.Start(ctx, "job.run", trace.WithAttributes(
		attribute.String("job.id", j.ID),
		attribute.String("job.topic", j.Topic),
		attribute.String("job.window", string(j.Window)),
	))
	defer span.End()

	started := time.Now()
	c.logger.Printf("job %s started: topic=%q window=%s", j.ID, j.Topic, j.Window)

	items, failed := c.fetchStage(ctx, &j)
	if failed {
		c.finish(&j, started)
		return nil
	}

	items = c.resolveStage(ctx, &j, items)

	c.analyzeStage(ctx, &j, items)
	c.finish(&j, started)
	return nil
}

// fetchStage gathers and ranks evidence. An empty evidence set fails the job;
// there is nothing defensible to report on.
func (c *Controller) fetchStage(ctx context.Context, j *Job) ([]intel.Item, bool) {
	ctx, span := c.tracer.Start(ctx, "job.fetch")
	defer span.End()

	c.transition(ctx, j, StatusFetching, "collecting sources")

	items := c.aggregator.Run(ctx, j.Topic, j.Window)
	if len(items) == 0 {
		c.fail(ctx, j, "no data found for topic in the requested window")
		return nil, true
	}
	span.SetAttributes(attribute.Int("items", len(items)))
	c.logger.Printf("job %s collected %d items", j.ID, len(items))
	return items, false
}

// resolveStage rewrites aggregator links to their destinations. Resolution is
// best effort and never fails the job.
func (c *Controller) resolveStage(ctx context.Context, j *Job, items []intel.Item) []intel.Item {
	ctx, span := c.tracer.Start(ctx, "job.resolve")
	defer span.End()

	c.transition(ctx, j, StatusResolving, fmt.Sprintf("resolving %d links", len(items)))

	resolved := c.resolver.ResolveItems(ctx, items)
	if c.enricher != nil {
		c.enricher.EnrichItems(ctx, resolved)
	}
	return resolved
}

// analyzeStage synthesizes the report. A synthesis failure fails the job with
// no partial result.
func (c *Controller) analyzeStage(ctx context.Context, j *Job, items []intel.Item) {
	ctx, span := c.tracer.Start(ctx, "job.analyze")
	defer span.End()

	c.transition(ctx, j, StatusAnalyzing, fmt.Sprintf("synthesizing report from %d items", len(items)))

	llmStart := time.Now()
	text, err := c.synth.Synthesize(ctx, j.Topic, j.Window, items)
	c.metrics.LLMCall(time.Since(llmStart))
	if err != nil {
		c.logger.Printf("job %s synthesis failed: %v", j.ID, err)
		c.fail(ctx, j, "report synthesis failed")
		return
	}

	j.Result = text
	c.transition(ctx, j, StatusCompleted, "report ready")
}

// transition applies and persists a status change. Mid-pipeline persistence
// failures are logged and tolerated; the in-memory job keeps progressing and
// the terminal write gets a retry.
func (c *Controller) transition(ctx context.Context, j *Job, to Status, message string) {
	if err := j.Advance(to, message); err != nil {
		c.logger.Printf("job %s: %v", j.ID, err)
		return
	}
	if err := c.store.Save(ctx, *j); err != nil {
		c.logger.Printf("job %s: persist %s failed: %v", j.ID, to, err)
		if to.Terminal() {
			time.Sleep(200 * time.Millisecond)
			if err := c.store.Save(ctx, *j); err != nil {
				c.logger.Printf("job %s: terminal persist retry failed: %v", j.ID, err)
			}
		}
	}
}

func (c *Controller) fail(ctx context.Context, j *Job, message string) {
	c.transition(ctx, j, StatusFailed, message)
}

func (c *Controller) finish(j *Job, started time.Time) {
	took := time.Since(started)
	c.metrics.JobFinished(string(j.Status), took)
	c.logger.Printf("job %s finished %s in %s", j.ID, j.Status, took.Round(time.Millisecond))
}
