package worker_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/aggregate"
	"github.com/fwerner/sitrep/internal/intel"
	"github.com/fwerner/sitrep/internal/job"
	"github.com/fwerner/sitrep/internal/queue/streams"
	"github.com/fwerner/sitrep/internal/report"
	"github.com/fwerner/sitrep/internal/resolve"
	"github.com/fwerner/sitrep/internal/source"
	"github.com/fwerner/sitrep/internal/worker"
)

type fixedAdapter struct{ items []intel.Item }

func (f fixedAdapter) Name() string { return "fixed" }
func (f fixedAdapter) Fetch(ctx context.Context, topic string, window intel.Window) []intel.Item {
	return f.items
}

type fixedLLM struct{ reply string }

func (f fixedLLM) Complete(ctx context.Context, system, user string) (string, error) {
	return f.reply, nil
}

func TestWorkerProcessesEnqueuedJob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	defer func() { _ = client.Close() }()

	if err := streams.EnsureGroup(ctx, client, streams.JobStream, "sitrep-workers"); err != nil {
		t.Fatalf("ensure group: %v", err)
	}

	discard := log.New(io.Discard, "", 0)
	store := job.NewRedisStore(client, time.Hour)

	scorer := aggregate.NewScorer(config.ScoringConfig{}, []string{"explosion"}, nil)
	items := []intel.Item{
		{Title: "Explosion reported near port", URL: "https://example.com/a", PublishedAt: time.Now().Add(-time.Hour), Confidence: intel.DateConfidenceHigh},
	}
	agg := aggregate.New([]source.Adapter{fixedAdapter{items: items}}, scorer, config.ReportConfig{MaxItems: 50}, nil, discard)
	resolver := resolve.New(config.ResolverConfig{}, nil, discard)
	synth := report.NewSynthesizer(fixedLLM{reply: "# SITREP: Hamburg\n## BLUF\nQuiet."}, discard)
	controller := job.NewController(store, agg, resolver, nil, synth, nil, discard)

	publisher := streams.NewPublisher(client)
	consumer := streams.NewConsumer(client, "sitrep-workers", "worker-1")
	w := worker.New(discard, consumer, controller)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(runCtx) }()

	j := job.NewJob(uuid.NewString(), "Hamburg")
	if err := store.Save(ctx, j); err != nil {
		t.Fatalf("save job: %v", err)
	}
	if _, err := publisher.PublishRaw(ctx, streams.JobStream, streams.EventJobEnqueued, streams.JobEnqueued{JobID: j.ID}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(15 * time.Second)
	for {
		got, err := store.Get(ctx, j.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if got.Status.Terminal() {
			if got.Status != job.StatusCompleted {
				t.Fatalf("expected COMPLETED, got %s (%s)", got.Status, got.Message)
			}
			if got.Result == "" {
				t.Fatal("expected report stored")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish in time, last status %s", got.Status)
		}
		time.Sleep(100 * time.Millisecond)
	}

	cancel()
	<-done
}
