package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/job"
)

func TestSchedulerRetriesFailedWatchTick(t *testing.T) {
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

	store := job.NewMemoryStore()
	sched := &Scheduler{
		Cfg: config.SchedulerConfig{
			Enabled: true,
			Watches: []config.Watch{{Topic: "Berlin", Window: "72h", Cron: "* * * * *"}},
		},
		Rdb:       client,
		Store:     store,
		Publisher: &stubEnqueuer{err: errors.New("stream down")},
		Logger:    log.New(io.Discard, "", 0),
		Stop:      make(chan struct{}),
	}

	lastKey := lastRunKeyPrefix + "Berlin"

	// A failed enqueue must not advance the last-run marker.
	sched.tick()
	if _, err := client.Get(ctx, lastKey).Result(); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected no last-run marker after failed tick, got err %v", err)
	}

	// With the marker untouched the watch is still due and fires on the
	// next tick once the queue recovers.
	enq := &stubEnqueuer{}
	sched.Publisher = enq
	sched.tick()

	raw, err := client.Get(ctx, lastKey).Result()
	if err != nil {
		t.Fatalf("expected last-run marker after successful tick: %v", err)
	}
	if _, err := time.Parse(time.RFC3339, raw); err != nil {
		t.Fatalf("last-run marker not RFC3339: %q", raw)
	}
	if len(enq.published) != 1 {
		t.Fatalf("expected one enqueued event, got %d", len(enq.published))
	}

	stored, err := store.Get(ctx, enq.published[0].JobID)
	if err != nil {
		t.Fatalf("watch job not persisted: %v", err)
	}
	if stored.Topic != "Berlin" || stored.Window != "72h" {
		t.Fatalf("watch window not applied: %+v", stored)
	}
}
