package server

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/intel"
	"github.com/fwerner/sitrep/internal/job"
	"github.com/fwerner/sitrep/internal/queue/streams"
)

const lastRunKeyPrefix = "sched:last:"

// Scheduler re-submits configured watch topics on their cron schedules.
// A redis SetNX lock per watch keeps multiple API replicas from double
// enqueueing the same tick.
type Scheduler struct {
	Cfg       config.SchedulerConfig
	Rdb       *redis.Client
	Store     job.Store
	Publisher Enqueuer
	Logger    *log.Logger
	Stop      chan struct{}
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	for _, w := range s.Cfg.Watches {
		if !s.due(ctx, w) {
			continue
		}

		lockKey := "sched:lock:" + w.Topic
		ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
		if !ok {
			continue
		}

		// A failed enqueue leaves the last-run marker alone so the watch
		// stays due and is retried on the next tick.
		if err := s.enqueue(ctx, w); err == nil {
			s.Rdb.Set(ctx, lastRunKeyPrefix+w.Topic, time.Now().UTC().Format(time.RFC3339), 0)
		}
		s.Rdb.Del(ctx, lockKey)
	}
}

// due checks the watch's cron expression against its last submission time.
func (s *Scheduler) due(ctx context.Context, w config.Watch) bool {
	expr, err := cronexpr.Parse(w.Cron)
	if err != nil {
		s.Logger.Printf("watch %q has invalid cron %q: %v", w.Topic, w.Cron, err)
		return false
	}
	raw, err := s.Rdb.Get(ctx, lastRunKeyPrefix+w.Topic).Result()
	if err != nil {
		// Never submitted before.
		return true
	}
	last, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return true
	}
	return !expr.Next(last).After(time.Now())
}

func (s *Scheduler) enqueue(ctx context.Context, w config.Watch) error {
	topic := w.Topic
	if intel.Window(w.Window) == intel.Window72h {
		topic = "MODE_72H:" + topic
	}
	j := job.NewJob(uuid.NewString(), topic)
	if err := s.Store.Save(ctx, j); err != nil {
		s.Logger.Printf("watch %q: persist job failed: %v", w.Topic, err)
		return err
	}
	if _, err := s.Publisher.PublishRaw(ctx, streams.JobStream, streams.EventJobEnqueued, streams.JobEnqueued{JobID: j.ID}); err != nil {
		s.Logger.Printf("watch %q: enqueue failed: %v", w.Topic, err)
		return err
	}
	s.Logger.Printf("watch %q submitted as job %s", w.Topic, j.ID)
	return nil
}
