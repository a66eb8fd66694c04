package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/fwerner/sitrep/internal/queue/streams"
)

const (
	readBlock  = 5 * time.Second
	readCount  = 16
	claimIdle  = 2 * time.Minute
	claimEvery = time.Minute
)

// Runner executes one scan job by id. Implemented by the job controller.
type Runner interface {
	Run(ctx context.Context, id string) error
}

// Worker consumes job.enqueued events from the job stream and drives each
// job through the pipeline. Messages are acked after handling either way:
// domain failures are recorded on the job itself, so redelivery would only
// repeat a failure.
type Worker struct {
	logger   *log.Logger
	consumer *streams.Consumer
	runner   Runner
	stream   string
}

func New(logger *log.Logger, consumer *streams.Consumer, runner Runner) *Worker {
	if logger == nil {
		logger = log.New(log.Writer(), "[WORKER] ", log.LstdFlags)
	}
	return &Worker{
		logger:   logger,
		consumer: consumer,
		runner:   runner,
		stream:   streams.JobStream,
	}
}

// Start blocks, continuously processing job events until the context is
// cancelled. Stale pending entries from dead consumers are periodically
// reclaimed so crashed workers cannot strand jobs.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Printf("worker starting; consuming stream %s", w.stream)

	lastClaim := time.Now()
	for {
		select {
		case <-ctx.Done():
			w.logger.Printf("worker stopping: %v", ctx.Err())
			return nil
		default:
		}

		if time.Since(lastClaim) >= claimEvery {
			w.reclaimStale(ctx)
			lastClaim = time.Now()
		}

		msgs, err := w.consumer.Read(ctx, w.stream, streams.WithBlock(readBlock), streams.WithCount(readCount))
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Printf("error reading stream: %v", err)
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			if err := w.handle(ctx, msg); err != nil {
				w.logger.Printf("error handling message %s: %v", msg.ID, err)
			}
			if err := w.consumer.Ack(ctx, w.stream, msg.ID); err != nil {
				w.logger.Printf("warn: failed to ack message %s: %v", msg.ID, err)
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg streams.Message) error {
	if msg.Envelope.EventType != streams.EventJobEnqueued {
		w.logger.Printf("skip unknown event type %q in message %s", msg.Envelope.EventType, msg.ID)
		return nil
	}
	var payload streams.JobEnqueued
	if err := json.Unmarshal(msg.Envelope.Data, &payload); err != nil {
		return fmt.Errorf("unmarshal job payload: %w", err)
	}
	if payload.JobID == "" {
		return fmt.Errorf("message %s carries no job id", msg.ID)
	}
	return w.runner.Run(ctx, payload.JobID)
}

// reclaimStale takes over pending entries whose consumer went away.
func (w *Worker) reclaimStale(ctx context.Context) {
	start := "0-0"
	for {
		msgs, next, err := w.consumer.AutoClaim(ctx, w.stream, claimIdle, start, readCount)
		if err != nil {
			w.logger.Printf("warn: autoclaim failed: %v", err)
			return
		}
		for _, msg := range msgs {
			if err := w.handle(ctx, msg); err != nil {
				w.logger.Printf("error handling reclaimed message %s: %v", msg.ID, err)
			}
			if err := w.consumer.Ack(ctx, w.stream, msg.ID); err != nil {
				w.logger.Printf("warn: failed to ack reclaimed message %s: %v", msg.ID, err)
			}
		}
		if next == "0-0" || len(msgs) == 0 {
			return
		}
		start = next
	}
}
