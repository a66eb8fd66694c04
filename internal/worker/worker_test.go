package worker

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"

	"github.com/fwerner/sitrep/internal/queue/streams"
)

type recordingRunner struct {
	ran []string
	err error
}

func (r *recordingRunner) Run(ctx context.Context, id string) error {
	r.ran = append(r.ran, id)
	return r.err
}

func message(t *testing.T, eventType string, payload interface{}) streams.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return streams.Message{
		ID: "1-0",
		Envelope: streams.Envelope{
			EventID:   "evt-1",
			EventType: eventType,
			Data:      data,
		},
	}
}

func testWorker(r Runner) *Worker {
	return New(log.New(io.Discard, "", 0), nil, r)
}

func TestHandleRunsJob(t *testing.T) {
	runner := &recordingRunner{}
	w := testWorker(runner)

	msg := message(t, streams.EventJobEnqueued, streams.JobEnqueued{JobID: "job-7"})
	if err := w.handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(runner.ran) != 1 || runner.ran[0] != "job-7" {
		t.Fatalf("expected job-7 run, got %v", runner.ran)
	}
}

func TestHandleSkipsUnknownEventType(t *testing.T) {
	runner := &recordingRunner{}
	w := testWorker(runner)

	msg := message(t, "topic.updated", map[string]string{"x": "y"})
	if err := w.handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.ran) != 0 {
		t.Fatalf("expected no runs, got %v", runner.ran)
	}
}

func TestHandleRejectsEmptyJobID(t *testing.T) {
	runner := &recordingRunner{}
	w := testWorker(runner)

	msg := message(t, streams.EventJobEnqueued, streams.JobEnqueued{})
	if err := w.handle(context.Background(), msg); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	runner := &recordingRunner{}
	w := testWorker(runner)

	msg := streams.Message{
		ID: "1-1",
		Envelope: streams.Envelope{
			EventID:   "evt-2",
			EventType: streams.EventJobEnqueued,
			Data:      json.RawMessage(`"not an object"`),
		},
	}
	if err := w.handle(context.Background(), msg); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
