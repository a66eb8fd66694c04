package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/fwerner/sitrep/internal/job"
	"github.com/fwerner/sitrep/internal/queue/streams"
)

type stubEnqueuer struct {
	published []streams.JobEnqueued
	err       error
}

func (s *stubEnqueuer) PublishRaw(ctx context.Context, stream, eventType string, payload interface{}, opts ...streams.PublishOption) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.published = append(s.published, payload.(streams.JobEnqueued))
	return "1-0", nil
}

func newTestServer(store job.Store, enq Enqueuer) *echo.Echo {
	e := newEcho()
	jh := &JobsHandler{Store: store, Publisher: enq}
	jh.Register(e.Group("/api/jobs"))
	return e
}

func TestCreateJob(t *testing.T) {
	store := job.NewMemoryStore()
	enq := &stubEnqueuer{}
	e := newTestServer(store, enq)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"topic":"MODE_72H:Berlin"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "QUEUED" {
		t.Fatalf("expected QUEUED, got %q", resp["status"])
	}
	id := resp["job_id"]
	if id == "" {
		t.Fatal("expected job_id in response")
	}

	stored, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if stored.Topic != "Berlin" || stored.Window != "72h" {
		t.Fatalf("mode prefix not parsed: %+v", stored)
	}
	if len(enq.published) != 1 || enq.published[0].JobID != id {
		t.Fatalf("expected one enqueued event for %s, got %v", id, enq.published)
	}
}

func TestCreateJobRejectsEmptyTopic(t *testing.T) {
	e := newTestServer(job.NewMemoryStore(), &stubEnqueuer{})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"topic":"  "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateJobQueueFailure(t *testing.T) {
	e := newTestServer(job.NewMemoryStore(), &stubEnqueuer{err: errors.New("redis down")})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"topic":"Berlin"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestGetJob(t *testing.T) {
	store := job.NewMemoryStore()
	j := job.NewJob("abc-123", "Berlin")
	if err := j.Advance(job.StatusFailed, "no data found for topic in the requested window"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := store.Save(context.Background(), j); err != nil {
		t.Fatalf("save: %v", err)
	}
	e := newTestServer(store, &stubEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/abc-123", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// A failed job is still a 200; only unknown ids are 404.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got job.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != job.StatusFailed || got.Message == "" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestGetJobNotFound(t *testing.T) {
	e := newTestServer(job.NewMemoryStore(), &stubEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Fatalf("expected JSON error body, got %s", rec.Body.String())
	}
}
