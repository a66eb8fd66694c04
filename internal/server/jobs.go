package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fwerner/sitrep/internal/job"
	"github.com/fwerner/sitrep/internal/queue/streams"
)

// Enqueuer is the queue side the handler needs, satisfied by streams.Publisher.
type Enqueuer interface {
	PublishRaw(ctx context.Context, stream, eventType string, payload interface{}, opts ...streams.PublishOption) (string, error)
}

// JobsHandler exposes the trigger and poll endpoints of the scan pipeline.
type JobsHandler struct {
	Store     job.Store
	Publisher Enqueuer
}

func (h *JobsHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("/:id", h.get)
}

// create accepts a scan request, persists the QUEUED record first and only
// then enqueues the work. A record without a queue entry is visible but
// stalls as QUEUED; a queue entry without a record would be unresolvable.
func (h *JobsHandler) create(c echo.Context) error {
	var req struct {
		Topic string `json:"topic"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Topic) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic required")
	}

	j := job.NewJob(uuid.NewString(), req.Topic)
	ctx := c.Request().Context()
	if err := h.Store.Save(ctx, j); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to persist job")
	}
	if _, err := h.Publisher.PublishRaw(ctx, streams.JobStream, streams.EventJobEnqueued, streams.JobEnqueued{JobID: j.ID}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to enqueue job")
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"job_id": j.ID,
		"status": string(j.Status),
	})
}

// get returns the full job record. A missing id is 404; a FAILED job is a
// normal 200 whose status field says FAILED.
func (h *JobsHandler) get(c echo.Context) error {
	id := c.Param("id")
	j, err := h.Store.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, j)
}
