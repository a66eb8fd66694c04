package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/job"
	"github.com/fwerner/sitrep/internal/queue/streams"
)

// Run wires the HTTP API, connects storage and the job queue, starts the
// watch scheduler and blocks serving until the listener fails.
func Run(cfg *config.Config) error {
	e := newEcho()

	ctx := context.Background()
	rdb, err := job.Conn(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	store := job.NewRedisStore(rdb, 0)
	publisher := streams.NewPublisher(rdb)
	if err := streams.EnsureGroup(ctx, rdb, streams.JobStream, "sitrep-workers"); err != nil {
		return fmt.Errorf("ensure job group: %w", err)
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	jh := &JobsHandler{Store: store, Publisher: publisher}
	jh.Register(api.Group("/jobs"))

	if cfg.Scheduler.Enabled {
		sched := &Scheduler{
			Cfg:       cfg.Scheduler,
			Rdb:       rdb,
			Store:     store,
			Publisher: publisher,
			Logger:    log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
			Stop:      make(chan struct{}),
		}
		sched.Start()
		defer close(sched.Stop)
	}

	addr := cfg.General.Listen
	if addr == "" {
		addr = ":10030"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newEcho builds the echo instance with recovery, CORS and a unified JSON
// error handler.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))
	return e
}
