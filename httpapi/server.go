// Package httpapi exposes the webhook and operational HTTP surface of the
// survey service.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coreconfig "github.com/m3rciful/surveybot/core/config"
	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/core/ratelimit"
	"github.com/m3rciful/surveybot/survey"
	"log/slog"
)

// Deps carries the collaborators the HTTP handlers need. A nil orchestrator
// leaves its webhook route unregistered.
type Deps struct {
	Store    survey.Store
	Twilio   *survey.Orchestrator
	Telegram *survey.Orchestrator
	Limiter  *ratelimit.KeyLimiter
}

// Server wraps the gin engine and the net/http server lifecycle.
type Server struct {
	cfg    coreconfig.HTTPConfig
	engine *gin.Engine
	deps   Deps
}

// New builds the router with all routes and middleware registered.
func New(cfg coreconfig.HTTPConfig, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(recovery(), requestLog())

	s := &Server{cfg: cfg, engine: engine, deps: deps}

	engine.GET("/", s.health)
	engine.GET("/export", s.export)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if deps.Twilio != nil {
		engine.POST("/webhook/twilio", s.twilioWebhook)
	}
	if deps.Telegram != nil {
		engine.POST("/webhook/telegram", s.telegramWebhook)
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then drains in-flight requests within
// the configured shutdown bound.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.HTTP.Info("listening",
			slog.String("event", "server.start"),
			slog.String("addr", s.cfg.Listen),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.HTTP.Error("shutdown failed",
			slog.String("event", "server.stop"),
			slog.String("err", err.Error()),
		)
		return err
	}
	logger.HTTP.Info("stopped",
		slog.String("event", "server.stop"),
	)
	return nil
}
