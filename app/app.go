// Package app assembles the survey service from configuration: store,
// senders, per-transport orchestrators, the HTTP server and the keep-warm
// loop.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/surveybot/core/bootstrap"
	corecmd "github.com/m3rciful/surveybot/core/cmd"
	coreconfig "github.com/m3rciful/surveybot/core/config"
	"github.com/m3rciful/surveybot/core/httpclient"
	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/core/ratelimit"
	"github.com/m3rciful/surveybot/httpapi"
	"github.com/m3rciful/surveybot/keepwarm"
	"github.com/m3rciful/surveybot/survey"
	"github.com/m3rciful/surveybot/survey/postgres"
	"github.com/m3rciful/surveybot/transport"
	"log/slog"
)

// App is the assembled service. It owns the database handle and closes it
// when Run returns.
type App struct {
	cfg    *coreconfig.Config
	db     *sqlx.DB
	server *httpapi.Server
	pinger *keepwarm.Pinger
}

// Build wires the full service from validated configuration.
func Build(cfg *coreconfig.Config) (corecmd.App, error) {
	boot, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}

	store := postgres.New(boot.DB, cfg.Survey.Strategy)
	machine := survey.NewMachine(promptsFromConfig(cfg.Survey.Prompts))
	client := httpclient.New()

	deps := httpapi.Deps{
		Store:   store,
		Limiter: ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 0),
	}

	if cfg.Twilio.Enabled {
		sender := transport.NewTwilioSender(cfg.Twilio, client)
		// WhatsApp has no command affordance, so first contact starts the survey.
		deps.Twilio = survey.NewOrchestrator(store, sender, machine, survey.Options{
			Transport: sender.Name(),
			AutoStart: true,
		})
	}

	if cfg.Telegram.Enabled {
		sender, err := transport.NewTelegramSender(cfg.Telegram.Token, client)
		if err != nil {
			_ = boot.DB.Close()
			return nil, fmt.Errorf("app: %w", err)
		}
		deps.Telegram = survey.NewOrchestrator(store, sender, machine, survey.Options{
			Transport:    sender.Name(),
			StartCommand: startCommand(cfg.Survey),
			AutoStart:    cfg.Survey.AutoStart,
		})
	}

	return &App{
		cfg:    cfg,
		db:     boot.DB,
		server: httpapi.New(cfg.HTTP, deps),
		pinger: keepwarm.New(cfg.KeepWarm.URL, cfg.KeepWarm.Interval(), client),
	}, nil
}

// startCommand returns the Telegram start trigger, defaulting to /start when
// auto-start is off and no command was configured.
func startCommand(cfg coreconfig.SurveyConfig) string {
	if cfg.StartCommand != "" {
		return cfg.StartCommand
	}
	if cfg.AutoStart {
		return ""
	}
	return "/start"
}

func promptsFromConfig(p coreconfig.PromptsConfig) survey.Prompts {
	return survey.Prompts{
		Consent:    p.Consent,
		Question1:  p.Question1,
		Question2:  p.Question2,
		Thanks:     p.Thanks,
		Completed:  p.Completed,
		HowToStart: p.HowToStart,
	}
}

// Run serves HTTP and the keep-warm loop until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.db.Close(); err != nil {
			logger.DB.Warn("close failed",
				slog.String("event", "db.close"),
				slog.String("err", err.Error()),
			)
		}
	}()

	var wg sync.WaitGroup
	if a.pinger != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.pinger.Run(ctx)
		}()
	}

	err := a.server.Run(ctx)
	wg.Wait()
	return err
}
