package survey

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/metrics"
	"log/slog"
)

// Options configure how an Orchestrator enters conversations.
type Options struct {
	// Transport names the channel this orchestrator serves, for logs/metrics.
	Transport string
	// StartCommand, when non-empty, forces a fresh record on exact match.
	StartCommand string
	// AutoStart begins a survey on first contact when no active record exists.
	AutoStart bool
}

// Orchestrator glues one inbound webhook message to a store lookup, a machine
// decision, a committed transition, and a single outbound reply.
type Orchestrator struct {
	store   Store
	sender  Sender
	machine *Machine
	opts    Options
}

// NewOrchestrator wires the conversation collaborators together.
func NewOrchestrator(store Store, sender Sender, machine *Machine, opts Options) *Orchestrator {
	if opts.Transport == "" && sender != nil {
		opts.Transport = sender.Name()
	}
	return &Orchestrator{store: store, sender: sender, machine: machine, opts: opts}
}

// HandleInbound processes one turn. The returned error reports persistence
// failures only; delivery failures are logged and swallowed so webhook
// handlers can always acknowledge the transport.
//
// A persistence failure aborts the turn before any send: replying "thanks"
// for an answer that never committed would lie to the user, while silence
// lets their natural retry redo the turn.
func (o *Orchestrator) HandleInbound(ctx context.Context, userKey, text string) error {
	text = strings.TrimSpace(text)
	ctx = logger.WithTurnMeta(ctx, o.opts.Transport, userKey)

	if text == "" {
		logger.Debug(ctx, "survey", "turn.ignored",
			slog.String("status", "skip"),
		)
		return nil
	}
	metrics.InboundTotal.WithLabelValues(o.opts.Transport).Inc()

	if o.opts.StartCommand != "" && strings.EqualFold(text, o.opts.StartCommand) {
		return o.startSurvey(ctx, userKey, true)
	}

	rec, err := o.store.FindActive(ctx, userKey)
	if err != nil {
		logger.Error(ctx, "survey", "lookup.fail",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("find active survey: %w", err)
	}

	if rec == nil {
		if o.opts.AutoStart {
			// First contact doubles as the start signal; the text itself is
			// not stored.
			return o.startSurvey(ctx, userKey, false)
		}
		o.send(ctx, userKey, o.machine.Prompts().HowToStart)
		return nil
	}

	d := o.machine.Decide(rec.Status, text)
	if d.Mutates {
		updated, err := o.store.SaveAnswer(ctx, userKey, text, d.Expected)
		if errors.Is(err, ErrStatusChanged) && updated != nil {
			// A concurrent turn won this transition; answer the fresh state
			// without writing anything.
			logger.Warn(ctx, "survey", "turn.raced",
				slog.String("status", "retry"),
				slog.String("from_status", string(d.Expected)),
				slog.String("to_status", string(updated.Status)),
			)
			d = o.machine.Decide(updated.Status, text)
			if d.Mutates {
				if updated, err = o.store.SaveAnswer(ctx, userKey, text, d.Expected); err != nil {
					return o.persistFailed(ctx, d, err)
				}
			}
		} else if err != nil {
			return o.persistFailed(ctx, d, err)
		}
		if d.Mutates {
			if updated == nil {
				// The active record vanished between lookup and save.
				o.send(ctx, userKey, o.machine.Prompts().HowToStart)
				return nil
			}
			metrics.TransitionsTotal.WithLabelValues(string(d.Next)).Inc()
			logger.Info(ctx, "survey", "turn.advanced",
				slog.String("status", "ok"),
				slog.Int64("record_id", updated.ID),
				slog.String("from_status", string(d.Expected)),
				slog.String("to_status", string(updated.Status)),
			)
		}
	}

	o.send(ctx, userKey, d.Reply)
	return nil
}

// startSurvey creates a fresh record and asks question 1, preceded by the
// consent notice on an explicit start.
func (o *Orchestrator) startSurvey(ctx context.Context, userKey string, explicit bool) error {
	rec, err := o.store.Create(ctx, userKey)
	if err != nil {
		logger.Error(ctx, "survey", "create.fail",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("create survey: %w", err)
	}

	metrics.TransitionsTotal.WithLabelValues(string(StatusStarted)).Inc()
	logger.Info(ctx, "survey", "turn.started",
		slog.String("status", "ok"),
		slog.Int64("record_id", rec.ID),
		slog.String("to_status", string(rec.Status)),
	)

	prompts := o.machine.Prompts()
	if explicit && prompts.Consent != "" {
		o.send(ctx, userKey, prompts.Consent)
	}
	o.send(ctx, userKey, prompts.Question1)
	return nil
}

func (o *Orchestrator) persistFailed(ctx context.Context, d Decision, err error) error {
	logger.Error(ctx, "survey", "persist.fail",
		slog.String("status", "fail"),
		slog.String("from_status", string(d.Expected)),
		slog.String("err", err.Error()),
	)
	return fmt.Errorf("save answer: %w", err)
}

// send delivers one reply, counting and logging failures without surfacing
// them: the transport already got its webhook acknowledgement and retrying is
// explicitly out of policy.
func (o *Orchestrator) send(ctx context.Context, userKey, text string) {
	metrics.RepliesTotal.WithLabelValues(o.opts.Transport).Inc()
	if err := o.sender.Send(ctx, userKey, text); err != nil {
		metrics.DeliveryFailuresTotal.WithLabelValues(o.opts.Transport).Inc()
		logger.Warn(ctx, "survey", "reply.dropped",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
