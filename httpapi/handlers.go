package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/survey"
	"log/slog"
)

// health answers the liveness probe (and the keep-warm self-ping).
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "live"})
}

// export dumps every survey record as a JSON array, oldest first. An empty
// store yields [] rather than null.
func (s *Server) export(c *gin.Context) {
	records, err := s.deps.Store.ExportAll(c.Request.Context())
	if err != nil {
		logger.HTTP.Error("export failed",
			slog.String("event", "export.fail"),
			slog.String("err", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	if records == nil {
		records = []survey.Record{}
	}
	c.JSON(http.StatusOK, records)
}

// telegramUpdate mirrors the slice of the Bot API update payload the survey
// needs. Everything else in the update is ignored.
type telegramUpdate struct {
	Message struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// twilioWebhook handles an inbound WhatsApp message. Twilio retries on
// non-2xx, so the route acknowledges with 204 regardless of the turn's
// outcome; failures are visible in logs and metrics instead.
func (s *Server) twilioWebhook(c *gin.Context) {
	from := strings.TrimSpace(c.PostForm("From"))
	body := c.PostForm("Body")

	ctx := c.Request.Context()
	if from == "" {
		logger.HTTP.Warn("webhook without sender",
			slog.String("event", "webhook.skip"),
			slog.String("route", "twilio"),
		)
		c.Status(http.StatusNoContent)
		return
	}
	if !s.deps.Limiter.Allow(from) {
		logger.HTTP.Warn("sender rate limited",
			slog.String("event", "webhook.limited"),
			slog.String("route", "twilio"),
			slog.String("user_key", from),
		)
		c.Status(http.StatusNoContent)
		return
	}

	if err := s.deps.Twilio.HandleInbound(ctx, from, body); err != nil {
		logger.HTTP.Error("turn failed",
			slog.String("event", "webhook.fail"),
			slog.String("route", "twilio"),
			slog.String("err", err.Error()),
		)
	}
	c.Status(http.StatusNoContent)
}

// telegramWebhook handles a Bot API update. Telegram keeps redelivering an
// update until it sees 200, so the route always returns 200, including for
// updates that carry no usable message.
func (s *Server) telegramWebhook(c *gin.Context) {
	var upd telegramUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		logger.HTTP.Warn("bad update payload",
			slog.String("event", "webhook.skip"),
			slog.String("route", "telegram"),
			slog.String("err", err.Error()),
		)
		c.Status(http.StatusOK)
		return
	}
	if upd.Message.Chat.ID == 0 {
		c.Status(http.StatusOK)
		return
	}

	userKey := strconv.FormatInt(upd.Message.Chat.ID, 10)
	if !s.deps.Limiter.Allow(userKey) {
		logger.HTTP.Warn("sender rate limited",
			slog.String("event", "webhook.limited"),
			slog.String("route", "telegram"),
			slog.String("user_key", userKey),
		)
		c.Status(http.StatusOK)
		return
	}

	if err := s.deps.Telegram.HandleInbound(c.Request.Context(), userKey, upd.Message.Text); err != nil {
		logger.HTTP.Error("turn failed",
			slog.String("event", "webhook.fail"),
			slog.String("route", "telegram"),
			slog.String("err", err.Error()),
		)
	}
	c.Status(http.StatusOK)
}
