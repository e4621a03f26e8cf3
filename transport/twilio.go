package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twapi "github.com/twilio/twilio-go/rest/api/v2010"

	coreconfig "github.com/m3rciful/surveybot/core/config"
	"github.com/m3rciful/surveybot/core/logger"
	"log/slog"
)

// TwilioSender delivers WhatsApp texts through the Twilio messaging API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSender builds a sender from validated credentials.
func NewTwilioSender(cfg coreconfig.TwilioConfig, httpClient *http.Client) *TwilioSender {
	base := &twclient.Client{
		Credentials: twclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
	}
	base.HTTPClient = httpClient
	base.SetAccountSid(cfg.AccountSID)

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
		Client:   base,
	})

	return &TwilioSender{
		client: rest,
		from:   whatsappAddress(cfg.FromNumber),
	}
}

// whatsappAddress normalizes a phone number to Twilio's whatsapp: form.
func whatsappAddress(number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// Name implements survey.Sender.
func (s *TwilioSender) Name() string { return "twilio" }

// Send implements survey.Sender. The userKey is the sender address as
// received from the webhook (already whatsapp:-prefixed).
func (s *TwilioSender) Send(ctx context.Context, userKey, text string) error {
	params := &twapi.CreateMessageParams{}
	params.SetTo(userKey)
	params.SetFrom(s.from)
	params.SetBody(text)

	start := time.Now()
	_, err := s.client.Api.CreateMessage(params)
	if err != nil {
		logger.SMS.Error("send failed",
			slog.String("event", "send.fail"),
			slog.String("user_key", userKey),
			slog.String("err", Redact(err)),
			slog.String("err_kind", Classify(err)),
			slog.Duration("duration", logger.Took(start)),
		)
		return fmt.Errorf("twilio send: %w", err)
	}

	logger.SMS.Debug("send ok",
		slog.String("event", "send.ok"),
		slog.String("user_key", userKey),
		slog.String("payload", logger.SanitizeLimit(text, 128)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}
