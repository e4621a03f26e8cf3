package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/surveybot/core/config"
	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/core/ratelimit"
	"github.com/m3rciful/surveybot/survey"
)

func TestMain(m *testing.M) {
	if err := logger.InitLogger(nil); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeSender struct {
	mu   sync.Mutex
	name string
	sent []string
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, _, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type testEnv struct {
	server   *Server
	store    survey.Store
	twilio   *fakeSender
	telegram *fakeSender
}

func newTestEnv(t *testing.T, limiter *ratelimit.KeyLimiter) *testEnv {
	t.Helper()

	store := survey.NewMemoryStore(coreconfig.StrategyMulti)
	machine := survey.NewMachine(survey.Prompts{Consent: "We store your answers."})

	twilioSender := &fakeSender{name: "twilio"}
	telegramSender := &fakeSender{name: "telegram"}

	twilioOrch := survey.NewOrchestrator(store, twilioSender, machine, survey.Options{
		Transport: "twilio",
		AutoStart: true,
	})
	telegramOrch := survey.NewOrchestrator(store, telegramSender, machine, survey.Options{
		Transport:    "telegram",
		StartCommand: "/start",
	})

	server := New(coreconfig.HTTPConfig{Listen: ":0"}, Deps{
		Store:    store,
		Twilio:   twilioOrch,
		Telegram: telegramOrch,
		Limiter:  limiter,
	})
	return &testEnv{server: server, store: store, twilio: twilioSender, telegram: telegramSender}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"live"`) {
		t.Fatalf("body = %s, want live status", w.Body.String())
	}
}

func TestExportEmptyIsArray(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Fatalf("body = %s, want []", got)
	}
}

func TestTwilioWebhookAutoStarts(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, postForm("/webhook/twilio", url.Values{
		"From": {"whatsapp:+15551234567"},
		"Body": {"hello"},
	}))
	if w.Code != http.StatusNoContent {
		t.Fatalf("code = %d, want 204", w.Code)
	}

	// First contact auto-starts: question 1 only, no consent notice.
	sent := env.twilio.texts()
	if len(sent) != 1 || sent[0] != survey.DefaultPrompts().Question1 {
		t.Fatalf("sent = %v, want just question 1", sent)
	}

	rec, err := env.store.FindActive(context.Background(), "whatsapp:+15551234567")
	if err != nil || rec == nil {
		t.Fatalf("FindActive = (%v, %v), want a started record", rec, err)
	}
	if rec.Status != survey.StatusStarted {
		t.Fatalf("status = %s, want started", rec.Status)
	}
}

func TestTwilioWebhookIgnoresMissingSender(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, postForm("/webhook/twilio", url.Values{"Body": {"hello"}}))
	if w.Code != http.StatusNoContent {
		t.Fatalf("code = %d, want 204", w.Code)
	}
	if sent := env.twilio.texts(); len(sent) != 0 {
		t.Fatalf("sent = %v, want nothing", sent)
	}
}

func TestTelegramWebhookStartCommand(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, postJSON("/webhook/telegram",
		`{"message":{"chat":{"id":42},"text":"/start"}}`))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}

	// Explicit start sends the consent notice before question 1.
	sent := env.telegram.texts()
	if len(sent) != 2 {
		t.Fatalf("sent = %v, want consent then question 1", sent)
	}
	if sent[0] != "We store your answers." || sent[1] != survey.DefaultPrompts().Question1 {
		t.Fatalf("sent = %v, want consent then question 1", sent)
	}
}

func TestTelegramWebhookPromptsWithoutActiveSurvey(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, postJSON("/webhook/telegram",
		`{"message":{"chat":{"id":42},"text":"hello"}}`))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	sent := env.telegram.texts()
	if len(sent) != 1 || sent[0] != survey.DefaultPrompts().HowToStart {
		t.Fatalf("sent = %v, want the how-to-start prompt", sent)
	}
}

func TestTelegramWebhookAcceptsBadPayload(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, postJSON("/webhook/telegram", `{not json`))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200 so the update is not redelivered", w.Code)
	}

	w = env.do(t, postJSON("/webhook/telegram", `{"update_id":7}`))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200 for an update without a message", w.Code)
	}
	if sent := env.telegram.texts(); len(sent) != 0 {
		t.Fatalf("sent = %v, want nothing", sent)
	}
}

func TestWebhookRateLimited(t *testing.T) {
	env := newTestEnv(t, ratelimit.New(1, 1, time.Minute))

	form := url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"hello"}}
	if w := env.do(t, postForm("/webhook/twilio", form)); w.Code != http.StatusNoContent {
		t.Fatalf("code = %d, want 204", w.Code)
	}
	if w := env.do(t, postForm("/webhook/twilio", form)); w.Code != http.StatusNoContent {
		t.Fatalf("limited request should still be acknowledged, got %d", w.Code)
	}

	// Only the first request reached the conversation.
	if sent := env.twilio.texts(); len(sent) != 1 {
		t.Fatalf("sent = %v, want exactly one reply", sent)
	}
}

func TestExportRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)

	userKey := "whatsapp:+15551234567"
	for _, text := range []string{"hi", "Professor", "More evening courses"} {
		env.do(t, postForm("/webhook/twilio", url.Values{"From": {userKey}, "Body": {text}}))
	}

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}

	var records []survey.Record
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Status != survey.StatusCompleted {
		t.Fatalf("status = %s, want completed", rec.Status)
	}
	if rec.Answer1 == nil || *rec.Answer1 != "Professor" {
		t.Fatalf("answer1 = %v, want Professor", rec.Answer1)
	}
	if rec.Answer2 == nil || *rec.Answer2 != "More evening courses" {
		t.Fatalf("answer2 = %v, want the second answer", rec.Answer2)
	}
}
