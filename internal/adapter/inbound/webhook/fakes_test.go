package webhook_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/jonny/interactiond/internal/adapter/inbound/webhook"
	"github.com/jonny/interactiond/internal/adapter/inbound/webhook/signature"
	"github.com/jonny/interactiond/internal/domain/model"
	"github.com/jonny/interactiond/internal/domain/port/outbound"
	"github.com/jonny/interactiond/internal/domain/service"
)

// fakeResponder records follow-up calls made by continuations.
type fakeResponder struct {
	mu    sync.Mutex
	edits []editCall
}

type editCall struct {
	appID, token string
	content      string
}

func (f *fakeResponder) EditOriginal(_ context.Context, appID, token string, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := editCall{appID: appID, token: token}
	if edit.Content != nil {
		call.content = *edit.Content
	}
	f.edits = append(f.edits, call)
	return &discordgo.Message{}, nil
}

func (f *fakeResponder) DeleteOriginal(context.Context, string, string) error { return nil }

func (f *fakeResponder) CreateFollowup(context.Context, string, string, *discordgo.WebhookParams) (*discordgo.Message, error) {
	return &discordgo.Message{}, nil
}

func (f *fakeResponder) EditFollowup(context.Context, string, string, string, *discordgo.WebhookEdit) (*discordgo.Message, error) {
	return &discordgo.Message{}, nil
}

func (f *fakeResponder) DeleteFollowup(context.Context, string, string, string) error { return nil }

func (f *fakeResponder) editCalls() []editCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]editCall(nil), f.edits...)
}

var _ outbound.InteractionResponder = (*fakeResponder)(nil)

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []outbound.DispatchAlert
}

func (f *fakeAlerter) Alert(_ context.Context, a outbound.DispatchAlert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
}

func (f *fakeAlerter) received() []outbound.DispatchAlert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]outbound.DispatchAlert(nil), f.alerts...)
}

var _ outbound.Alerter = (*fakeAlerter)(nil)

type fakeAudits struct {
	mu      sync.Mutex
	records []model.AuditRecord
}

func (f *fakeAudits) Create(_ context.Context, rec model.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeAudits) List(context.Context, outbound.AuditFilter, outbound.PageRequest) (outbound.PageResult[model.AuditRecord], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return outbound.PageResult[model.AuditRecord]{Items: append([]model.AuditRecord(nil), f.records...)}, nil
}

func (f *fakeAudits) last() model.AuditRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		return model.AuditRecord{}
	}
	return f.records[len(f.records)-1]
}

var _ outbound.AuditRepository = (*fakeAudits)(nil)

// harness wires a full interaction server around an in-memory registry.
type harness struct {
	priv      ed25519.PrivateKey
	registry  *service.Registry
	responder *fakeResponder
	scheduler *service.Scheduler
	alerter   *fakeAlerter
	audits    *fakeAudits
	handler   http.Handler
}

func newHarness(t *testing.T, cfg webhook.DispatcherConfig) *harness {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	h := &harness{
		priv:      priv,
		registry:  service.NewRegistry(nil),
		responder: &fakeResponder{},
		scheduler: service.NewScheduler(2, slog.Default()),
		alerter:   &fakeAlerter{},
		audits:    &fakeAudits{},
	}
	t.Cleanup(h.scheduler.Stop)

	rt := service.Runtime{
		Registry:  h.registry,
		Responder: h.responder,
		Scheduler: h.scheduler,
		Logger:    slog.Default(),
	}
	dispatcher := webhook.NewDispatcher(rt, h.alerter, h.audits, cfg)
	srv := webhook.NewServer(webhook.ServerConfig{}, pub, dispatcher, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.handler = srv.SetupRoutes(ctx)
	return h
}

func (h *harness) sign(timestamp string, body []byte) string {
	msg := append([]byte(timestamp), body...)
	return hex.EncodeToString(ed25519.Sign(h.priv, msg))
}

// post sends a correctly signed interaction.
func (h *harness) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, webhook.InteractionsPath, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.HeaderTimestamp, "1700000000")
	req.Header.Set(signature.HeaderSignature, h.sign("1700000000", []byte(body)))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}
