package slack

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonny/interactiond/internal/domain/port/outbound"
)

type capture struct {
	mu       sync.Mutex
	payloads []map[string]any
	paths    []string
}

func (c *capture) handler(reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.paths = append(c.paths, r.URL.Path)
		payload := map[string]any{}
		if r.Header.Get("Content-Type") == "application/json" {
			_ = json.NewDecoder(r.Body).Decode(&payload)
		} else {
			_ = r.ParseForm()
			for k := range r.PostForm {
				payload[k] = r.PostForm.Get(k)
			}
		}
		c.payloads = append(c.payloads, payload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func testAlert() outbound.DispatchAlert {
	return outbound.DispatchAlert{
		Level:         outbound.AlertCritical,
		Title:         "Interaction dispatch failed: handler_failed",
		Detail:        "handler_failed for summon: boom",
		InteractionID: "i1",
		RouteKey:      "summon",
		GuildID:       "g1",
	}
}

func TestNewAlerter_RequiresDestination(t *testing.T) {
	_, err := NewAlerter(Config{BotToken: "xoxb"}, slog.Default())
	assert.Error(t, err)
}

func TestAlerter_Webhook(t *testing.T) {
	c := &capture{}
	server := httptest.NewServer(c.handler("ok"))
	defer server.Close()

	alerter, err := NewAlerter(Config{WebhookURL: server.URL + "/hook", Environment: "dev"}, slog.Default())
	require.NoError(t, err)

	alerter.Alert(context.Background(), testAlert())
	alerter.Wait()

	require.Equal(t, 1, c.count())
	payload := c.payloads[0]
	assert.Equal(t, "[CRITICAL] Interaction dispatch failed: handler_failed", payload["text"])
	blocks, ok := payload["blocks"].([]any)
	require.True(t, ok, "expected blocks array")
	assert.Len(t, blocks, 3)

	header := blocks[0].(map[string]any)["text"].(map[string]any)["text"].(string)
	assert.Contains(t, header, "[dev]")
}

func TestAlerter_CooldownSuppressesRepeats(t *testing.T) {
	c := &capture{}
	server := httptest.NewServer(c.handler("ok"))
	defer server.Close()

	alerter, err := NewAlerter(Config{WebhookURL: server.URL, Cooldown: time.Minute}, slog.Default())
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	alerter.now = func() time.Time { return now }

	alerter.Alert(context.Background(), testAlert())
	second := testAlert()
	second.InteractionID = "i2"
	alerter.Alert(context.Background(), second)
	alerter.Wait()
	assert.Equal(t, 1, c.count(), "same failure on same route is deduplicated")

	other := testAlert()
	other.RouteKey = "ping"
	alerter.Alert(context.Background(), other)
	alerter.Wait()
	assert.Equal(t, 2, c.count(), "different route is alerted")

	now = now.Add(2 * time.Minute)
	alerter.Alert(context.Background(), testAlert())
	alerter.Wait()
	assert.Equal(t, 3, c.count(), "alert repeats after cooldown")
}

func TestAlerter_BotToken(t *testing.T) {
	c := &capture{}
	server := httptest.NewServer(c.handler(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	defer server.Close()

	alerter, err := NewAlerter(Config{
		BotToken: "xoxb-test",
		Channel:  "C123",
		APIURL:   server.URL + "/",
	}, slog.Default())
	require.NoError(t, err)

	alerter.Alert(context.Background(), testAlert())
	alerter.Wait()

	require.Equal(t, 1, c.count())
	assert.Equal(t, "/chat.postMessage", c.paths[0])
	assert.Equal(t, "C123", c.payloads[0]["channel"])
}

func TestAlerter_SendFailureIsContained(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	alerter, err := NewAlerter(Config{WebhookURL: server.URL}, slog.Default())
	require.NoError(t, err)

	alerter.Alert(context.Background(), testAlert())
	alerter.Wait()
}

func TestBuildBlocks_TruncatesDetail(t *testing.T) {
	alerter, err := NewAlerter(Config{WebhookURL: "http://unused"}, slog.Default())
	require.NoError(t, err)

	alert := testAlert()
	long := make([]byte, maxDetailLen*2)
	for i := range long {
		long[i] = 'x'
	}
	alert.Detail = string(long)

	blocks := alerter.buildBlocks(alert)
	raw, err := json.Marshal(blocks)
	require.NoError(t, err)
	assert.Less(t, len(raw), maxDetailLen+1000)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc…", truncate("abcdef", 3))

	// "é" is two bytes; a cut at byte 2 would land inside it.
	got := truncate("aé-tail", 2)
	assert.Equal(t, "a…", got)
	assert.True(t, utf8.ValidString(got))

	detail := strings.Repeat("日本", maxDetailLen)
	got = truncate(detail, maxDetailLen)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxDetailLen+len("…"))
}

func TestBuildBlocks_TruncatedDetailIsValidUTF8(t *testing.T) {
	alerter, err := NewAlerter(Config{WebhookURL: "http://unused"}, slog.Default())
	require.NoError(t, err)

	alert := testAlert()
	alert.Detail = "x" + strings.Repeat("€", maxDetailLen)

	blocks := alerter.buildBlocks(alert)
	raw, err := json.Marshal(blocks)
	require.NoError(t, err)
	assert.True(t, utf8.Valid(raw))
	assert.NotContains(t, string(raw), "\\ufffd")
}
