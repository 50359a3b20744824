package slack

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	slackapi "github.com/slack-go/slack"

	"github.com/jonny/interactiond/internal/domain/port/outbound"
)

const (
	defaultCooldown = 10 * time.Minute
	sendTimeout     = 10 * time.Second
	maxDetailLen    = 2900
)

// Config holds Slack alerter configuration. WebhookURL takes precedence over
// BotToken and Channel.
type Config struct {
	WebhookURL  string
	BotToken    string
	Channel     string
	Environment string
	AppName     string
	// Cooldown suppresses repeats of the same alert. Zero means the default.
	Cooldown   time.Duration
	HTTPClient *http.Client
	// APIURL overrides the Slack Web API base URL.
	APIURL string
}

// Alerter implements outbound.Alerter by posting Block Kit messages to Slack.
// Identical alerts are sent at most once per cooldown, and sends run in the
// background.
type Alerter struct {
	config  Config
	client  *slackapi.Client
	httpc   *http.Client
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
	alerted map[string]time.Time
	wg      sync.WaitGroup
}

var _ outbound.Alerter = (*Alerter)(nil)

// NewAlerter creates a new Slack Alerter.
func NewAlerter(cfg Config, logger *slog.Logger) (*Alerter, error) {
	if cfg.WebhookURL == "" && (cfg.BotToken == "" || cfg.Channel == "") {
		return nil, errors.New("slack alerter needs a webhook URL or a bot token and channel")
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.AppName == "" {
		cfg.AppName = "interactiond"
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: sendTimeout}
	}

	a := &Alerter{
		config:  cfg,
		httpc:   httpc,
		logger:  logger,
		now:     time.Now,
		alerted: make(map[string]time.Time),
	}
	if cfg.WebhookURL == "" {
		opts := []slackapi.Option{slackapi.OptionHTTPClient(httpc)}
		if cfg.APIURL != "" {
			opts = append(opts, slackapi.OptionAPIURL(cfg.APIURL))
		}
		a.client = slackapi.New(cfg.BotToken, opts...)
	}
	return a, nil
}

// Alert queues alert for delivery unless the same alert was sent within the
// cooldown.
func (a *Alerter) Alert(ctx context.Context, alert outbound.DispatchAlert) {
	if !a.shouldSend(alert) {
		a.logger.Debug("suppressing repeated alert", "title", alert.Title, "route", alert.RouteKey)
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()
		if err := a.send(sendCtx, alert); err != nil {
			a.logger.Warn("failed to send slack alert", "title", alert.Title, "error", err)
		}
	}()
}

// Wait blocks until in-flight sends have finished.
func (a *Alerter) Wait() {
	a.wg.Wait()
}

// shouldSend deduplicates on level, title and route. The detail is left out
// so that alerts differing only by interaction id collapse.
func (a *Alerter) shouldSend(alert outbound.DispatchAlert) bool {
	key := fmt.Sprintf("%x", md5.Sum([]byte(string(alert.Level)+"|"+alert.Title+"|"+alert.RouteKey)))
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()
	if last, ok := a.alerted[key]; ok && now.Sub(last) < a.config.Cooldown {
		return false
	}
	for k, t := range a.alerted {
		if now.Sub(t) >= a.config.Cooldown {
			delete(a.alerted, k)
		}
	}
	a.alerted[key] = now
	return true
}

func (a *Alerter) send(ctx context.Context, alert outbound.DispatchAlert) error {
	blocks := a.buildBlocks(alert)
	fallback := fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Level)), alert.Title)

	if a.config.WebhookURL != "" {
		msg := &slackapi.WebhookMessage{
			Text:   fallback,
			Blocks: &slackapi.Blocks{BlockSet: blocks},
		}
		if err := slackapi.PostWebhookCustomHTTPContext(ctx, a.config.WebhookURL, a.httpc, msg); err != nil {
			return fmt.Errorf("slack webhook: %w", err)
		}
		return nil
	}

	_, _, err := a.client.PostMessageContext(ctx, a.config.Channel,
		slackapi.MsgOptionBlocks(blocks...),
		slackapi.MsgOptionText(fallback, false),
	)
	if err != nil {
		return fmt.Errorf("slack PostMessage: %w", err)
	}
	return nil
}

func (a *Alerter) buildBlocks(alert outbound.DispatchAlert) []slackapi.Block {
	prefix := ""
	if a.config.Environment != "" && a.config.Environment != "production" {
		prefix = fmt.Sprintf("[%s] ", a.config.Environment)
	}
	header := slackapi.NewHeaderBlock(slackapi.NewTextBlockObject(
		slackapi.PlainTextType,
		fmt.Sprintf("%s%s %s", prefix, levelEmoji(alert.Level), alert.Title),
		true, false,
	))

	fields := []*slackapi.TextBlockObject{
		slackapi.NewTextBlockObject(slackapi.MarkdownType, fmt.Sprintf("*Service:* %s", a.config.AppName), false, false),
		slackapi.NewTextBlockObject(slackapi.MarkdownType, fmt.Sprintf("*Route:* `%s`", orDash(alert.RouteKey)), false, false),
		slackapi.NewTextBlockObject(slackapi.MarkdownType, fmt.Sprintf("*Interaction:* %s", orDash(alert.InteractionID)), false, false),
		slackapi.NewTextBlockObject(slackapi.MarkdownType, fmt.Sprintf("*Guild:* %s", orDash(alert.GuildID)), false, false),
	}
	section := slackapi.NewSectionBlock(nil, fields, nil)

	detail := truncate(alert.Detail, maxDetailLen)
	detailBlock := slackapi.NewSectionBlock(
		slackapi.NewTextBlockObject(slackapi.MarkdownType, fmt.Sprintf("```%s```", orDash(detail)), false, false),
		nil, nil,
	)

	return []slackapi.Block{header, section, detailBlock}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

func levelEmoji(level outbound.AlertLevel) string {
	if level == outbound.AlertCritical {
		return ":rotating_light:"
	}
	return ":warning:"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
