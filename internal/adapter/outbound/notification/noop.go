package notification

import (
	"context"
	"log/slog"

	"github.com/jonny/interactiond/internal/domain/port/outbound"
)

// NoopAlerter logs alerts instead of sending them.
// Used in local development when Slack is not configured.
type NoopAlerter struct {
	logger *slog.Logger
}

var _ outbound.Alerter = (*NoopAlerter)(nil)

// NewNoopAlerter creates a new NoopAlerter.
func NewNoopAlerter(logger *slog.Logger) *NoopAlerter {
	return &NoopAlerter{logger: logger}
}

func (n *NoopAlerter) Alert(ctx context.Context, alert outbound.DispatchAlert) {
	n.logger.Log(ctx, slog.LevelDebug, "noop: dispatch alert",
		"level", string(alert.Level),
		"title", alert.Title,
		"interactionID", alert.InteractionID,
		"route", alert.RouteKey,
	)
}
