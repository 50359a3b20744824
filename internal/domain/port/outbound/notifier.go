package outbound

import "context"

type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// DispatchAlert describes a server-side fault while dispatching an interaction.
type DispatchAlert struct {
	Level         AlertLevel
	Title         string
	Detail        string
	InteractionID string
	RouteKey      string
	GuildID       string
}

// Alerter reports dispatch faults to operators. Implementations must not
// block the caller on network I/O.
type Alerter interface {
	Alert(ctx context.Context, alert DispatchAlert)
}
