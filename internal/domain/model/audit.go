package model

import "time"

type AuditOutcome string

const (
	AuditOutcomePong           AuditOutcome = "pong"
	AuditOutcomeResponded      AuditOutcome = "responded"
	AuditOutcomeDeferred       AuditOutcome = "deferred"
	AuditOutcomeUnhandled      AuditOutcome = "unhandled"
	AuditOutcomeHandlerFailed  AuditOutcome = "handler_failed"
	AuditOutcomeHandlerTimeout AuditOutcome = "handler_timeout"
)

// AuditRecord describes how one dispatched interaction was answered.
type AuditRecord struct {
	ID            string        `json:"id"`
	InteractionID string        `json:"interaction_id"`
	Kind          string        `json:"kind"`
	GuildID       string        `json:"guild_id"`
	RouteKey      string        `json:"route_key"`
	ResponseType  string        `json:"response_type"`
	Status        int           `json:"status"`
	Outcome       AuditOutcome  `json:"outcome"`
	Duration      time.Duration `json:"duration"`
	CreatedAt     time.Time     `json:"created_at"`
}

func NewAuditRecord(in Interaction, outcome AuditOutcome, status int) AuditRecord {
	return AuditRecord{
		ID:            generateID("ia"),
		InteractionID: in.ID,
		Kind:          in.Kind.String(),
		GuildID:       in.GuildID,
		RouteKey:      in.RouteKey(),
		Status:        status,
		Outcome:       outcome,
		CreatedAt:     time.Now().UTC(),
	}
}

func (a AuditRecord) WithResponse(t ResponseType) AuditRecord {
	a.ResponseType = t.String()
	return a
}

func (a AuditRecord) WithDuration(d time.Duration) AuditRecord {
	a.Duration = d
	return a
}
