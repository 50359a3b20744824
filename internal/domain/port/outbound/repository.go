package outbound

import (
	"context"
	"time"

	"github.com/jonny/interactiond/internal/domain/model"
)

type PageRequest struct {
	Page int
	Size int
	Desc bool
}

type PageResult[T any] struct {
	Items      []T
	TotalCount int64
	Page       int
	Size       int
}

type AuditFilter struct {
	Kind     string
	RouteKey string
	GuildID  string
	Outcome  model.AuditOutcome
	Since    *time.Time
	Until    *time.Time
}

type AuditRepository interface {
	Create(ctx context.Context, record model.AuditRecord) error
	List(ctx context.Context, filter AuditFilter, page PageRequest) (PageResult[model.AuditRecord], error)
}
