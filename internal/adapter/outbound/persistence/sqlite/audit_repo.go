package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jonny/interactiond/internal/domain/model"
	"github.com/jonny/interactiond/internal/domain/port/outbound"
)

// AuditRepo implements outbound.AuditRepository using SQLite.
type AuditRepo struct {
	db *sql.DB
}

var _ outbound.AuditRepository = (*AuditRepo)(nil)

// NewAuditRepo creates a new AuditRepo backed by the given store.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{db: store.DB}
}

// Create inserts one interaction audit row.
func (r *AuditRepo) Create(ctx context.Context, rec model.AuditRecord) error {
	const q = `INSERT INTO interaction_audit
		(id, interaction_id, kind, guild_id, route_key, response_type, status, outcome, duration_ns, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`

	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.InteractionID, rec.Kind,
		rec.GuildID, rec.RouteKey, rec.ResponseType,
		rec.Status, string(rec.Outcome),
		int64(rec.Duration), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting interaction audit: %w", err)
	}
	return nil
}

// List returns a paginated, filtered list of audit records ordered by time.
func (r *AuditRepo) List(ctx context.Context, filter outbound.AuditFilter, page outbound.PageRequest) (outbound.PageResult[model.AuditRecord], error) {
	where, args := buildAuditWhere(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM interaction_audit"+where, args...).Scan(&total); err != nil {
		return outbound.PageResult[model.AuditRecord]{}, fmt.Errorf("counting interaction audit: %w", err)
	}

	dir := "ASC"
	if page.Desc {
		dir = "DESC"
	}
	size := page.Size
	if size <= 0 {
		size = 20
	}
	offset := page.Page * size

	dataQ := fmt.Sprintf(`SELECT id, interaction_id, kind, guild_id, route_key, response_type, status, outcome, duration_ns, created_at
		FROM interaction_audit%s ORDER BY created_at %s, id %s LIMIT ? OFFSET ?`, where, dir, dir)

	rows, err := r.db.QueryContext(ctx, dataQ, append(args, size, offset)...)
	if err != nil {
		return outbound.PageResult[model.AuditRecord]{}, fmt.Errorf("listing interaction audit: %w", err)
	}
	defer rows.Close()

	var items []model.AuditRecord
	for rows.Next() {
		rec, err := scanAuditRecord(rows)
		if err != nil {
			return outbound.PageResult[model.AuditRecord]{}, fmt.Errorf("scanning interaction audit: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return outbound.PageResult[model.AuditRecord]{}, fmt.Errorf("iterating interaction audit: %w", err)
	}

	return outbound.PageResult[model.AuditRecord]{
		Items:      items,
		TotalCount: total,
		Page:       page.Page,
		Size:       size,
	}, nil
}

// Prune deletes records created before cutoff and returns how many were removed.
func (r *AuditRepo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM interaction_audit WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning interaction audit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning interaction audit: %w", err)
	}
	return n, nil
}

// --- helpers ---

type auditScanner interface {
	Scan(dest ...any) error
}

func scanAuditRecord(s auditScanner) (model.AuditRecord, error) {
	var (
		rec      model.AuditRecord
		outcome  string
		duration int64
	)
	err := s.Scan(
		&rec.ID, &rec.InteractionID, &rec.Kind,
		&rec.GuildID, &rec.RouteKey, &rec.ResponseType,
		&rec.Status, &outcome, &duration, &rec.CreatedAt,
	)
	if err != nil {
		return model.AuditRecord{}, err
	}
	rec.Outcome = model.AuditOutcome(outcome)
	rec.Duration = time.Duration(duration)
	return rec, nil
}

func buildAuditWhere(f outbound.AuditFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.RouteKey != "" {
		clauses = append(clauses, "route_key = ?")
		args = append(args, f.RouteKey)
	}
	if f.GuildID != "" {
		clauses = append(clauses, "guild_id = ?")
		args = append(args, f.GuildID)
	}
	if f.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(f.Outcome))
	}
	if f.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if f.Until != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, f.Until.UTC())
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
