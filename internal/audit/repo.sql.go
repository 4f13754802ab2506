package audit

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TimelineWindow returns one page of the audit trail, newest first.
// Empty filter fields are skipped.
func (r *Repository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	var fromAt, toAt any
	if !filters.From.IsZero() {
		fromAt = filters.From
	}
	if !filters.To.IsZero() {
		toAt = filters.To
	}
	rows, err := r.pool.Query(ctx, `
		SELECT al.occurred_at, COALESCE(m.display_name, ''), al.action, al.entity, al.entity_id, al.detail
		FROM audit_logs al
		LEFT JOIN members m ON m.id = al.actor_id
		WHERE ($1::timestamptz IS NULL OR al.occurred_at >= $1)
		  AND ($2::timestamptz IS NULL OR al.occurred_at <= $2)
		  AND ($3::text IS NULL OR m.display_name ILIKE '%' || $3 || '%')
		  AND ($4::text IS NULL OR al.entity = $4)
		  AND ($5::text IS NULL OR al.action = $5)
		ORDER BY al.occurred_at DESC
		OFFSET $6 LIMIT $7`,
		fromAt, toAt, optional(filters.Actor), optional(filters.Entity), optional(filters.Action), offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.Actor, &row.Action, &row.Entity, &row.EntityID, &row.Detail); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteOlderThan removes trail rows past the retention horizon and
// returns how many were dropped.
func (r *Repository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM audit_logs
		WHERE occurred_at < NOW() - ($1 || ' days')::interval`, days)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func optional(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}
