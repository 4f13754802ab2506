package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by both pgxpool.Pool and pgx.Tx. Mutation
// services pass their transaction so the audit row shares its fate.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Logger writes records into audit_logs.
type Logger struct{}

// NewLogger returns a new Logger.
func NewLogger() *Logger {
	return &Logger{}
}

// Record persists the entry using the provided executor.
func (l *Logger) Record(ctx context.Context, db Execer, entry Entry) error {
	if l == nil || db == nil {
		return errors.New("audit: logger not initialised")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit: entry requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = db.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, entity, entity_id, detail, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ActorID, entry.Action, entry.Entity, entry.EntityID, entry.Detail, metaJSON, at)
	return err
}
