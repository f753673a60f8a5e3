package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID   string
	ActorType ActorType
	Action    string
	Entity    string
	EntityID  string
	Meta      map[string]any
	At        time.Time
}

// normalized fills in the defaults for an entry about to be persisted.
// A zero time.Time would be encoded as year 1, not SQL NULL, so the
// timestamp default has to be applied here rather than in the statement.
func (a AuditLog) normalized() AuditLog {
	if a.ActorType == "" {
		a.ActorType = ActorSystem
	}
	if a.At.IsZero() {
		a.At = time.Now()
	}
	return a
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	log = log.normalized()
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, actor_type, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`, log.ActorID, log.ActorType, log.Action, log.Entity, log.EntityID, metaJSON, log.At)
	return err
}
