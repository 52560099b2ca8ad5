package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
)

// AuditRepository appends audit events to the events table.
type AuditRepository struct {
	db *sql.DB
}

var _ ports.AuditSink = (*AuditRepository)(nil)

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, ev domain.AuditEvent) error {
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	meta := ev.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO events (event_type, actor_id, entity_type, entity_id, metadata, occurred_at)
		 VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, $6)`,
		ev.EventType, ev.ActorID, ev.EntityType, ev.EntityID, raw, occurred.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
