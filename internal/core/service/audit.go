package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
)

// emitAudit stamps and appends an event. Audit failures never fail the
// operation that produced the event.
func emitAudit(ctx context.Context, sink ports.AuditSink, log zerolog.Logger, now func() time.Time, ev domain.AuditEvent) {
	if sink == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = now().UTC()
	}
	if err := sink.Append(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event_type", ev.EventType).Msg("failed to append audit event")
	}
}
