package ports

import (
	"context"

	"github.com/empireo/brain/internal/core/domain"
)

// AuditSink is the append-only security and business event log.
type AuditSink interface {
	Append(ctx context.Context, event domain.AuditEvent) error
}
