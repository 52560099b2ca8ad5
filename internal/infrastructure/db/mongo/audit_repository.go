package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
)

// AuditRepository appends audit events to the events collection.
type AuditRepository struct {
	coll *mongo.Collection
}

var _ ports.AuditSink = (*AuditRepository)(nil)

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(collectionEvents)}
}

func (r *AuditRepository) Append(ctx context.Context, ev domain.AuditEvent) error {
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	doc := bson.M{
		"event_type":  ev.EventType,
		"entity_type": ev.EntityType,
		"occurred_at": occurred.UTC(),
	}
	if ev.ActorID != "" {
		doc["actor_id"] = ev.ActorID
	}
	if ev.EntityID != "" {
		doc["entity_id"] = ev.EntityID
	}
	if len(ev.Metadata) > 0 {
		doc["metadata"] = ev.Metadata
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
