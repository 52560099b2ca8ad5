package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
)

// RefreshTokenRepository is the refresh token ledger. Documents are only
// ever flipped to revoked, never removed.
type RefreshTokenRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ ports.RefreshTokenLedger = (*RefreshTokenRepository)(nil)

func NewRefreshTokenRepository(db *mongo.Database) *RefreshTokenRepository {
	return &RefreshTokenRepository{coll: db.Collection(collectionRefreshTokens), now: time.Now}
}

type refreshTokenDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	TokenHash    string             `bson:"token_hash"`
	PrincipalID  string             `bson:"principal_id"`
	FamilyID     string             `bson:"family_id"`
	Revoked      bool               `bson:"revoked"`
	RevokeReason string             `bson:"revoke_reason,omitempty"`
	RevokedAt    *time.Time         `bson:"revoked_at,omitempty"`
	IssuedAt     time.Time          `bson:"issued_at"`
	ExpiresAt    time.Time          `bson:"expires_at"`
	UserAgent    string             `bson:"user_agent,omitempty"`
	IPAddress    string             `bson:"ip_address,omitempty"`
}

func (d *refreshTokenDoc) toDomain() *domain.RefreshTokenRecord {
	rec := &domain.RefreshTokenRecord{
		ID:           d.ID.Hex(),
		TokenHash:    d.TokenHash,
		PrincipalID:  d.PrincipalID,
		FamilyID:     d.FamilyID,
		Revoked:      d.Revoked,
		RevokeReason: domain.RevokeReason(d.RevokeReason),
		IssuedAt:     d.IssuedAt.UTC(),
		ExpiresAt:    d.ExpiresAt.UTC(),
		UserAgent:    d.UserAgent,
		IPAddress:    d.IPAddress,
	}
	if d.RevokedAt != nil {
		t := d.RevokedAt.UTC()
		rec.RevokedAt = &t
	}
	return rec
}

func (r *RefreshTokenRepository) Record(ctx context.Context, rec *domain.RefreshTokenRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := refreshTokenDoc{
		ID:          primitive.NewObjectID(),
		TokenHash:   rec.TokenHash,
		PrincipalID: rec.PrincipalID,
		FamilyID:    rec.FamilyID,
		IssuedAt:    rec.IssuedAt.UTC(),
		ExpiresAt:   rec.ExpiresAt.UTC(),
		UserAgent:   rec.UserAgent,
		IPAddress:   rec.IPAddress,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	rec.ID = doc.ID.Hex()
	return nil
}

func (r *RefreshTokenRepository) Lookup(ctx context.Context, tokenHash string) (*domain.RefreshTokenRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc refreshTokenDoc
	if err := r.coll.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, recordID string, reason domain.RevokeReason) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return false, domain.ErrRefreshTokenNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid, "revoked": false}, r.revokeUpdate(reason))
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	if n == 0 {
		return false, domain.ErrRefreshTokenNotFound
	}
	return false, nil
}

// Rotate revokes the presented token and records its successor. The
// conditional update on {token_hash, revoked:false} is the single point that
// decides which of several concurrent rotations wins.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, presentedHash string, next *domain.RefreshTokenRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"token_hash": presentedHash, "revoked": false},
		r.revokeUpdate(domain.RevokeRotated),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := r.coll.CountDocuments(ctx, bson.M{"token_hash": presentedHash})
		if cerr != nil {
			return fmt.Errorf("rotate refresh token: %w", cerr)
		}
		if n == 0 {
			return domain.ErrRefreshTokenNotFound
		}
		return domain.ErrRefreshTokenRevoked
	}
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	if err := r.Record(ctx, next); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeFamily(ctx context.Context, familyID string, reason domain.RevokeReason) (int64, error) {
	return r.revokeMany(ctx, bson.M{"family_id": familyID, "revoked": false}, reason)
}

func (r *RefreshTokenRepository) RevokeAllForPrincipal(ctx context.Context, principalID string, reason domain.RevokeReason) (int64, error) {
	return r.revokeMany(ctx, bson.M{"principal_id": principalID, "revoked": false}, reason)
}

func (r *RefreshTokenRepository) revokeMany(ctx context.Context, filter bson.M, reason domain.RevokeReason) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateMany(ctx, filter, r.revokeUpdate(reason))
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *RefreshTokenRepository) revokeUpdate(reason domain.RevokeReason) bson.M {
	return bson.M{"$set": bson.M{
		"revoked":       true,
		"revoke_reason": string(reason),
		"revoked_at":    r.now().UTC(),
	}}
}
