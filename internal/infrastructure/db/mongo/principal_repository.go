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

type PrincipalRepository struct {
	coll *mongo.Collection
}

var _ ports.PrincipalRepository = (*PrincipalRepository)(nil)

func NewPrincipalRepository(db *mongo.Database) *PrincipalRepository {
	return &PrincipalRepository{coll: db.Collection(collectionPrincipals)}
}

type principalDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	FullName     string             `bson:"full_name"`
	PasswordHash string             `bson:"password_hash"`
	Active       bool               `bson:"is_active"`
	Roles        []string           `bson:"roles"`
	LastLoginAt  *time.Time         `bson:"last_login_at,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (d *principalDoc) toDomain() *domain.Principal {
	p := &domain.Principal{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		FullName:     d.FullName,
		PasswordHash: d.PasswordHash,
		Active:       d.Active,
		Roles:        d.Roles,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if d.LastLoginAt != nil {
		t := d.LastLoginAt.UTC()
		p.LastLoginAt = &t
	}
	return p
}

func (r *PrincipalRepository) Create(ctx context.Context, p *domain.Principal) (*domain.Principal, error) {
	doc := principalDoc{
		ID:           primitive.NewObjectID(),
		Email:        p.Email,
		FullName:     p.FullName,
		PasswordHash: p.PasswordHash,
		Active:       p.Active,
		Roles:        p.Roles,
		CreatedAt:    p.CreatedAt.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrPrincipalExists
		}
		return nil, fmt.Errorf("insert principal: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *PrincipalRepository) FindByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *PrincipalRepository) FindByID(ctx context.Context, id string) (*domain.Principal, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrPrincipalNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *PrincipalRepository) findOne(ctx context.Context, filter bson.M) (*domain.Principal, error) {
	var doc principalDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("find principal: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *PrincipalRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.update(ctx, id, bson.M{"password_hash": passwordHash})
}

func (r *PrincipalRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, id, bson.M{"is_active": active})
}

func (r *PrincipalRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, bson.M{"last_login_at": at.UTC()})
}

func (r *PrincipalRepository) update(ctx context.Context, id string, set bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrPrincipalNotFound
	}
	set["updated_at"] = time.Now().UTC()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update principal: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrPrincipalNotFound
	}
	return nil
}

func (r *PrincipalRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count principals: %w", err)
	}
	return n, nil
}
