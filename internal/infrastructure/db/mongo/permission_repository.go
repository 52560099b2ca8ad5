package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
)

// PermissionRepository resolves principal -> roles -> permissions. Roles are
// stored with their permissions embedded; principals carry role names.
type PermissionRepository struct {
	principals *mongo.Collection
	roles      *mongo.Collection
}

var _ ports.PermissionGraph = (*PermissionRepository)(nil)

func NewPermissionRepository(db *mongo.Database) *PermissionRepository {
	return &PermissionRepository{
		principals: db.Collection(collectionPrincipals),
		roles:      db.Collection(collectionRoles),
	}
}

type roleDoc struct {
	Name        string              `bson:"name"`
	Description string              `bson:"description,omitempty"`
	Permissions []domain.Permission `bson:"permissions"`
	UpdatedAt   time.Time           `bson:"updated_at"`
}

func (r *PermissionRepository) PermissionsFor(ctx context.Context, principalID string) (domain.PermissionSet, error) {
	set := domain.NewPermissionSet()

	oid, err := primitive.ObjectIDFromHex(principalID)
	if err != nil {
		return set, nil
	}

	var holder struct {
		Roles []string `bson:"roles"`
	}
	err = r.principals.FindOne(ctx,
		bson.M{"_id": oid, "is_active": true},
		options.FindOne().SetProjection(bson.M{"roles": 1}),
	).Decode(&holder)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return set, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load principal roles: %w", err)
	}
	if len(holder.Roles) == 0 {
		return set, nil
	}

	cur, err := r.roles.Find(ctx, bson.M{"name": bson.M{"$in": holder.Roles}})
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	var roles []roleDoc
	if err := cur.All(ctx, &roles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}

	for _, role := range roles {
		for _, p := range role.Permissions {
			set.Add(p)
		}
	}
	return set, nil
}

func (r *PermissionRepository) UpsertRole(ctx context.Context, role domain.Role) error {
	perms := role.Permissions
	if perms == nil {
		perms = []domain.Permission{}
	}
	_, err := r.roles.UpdateOne(ctx,
		bson.M{"name": role.Name},
		bson.M{"$set": roleDoc{
			Name:        role.Name,
			Description: role.Description,
			Permissions: perms,
			UpdatedAt:   time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert role %s: %w", role.Name, err)
	}
	return nil
}
