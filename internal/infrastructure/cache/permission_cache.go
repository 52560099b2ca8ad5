package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
)

type loaderKey struct{}

// PermissionCache is a ports.PermissionGraph that memoises lookups for the
// lifetime of one request. A request opts in with WithLoader; without a
// loader in the context every call goes straight to the graph, so role
// changes are visible on the next request.
type PermissionCache struct {
	graph ports.PermissionGraph
	wait  time.Duration
}

var _ ports.PermissionGraph = (*PermissionCache)(nil)

func NewPermissionCache(graph ports.PermissionGraph) *PermissionCache {
	return &PermissionCache{graph: graph, wait: time.Millisecond}
}

// WithLoader returns ctx carrying a fresh request-scoped loader.
func (c *PermissionCache) WithLoader(ctx context.Context) context.Context {
	return context.WithValue(ctx, loaderKey{}, c.newLoader())
}

func (c *PermissionCache) newLoader() *dataloader.Loader {
	return dataloader.NewBatchedLoader(func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))
		for i, key := range keys {
			set, err := c.graph.PermissionsFor(ctx, key.String())
			results[i] = &dataloader.Result{Data: set, Error: err}
		}
		return results
	}, dataloader.WithWait(c.wait))
}

func (c *PermissionCache) PermissionsFor(ctx context.Context, principalID string) (domain.PermissionSet, error) {
	loader, ok := ctx.Value(loaderKey{}).(*dataloader.Loader)
	if !ok {
		return c.graph.PermissionsFor(ctx, principalID)
	}

	v, err := loader.Load(ctx, dataloader.StringKey(principalID))()
	if err != nil {
		return nil, err
	}
	set, ok := v.(domain.PermissionSet)
	if !ok {
		return nil, fmt.Errorf("permission cache: unexpected value %T", v)
	}
	return set, nil
}

func (c *PermissionCache) UpsertRole(ctx context.Context, role domain.Role) error {
	return c.graph.UpsertRole(ctx, role)
}
