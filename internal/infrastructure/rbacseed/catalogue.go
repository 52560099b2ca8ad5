// Package rbacseed loads the role/permission catalogue from YAML and writes
// it into the permission graph.
package rbacseed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
)

//go:embed permissions.yaml
var defaultCatalogue []byte

// Catalogue is the YAML document: the known resources with their actions,
// and the bundle granted to each role.
type Catalogue struct {
	Resources map[string][]string `yaml:"resources"`
	RoleSpecs []RoleSpec          `yaml:"roles"`
}

type RoleSpec struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	All         bool     `yaml:"all"`
	Permissions []string `yaml:"permissions"`
}

// Parse decodes a catalogue, rejecting unknown fields.
func Parse(data []byte) (*Catalogue, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalogue
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("rbac catalogue: %w", err)
	}
	return &c, nil
}

// Default returns the embedded catalogue.
func Default() (*Catalogue, error) {
	return Parse(defaultCatalogue)
}

// Roles expands the catalogue into domain roles. Every role must be one of
// the fixed staff roles and every permission must be declared under
// resources.
func (c *Catalogue) Roles() ([]domain.Role, error) {
	known := make(map[domain.Permission]struct{})
	var all []domain.Permission
	for resource, actions := range c.Resources {
		for _, action := range actions {
			p := domain.Permission{Resource: resource, Action: action}
			if _, dup := known[p]; dup {
				continue
			}
			known[p] = struct{}{}
			all = append(all, p)
		}
	}
	all = domain.NewPermissionSet(all...).Sorted()

	var errs []error
	seen := make(map[string]struct{}, len(c.RoleSpecs))
	roles := make([]domain.Role, 0, len(c.RoleSpecs))
	for _, spec := range c.RoleSpecs {
		if !domain.IsKnownRole(spec.Name) {
			errs = append(errs, fmt.Errorf("unknown role %q", spec.Name))
			continue
		}
		if _, dup := seen[spec.Name]; dup {
			errs = append(errs, fmt.Errorf("role %q declared twice", spec.Name))
			continue
		}
		seen[spec.Name] = struct{}{}

		role := domain.Role{Name: spec.Name, Description: spec.Description}
		if spec.All {
			role.Permissions = append([]domain.Permission(nil), all...)
			roles = append(roles, role)
			continue
		}

		set := domain.NewPermissionSet()
		for _, raw := range spec.Permissions {
			p, err := parsePermission(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("role %q: %w", spec.Name, err))
				continue
			}
			if _, ok := known[p]; !ok {
				errs = append(errs, fmt.Errorf("role %q: permission %s is not declared", spec.Name, p))
				continue
			}
			set.Add(p)
		}
		role.Permissions = set.Sorted()
		roles = append(roles, role)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("rbac catalogue: %w", err)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func parsePermission(raw string) (domain.Permission, error) {
	resource, action, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || resource == "" || action == "" {
		return domain.Permission{}, fmt.Errorf("malformed permission %q, want resource:action", raw)
	}
	return domain.Permission{Resource: resource, Action: action}, nil
}

// Apply upserts every role of the catalogue into the graph.
func Apply(ctx context.Context, graph ports.PermissionGraph, c *Catalogue) (int, error) {
	roles, err := c.Roles()
	if err != nil {
		return 0, err
	}
	for _, role := range roles {
		if err := graph.UpsertRole(ctx, role); err != nil {
			return 0, err
		}
	}
	return len(roles), nil
}
