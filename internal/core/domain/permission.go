package domain

import (
	"sort"
	"strings"
)

// Permission is a (resource, action) pair, e.g. (students, create).
type Permission struct {
	Resource string `json:"resource" bson:"resource" yaml:"resource"`
	Action   string `json:"action" bson:"action" yaml:"action"`
}

// String renders the permission as "resource:action".
func (p Permission) String() string {
	return p.Resource + ":" + p.Action
}

// Role is a named bundle of permissions.
type Role struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions"`
}

// PermissionSet is the effective permission set of a principal: the union of
// the permissions of every role assigned to it.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set.Add(p)
	}
	return set
}

// Add inserts p, ignoring blank resources or actions.
func (s PermissionSet) Add(p Permission) {
	p.Resource = strings.TrimSpace(p.Resource)
	p.Action = strings.TrimSpace(p.Action)
	if p.Resource == "" || p.Action == "" {
		return
	}
	s[p] = struct{}{}
}

// Union adds every permission of other into s.
func (s PermissionSet) Union(other PermissionSet) {
	for p := range other {
		s[p] = struct{}{}
	}
}

// Has reports an exact (resource, action) match. A nil set grants nothing.
func (s PermissionSet) Has(resource, action string) bool {
	if s == nil {
		return false
	}
	_, ok := s[Permission{Resource: resource, Action: action}]
	return ok
}

// Sorted returns the permissions ordered by resource then action.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}
