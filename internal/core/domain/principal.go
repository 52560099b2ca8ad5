package domain

import (
	"strings"
	"time"
)

// Fixed staff roles. Role-to-permission bindings are reference data seeded
// into the permission graph; the names themselves never change at runtime.
const (
	RoleAdmin     = "admin"
	RoleManager   = "manager"
	RoleCounselor = "counselor"
	RoleProcessor = "processor"
	RoleViewer    = "viewer"
)

var knownRoles = map[string]struct{}{
	RoleAdmin:     {},
	RoleManager:   {},
	RoleCounselor: {},
	RoleProcessor: {},
	RoleViewer:    {},
}

// IsKnownRole reports whether name is one of the fixed staff roles.
func IsKnownRole(name string) bool {
	_, ok := knownRoles[name]
	return ok
}

// Principal models an authenticated staff identity.
type Principal struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	PasswordHash string     `json:"-"`
	Active       bool       `json:"is_active"`
	Roles        []string   `json:"roles"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NormalizeEmail lower-cases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
