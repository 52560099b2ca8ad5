package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/empireo/brain/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Credential store stub
// ---------------------------------------------------------------------------

type stubPrincipalRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.Principal
	findErr error
	nextID  int
}

func newStubPrincipalRepo() *stubPrincipalRepo {
	return &stubPrincipalRepo{byID: make(map[string]*domain.Principal)}
}

func clonePrincipal(p *domain.Principal) *domain.Principal {
	if p == nil {
		return nil
	}
	c := *p
	c.Roles = append([]string(nil), p.Roles...)
	return &c
}

func (r *stubPrincipalRepo) FindByEmail(_ context.Context, email string) (*domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, p := range r.byID {
		if p.Email == email {
			return clonePrincipal(p), nil
		}
	}
	return nil, domain.ErrPrincipalNotFound
}

func (r *stubPrincipalRepo) FindByID(_ context.Context, id string) (*domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrPrincipalNotFound
	}
	return clonePrincipal(p), nil
}

func (r *stubPrincipalRepo) Create(_ context.Context, p *domain.Principal) (*domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == p.Email {
			return nil, domain.ErrPrincipalExists
		}
	}
	c := clonePrincipal(p)
	if c.ID == "" {
		r.nextID++
		c.ID = "p-" + strconv.Itoa(r.nextID)
	}
	r.byID[c.ID] = c
	return clonePrincipal(c), nil
}

func (r *stubPrincipalRepo) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrPrincipalNotFound
	}
	p.PasswordHash = hash
	return nil
}

func (r *stubPrincipalRepo) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrPrincipalNotFound
	}
	p.Active = active
	return nil
}

func (r *stubPrincipalRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.LastLoginAt = &at
	}
	return nil
}

func (r *stubPrincipalRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.byID)), nil
}

// ---------------------------------------------------------------------------
// In-memory ledger with the same compare-and-revoke contract as the stores
// ---------------------------------------------------------------------------

type memLedger struct {
	mu        sync.Mutex
	records   map[string]*domain.RefreshTokenRecord // by hash
	nextID    int
	lookupErr error
	// rotateInsertErr fails the successor insert of Rotate after the
	// presented record has been revoked, like a store without transactions.
	rotateInsertErr error

	// afterLookup, when set, runs after every Lookup with the lock released.
	afterLookup func()
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[string]*domain.RefreshTokenRecord)}
}

func (l *memLedger) insertLocked(rec *domain.RefreshTokenRecord) error {
	if _, dup := l.records[rec.TokenHash]; dup {
		return errors.New("duplicate token hash")
	}
	l.nextID++
	c := *rec
	c.ID = "rt-" + strconv.Itoa(l.nextID)
	rec.ID = c.ID
	l.records[c.TokenHash] = &c
	return nil
}

func (l *memLedger) Record(_ context.Context, rec *domain.RefreshTokenRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.insertLocked(rec)
}

func (l *memLedger) Lookup(_ context.Context, hash string) (*domain.RefreshTokenRecord, error) {
	l.mu.Lock()
	if l.lookupErr != nil {
		l.mu.Unlock()
		return nil, l.lookupErr
	}
	rec, ok := l.records[hash]
	var out *domain.RefreshTokenRecord
	if ok {
		c := *rec
		out = &c
	}
	hook := l.afterLookup
	l.mu.Unlock()

	if hook != nil {
		hook()
	}
	if out == nil {
		return nil, domain.ErrRefreshTokenNotFound
	}
	return out, nil
}

func (l *memLedger) revokeLocked(rec *domain.RefreshTokenRecord, reason domain.RevokeReason) bool {
	if rec.Revoked {
		return false
	}
	now := time.Now().UTC()
	rec.Revoked = true
	rec.RevokeReason = reason
	rec.RevokedAt = &now
	return true
}

func (l *memLedger) Revoke(_ context.Context, id string, reason domain.RevokeReason) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.records {
		if rec.ID == id {
			return l.revokeLocked(rec, reason), nil
		}
	}
	return false, domain.ErrRefreshTokenNotFound
}

func (l *memLedger) Rotate(_ context.Context, hash string, next *domain.RefreshTokenRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[hash]
	if !ok {
		return domain.ErrRefreshTokenNotFound
	}
	if !l.revokeLocked(rec, domain.RevokeRotated) {
		return domain.ErrRefreshTokenRevoked
	}
	if l.rotateInsertErr != nil {
		return l.rotateInsertErr
	}
	return l.insertLocked(next)
}

func (l *memLedger) RevokeFamily(_ context.Context, familyID string, reason domain.RevokeReason) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, rec := range l.records {
		if rec.FamilyID == familyID && l.revokeLocked(rec, reason) {
			n++
		}
	}
	return n, nil
}

func (l *memLedger) RevokeAllForPrincipal(_ context.Context, principalID string, reason domain.RevokeReason) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, rec := range l.records {
		if rec.PrincipalID == principalID && l.revokeLocked(rec, reason) {
			n++
		}
	}
	return n, nil
}

func (l *memLedger) get(hash string) *domain.RefreshTokenRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[hash]
	if !ok {
		return nil
	}
	c := *rec
	return &c
}

func (l *memLedger) liveInFamily(familyID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, rec := range l.records {
		if rec.FamilyID == familyID && !rec.Revoked {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Audit sink and permission graph stubs
// ---------------------------------------------------------------------------

type recordingSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	err    error
}

func (s *recordingSink) Append(_ context.Context, ev domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) ofType(eventType string) []domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditEvent
	for _, ev := range s.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type stubGraph struct {
	mu    sync.Mutex
	perms map[string]domain.PermissionSet
	err   error
	calls int
}

func (g *stubGraph) PermissionsFor(_ context.Context, principalID string) (domain.PermissionSet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.perms[principalID], nil
}

func (g *stubGraph) UpsertRole(context.Context, domain.Role) error { return nil }
