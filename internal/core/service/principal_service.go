package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
	"github.com/empireo/brain/internal/infrastructure/metrics"
)

// PrincipalConfig holds the password policy and the bootstrap secret.
type PrincipalConfig struct {
	BootstrapToken    string
	BcryptCost        int
	MinPasswordLength int
}

// PrincipalService manages the lifecycle of staff identities.
type PrincipalService struct {
	principals ports.PrincipalRepository
	ledger     ports.RefreshTokenLedger
	authz      ports.Authorizer
	audit      ports.AuditSink
	cfg        PrincipalConfig
	log        zerolog.Logger
	now        func() time.Time
}

var _ ports.PrincipalService = (*PrincipalService)(nil)

func NewPrincipalService(
	principals ports.PrincipalRepository,
	ledger ports.RefreshTokenLedger,
	authz ports.Authorizer,
	audit ports.AuditSink,
	cfg PrincipalConfig,
	log zerolog.Logger,
) *PrincipalService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 8
	}
	return &PrincipalService{
		principals: principals,
		ledger:     ledger,
		authz:      authz,
		audit:      audit,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// Bootstrap creates the first administrator. It requires the configured
// bootstrap token and only works while no principal exists.
func (s *PrincipalService) Bootstrap(ctx context.Context, bootstrapToken string, in ports.CreatePrincipalInput) (*domain.Principal, error) {
	if s.cfg.BootstrapToken == "" {
		return nil, domain.ErrBootstrapClosed
	}
	if subtle.ConstantTimeCompare([]byte(bootstrapToken), []byte(s.cfg.BootstrapToken)) != 1 {
		return nil, domain.ErrForbidden
	}

	n, err := s.principals.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if n > 0 {
		return nil, domain.ErrBootstrapClosed
	}

	in.Roles = []string{domain.RoleAdmin}
	p, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, s.audit, s.log, s.now, domain.AuditEvent{
		EventType:  domain.EventBootstrap,
		ActorID:    p.ID,
		EntityType: domain.EntityPrincipal,
		EntityID:   p.ID,
		Metadata:   map[string]any{"email": p.Email},
	})
	s.log.Info().Str("principal_id", p.ID).Msg("bootstrap administrator created")
	return p, nil
}

// Create registers a new principal on behalf of actorID.
func (s *PrincipalService) Create(ctx context.Context, actorID string, in ports.CreatePrincipalInput) (*domain.Principal, error) {
	p, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, s.audit, s.log, s.now, domain.AuditEvent{
		EventType:  domain.EventPrincipalCreated,
		ActorID:    actorID,
		EntityType: domain.EntityPrincipal,
		EntityID:   p.ID,
		Metadata:   map[string]any{"email": p.Email, "roles": p.Roles},
	})
	return p, nil
}

// Deactivate soft-disables a principal and revokes all of its refresh tokens.
func (s *PrincipalService) Deactivate(ctx context.Context, actorID, principalID string) (int64, error) {
	if actorID == principalID {
		return 0, fmt.Errorf("%w: cannot deactivate yourself", domain.ErrValidation)
	}

	p, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		return 0, err
	}
	if err := s.principals.SetActive(ctx, p.ID, false); err != nil {
		return 0, fmt.Errorf("deactivate: %w", err)
	}

	n, err := s.ledger.RevokeAllForPrincipal(ctx, p.ID, domain.RevokeLogoutAll)
	if err != nil {
		return 0, fmt.Errorf("deactivate: revoke tokens: %w", err)
	}
	metrics.TokensRevokedTotal.WithLabelValues(string(domain.RevokeLogoutAll)).Add(float64(n))

	emitAudit(ctx, s.audit, s.log, s.now, domain.AuditEvent{
		EventType:  domain.EventPrincipalDeactivated,
		ActorID:    actorID,
		EntityType: domain.EntityPrincipal,
		EntityID:   p.ID,
		Metadata:   map[string]any{"revoked_count": n},
	})
	return n, nil
}

// ResetPassword sets a new password for the principal with the given email
// and forces re-authentication everywhere.
func (s *PrincipalService) ResetPassword(ctx context.Context, actorID string, in ports.ResetPasswordInput) (int64, error) {
	p, err := s.principals.FindByEmail(ctx, domain.NormalizeEmail(in.Email))
	if err != nil {
		return 0, err
	}

	hash, err := hashPassword(in.NewPassword, s.cfg.BcryptCost, s.cfg.MinPasswordLength)
	if err != nil {
		return 0, err
	}
	if err := s.principals.UpdatePassword(ctx, p.ID, hash); err != nil {
		return 0, fmt.Errorf("reset password: %w", err)
	}

	n, err := s.ledger.RevokeAllForPrincipal(ctx, p.ID, domain.RevokePasswordChanged)
	if err != nil {
		return 0, fmt.Errorf("reset password: revoke tokens: %w", err)
	}
	metrics.TokensRevokedTotal.WithLabelValues(string(domain.RevokePasswordChanged)).Add(float64(n))

	emitAudit(ctx, s.audit, s.log, s.now, domain.AuditEvent{
		EventType:  domain.EventPasswordReset,
		ActorID:    actorID,
		EntityType: domain.EntityPrincipal,
		EntityID:   p.ID,
		Metadata:   map[string]any{"revoked_count": n},
	})
	return n, nil
}

// Me returns the principal together with its effective permissions.
func (s *PrincipalService) Me(ctx context.Context, principalID string) (*ports.Profile, error) {
	p, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, domain.ErrAuthentication
	}

	perms, err := s.authz.Permissions(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return &ports.Profile{Principal: p, Permissions: perms.Sorted()}, nil
}

func (s *PrincipalService) create(ctx context.Context, in ports.CreatePrincipalInput) (*domain.Principal, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", domain.ErrValidation)
	}
	roles, err := normalizeRoles(in.Roles)
	if err != nil {
		return nil, err
	}

	hash, err := hashPassword(in.Password, s.cfg.BcryptCost, s.cfg.MinPasswordLength)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p, err := s.principals.Create(ctx, &domain.Principal{
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hash,
		Active:       true,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrPrincipalExists) {
			return nil, domain.ErrPrincipalExists
		}
		return nil, fmt.Errorf("create principal: %w", err)
	}
	return p, nil
}

func normalizeRoles(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: at least one role is required", domain.ErrValidation)
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.ToLower(strings.TrimSpace(r))
		if !domain.IsKnownRole(r) {
			return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, r)
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}
