package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
	"github.com/empireo/brain/internal/infrastructure/metrics"
)

// AuthConfig holds the token lifetimes and password policy of the Authenticator.
type AuthConfig struct {
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	BcryptCost        int
	MinPasswordLength int
}

func (c AuthConfig) withDefaults() AuthConfig {
	if c.AccessTTL <= 0 {
		c.AccessTTL = 480 * time.Minute
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	if c.MinPasswordLength <= 0 {
		c.MinPasswordLength = 8
	}
	return c
}

// AuthService implements login, refresh-token rotation with reuse detection,
// logout and password change.
type AuthService struct {
	principals ports.PrincipalRepository
	ledger     ports.RefreshTokenLedger
	codec      ports.TokenCodec
	audit      ports.AuditSink
	cfg        AuthConfig
	log        zerolog.Logger
	now        func() time.Time

	// dummyHash is compared against when the principal does not exist so a
	// missing account costs the same bcrypt work as a wrong password.
	dummyHash []byte
}

var _ ports.AuthService = (*AuthService)(nil)

func NewAuthService(
	principals ports.PrincipalRepository,
	ledger ports.RefreshTokenLedger,
	codec ports.TokenCodec,
	audit ports.AuditSink,
	cfg AuthConfig,
	log zerolog.Logger,
) (*AuthService, error) {
	cfg = cfg.withDefaults()
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	return &AuthService{
		principals: principals,
		ledger:     ledger,
		codec:      codec,
		audit:      audit,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		dummyHash:  dummy,
	}, nil
}

// Login verifies credentials and opens a new refresh-token family.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*domain.TokenPair, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		s.loginFailed(ctx, nil, email, "empty_credentials", in)
		return nil, domain.ErrAuthentication
	}

	principal, err := s.principals.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrPrincipalNotFound) {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}

	hash := s.dummyHash
	if principal != nil {
		hash = []byte(principal.PasswordHash)
	}
	passwordOK := bcrypt.CompareHashAndPassword(hash, []byte(in.Password)) == nil

	switch {
	case principal == nil:
		s.loginFailed(ctx, nil, email, "unknown_principal", in)
		return nil, domain.ErrAuthentication
	case !principal.Active:
		s.loginFailed(ctx, principal, email, "inactive", in)
		return nil, domain.ErrAuthentication
	case !passwordOK:
		s.loginFailed(ctx, principal, email, "bad_password", in)
		return nil, domain.ErrAuthentication
	}

	familyID := uuid.NewString()
	pair, rec, err := s.issuePair(principal.ID, familyID, in.UserAgent, in.IPAddress)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := s.ledger.Record(ctx, rec); err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: record refresh token: %w", err)
	}

	if err := s.principals.TouchLastLogin(ctx, principal.ID, s.now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("principal_id", principal.ID).Msg("failed to update last login")
	}

	s.emit(ctx, domain.AuditEvent{
		EventType:  domain.EventLogin,
		ActorID:    principal.ID,
		EntityType: domain.EntityPrincipal,
		EntityID:   principal.ID,
		Metadata: map[string]any{
			"family_id":  familyID,
			"ip_address": in.IPAddress,
			"user_agent": in.UserAgent,
		},
	})
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.log.Info().Str("principal_id", principal.ID).Str("family_id", familyID).Msg("login succeeded")

	return pair, nil
}

// Refresh rotates a refresh token. Presenting a token that was already
// revoked revokes its whole family.
func (s *AuthService) Refresh(ctx context.Context, in ports.RefreshInput) (*domain.TokenPair, error) {
	claims, err := s.codec.Verify(in.RefreshToken)
	if err != nil || claims.Kind != domain.TokenKindRefresh {
		metrics.RefreshTotal.WithLabelValues("invalid_token").Inc()
		return nil, domain.ErrInvalidToken
	}

	hash := s.codec.Hash(in.RefreshToken)
	rec, err := s.ledger.Lookup(ctx, hash)
	if errors.Is(err, domain.ErrRefreshTokenNotFound) {
		metrics.RefreshTotal.WithLabelValues("unknown_token").Inc()
		return nil, domain.ErrAuthentication
	}
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("refresh: lookup: %w", err)
	}

	if rec.Revoked {
		s.reuseDetected(ctx, rec, in)
		return nil, domain.ErrAuthentication
	}
	if rec.PrincipalID != claims.SubjectID || rec.Expired(s.now()) {
		metrics.RefreshTotal.WithLabelValues("rejected").Inc()
		return nil, domain.ErrAuthentication
	}

	principal, err := s.principals.FindByID(ctx, rec.PrincipalID)
	if errors.Is(err, domain.ErrPrincipalNotFound) || (err == nil && !principal.Active) {
		metrics.RefreshTotal.WithLabelValues("rejected").Inc()
		return nil, domain.ErrAuthentication
	}
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("refresh: load principal: %w", err)
	}

	pair, next, err := s.issuePair(principal.ID, rec.FamilyID, in.UserAgent, in.IPAddress)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("refresh: %w", err)
	}

	if err := s.ledger.Rotate(ctx, hash, next); err != nil {
		if errors.Is(err, domain.ErrRefreshTokenRevoked) {
			// Another request rotated this token between our lookup and our
			// write: the loser is a replay.
			s.reuseDetected(ctx, rec, in)
			return nil, domain.ErrAuthentication
		}
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("refresh: rotate: %w", err)
	}
	metrics.TokensRevokedTotal.WithLabelValues(string(domain.RevokeRotated)).Inc()

	s.emit(ctx, domain.AuditEvent{
		EventType:  domain.EventRefresh,
		ActorID:    principal.ID,
		EntityType: domain.EntityTokenFamily,
		EntityID:   rec.FamilyID,
		Metadata: map[string]any{
			"ip_address": in.IPAddress,
			"user_agent": in.UserAgent,
		},
	})
	metrics.RefreshTotal.WithLabelValues("success").Inc()

	return pair, nil
}

// Logout revokes the presented refresh token. Unknown and already-revoked
// tokens are accepted silently.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	rec, err := s.ledger.Lookup(ctx, s.codec.Hash(refreshToken))
	if errors.Is(err, domain.ErrRefreshTokenNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("logout: lookup: %w", err)
	}
	if rec.Revoked {
		return nil
	}

	revoked, err := s.ledger.Revoke(ctx, rec.ID, domain.RevokeLogout)
	if err != nil {
		return fmt.Errorf("logout: revoke: %w", err)
	}
	if !revoked {
		return nil
	}
	metrics.TokensRevokedTotal.WithLabelValues(string(domain.RevokeLogout)).Inc()

	s.emit(ctx, domain.AuditEvent{
		EventType:  domain.EventLogout,
		ActorID:    rec.PrincipalID,
		EntityType: domain.EntityTokenFamily,
		EntityID:   rec.FamilyID,
	})
	return nil
}

// LogoutAll revokes every live refresh token of the principal.
func (s *AuthService) LogoutAll(ctx context.Context, principalID string) (int64, error) {
	n, err := s.ledger.RevokeAllForPrincipal(ctx, principalID, domain.RevokeLogoutAll)
	if err != nil {
		return 0, fmt.Errorf("logout all: %w", err)
	}
	metrics.TokensRevokedTotal.WithLabelValues(string(domain.RevokeLogoutAll)).Add(float64(n))

	s.emit(ctx, domain.AuditEvent{
		EventType:  domain.EventLogoutAll,
		ActorID:    principalID,
		EntityType: domain.EntityPrincipal,
		EntityID:   principalID,
		Metadata:   map[string]any{"revoked_count": n},
	})
	return n, nil
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every outstanding refresh token of the principal.
func (s *AuthService) ChangePassword(ctx context.Context, in ports.ChangePasswordInput) error {
	principal, err := s.principals.FindByID(ctx, in.PrincipalID)
	if errors.Is(err, domain.ErrPrincipalNotFound) {
		return domain.ErrAuthentication
	}
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if !principal.Active {
		return domain.ErrAuthentication
	}
	if bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(in.CurrentPassword)) != nil {
		return domain.ErrAuthentication
	}
	if in.NewPassword == in.CurrentPassword {
		return fmt.Errorf("%w: new password must differ from the current one", domain.ErrValidation)
	}

	hash, err := hashPassword(in.NewPassword, s.cfg.BcryptCost, s.cfg.MinPasswordLength)
	if err != nil {
		return err
	}
	if err := s.principals.UpdatePassword(ctx, principal.ID, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	n, err := s.ledger.RevokeAllForPrincipal(ctx, principal.ID, domain.RevokePasswordChanged)
	if err != nil {
		return fmt.Errorf("change password: revoke tokens: %w", err)
	}
	metrics.TokensRevokedTotal.WithLabelValues(string(domain.RevokePasswordChanged)).Add(float64(n))

	s.emit(ctx, domain.AuditEvent{
		EventType:  domain.EventPasswordChanged,
		ActorID:    principal.ID,
		EntityType: domain.EntityPrincipal,
		EntityID:   principal.ID,
		Metadata:   map[string]any{"revoked_count": n},
	})
	return nil
}

// VerifyAccess accepts only unexpired access tokens.
func (s *AuthService) VerifyAccess(_ context.Context, accessToken string) (*domain.TokenClaims, error) {
	claims, err := s.codec.Verify(accessToken)
	if err != nil || claims.Kind != domain.TokenKindAccess {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) issuePair(principalID, familyID, userAgent, ip string) (*domain.TokenPair, *domain.RefreshTokenRecord, error) {
	access, _, err := s.codec.Issue(principalID, domain.TokenKindAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshClaims, err := s.codec.Issue(principalID, domain.TokenKindRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("issue refresh token: %w", err)
	}

	rec := &domain.RefreshTokenRecord{
		TokenHash:   s.codec.Hash(refresh),
		PrincipalID: principalID,
		FamilyID:    familyID,
		IssuedAt:    refreshClaims.IssuedAt,
		ExpiresAt:   refreshClaims.ExpiresAt,
		UserAgent:   userAgent,
		IPAddress:   ip,
	}
	pair := &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    domain.TokenTypeBearer,
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
	}
	return pair, rec, nil
}

func (s *AuthService) reuseDetected(ctx context.Context, rec *domain.RefreshTokenRecord, in ports.RefreshInput) {
	metrics.ReuseDetectedTotal.Inc()
	metrics.RefreshTotal.WithLabelValues("reuse_detected").Inc()

	n, err := s.ledger.RevokeFamily(ctx, rec.FamilyID, domain.RevokeReuseDetected)
	if err != nil {
		s.log.Error().Err(err).Str("family_id", rec.FamilyID).Msg("failed to revoke token family after reuse")
	}
	metrics.TokensRevokedTotal.WithLabelValues(string(domain.RevokeReuseDetected)).Add(float64(n))

	s.log.Warn().
		Str("principal_id", rec.PrincipalID).
		Str("family_id", rec.FamilyID).
		Int64("revoked_count", n).
		Str("ip_address", in.IPAddress).
		Msg("refresh token reuse detected, family revoked")

	s.emit(ctx, domain.AuditEvent{
		EventType:  domain.EventRefreshReuseDetected,
		ActorID:    rec.PrincipalID,
		EntityType: domain.EntityPrincipal,
		EntityID:   rec.PrincipalID,
		Metadata: map[string]any{
			"family_id":     rec.FamilyID,
			"revoked_count": n,
			"ip_address":    in.IPAddress,
			"user_agent":    in.UserAgent,
		},
	})
}

func (s *AuthService) loginFailed(ctx context.Context, p *domain.Principal, email, reason string, in ports.LoginInput) {
	metrics.LoginsTotal.WithLabelValues("failure").Inc()

	ev := domain.AuditEvent{
		EventType:  domain.EventLoginFailed,
		EntityType: domain.EntityAnonymous,
		Metadata: map[string]any{
			"email":      email,
			"reason":     reason,
			"ip_address": in.IPAddress,
			"user_agent": in.UserAgent,
		},
	}
	if p != nil {
		ev.ActorID = p.ID
		ev.EntityType = domain.EntityPrincipal
		ev.EntityID = p.ID
	}
	s.emit(ctx, ev)
	s.log.Info().Str("reason", reason).Str("ip_address", in.IPAddress).Msg("login failed")
}

// emit appends to the audit sink; failures are logged, never surfaced.
func (s *AuthService) emit(ctx context.Context, ev domain.AuditEvent) {
	emitAudit(ctx, s.audit, s.log, s.now, ev)
}
