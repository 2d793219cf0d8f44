// Package secure_access issues and checks access tokens. Workers sign a
// timestamp with their secret key to obtain an access and a refresh token,
// present the access token with every call, and trade the refresh token
// for a new access token when it expires.
package secure_access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/repository/auth_grants"
	"github.com/horockey/fit/internal/repository/auth_tokens"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type Config struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// RotateRefreshBefore renews the refresh token on refresh once its
	// remaining lifetime drops below this value. Zero never rotates.
	RotateRefreshBefore time.Duration
	// MaxClockSkew bounds the distance of a signed timestamp from now.
	// Zero accepts any timestamp.
	MaxClockSkew  time.Duration
	EvictInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		AccessTokenTTL:      30 * time.Minute,
		RefreshTokenTTL:     24 * time.Hour,
		RotateRefreshBefore: time.Hour,
		MaxClockSkew:        5 * time.Minute,
		EvictInterval:       time.Minute,
	}
}

type Service struct {
	cfg     Config
	grants  auth_grants.Repository
	tokens  auth_tokens.Repository
	sealer  *Sealer
	clock   model.Clock
	logger  zerolog.Logger
	metrics *metrics
}

func New(
	cfg Config,
	grants auth_grants.Repository,
	tokens auth_tokens.Repository,
	sealer *Sealer,
	clock model.Clock,
	logger zerolog.Logger,
) *Service {
	return &Service{
		cfg:     cfg,
		grants:  grants,
		tokens:  tokens,
		sealer:  sealer,
		clock:   clock,
		logger:  logger,
		metrics: newMetrics(),
	}
}

func (svc *Service) Metrics() []prometheus.Collector {
	return svc.metrics.list()
}

// AddKey seals sk and stores the credential.
func (svc *Service) AddKey(ak string, sk []byte, role string) error {
	sealed, err := svc.sealer.Seal(sk)
	if err != nil {
		return fmt.Errorf("sealing secret key: %w", err)
	}
	if err := svc.grants.SaveKeys(model.AuthKey{AK: ak, EncryptedSK: sealed, Role: role}); err != nil {
		return fmt.Errorf("saving key: %w", err)
	}
	return nil
}

func (svc *Service) AddRole(role string, permissions ...model.Permission) error {
	if err := svc.grants.SaveRoles(model.RolePermissions{Role: role, Permissions: permissions}); err != nil {
		return fmt.Errorf("saving role: %w", err)
	}
	return nil
}

// Sign computes the signature of ak over timestamp with the stored key.
func (svc *Service) Sign(_ context.Context, ak string, timestamp int64) (string, error) {
	key, sk, err := svc.secret(ak)
	if err != nil {
		return "", err
	}
	return Sign(sk, key.AK, timestamp), nil
}

// GetTokenRole verifies signature and issues an access and a refresh token
// bound to the role of ak.
func (svc *Service) GetTokenRole(_ context.Context, ak string, timestamp int64, signature string) ([]model.AuthTokenRole, error) {
	key, sk, err := svc.secret(ak)
	if err != nil {
		return nil, err
	}

	now := svc.clock.Now()
	if svc.cfg.MaxClockSkew > 0 {
		if skew := now.Sub(time.UnixMilli(timestamp)).Abs(); skew > svc.cfg.MaxClockSkew {
			return nil, model.NewError(model.CodeAuthentication, "timestamp is %s away from now", skew)
		}
	}
	if !verify(sk, ak, timestamp, signature) {
		return nil, model.NewError(model.CodeAuthentication, "signature mismatch for %s", ak)
	}

	access := svc.mint(model.TokenTypeAccess, key.Role, now)
	refresh := svc.mint(model.TokenTypeRefresh, key.Role, now)
	if err := svc.tokens.Save(access, refresh); err != nil {
		return nil, fmt.Errorf("saving tokens: %w", err)
	}
	svc.metrics.issuedCnt.WithLabelValues(string(model.TokenTypeAccess)).Inc()
	svc.metrics.issuedCnt.WithLabelValues(string(model.TokenTypeRefresh)).Inc()

	return []model.AuthTokenRole{access, refresh}, nil
}

// RefreshAccessToken mints a new access token for a live refresh token.
// The result holds the access token and the refresh token to use next.
func (svc *Service) RefreshAccessToken(_ context.Context, refreshToken string) ([]model.AuthTokenRole, error) {
	refresh, err := svc.lookup(refreshToken, model.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	now := svc.clock.Now()
	access := svc.mint(model.TokenTypeAccess, refresh.Role, now)
	issued := []model.AuthTokenRole{access}

	rotate := svc.cfg.RotateRefreshBefore > 0 && refresh.EndTime.Sub(now) < svc.cfg.RotateRefreshBefore
	if rotate {
		refresh = svc.mint(model.TokenTypeRefresh, refresh.Role, now)
		issued = append(issued, refresh)
	}

	if err := svc.tokens.Save(issued...); err != nil {
		return nil, fmt.Errorf("saving tokens: %w", err)
	}
	for _, t := range issued {
		svc.metrics.issuedCnt.WithLabelValues(string(t.Type)).Inc()
	}
	if rotate {
		if err := svc.tokens.Remove(refreshToken); err != nil {
			svc.logger.
				Error().
				Err(fmt.Errorf("removing rotated refresh token: %w", err)).
				Send()
		}
	}

	return []model.AuthTokenRole{access, refresh}, nil
}

// IsAuthorized fails with CodeAuthentication for unknown or expired tokens
// and with CodeAuthorization when the role does not grant p.
func (svc *Service) IsAuthorized(_ context.Context, token string, p model.Permission) (resErr error) {
	defer func() {
		svc.metrics.authChecksCnt.WithLabelValues(model.CodeOf(resErr).String()).Inc()
	}()

	access, err := svc.lookup(token, model.TokenTypeAccess)
	if err != nil {
		return err
	}

	role, err := svc.grants.Role(access.Role)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.NewError(model.CodeAuthorization, "role %s has no permissions", access.Role)
		}
		return fmt.Errorf("getting role: %w", err)
	}

	granted := lo.ContainsBy(role.Permissions, func(grant model.Permission) bool {
		return grant.Matches(p.Fitable)
	})
	if !granted {
		return model.NewError(model.CodeAuthorization, "role %s may not call %s", access.Role, p.Fitable)
	}
	return nil
}

// Evict removes every timed out token and returns how many were removed.
func (svc *Service) Evict() (int, error) {
	all, err := svc.tokens.GetAll()
	if err != nil {
		return 0, fmt.Errorf("listing tokens: %w", err)
	}

	now := svc.clock.Now()
	expired := lo.FilterMap(all, func(t model.AuthTokenRole, _ int) (string, bool) {
		return t.Token, t.IsTimeout(now)
	})
	if len(expired) == 0 {
		return 0, nil
	}

	if err := svc.tokens.Remove(expired...); err != nil {
		return 0, fmt.Errorf("removing expired tokens: %w", err)
	}
	svc.metrics.evictedCnt.Add(float64(len(expired)))
	return len(expired), nil
}

// Start runs eviction every EvictInterval until ctx is done.
func (svc *Service) Start(ctx context.Context) error {
	interval := svc.cfg.EvictInterval
	if interval <= 0 {
		interval = DefaultConfig().EvictInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("running context: %w", ctx.Err())
		case <-ticker.C:
			n, err := svc.Evict()
			if err != nil {
				svc.logger.
					Error().
					Err(fmt.Errorf("evicting tokens: %w", err)).
					Send()
				continue
			}
			if n > 0 {
				svc.logger.
					Debug().
					Int("count", n).
					Msg("evicted expired tokens")
			}
		}
	}
}

func (svc *Service) secret(ak string) (model.AuthKey, []byte, error) {
	key, err := svc.grants.Key(ak)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.AuthKey{}, nil, model.NewError(model.CodeAuthentication, "unknown access key %s", ak)
		}
		return model.AuthKey{}, nil, fmt.Errorf("getting key: %w", err)
	}

	sk, err := svc.sealer.Open(key.EncryptedSK)
	if err != nil {
		return model.AuthKey{}, nil, fmt.Errorf("opening secret key of %s: %w", ak, err)
	}
	return key, sk, nil
}

func (svc *Service) lookup(token string, typ model.TokenType) (model.AuthTokenRole, error) {
	if token == "" {
		return model.AuthTokenRole{}, model.NewError(model.CodeAuthentication, "empty %s", typ)
	}

	t, err := svc.tokens.Get(token)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.AuthTokenRole{}, model.NewError(model.CodeAuthentication, "unknown %s", typ)
		}
		return model.AuthTokenRole{}, fmt.Errorf("getting token: %w", err)
	}
	if t.Type != typ {
		return model.AuthTokenRole{}, model.NewError(model.CodeAuthentication, "token is %s, expected %s", t.Type, typ)
	}
	if t.IsTimeout(svc.clock.Now()) {
		return model.AuthTokenRole{}, model.NewError(model.CodeAuthentication, "%s expired at %s", typ, t.EndTime.Format(time.RFC3339))
	}
	return t, nil
}

func (svc *Service) mint(typ model.TokenType, role string, now time.Time) model.AuthTokenRole {
	ttl := svc.cfg.AccessTokenTTL
	if typ == model.TokenTypeRefresh {
		ttl = svc.cfg.RefreshTokenTTL
	}
	return model.AuthTokenRole{
		Token:   uuid.NewString(),
		Type:    typ,
		Timeout: ttl,
		EndTime: now.Add(ttl),
		Role:    role,
	}
}
