package secure_access_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/repository/auth_grants/inmemory_auth_grants"
	"github.com/horockey/fit/internal/repository/auth_tokens/inmemory_auth_tokens"
	"github.com/horockey/fit/internal/secure_access"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sk      = []byte("0123456789abcdef")
	allowed = model.Fitable{GenericID: "billing.charge", GenericVersion: "1.0.0", FitableID: "default"}
	denied  = model.Fitable{GenericID: "billing.refund", GenericVersion: "1.0.0", FitableID: "default"}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(t *testing.T, cfg secure_access.Config) (*secure_access.Service, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc := secure_access.New(
		cfg,
		inmemory_auth_grants.New(),
		inmemory_auth_tokens.New(),
		secure_access.NewSealer("passphrase"),
		clock,
		zerolog.Nop(),
	)
	require.NoError(t, svc.AddKey("ak1", sk, "cashier"))
	require.NoError(t, svc.AddKey("ak2", sk, "ghost"))
	require.NoError(t, svc.AddRole("cashier", model.Permission{Fitable: model.Fitable{GenericID: "billing.charge"}}))
	return svc, clock
}

func signIn(t *testing.T, svc *secure_access.Service, clock *fakeClock, ak string) (model.AuthTokenRole, model.AuthTokenRole) {
	t.Helper()

	ts := clock.Now().UnixMilli()
	signature, err := svc.Sign(context.Background(), ak, ts)
	require.NoError(t, err)

	tokens, err := svc.GetTokenRole(context.Background(), ak, ts, signature)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, model.TokenTypeAccess, tokens[0].Type)
	assert.Equal(t, model.TokenTypeRefresh, tokens[1].Type)
	return tokens[0], tokens[1]
}

func Test_GetTokenRole(t *testing.T) {
	svc, clock := newService(t, secure_access.DefaultConfig())
	ctx := context.Background()

	access, refresh := signIn(t, svc, clock, "ak1")
	assert.Equal(t, "cashier", access.Role)
	assert.Equal(t, clock.Now().Add(30*time.Minute), access.EndTime)
	assert.Equal(t, clock.Now().Add(24*time.Hour), refresh.EndTime)
	assert.NotEqual(t, access.Token, refresh.Token)

	ts := clock.Now().UnixMilli()
	_, err := svc.GetTokenRole(ctx, "ak1", ts, secure_access.Sign([]byte("wrong"), "ak1", ts))
	assert.ErrorIs(t, err, model.ErrAuthentication)

	_, err = svc.GetTokenRole(ctx, "ak1", ts, "not hex")
	assert.ErrorIs(t, err, model.ErrAuthentication)

	_, err = svc.GetTokenRole(ctx, "nobody", ts, secure_access.Sign(sk, "nobody", ts))
	assert.ErrorIs(t, err, model.ErrAuthentication)

	stale := clock.Now().Add(-time.Hour).UnixMilli()
	_, err = svc.GetTokenRole(ctx, "ak1", stale, secure_access.Sign(sk, "ak1", stale))
	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func Test_IsAuthorized(t *testing.T) {
	svc, clock := newService(t, secure_access.DefaultConfig())
	ctx := context.Background()

	access, refresh := signIn(t, svc, clock, "ak1")

	assert.NoError(t, svc.IsAuthorized(ctx, access.Token, model.Permission{Fitable: allowed}))
	assert.ErrorIs(t, svc.IsAuthorized(ctx, access.Token, model.Permission{Fitable: denied}), model.ErrAuthorization)
	assert.ErrorIs(t, svc.IsAuthorized(ctx, "unknown", model.Permission{Fitable: allowed}), model.ErrAuthentication)
	assert.ErrorIs(t, svc.IsAuthorized(ctx, "", model.Permission{Fitable: allowed}), model.ErrAuthentication)
	assert.ErrorIs(t, svc.IsAuthorized(ctx, refresh.Token, model.Permission{Fitable: allowed}), model.ErrAuthentication)

	ghost, _ := signIn(t, svc, clock, "ak2")
	assert.ErrorIs(t, svc.IsAuthorized(ctx, ghost.Token, model.Permission{Fitable: allowed}), model.ErrAuthorization)

	clock.advance(31 * time.Minute)
	assert.ErrorIs(t, svc.IsAuthorized(ctx, access.Token, model.Permission{Fitable: allowed}), model.ErrAuthentication)
}

func Test_RefreshAccessToken_KeepsRefreshToken(t *testing.T) {
	svc, clock := newService(t, secure_access.DefaultConfig())
	ctx := context.Background()

	_, refresh := signIn(t, svc, clock, "ak1")
	clock.advance(time.Hour)

	tokens, err := svc.RefreshAccessToken(ctx, refresh.Token)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, model.TokenTypeAccess, tokens[0].Type)
	assert.Equal(t, refresh.Token, tokens[1].Token)
	assert.NoError(t, svc.IsAuthorized(ctx, tokens[0].Token, model.Permission{Fitable: allowed}))

	_, err = svc.RefreshAccessToken(ctx, tokens[0].Token)
	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func Test_RefreshAccessToken_RotatesNearExpiry(t *testing.T) {
	svc, clock := newService(t, secure_access.DefaultConfig())
	ctx := context.Background()

	_, refresh := signIn(t, svc, clock, "ak1")
	clock.advance(23*time.Hour + 30*time.Minute)

	tokens, err := svc.RefreshAccessToken(ctx, refresh.Token)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.NotEqual(t, refresh.Token, tokens[1].Token)
	assert.Equal(t, clock.Now().Add(24*time.Hour), tokens[1].EndTime)

	_, err = svc.RefreshAccessToken(ctx, refresh.Token)
	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func Test_RefreshAccessToken_NoRotation(t *testing.T) {
	cfg := secure_access.DefaultConfig()
	cfg.RotateRefreshBefore = 0
	svc, clock := newService(t, cfg)

	_, refresh := signIn(t, svc, clock, "ak1")
	clock.advance(23*time.Hour + 59*time.Minute)

	tokens, err := svc.RefreshAccessToken(context.Background(), refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, refresh.Token, tokens[1].Token)

	clock.advance(time.Minute)
	_, err = svc.RefreshAccessToken(context.Background(), refresh.Token)
	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func Test_Evict(t *testing.T) {
	svc, clock := newService(t, secure_access.DefaultConfig())

	signIn(t, svc, clock, "ak1")
	signIn(t, svc, clock, "ak1")

	n, err := svc.Evict()
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.advance(time.Hour)
	n, err = svc.Evict()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	clock.advance(24 * time.Hour)
	n, err = svc.Evict()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, svc.Metrics(), 3)
}

func Test_Start_StopsWithContext(t *testing.T) {
	cfg := secure_access.DefaultConfig()
	cfg.EvictInterval = 10 * time.Millisecond
	svc, _ := newService(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Start(ctx), context.DeadlineExceeded)
}

func Test_Sealer(t *testing.T) {
	sealer := secure_access.NewSealer("passphrase")

	box, err := sealer.Seal(sk)
	require.NoError(t, err)
	assert.NotContains(t, string(box), string(sk))

	plain, err := sealer.Open(box)
	require.NoError(t, err)
	assert.Equal(t, sk, plain)

	_, err = secure_access.NewSealer("other").Open(box)
	assert.Error(t, err)

	_, err = sealer.Open([]byte{1, 2})
	assert.Error(t, err)
}
