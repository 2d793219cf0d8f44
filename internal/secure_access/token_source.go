package secure_access

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/horockey/fit/internal/model"
)

// Issuer hands out tokens. Both Service and Client implement it.
type Issuer interface {
	GetTokenRole(ctx context.Context, ak string, timestamp int64, signature string) ([]model.AuthTokenRole, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) ([]model.AuthTokenRole, error)
}

// refreshMargin renews tokens slightly before they expire.
const refreshMargin = 5 * time.Second

// TokenSource caches the access token of one credential and renews it
// through the refresh token, falling back to signing in again.
type TokenSource struct {
	issuer Issuer
	ak     string
	sk     []byte
	clock  model.Clock

	mu      sync.Mutex
	access  model.AuthTokenRole
	refresh model.AuthTokenRole
}

func NewTokenSource(issuer Issuer, ak string, sk []byte, clock model.Clock) *TokenSource {
	return &TokenSource{
		issuer: issuer,
		ak:     ak,
		sk:     sk,
		clock:  clock,
	}
}

func (ts *TokenSource) AccessToken(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.clock.Now()
	if ts.access.Token != "" && !ts.access.IsTimeout(now.Add(refreshMargin)) {
		return ts.access.Token, nil
	}

	if ts.refresh.Token != "" && !ts.refresh.IsTimeout(now.Add(refreshMargin)) {
		tokens, err := ts.issuer.RefreshAccessToken(ctx, ts.refresh.Token)
		if err == nil && ts.store(tokens) {
			return ts.access.Token, nil
		}
	}

	stamp := now.UnixMilli()
	tokens, err := ts.issuer.GetTokenRole(ctx, ts.ak, stamp, Sign(ts.sk, ts.ak, stamp))
	if err != nil {
		return "", fmt.Errorf("getting token role: %w", err)
	}
	if !ts.store(tokens) {
		return "", model.NewError(model.CodeAuthentication, "no access token issued for %s", ts.ak)
	}
	return ts.access.Token, nil
}

// Reset drops cached tokens.
func (ts *TokenSource) Reset() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.access = model.AuthTokenRole{}
	ts.refresh = model.AuthTokenRole{}
}

func (ts *TokenSource) store(tokens []model.AuthTokenRole) bool {
	gotAccess := false
	for _, t := range tokens {
		switch t.Type {
		case model.TokenTypeAccess:
			ts.access = t
			gotAccess = true
		case model.TokenTypeRefresh:
			ts.refresh = t
		}
	}
	return gotAccess
}
