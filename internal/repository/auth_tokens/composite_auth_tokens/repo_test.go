package composite_auth_tokens_test

import (
	"errors"
	"testing"
	"time"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/repository/auth_tokens/composite_auth_tokens"
	"github.com/horockey/fit/internal/repository/auth_tokens/inmemory_auth_tokens"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenRepo fails every call.
type brokenRepo struct{}

func (brokenRepo) Metrics() []prometheus.Collector { return nil }

func (brokenRepo) Save(...model.AuthTokenRole) error { return errors.New("cache down") }

func (brokenRepo) Get(string) (model.AuthTokenRole, error) {
	return model.AuthTokenRole{}, errors.New("cache down")
}

func (brokenRepo) Remove(...string) error { return errors.New("cache down") }

func (brokenRepo) GetAll() ([]model.AuthTokenRole, error) { return nil, errors.New("cache down") }

var tok = model.AuthTokenRole{Token: "t1", Type: model.TokenTypeAccess, EndTime: time.Now().Add(time.Hour)}

func Test_ReadThroughWarmsCache(t *testing.T) {
	primary := inmemory_auth_tokens.New()
	cache := inmemory_auth_tokens.New()
	repo := composite_auth_tokens.New(primary, cache, zerolog.Nop())

	require.NoError(t, primary.Save(tok))
	_, err := cache.Get("t1")
	require.Error(t, err)

	got, err := repo.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	cached, err := cache.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, tok, cached)
	assert.Len(t, repo.Metrics(), 10)
}

func Test_RemoveFromBoth(t *testing.T) {
	primary := inmemory_auth_tokens.New()
	cache := inmemory_auth_tokens.New()
	repo := composite_auth_tokens.New(primary, cache, zerolog.Nop())

	require.NoError(t, repo.Save(tok))
	require.NoError(t, repo.Remove("t1"))

	_, err := primary.Get("t1")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = cache.Get("t1")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = repo.Get("t1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func Test_CacheFailuresAreNotFatal(t *testing.T) {
	repo := composite_auth_tokens.New(inmemory_auth_tokens.New(), brokenRepo{}, zerolog.Nop())

	require.NoError(t, repo.Save(tok))
	got, err := repo.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.Token)

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
	require.NoError(t, repo.Remove("t1"))
}

func Test_PrimaryFailureStillReachesCache(t *testing.T) {
	cache := inmemory_auth_tokens.New()
	repo := composite_auth_tokens.New(brokenRepo{}, cache, zerolog.Nop())

	err := repo.Save(tok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving to primary")

	cached, err := cache.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, tok, cached)

	err = repo.Remove("t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "removing from primary")

	_, err = cache.Get("t1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
