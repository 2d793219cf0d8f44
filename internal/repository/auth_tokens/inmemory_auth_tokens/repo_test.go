package inmemory_auth_tokens_test

import (
	"testing"
	"time"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/repository/auth_tokens/inmemory_auth_tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SaveGetRemove(t *testing.T) {
	repo := inmemory_auth_tokens.New()
	tok := model.AuthTokenRole{
		Token:   "t1",
		Type:    model.TokenTypeAccess,
		Timeout: time.Minute,
		EndTime: time.Now().Add(time.Minute),
		Role:    "admin",
	}

	_, err := repo.Get("t1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, repo.Save(tok))
	got, err := repo.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Remove("t1", "unknown"))
	_, err = repo.Get("t1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func Test_Save_EmptyToken(t *testing.T) {
	repo := inmemory_auth_tokens.New()
	assert.ErrorIs(t, repo.Save(model.AuthTokenRole{}), model.ErrParameter)
	assert.Len(t, repo.Metrics(), 5)
}
