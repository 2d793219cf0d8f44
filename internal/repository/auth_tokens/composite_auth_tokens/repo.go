package composite_auth_tokens

import (
	"fmt"
	"slices"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/repository/auth_tokens"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var _ auth_tokens.Repository = &compositeAuthTokens{}

// compositeAuthTokens keeps primary authoritative and cache best effort.
// Writes reach the cache whatever the primary answers. Cache failures are
// logged and never returned.
type compositeAuthTokens struct {
	primary auth_tokens.Repository
	cache   auth_tokens.Repository
	logger  zerolog.Logger
}

func New(primary, cache auth_tokens.Repository, logger zerolog.Logger) *compositeAuthTokens {
	return &compositeAuthTokens{
		primary: primary,
		cache:   cache,
		logger:  logger,
	}
}

func (repo *compositeAuthTokens) Metrics() []prometheus.Collector {
	return slices.Concat(repo.primary.Metrics(), repo.cache.Metrics())
}

func (repo *compositeAuthTokens) Save(tokens ...model.AuthTokenRole) (resErr error) {
	if err := repo.primary.Save(tokens...); err != nil {
		resErr = fmt.Errorf("saving to primary: %w", err)
	}
	if err := repo.cache.Save(tokens...); err != nil {
		repo.logger.
			Warn().
			Err(fmt.Errorf("saving to cache: %w", err)).
			Send()
	}
	return resErr
}

func (repo *compositeAuthTokens) Get(token string) (model.AuthTokenRole, error) {
	if t, err := repo.cache.Get(token); err == nil {
		return t, nil
	}

	t, err := repo.primary.Get(token)
	if err != nil {
		return model.AuthTokenRole{}, fmt.Errorf("getting from primary: %w", err)
	}
	if err := repo.cache.Save(t); err != nil {
		repo.logger.
			Warn().
			Err(fmt.Errorf("warming cache: %w", err)).
			Send()
	}
	return t, nil
}

func (repo *compositeAuthTokens) Remove(tokens ...string) (resErr error) {
	if err := repo.primary.Remove(tokens...); err != nil {
		resErr = fmt.Errorf("removing from primary: %w", err)
	}
	if err := repo.cache.Remove(tokens...); err != nil {
		repo.logger.
			Warn().
			Err(fmt.Errorf("removing from cache: %w", err)).
			Send()
	}
	return resErr
}

func (repo *compositeAuthTokens) GetAll() ([]model.AuthTokenRole, error) {
	res, err := repo.primary.GetAll()
	if err != nil {
		return nil, fmt.Errorf("listing primary: %w", err)
	}
	return res, nil
}
