package inmemory_auth_tokens

import (
	"sync"
	"time"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/repository/auth_tokens"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

var _ auth_tokens.Repository = &inmemoryAuthTokens{}

type inmemoryAuthTokens struct {
	storage map[string]model.AuthTokenRole
	mu      sync.RWMutex
	metrics *metrics
}

func New() *inmemoryAuthTokens {
	repo := inmemoryAuthTokens{
		storage: map[string]model.AuthTokenRole{},
	}
	repo.metrics = newMetrics(&repo)
	return &repo
}

func (repo *inmemoryAuthTokens) Metrics() []prometheus.Collector {
	return repo.metrics.list()
}

func (repo *inmemoryAuthTokens) observe() func(error) {
	repo.metrics.requestsCnt.Inc()
	ts := time.Now()
	return func(err error) {
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		switch err {
		case nil:
			repo.metrics.successProcessCnt.Inc()
		default:
			repo.metrics.errProcessCnt.Inc()
		}
	}
}

func (repo *inmemoryAuthTokens) Save(tokens ...model.AuthTokenRole) (resErr error) {
	done := repo.observe()
	defer func() { done(resErr) }()

	for _, t := range tokens {
		if t.Token == "" {
			return model.NewError(model.CodeParameter, "empty token value")
		}
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, t := range tokens {
		repo.storage[t.Token] = t
	}
	return nil
}

func (repo *inmemoryAuthTokens) Get(token string) (res model.AuthTokenRole, resErr error) {
	done := repo.observe()
	defer func() { done(resErr) }()

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	t, found := repo.storage[token]
	if !found {
		return model.AuthTokenRole{}, model.NewError(model.CodeNotFound, "token not found")
	}
	return t, nil
}

func (repo *inmemoryAuthTokens) Remove(tokens ...string) (resErr error) {
	done := repo.observe()
	defer func() { done(resErr) }()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, t := range tokens {
		delete(repo.storage, t)
	}
	return nil
}

func (repo *inmemoryAuthTokens) GetAll() (res []model.AuthTokenRole, resErr error) {
	done := repo.observe()
	defer func() { done(resErr) }()

	repo.mu.RLock()
	defer repo.mu.RUnlock()
	return lo.Values(repo.storage), nil
}

func (repo *inmemoryAuthTokens) count() int {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	return len(repo.storage)
}
