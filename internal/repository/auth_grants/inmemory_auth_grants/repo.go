package inmemory_auth_grants

import (
	"slices"
	"sync"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/repository/auth_grants"
	"github.com/prometheus/client_golang/prometheus"
)

var _ auth_grants.Repository = &inmemoryAuthGrants{}

type inmemoryAuthGrants struct {
	keys    map[string]model.AuthKey
	roles   map[string]model.RolePermissions
	mu      sync.RWMutex
	metrics *metrics
}

func New() *inmemoryAuthGrants {
	repo := inmemoryAuthGrants{
		keys:  map[string]model.AuthKey{},
		roles: map[string]model.RolePermissions{},
	}
	repo.metrics = newMetrics(&repo)
	return &repo
}

func (repo *inmemoryAuthGrants) Metrics() []prometheus.Collector {
	return repo.metrics.list()
}

func (repo *inmemoryAuthGrants) SaveKeys(keys ...model.AuthKey) error {
	for _, k := range keys {
		if k.AK == "" {
			return model.NewError(model.CodeParameter, "empty access key")
		}
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, k := range keys {
		k.EncryptedSK = slices.Clone(k.EncryptedSK)
		repo.keys[k.AK] = k
	}
	return nil
}

func (repo *inmemoryAuthGrants) Key(ak string) (model.AuthKey, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	k, found := repo.keys[ak]
	if !found {
		repo.metrics.missesCnt.WithLabelValues("key").Inc()
		return model.AuthKey{}, model.NewError(model.CodeNotFound, "unknown access key %s", ak)
	}
	repo.metrics.hitsCnt.WithLabelValues("key").Inc()
	return k, nil
}

func (repo *inmemoryAuthGrants) SaveRoles(roles ...model.RolePermissions) error {
	for _, r := range roles {
		if r.Role == "" {
			return model.NewError(model.CodeParameter, "empty role name")
		}
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, r := range roles {
		r.Permissions = slices.Clone(r.Permissions)
		repo.roles[r.Role] = r
	}
	return nil
}

func (repo *inmemoryAuthGrants) Role(role string) (model.RolePermissions, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	r, found := repo.roles[role]
	if !found {
		repo.metrics.missesCnt.WithLabelValues("role").Inc()
		return model.RolePermissions{}, model.NewError(model.CodeNotFound, "unknown role %s", role)
	}
	repo.metrics.hitsCnt.WithLabelValues("role").Inc()
	return r, nil
}

func (repo *inmemoryAuthGrants) counts() (keys, roles int) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	return len(repo.keys), len(repo.roles)
}
