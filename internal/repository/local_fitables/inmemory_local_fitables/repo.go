package inmemory_local_fitables

import (
	"slices"
	"sync"
	"time"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/repository/local_fitables"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

var _ local_fitables.Repository = &inmemoryLocalFitables{}

type inmemoryLocalFitables struct {
	storage map[model.Fitable][]*item
	// byGeneric indexes storage keys per generic id.
	byGeneric map[string][]model.Fitable
	mu        sync.RWMutex
	metrics   *metrics
}

type item struct {
	detail  *model.FitableDetail
	enabled bool
}

func New() *inmemoryLocalFitables {
	repo := inmemoryLocalFitables{
		storage:   map[model.Fitable][]*item{},
		byGeneric: map[string][]model.Fitable{},
	}

	repo.metrics = newMetrics(&repo)

	return &repo
}

func (repo *inmemoryLocalFitables) Metrics() []prometheus.Collector {
	return repo.metrics.list()
}

func (repo *inmemoryLocalFitables) observe(op string) func(error) {
	repo.metrics.requestsCnt.WithLabelValues(op).Inc()
	ts := time.Now()
	return func(err error) {
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		if err != nil {
			repo.metrics.errProcessCnt.Inc()
		}
	}
}

func (repo *inmemoryLocalFitables) Register(details ...*model.FitableDetail) (resErr error) {
	done := repo.observe("register")
	defer func() { done(resErr) }()

	for _, d := range details {
		if d == nil {
			return model.NewError(model.CodeParameter, "nil fitable detail")
		}
		if err := d.Validate(); err != nil {
			return err
		}
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, d := range details {
		items, found := repo.storage[d.Fitable]
		if !found {
			repo.byGeneric[d.GenericID] = append(repo.byGeneric[d.GenericID], d.Fitable)
		}
		if slices.ContainsFunc(items, func(it *item) bool { return it.detail == d }) {
			continue
		}
		repo.storage[d.Fitable] = append(items, &item{detail: d, enabled: true})
	}

	return nil
}

func (repo *inmemoryLocalFitables) Unregister(details ...*model.FitableDetail) (resErr error) {
	done := repo.observe("unregister")
	defer func() { done(resErr) }()

	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, d := range details {
		if d == nil {
			continue
		}
		items := slices.DeleteFunc(repo.storage[d.Fitable], func(it *item) bool { return it.detail == d })
		if len(items) > 0 {
			repo.storage[d.Fitable] = items
			continue
		}

		delete(repo.storage, d.Fitable)
		ids := slices.DeleteFunc(repo.byGeneric[d.GenericID], func(f model.Fitable) bool { return f == d.Fitable })
		if len(ids) == 0 {
			delete(repo.byGeneric, d.GenericID)
		} else {
			repo.byGeneric[d.GenericID] = ids
		}
	}

	return nil
}

func (repo *inmemoryLocalFitables) Get(id model.Fitable) []*model.FitableDetail {
	defer repo.observe("get")(nil)

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	return enabledDetails(repo.storage[id])
}

func (repo *inmemoryLocalFitables) GetByGenericID(genericID string) []*model.FitableDetail {
	defer repo.observe("get_by_generic_id")(nil)

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	res := []*model.FitableDetail{}
	for _, id := range repo.byGeneric[genericID] {
		res = append(res, enabledDetails(repo.storage[id])...)
	}
	return res
}

func (repo *inmemoryLocalFitables) GetAll() []*model.FitableDetail {
	defer repo.observe("get_all")(nil)

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	res := []*model.FitableDetail{}
	for _, items := range repo.storage {
		res = append(res, lo.Map(items, func(it *item, _ int) *model.FitableDetail { return it.detail })...)
	}
	slices.SortFunc(res, func(a, b *model.FitableDetail) int { return a.Fitable.Compare(b.Fitable) })
	return res
}

func (repo *inmemoryLocalFitables) Clear() {
	defer repo.observe("clear")(nil)

	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.storage = map[model.Fitable][]*item{}
	repo.byGeneric = map[string][]model.Fitable{}
}

func (repo *inmemoryLocalFitables) Enable(genericID string, fitableIDs ...string) (resErr error) {
	done := repo.observe("enable")
	defer func() { done(resErr) }()
	return repo.setEnabled(true, genericID, fitableIDs)
}

func (repo *inmemoryLocalFitables) Disable(genericID string, fitableIDs ...string) (resErr error) {
	done := repo.observe("disable")
	defer func() { done(resErr) }()
	return repo.setEnabled(false, genericID, fitableIDs)
}

func (repo *inmemoryLocalFitables) setEnabled(enabled bool, genericID string, fitableIDs []string) error {
	if genericID == "" {
		return model.NewError(model.CodeParameter, "empty generic id")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	ids, found := repo.byGeneric[genericID]
	if !found {
		return model.NewError(model.CodeNotFound, "no local fitables for generic %s", genericID)
	}

	touched := 0
	for _, id := range ids {
		if len(fitableIDs) > 0 && !slices.Contains(fitableIDs, id.FitableID) {
			continue
		}
		for _, it := range repo.storage[id] {
			it.enabled = enabled
			touched++
		}
	}

	if touched == 0 {
		return model.NewError(model.CodeNotFound, "no local fitables %v for generic %s", fitableIDs, genericID)
	}
	return nil
}

func (repo *inmemoryLocalFitables) counts() (total, enabled int) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	for _, items := range repo.storage {
		total += len(items)
		enabled += lo.CountBy(items, func(it *item) bool { return it.enabled })
	}
	return total, enabled
}

func enabledDetails(items []*item) []*model.FitableDetail {
	return lo.FilterMap(items, func(it *item, _ int) (*model.FitableDetail, bool) {
		return it.detail, it.enabled
	})
}
