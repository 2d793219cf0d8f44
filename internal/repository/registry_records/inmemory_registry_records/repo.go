package inmemory_registry_records

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/repository/registry_records"
	"github.com/horockey/fit/pkg/sortedx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

var _ registry_records.Repository = &inmemoryRegistryRecords{}

type inmemoryRegistryRecords struct {
	metas        *sortedx.Repo[*metaRecord]
	applications *sortedx.Repo[*appRecord]
	metrics      *metrics
}

type metaRecord struct {
	meta model.FitableMeta
}

func compareMetas(a, b *metaRecord) int {
	return cmp.Or(
		a.meta.Fitable.Compare(b.meta.Fitable),
		a.meta.Application.Compare(b.meta.Application),
	)
}

type appRecord struct {
	app     model.Application
	workers *sortedx.Repo[model.WorkerDetail]

	mu      sync.RWMutex
	formats []model.Format
}

func compareApps(a, b *appRecord) int {
	return a.app.Compare(b.app)
}

func compareWorkerIDs(a, b model.WorkerDetail) int {
	return cmp.Compare(a.ID, b.ID)
}

func New() *inmemoryRegistryRecords {
	repo := inmemoryRegistryRecords{
		metas: sortedx.New(compareMetas, nil),
		applications: sortedx.New(compareApps, func(key *appRecord) *appRecord {
			return &appRecord{app: key.app, workers: sortedx.New(compareWorkerIDs, nil)}
		}),
	}
	repo.metrics = newMetrics(&repo)
	return &repo
}

func (repo *inmemoryRegistryRecords) Metrics() []prometheus.Collector {
	return repo.metrics.list()
}

func (repo *inmemoryRegistryRecords) observe(op string) func(error) {
	repo.metrics.requestsCnt.WithLabelValues(op).Inc()
	ts := time.Now()
	return func(err error) {
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		if err != nil {
			repo.metrics.errProcessCnt.Inc()
		}
	}
}

func (repo *inmemoryRegistryRecords) SaveFitableMetas(metas ...model.FitableMeta) (resErr error) {
	done := repo.observe("save_fitable_metas")
	defer func() { done(resErr) }()

	for _, meta := range metas {
		if err := meta.Fitable.Validate(); err != nil {
			return err
		}
		if meta.Application.Name == "" {
			return model.NewError(model.CodeParameter, "fitable %s without application", meta.Fitable)
		}
	}

	for _, meta := range metas {
		repo.applications.Get(&appRecord{app: meta.Application}, true)
		repo.metas.Put(&metaRecord{meta: meta})
	}
	return nil
}

func (repo *inmemoryRegistryRecords) RemoveFitableMetas(app model.Application, fitables ...model.Fitable) []model.FitableMeta {
	done := repo.observe("remove_fitable_metas")
	defer done(nil)

	removed := repo.metas.RemoveFunc(func(rec *metaRecord) bool {
		if rec.meta.Application.Compare(app) != 0 {
			return false
		}
		return len(fitables) == 0 || slices.Contains(fitables, rec.meta.Fitable)
	})
	if rec, found := repo.applications.Get(&appRecord{app: app}, false); found {
		repo.dropIfUnused(rec)
	}
	return lo.Map(removed, func(rec *metaRecord, _ int) model.FitableMeta { return rec.meta })
}

func (repo *inmemoryRegistryRecords) FitableMetasOf(genericIDs ...string) []model.FitableMeta {
	done := repo.observe("fitable_metas_of")
	defer done(nil)

	res := []model.FitableMeta{}
	for _, g := range lo.Uniq(genericIDs) {
		lower := &metaRecord{meta: model.FitableMeta{Fitable: model.Fitable{GenericID: g}}}
		recs := repo.metas.Scan(lower, func(rec *metaRecord) bool {
			return rec.meta.Fitable.GenericID == g
		})
		res = append(res, lo.Map(recs, func(rec *metaRecord, _ int) model.FitableMeta { return rec.meta })...)
	}
	return res
}

func (repo *inmemoryRegistryRecords) FitableMetasOfFitable(f model.Fitable) []model.FitableMeta {
	lower := &metaRecord{meta: model.FitableMeta{Fitable: f}}
	recs := repo.metas.Scan(lower, func(rec *metaRecord) bool {
		return rec.meta.Fitable == f
	})
	return lo.Map(recs, func(rec *metaRecord, _ int) model.FitableMeta { return rec.meta })
}

func (repo *inmemoryRegistryRecords) FitableMetasOfApplication(app model.Application) []model.FitableMeta {
	recs := lo.Filter(repo.metas.List(), func(rec *metaRecord, _ int) bool {
		return rec.meta.Application.Compare(app) == 0
	})
	return lo.Map(recs, func(rec *metaRecord, _ int) model.FitableMeta { return rec.meta })
}

func (repo *inmemoryRegistryRecords) SaveApplicationInstances(instances ...model.ApplicationInstance) (resErr error) {
	done := repo.observe("save_application_instances")
	defer func() { done(resErr) }()

	for _, inst := range instances {
		if inst.Application.Name == "" {
			return model.NewError(model.CodeParameter, "application instance without name")
		}
		for _, w := range inst.Workers {
			if w.ID == "" {
				return model.NewError(model.CodeParameter, "worker without id in application %s", inst.Application)
			}
		}
	}

	for _, inst := range instances {
		rec, _ := repo.applications.Get(&appRecord{app: inst.Application}, true)
		if len(inst.Formats) > 0 {
			rec.mu.Lock()
			rec.formats = slices.Clone(inst.Formats)
			rec.mu.Unlock()
		}
		for _, w := range inst.Workers {
			rec.workers.Put(w)
		}
	}
	return nil
}

func (repo *inmemoryRegistryRecords) RemoveWorkers(app model.Application, workerIDs ...string) (resErr error) {
	done := repo.observe("remove_workers")
	defer func() { done(resErr) }()

	rec, found := repo.applications.Get(&appRecord{app: app}, false)
	if !found {
		return model.NewError(model.CodeNotFound, "application %s not registered", app)
	}

	for _, id := range workerIDs {
		rec.workers.Remove(model.WorkerDetail{ID: id})
	}
	if len(workerIDs) == 0 {
		rec.workers.Clear()
	}
	repo.dropIfUnused(rec)
	return nil
}

// dropIfUnused removes an application left without workers and metas.
func (repo *inmemoryRegistryRecords) dropIfUnused(rec *appRecord) {
	if rec.workers.Count() > 0 || len(repo.FitableMetasOfApplication(rec.app)) > 0 {
		return
	}
	repo.applications.Remove(rec)
}

func (repo *inmemoryRegistryRecords) ApplicationInstance(app model.Application) (model.ApplicationInstance, bool) {
	rec, found := repo.applications.Get(&appRecord{app: app}, false)
	if !found {
		return model.ApplicationInstance{}, false
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()

	return model.ApplicationInstance{
		Application: rec.app,
		Formats:     slices.Clone(rec.formats),
		Workers:     rec.workers.List(),
	}, true
}

func (repo *inmemoryRegistryRecords) Applications() []model.Application {
	return lo.Map(repo.applications.List(), func(rec *appRecord, _ int) model.Application { return rec.app })
}

func (repo *inmemoryRegistryRecords) HasWorker(app model.Application, workerID string) bool {
	rec, found := repo.applications.Get(&appRecord{app: app}, false)
	if !found {
		return false
	}
	_, found = rec.workers.Get(model.WorkerDetail{ID: workerID}, false)
	return found
}

func (repo *inmemoryRegistryRecords) Clear() {
	repo.metas.Clear()
	repo.applications.Clear()
}
