package registry_listener

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/pkg/sortedx"
)

// Application is a cached application instance. It owns its workers.
type Application struct {
	model.Application

	mu      sync.RWMutex
	formats []model.Format
	workers *sortedx.Repo[*Worker]
}

func newApplication(app model.Application) *Application {
	a := Application{Application: app}
	a.workers = sortedx.New(compareWorkers, func(key *Worker) *Worker {
		return newWorker(a.Application, key.WorkerDetail)
	})
	return &a
}

func compareApplications(a, b *Application) int {
	return a.Application.Compare(b.Application)
}

func (a *Application) Formats() []model.Format {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.formats)
}

func (a *Application) Workers() []*Worker {
	return a.workers.List()
}

// update replaces formats and the worker tree with the reported instance.
// Workers and endpoints keep their identity when they are still reported.
func (a *Application) update(inst model.ApplicationInstance) {
	a.mu.Lock()
	a.formats = slices.Clone(inst.Formats)
	a.mu.Unlock()

	reported := sortedx.New(compareWorkers, nil)
	for _, wd := range inst.Workers {
		reported.Get(&Worker{WorkerDetail: wd}, true)
	}
	a.workers.RemoveFunc(func(w *Worker) bool {
		_, found := reported.Get(w, false)
		return !found
	})

	for _, wd := range inst.Workers {
		w, _ := a.workers.Get(&Worker{WorkerDetail: wd}, true)
		w.update(wd.Endpoints)
	}
}

// Worker is a cached worker. It refers to its application by key only.
type Worker struct {
	model.WorkerDetail

	app       model.Application
	endpoints *sortedx.Repo[*Endpoint]
}

func newWorker(app model.Application, wd model.WorkerDetail) *Worker {
	w := Worker{
		WorkerDetail: model.WorkerDetail{
			ID:          wd.ID,
			Environment: wd.Environment,
			Extensions:  wd.Extensions,
		},
		app: app,
	}
	w.endpoints = sortedx.New(compareEndpoints, func(key *Endpoint) *Endpoint {
		return &Endpoint{EndpointDetail: key.EndpointDetail, workerID: w.ID, app: app}
	})
	return &w
}

func compareWorkers(a, b *Worker) int {
	return cmp.Or(
		cmp.Compare(a.ID, b.ID),
		cmp.Compare(a.Environment, b.Environment),
		model.CompareExtensions(a.Extensions, b.Extensions),
	)
}

// Application resolves the owning application through the cache.
// It reports false once the application is gone.
func (w *Worker) Application(c *Cache) (*Application, bool) {
	return c.applications.Get(&Application{Application: w.app}, false)
}

func (w *Worker) Endpoints() []*Endpoint {
	return w.endpoints.List()
}

func (w *Worker) update(endpoints []model.EndpointDetail) {
	reported := sortedx.New(compareEndpoints, nil)
	for _, ed := range endpoints {
		reported.Get(&Endpoint{EndpointDetail: ed}, true)
	}
	w.endpoints.RemoveFunc(func(ep *Endpoint) bool {
		_, found := reported.Get(ep, false)
		return !found
	})
	for _, ed := range endpoints {
		w.endpoints.Get(&Endpoint{EndpointDetail: ed}, true)
	}
}

// Endpoint is a cached reachable address of a worker.
type Endpoint struct {
	model.EndpointDetail

	workerID string
	app      model.Application
}

func compareEndpoints(a, b *Endpoint) int {
	return a.EndpointDetail.Compare(b.EndpointDetail)
}

// Worker resolves the owning worker through the cache.
func (ep *Endpoint) Worker(c *Cache) (*Worker, bool) {
	app, found := c.applications.Get(&Application{Application: ep.app}, false)
	if !found {
		return nil, false
	}
	for _, w := range app.Workers() {
		if w.ID != ep.workerID {
			continue
		}
		if _, found := w.endpoints.Get(ep, false); found {
			return w, true
		}
	}
	return nil, false
}

// Fitable is a dependency of this worker mirrored from the registry.
type Fitable struct {
	model.Fitable

	mu      sync.RWMutex
	aliases []string
	tags    []string
}

func compareFitables(a, b *Fitable) int {
	return a.Fitable.Compare(b.Fitable)
}

func (f *Fitable) Aliases() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.aliases)
}

func (f *Fitable) Tags() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.tags)
}

func (f *Fitable) setMeta(aliases, tags []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliases = slices.Clone(aliases)
	f.tags = slices.Clone(tags)
}

// UnavailableEndpoint excludes an endpoint from a fitable's addresses for a
// number of synchronization cycles.
type UnavailableEndpoint struct {
	Fitable  model.Fitable
	Endpoint model.EndpointDetail
	WorkerID string

	expiration atomic.Int64
}

func NewUnavailableEndpoint(
	fitable model.Fitable,
	endpoint model.EndpointDetail,
	workerID string,
	expiration int,
) *UnavailableEndpoint {
	ue := UnavailableEndpoint{
		Fitable:  fitable,
		Endpoint: endpoint,
		WorkerID: workerID,
	}
	ue.expiration.Store(int64(expiration))
	return &ue
}

func compareUnavailable(a, b *UnavailableEndpoint) int {
	return cmp.Or(
		a.Fitable.Compare(b.Fitable),
		cmp.Compare(a.WorkerID, b.WorkerID),
		a.Endpoint.Compare(b.Endpoint),
	)
}

// TryExpire counts one cycle down and reports whether the entry ran out.
// An entry created with expiration N expires on the N-th call, N <= 0
// expires on the first one.
func (ue *UnavailableEndpoint) TryExpire() bool {
	return ue.expiration.Add(-1) < 1
}

func (ue *UnavailableEndpoint) Expiration() int {
	return int(ue.expiration.Load())
}

func (ue *UnavailableEndpoint) reset(expiration int) {
	ue.expiration.Store(int64(expiration))
}

// relation links a fitable to an application serving it.
type relation struct {
	fitable model.Fitable
	app     model.Application
}

func compareFitableApplication(a, b relation) int {
	return cmp.Or(a.fitable.Compare(b.fitable), a.app.Compare(b.app))
}

func compareApplicationFitable(a, b relation) int {
	return cmp.Or(a.app.Compare(b.app), a.fitable.Compare(b.fitable))
}
