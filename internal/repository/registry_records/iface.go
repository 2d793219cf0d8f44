package registry_records

import (
	"github.com/horockey/fit/internal/model"
)

// Repository is the registry server store of fitable metas and
// application instances.
type Repository interface {
	model.MetricsProvider

	// SaveFitableMetas upserts metas by (fitable, application) and creates
	// the application on first reference.
	SaveFitableMetas(metas ...model.FitableMeta) error
	// RemoveFitableMetas drops metas of app and returns the removed ones.
	// No fitables means every meta of app.
	RemoveFitableMetas(app model.Application, fitables ...model.Fitable) []model.FitableMeta
	// FitableMetasOf lists metas of the generics in identity order.
	FitableMetasOf(genericIDs ...string) []model.FitableMeta
	// FitableMetasOfFitable lists metas of one fitable, one per application.
	FitableMetasOfFitable(f model.Fitable) []model.FitableMeta
	FitableMetasOfApplication(app model.Application) []model.FitableMeta

	// SaveApplicationInstances merges workers into the stored instance.
	// Reported workers replace stored workers with the same id.
	SaveApplicationInstances(instances ...model.ApplicationInstance) error
	// RemoveWorkers drops workers of app, all of them when no worker ids
	// are given. The application is removed once it has neither workers nor
	// fitable metas.
	RemoveWorkers(app model.Application, workerIDs ...string) error
	ApplicationInstance(app model.Application) (model.ApplicationInstance, bool)
	Applications() []model.Application
	HasWorker(app model.Application, workerID string) bool
	Clear()
}
