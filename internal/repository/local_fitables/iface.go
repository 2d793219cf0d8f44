package local_fitables

import (
	"github.com/horockey/fit/internal/model"
)

// Repository is the catalog of fitables implemented by this process.
// Disabled fitables stay in storage but are hidden from Get lookups.
type Repository interface {
	model.MetricsProvider
	// Register and Unregister match details by pointer: several
	// implementations may share one Fitable identity, a copy of a
	// registered detail is a different implementation.
	Register(details ...*model.FitableDetail) error
	Unregister(details ...*model.FitableDetail) error
	Get(id model.Fitable) []*model.FitableDetail
	GetByGenericID(genericID string) []*model.FitableDetail
	GetAll() []*model.FitableDetail
	Clear()
	// Enable and Disable act on every fitable of genericID when no
	// fitable ids are given.
	Enable(genericID string, fitableIDs ...string) error
	Disable(genericID string, fitableIDs ...string) error
}
