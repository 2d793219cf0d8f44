package registry

import (
	"context"

	"github.com/horockey/fit/internal/model"
)

// Gateway reaches the registry server and, on the server side, the
// listeners subscribed to it.
type Gateway interface {
	model.Registry
	model.MetricsProvider
	// Notify delivers instance changes to sub.
	Notify(ctx context.Context, sub model.Subscriber, instances []model.FitableInstance) error
}
