package remote_fitables

import (
	"context"

	"github.com/horockey/fit/internal/model"
)

// Gateway carries request envelopes to remote workers.
type Gateway interface {
	model.MetricsProvider
	// Invoke sends req to the worker at target and returns the response
	// envelope. Network failures are CodeTransport errors.
	Invoke(ctx context.Context, target model.Target, req []byte) ([]byte, error)
}
