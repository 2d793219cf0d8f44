package fit_registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/horockey/fit/internal/gateway/registry"
	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/registry_protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Remote performs one envelope round trip to a resolved target.
type Remote interface {
	Call(ctx context.Context, target model.Target, in model.Arguments) (model.Arguments, error)
}

var _ registry.Gateway = &fitRegistry{}

type fitRegistry struct {
	*registry_protocol.Client

	remote  Remote
	servers []model.Address
	current atomic.Int64
	metrics *metrics
	logger  zerolog.Logger
}

// New builds a gateway talking to the registry servers at addrs. Calls go to
// the last server that answered and fail over to the next one on transport
// errors.
func New(remote Remote, addrs []model.Address, logger zerolog.Logger) *fitRegistry {
	gw := fitRegistry{
		remote:  remote,
		servers: slices.Clone(addrs),
		metrics: newMetrics(),
		logger:  logger,
	}
	gw.Client = registry_protocol.NewClient(registry_protocol.CallerFunc(gw.call))
	return &gw
}

func (gw *fitRegistry) Metrics() []prometheus.Collector {
	return gw.metrics.list()
}

func (gw *fitRegistry) call(ctx context.Context, genericID string, in model.Arguments) (res model.Arguments, resErr error) {
	defer func(ts time.Time) {
		gw.metrics.callTimeHist.Observe(float64(time.Since(ts)))
		gw.metrics.callsCnt.WithLabelValues(genericID, model.CodeOf(resErr).String()).Inc()
	}(time.Now())

	if len(gw.servers) == 0 {
		return nil, model.NewError(model.CodeInternal, "no registry server configured")
	}

	start := int(gw.current.Load())
	var errs error
	for i := range gw.servers {
		idx := (start + i) % len(gw.servers)
		addr := gw.servers[idx]

		out, err := gw.remote.Call(ctx, model.Target{
			Fitable: registry_protocol.ServerFitable(genericID),
			Address: addr,
		}, in)
		if model.CodeOf(err) != model.CodeTransport {
			gw.current.Store(int64(idx))
			return out, err
		}

		gw.logger.
			Warn().
			Err(err).
			Str("address", addr.String()).
			Str("generic_id", genericID).
			Msg("registry server unreachable")
		errs = errors.Join(errs, err)
	}
	return nil, model.NewError(model.CodeTransport, "all %d registry servers failed: %s", len(gw.servers), errs)
}

func (gw *fitRegistry) Notify(ctx context.Context, sub model.Subscriber, instances []model.FitableInstance) error {
	err := registry_protocol.Notify(ctx, registry_protocol.CallerFunc(
		func(ctx context.Context, genericID string, in model.Arguments) (model.Arguments, error) {
			return gw.remote.Call(ctx, model.Target{
				Fitable: registry_protocol.NotifyFitable(),
				Address: sub.Address,
			}, in)
		},
	), instances)
	gw.metrics.notifyCnt.WithLabelValues(model.CodeOf(err).String()).Inc()
	if err != nil {
		return fmt.Errorf("notifying listener %s: %w", sub.ListenerID, err)
	}
	return nil
}
