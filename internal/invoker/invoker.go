// Package invoker dispatches calls of a generic to a local implementation
// or to a remote worker picked by route and load balancing filters.
package invoker

import (
	"context"
	"slices"

	"github.com/horockey/fit/internal/model"
	"github.com/rs/zerolog"
)

// MultiplexInvoker calls one generic. Filters are registered before Exec,
// an invoker is not meant to be reconfigured concurrently with calls.
type MultiplexInvoker struct {
	genericID string
	resolver  *Resolver
	remote    *Remote
	routes    []RouteFilter
	lbs       []LBFilter
	rr        *roundRobin
	logger    zerolog.Logger
}

func New(genericID string, resolver *Resolver, remote *Remote, logger zerolog.Logger) *MultiplexInvoker {
	return &MultiplexInvoker{
		genericID: genericID,
		resolver:  resolver,
		remote:    remote,
		rr:        &roundRobin{},
		logger:    logger,
	}
}

// Route adds a filter over implementations.
func (mi *MultiplexInvoker) Route(filter RouteFilter) *MultiplexInvoker {
	mi.routes = append(mi.routes, filter)
	return mi
}

// Get adds a filter over remote endpoints.
func (mi *MultiplexInvoker) Get(filter LBFilter) *MultiplexInvoker {
	mi.lbs = append(mi.lbs, filter)
	return mi
}

// Exec resolves, filters and calls the generic. Local implementations win
// over remote ones and are called without marshaling, endpoint filters apply
// to remote targets only. A failed call falls back to the first enabled local
// degraded implementation. cb, when set, is invoked exactly once.
func (mi *MultiplexInvoker) Exec(ctx context.Context, in model.Arguments, cb model.CallBack) (out model.Arguments, resErr error) {
	info := model.CallBackInfo{GenericID: mi.genericID}
	defer func() {
		if cb == nil {
			return
		}
		info.Code = model.CodeOf(resErr)
		info.Err = resErr
		cb(info)
	}()

	if mi.genericID == "" {
		return nil, model.NewError(model.CodeParameter, "empty generic id")
	}

	out, err := mi.call(ctx, in, &info)
	if err == nil || model.CodeOf(err) == model.CodeParameter {
		return out, err
	}

	degraded := mi.resolver.Degraded(mi.genericID)
	if len(degraded) == 0 {
		return out, err
	}

	d := degraded[0]
	mi.logger.
		Warn().
		Err(err).
		Str("generic_id", mi.genericID).
		Str("degraded_fitable_id", d.FitableID).
		Msg("falling back to degraded fitable")

	info = model.CallBackInfo{
		GenericID: mi.genericID,
		FitableID: d.FitableID,
		Aliases:   slices.Clone(d.Aliases),
		Local:     true,
	}
	return d.Call(ctx, in.Clone())
}

func (mi *MultiplexInvoker) call(ctx context.Context, in model.Arguments, info *model.CallBackInfo) (model.Arguments, error) {
	if local := mi.resolver.Local(mi.genericID, mi.routes); len(local) > 0 {
		d := local[0]
		info.FitableID = d.FitableID
		info.Aliases = slices.Clone(d.Aliases)
		info.Local = true
		return d.Call(ctx, in.Clone())
	}

	targets, err := mi.resolver.Remote(ctx, mi.genericID, mi.routes, mi.lbs)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, model.NewError(model.CodeNotFound, "no target for generic %s passed filters", mi.genericID)
	}

	t := targets[mi.rr.pick(len(targets))]
	info.FitableID = t.Fitable.FitableID
	info.Aliases = slices.Clone(t.Aliases)
	info.Host = t.Host
	info.Port = t.Port
	info.WorkerID = t.WorkerID

	if mi.remote == nil {
		return nil, model.NewError(model.CodeInternal, "remote calls are not configured")
	}

	out, err := mi.remote.Call(ctx, t, in)
	if model.CodeOf(err) == model.CodeTransport {
		mi.logger.
			Warn().
			Err(err).
			Str("address", t.Address.String()).
			Msg("remote call failed")
		mi.resolver.markUnavailable(t)
	}
	return out, err
}
