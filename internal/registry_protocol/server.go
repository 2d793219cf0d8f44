package registry_protocol

import (
	"context"

	"github.com/horockey/fit/internal/model"
)

// Fitables binds reg as the local implementation of every registry generic
// except notify, which belongs to listeners.
func Fitables(reg model.Registry) []*model.FitableDetail {
	bind := func(genericID string, fn model.FitableFunc) *model.FitableDetail {
		return &model.FitableDetail{
			Fitable:   ServerFitable(genericID),
			Type:      model.FitableTypeMain,
			Signature: Signature(genericID),
			Func:      fn,
		}
	}

	return []*model.FitableDetail{
		bind(model.GenericRegisterFitableMetas, func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
			metas, err := objectArg[[]model.FitableMeta](in, 0)
			if err != nil {
				return nil, err
			}
			return model.Arguments{}, reg.RegisterFitableMetas(ctx, metas)
		}),
		bind(model.GenericUnregisterFitableMetas, func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
			app, err := objectArg[model.Application](in, 0)
			if err != nil {
				return nil, err
			}
			fitables, err := objectArg[[]model.Fitable](in, 1)
			if err != nil {
				return nil, err
			}
			return model.Arguments{}, reg.UnregisterFitableMetas(ctx, app, fitables)
		}),
		bind(model.GenericQueryFitableMetas, func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
			ids, err := objectArg[[]string](in, 0)
			if err != nil {
				return nil, err
			}
			metas, err := reg.QueryFitableMetas(ctx, ids)
			if err != nil {
				return nil, err
			}
			return model.Arguments{model.Object(metas)}, nil
		}),
		bind(model.GenericRegisterApplicationInstances, func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
			instances, err := objectArg[[]model.ApplicationInstance](in, 0)
			if err != nil {
				return nil, err
			}
			return model.Arguments{}, reg.RegisterApplicationInstances(ctx, instances)
		}),
		bind(model.GenericUnregisterApplicationInstances, func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
			app, err := objectArg[model.Application](in, 0)
			if err != nil {
				return nil, err
			}
			workerIDs, err := objectArg[[]string](in, 1)
			if err != nil {
				return nil, err
			}
			return model.Arguments{}, reg.UnregisterApplicationInstances(ctx, app, workerIDs)
		}),
		bind(model.GenericSubscribeApplicationInstances, func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
			fitables, err := objectArg[[]model.Fitable](in, 0)
			if err != nil {
				return nil, err
			}
			sub, err := objectArg[model.Subscriber](in, 1)
			if err != nil {
				return nil, err
			}
			instances, err := reg.SubscribeApplicationInstances(ctx, fitables, sub)
			if err != nil {
				return nil, err
			}
			return model.Arguments{model.Object(instances)}, nil
		}),
		bind(model.GenericUnsubscribeApplicationInstances, func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
			fitables, err := objectArg[[]model.Fitable](in, 0)
			if err != nil {
				return nil, err
			}
			listenerID, err := stringArg(in, 1)
			if err != nil {
				return nil, err
			}
			return model.Arguments{}, reg.UnsubscribeApplicationInstances(ctx, fitables, listenerID)
		}),
		bind(model.GenericQueryApplicationInstances, func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
			fitables, err := objectArg[[]model.Fitable](in, 0)
			if err != nil {
				return nil, err
			}
			instances, err := reg.QueryApplicationInstances(ctx, fitables)
			if err != nil {
				return nil, err
			}
			return model.Arguments{model.Object(instances)}, nil
		}),
		bind(model.GenericCheck, func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
			elements, err := objectArg[[]model.CheckElement](in, 0)
			if err != nil {
				return nil, err
			}
			results, err := reg.Check(ctx, elements)
			if err != nil {
				return nil, err
			}
			return model.Arguments{model.Object(results)}, nil
		}),
	}
}

// NotifyDetail binds fn as the listener side notify fitable.
func NotifyDetail(fn func(ctx context.Context, instances []model.FitableInstance) error) *model.FitableDetail {
	return &model.FitableDetail{
		Fitable:   NotifyFitable(),
		Type:      model.FitableTypeMain,
		Signature: Signature(model.GenericNotifyFitableMetas),
		Func: func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
			instances, err := objectArg[[]model.FitableInstance](in, 0)
			if err != nil {
				return nil, err
			}
			return model.Arguments{}, fn(ctx, instances)
		},
	}
}
