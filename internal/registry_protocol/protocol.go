// Package registry_protocol maps the registry RPC surface onto ordinary
// fitables. Every operation is one generic whose arguments are objects.
package registry_protocol

import (
	"github.com/horockey/fit/internal/formatter"
	"github.com/horockey/fit/internal/model"
)

var (
	obj  = model.KindObject
	str  = model.KindString
	none = []model.Kind{}
)

// Metas returns the formatter metas of every registry generic.
func Metas() []formatter.Meta {
	return []formatter.Meta{
		{
			GenericID: model.GenericRegisterFitableMetas,
			Signature: model.Signature{In: []model.Kind{obj}, Out: none},
			InObjects: map[int]formatter.ObjectFactory{0: formatter.ObjectFactoryFor[[]model.FitableMeta]()},
		},
		{
			GenericID: model.GenericUnregisterFitableMetas,
			Signature: model.Signature{In: []model.Kind{obj, obj}, Out: none},
			InObjects: map[int]formatter.ObjectFactory{
				0: formatter.ObjectFactoryFor[model.Application](),
				1: formatter.ObjectFactoryFor[[]model.Fitable](),
			},
		},
		{
			GenericID:  model.GenericQueryFitableMetas,
			Signature:  model.Signature{In: []model.Kind{obj}, Out: []model.Kind{obj}},
			InObjects:  map[int]formatter.ObjectFactory{0: formatter.ObjectFactoryFor[[]string]()},
			OutObjects: map[int]formatter.ObjectFactory{0: formatter.ObjectFactoryFor[[]model.FitableMeta]()},
		},
		{
			GenericID: model.GenericNotifyFitableMetas,
			Signature: model.Signature{In: []model.Kind{obj}, Out: none},
			InObjects: map[int]formatter.ObjectFactory{0: formatter.ObjectFactoryFor[[]model.FitableInstance]()},
		},
		{
			GenericID: model.GenericRegisterApplicationInstances,
			Signature: model.Signature{In: []model.Kind{obj}, Out: none},
			InObjects: map[int]formatter.ObjectFactory{0: formatter.ObjectFactoryFor[[]model.ApplicationInstance]()},
		},
		{
			GenericID: model.GenericUnregisterApplicationInstances,
			Signature: model.Signature{In: []model.Kind{obj, obj}, Out: none},
			InObjects: map[int]formatter.ObjectFactory{
				0: formatter.ObjectFactoryFor[model.Application](),
				1: formatter.ObjectFactoryFor[[]string](),
			},
		},
		{
			GenericID: model.GenericSubscribeApplicationInstances,
			Signature: model.Signature{In: []model.Kind{obj, obj}, Out: []model.Kind{obj}},
			InObjects: map[int]formatter.ObjectFactory{
				0: formatter.ObjectFactoryFor[[]model.Fitable](),
				1: formatter.ObjectFactoryFor[model.Subscriber](),
			},
			OutObjects: map[int]formatter.ObjectFactory{0: formatter.ObjectFactoryFor[[]model.FitableInstance]()},
		},
		{
			GenericID: model.GenericUnsubscribeApplicationInstances,
			Signature: model.Signature{In: []model.Kind{obj, str}, Out: none},
			InObjects: map[int]formatter.ObjectFactory{0: formatter.ObjectFactoryFor[[]model.Fitable]()},
		},
		{
			GenericID:  model.GenericQueryApplicationInstances,
			Signature:  model.Signature{In: []model.Kind{obj}, Out: []model.Kind{obj}},
			InObjects:  map[int]formatter.ObjectFactory{0: formatter.ObjectFactoryFor[[]model.Fitable]()},
			OutObjects: map[int]formatter.ObjectFactory{0: formatter.ObjectFactoryFor[[]model.FitableInstance]()},
		},
		{
			GenericID:  model.GenericCheck,
			Signature:  model.Signature{In: []model.Kind{obj}, Out: []model.Kind{obj}},
			InObjects:  map[int]formatter.ObjectFactory{0: formatter.ObjectFactoryFor[[]model.CheckElement]()},
			OutObjects: map[int]formatter.ObjectFactory{0: formatter.ObjectFactoryFor[[]model.CheckResult]()},
		},
	}
}

// Signature of a registry generic.
func Signature(genericID string) model.Signature {
	for _, m := range Metas() {
		if m.GenericID == genericID {
			return m.Signature
		}
	}
	return model.Signature{}
}

// ServerFitable is the identity under which the registry serves genericID.
func ServerFitable(genericID string) model.Fitable {
	return model.Fitable{
		GenericID:      genericID,
		GenericVersion: model.RegistryGenericVersion,
		FitableID:      model.RegistryFitableID,
		FitableVersion: model.RegistryGenericVersion,
	}
}

// NotifyFitable is the identity under which listeners receive notifications.
func NotifyFitable() model.Fitable {
	return model.Fitable{
		GenericID:      model.GenericNotifyFitableMetas,
		GenericVersion: model.RegistryGenericVersion,
		FitableID:      model.NotifyFitableID,
		FitableVersion: model.RegistryGenericVersion,
	}
}

// objectArg extracts slot idx as T. A null slot yields the zero value.
func objectArg[T any](args model.Arguments, idx int) (T, error) {
	var zero T
	if idx >= len(args) {
		return zero, model.NewError(model.CodeParameter, "missing argument %d", idx)
	}
	if args[idx].IsNull() {
		return zero, nil
	}
	v, ok := model.ObjectAs[T](args[idx])
	if !ok {
		return zero, model.NewError(model.CodeParameter, "argument %d: unexpected %s", idx, args[idx].Kind())
	}
	return v, nil
}

func stringArg(args model.Arguments, idx int) (string, error) {
	if idx >= len(args) {
		return "", model.NewError(model.CodeParameter, "missing argument %d", idx)
	}
	if args[idx].IsNull() {
		return "", nil
	}
	v, ok := args[idx].AsString()
	if !ok {
		return "", model.NewError(model.CodeParameter, "argument %d: unexpected %s", idx, args[idx].Kind())
	}
	return v, nil
}
