package fit

import (
	"context"

	"github.com/horockey/fit/internal/formatter"
	"github.com/horockey/fit/internal/invoker"
	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/processor"
)

type (
	Processor       = processor.Processor
	Invoker         = invoker.MultiplexInvoker
	Arguments       = model.Arguments
	Value           = model.Value
	Signature       = model.Signature
	Fitable         = model.Fitable
	FitableDetail   = model.FitableDetail
	FitableFunc     = model.FitableFunc
	GenericMeta     = formatter.Meta
	CallBack        = model.CallBack
	CallBackInfo    = model.CallBackInfo
	Clock           = model.Clock
	FitableInstance = model.FitableInstance
)

type Controller interface {
	model.MetricsProvider
	Start(ctx context.Context, proc *Processor) error
}
