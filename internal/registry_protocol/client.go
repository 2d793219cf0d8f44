package registry_protocol

import (
	"context"
	"fmt"

	"github.com/horockey/fit/internal/model"
)

// Caller invokes one registry generic and returns its results.
type Caller interface {
	Call(ctx context.Context, genericID string, in model.Arguments) (model.Arguments, error)
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, genericID string, in model.Arguments) (model.Arguments, error)

func (fn CallerFunc) Call(ctx context.Context, genericID string, in model.Arguments) (model.Arguments, error) {
	return fn(ctx, genericID, in)
}

var _ model.Registry = &Client{}

// Client implements the registry surface on top of a Caller.
type Client struct {
	caller Caller
}

func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

func (c *Client) RegisterFitableMetas(ctx context.Context, metas []model.FitableMeta) error {
	_, err := c.call(ctx, model.GenericRegisterFitableMetas, model.Object(metas))
	return err
}

func (c *Client) UnregisterFitableMetas(ctx context.Context, app model.Application, fitables []model.Fitable) error {
	_, err := c.call(ctx, model.GenericUnregisterFitableMetas, model.Object(app), model.Object(fitables))
	return err
}

func (c *Client) QueryFitableMetas(ctx context.Context, genericIDs []string) ([]model.FitableMeta, error) {
	out, err := c.call(ctx, model.GenericQueryFitableMetas, model.Object(genericIDs))
	if err != nil {
		return nil, err
	}
	return objectArg[[]model.FitableMeta](out, 0)
}

func (c *Client) RegisterApplicationInstances(ctx context.Context, instances []model.ApplicationInstance) error {
	_, err := c.call(ctx, model.GenericRegisterApplicationInstances, model.Object(instances))
	return err
}

func (c *Client) UnregisterApplicationInstances(ctx context.Context, app model.Application, workerIDs []string) error {
	_, err := c.call(ctx, model.GenericUnregisterApplicationInstances, model.Object(app), model.Object(workerIDs))
	return err
}

func (c *Client) SubscribeApplicationInstances(
	ctx context.Context,
	fitables []model.Fitable,
	sub model.Subscriber,
) ([]model.FitableInstance, error) {
	out, err := c.call(ctx, model.GenericSubscribeApplicationInstances, model.Object(fitables), model.Object(sub))
	if err != nil {
		return nil, err
	}
	return objectArg[[]model.FitableInstance](out, 0)
}

func (c *Client) UnsubscribeApplicationInstances(ctx context.Context, fitables []model.Fitable, listenerID string) error {
	_, err := c.call(ctx, model.GenericUnsubscribeApplicationInstances, model.Object(fitables), model.String(listenerID))
	return err
}

func (c *Client) QueryApplicationInstances(ctx context.Context, fitables []model.Fitable) ([]model.FitableInstance, error) {
	out, err := c.call(ctx, model.GenericQueryApplicationInstances, model.Object(fitables))
	if err != nil {
		return nil, err
	}
	return objectArg[[]model.FitableInstance](out, 0)
}

func (c *Client) Check(ctx context.Context, elements []model.CheckElement) ([]model.CheckResult, error) {
	out, err := c.call(ctx, model.GenericCheck, model.Object(elements))
	if err != nil {
		return nil, err
	}
	return objectArg[[]model.CheckResult](out, 0)
}

func (c *Client) call(ctx context.Context, genericID string, in ...model.Value) (model.Arguments, error) {
	out, err := c.caller.Call(ctx, genericID, in)
	if err != nil {
		return nil, fmt.Errorf("calling registry generic %s: %w", genericID, err)
	}
	return out, nil
}

// Notify sends instances to one listener through caller.
func Notify(ctx context.Context, caller Caller, instances []model.FitableInstance) error {
	if _, err := caller.Call(ctx, model.GenericNotifyFitableMetas, model.Arguments{model.Object(instances)}); err != nil {
		return fmt.Errorf("notifying listener: %w", err)
	}
	return nil
}
