package invoker

import (
	"context"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/repository/local_fitables"
)

// Discovery lists and penalizes remote targets of a generic.
type Discovery interface {
	GetFitableAddresses(ctx context.Context, genericID string) ([]model.Target, error)
	MarkUnavailable(target model.Target)
}

// Resolver decides between local implementations and remote targets.
type Resolver struct {
	local     local_fitables.Repository
	discovery Discovery
}

// NewResolver builds a resolver. A nil discovery resolves locally only.
func NewResolver(local local_fitables.Repository, discovery Discovery) *Resolver {
	return &Resolver{local: local, discovery: discovery}
}

// Local lists enabled main implementations of genericID passing routes.
func (r *Resolver) Local(genericID string, routes []RouteFilter) []*model.FitableDetail {
	res := []*model.FitableDetail{}
	for _, d := range r.local.GetByGenericID(genericID) {
		if d.Type != model.FitableTypeMain {
			continue
		}
		if passRoutes(routes, d.FitableID, d.Aliases) {
			res = append(res, d)
		}
	}
	return res
}

// Degraded lists enabled local fallbacks of genericID. Routes do not apply.
func (r *Resolver) Degraded(genericID string) []*model.FitableDetail {
	res := []*model.FitableDetail{}
	for _, d := range r.local.GetByGenericID(genericID) {
		if d.Type == model.FitableTypeDegraded {
			res = append(res, d)
		}
	}
	return res
}

// Remote lists targets of genericID passing routes and then lbs.
func (r *Resolver) Remote(
	ctx context.Context,
	genericID string,
	routes []RouteFilter,
	lbs []LBFilter,
) ([]model.Target, error) {
	if r.discovery == nil {
		return nil, model.NewError(model.CodeNotFound, "no local fitable for generic %s", genericID)
	}

	targets, err := r.discovery.GetFitableAddresses(ctx, genericID)
	if err != nil {
		return nil, err
	}

	res := []model.Target{}
	for _, t := range targets {
		if !passRoutes(routes, t.Fitable.FitableID, t.Aliases) {
			continue
		}
		if passLBs(lbs, t.Address) {
			res = append(res, t)
		}
	}
	return res, nil
}

func (r *Resolver) markUnavailable(t model.Target) {
	if r.discovery != nil {
		r.discovery.MarkUnavailable(t)
	}
}

func passRoutes(routes []RouteFilter, fitableID string, aliases []string) bool {
	for _, route := range routes {
		if !route(fitableID, aliases) {
			return false
		}
	}
	return true
}

func passLBs(lbs []LBFilter, addr model.Address) bool {
	for _, lb := range lbs {
		if !lb(addr) {
			return false
		}
	}
	return true
}
