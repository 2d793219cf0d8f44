package invoker

import (
	"slices"
	"sync/atomic"

	"github.com/horockey/fit/internal/model"
)

// RouteFilter narrows which implementations of a generic are eligible.
type RouteFilter func(fitableID string, aliases []string) bool

// LBFilter narrows which physical endpoints are eligible.
type LBFilter func(addr model.Address) bool

// ByFitableID routes to one implementation.
func ByFitableID(fitableID string) RouteFilter {
	return func(id string, _ []string) bool {
		return id == fitableID
	}
}

// ByAlias routes to implementations carrying alias.
func ByAlias(alias string) RouteFilter {
	return func(id string, aliases []string) bool {
		return id == alias || slices.Contains(aliases, alias)
	}
}

// ByProtocol keeps endpoints speaking p.
func ByProtocol(p model.Protocol) LBFilter {
	return func(addr model.Address) bool {
		return addr.Protocol == p
	}
}

// ByEnvironment keeps endpoints of workers in env.
func ByEnvironment(env string) LBFilter {
	return func(addr model.Address) bool {
		return addr.Environment == env
	}
}

// ExcludeHostPort drops one backend.
func ExcludeHostPort(host string, port int) LBFilter {
	return func(addr model.Address) bool {
		return addr.Host != host || addr.Port != port
	}
}

// roundRobin picks candidates in turn.
type roundRobin struct {
	next atomic.Uint64
}

func (rr *roundRobin) pick(n int) int {
	return int((rr.next.Add(1) - 1) % uint64(n))
}
