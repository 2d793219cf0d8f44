// Package registry_listener keeps the worker's view of remote fitables: which
// applications, workers and endpoints serve the generics it depends on.
package registry_listener

import (
	"context"
	"fmt"
	"time"

	"github.com/horockey/fit/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var _ model.MetricsProvider = &Listener{}

type Config struct {
	// SyncInterval of the polling synchronizer, 0 disables polling.
	SyncInterval time.Duration
	// HeartbeatInterval of the push synchronizer, 0 disables push.
	HeartbeatInterval time.Duration
	// UnavailableExpiration is the number of cycles a failed endpoint stays
	// hidden.
	UnavailableExpiration int
	Subscriber            model.Subscriber
}

type Listener struct {
	registry   model.Registry
	cache      *Cache
	sync       Synchronizer
	active     *ActiveAddressSynchronizer
	push       *PushSynchronizer
	expiration int
	logger     zerolog.Logger
	metrics    *metrics
}

func New(registry model.Registry, cfg Config, logger zerolog.Logger) *Listener {
	l := Listener{
		registry:   registry,
		cache:      NewCache(),
		expiration: cfg.UnavailableExpiration,
		logger:     logger,
	}
	l.metrics = newMetrics(l.cache)

	synchronizers := []Synchronizer{}
	if cfg.SyncInterval > 0 {
		l.active = newActiveAddressSynchronizer(registry, l.cache, cfg.SyncInterval, logger, l.metrics)
		synchronizers = append(synchronizers, l.active)
	}
	if cfg.HeartbeatInterval > 0 {
		l.push = newPushSynchronizer(registry, l.cache, cfg.Subscriber, cfg.HeartbeatInterval, logger, l.metrics)
		synchronizers = append(synchronizers, l.push)
	}
	l.sync = NewComposite(synchronizers...)

	return &l
}

func (l *Listener) Metrics() []prometheus.Collector {
	return l.metrics.list()
}

func (l *Listener) Cache() *Cache {
	return l.cache
}

// Start runs all synchronizers until ctx is done.
func (l *Listener) Start(ctx context.Context) error {
	return l.sync.Start(ctx)
}

// Sync runs one polling cycle out of schedule.
func (l *Listener) Sync(ctx context.Context) error {
	if l.active == nil {
		return model.NewError(model.CodeInternal, "polling synchronizer disabled")
	}
	return l.active.Sync(ctx)
}

// GetFitableAddresses returns the available remote targets of a generic.
// Unknown generics are looked up in the registry and become dependencies.
func (l *Listener) GetFitableAddresses(ctx context.Context, genericID string) ([]model.Target, error) {
	if genericID == "" {
		return nil, model.NewError(model.CodeParameter, "empty generic id")
	}

	fitables := l.cache.FitablesOf(genericID)
	if len(fitables) == 0 {
		metas, err := l.registry.QueryFitableMetas(ctx, []string{genericID})
		if err != nil {
			return nil, fmt.Errorf("querying fitable metas of %s: %w", genericID, err)
		}
		if len(metas) == 0 {
			return nil, model.NewError(model.CodeNotFound, "no fitables registered for generic %s", genericID)
		}
		if err := l.SubscribeFitables(ctx, metas); err != nil {
			return nil, fmt.Errorf("subscribing to fitables of %s: %w", genericID, err)
		}
		fitables = l.cache.FitablesOf(genericID)
	}

	res := []model.Target{}
	for _, f := range fitables {
		res = append(res, l.cache.Targets(f.Fitable)...)
	}
	return res, nil
}

// SubscribeFitables adds dependencies and refreshes the new ones at once.
func (l *Listener) SubscribeFitables(ctx context.Context, metas []model.FitableMeta) error {
	added := l.cache.AddFitables(metas...)
	if len(added) == 0 {
		return nil
	}

	l.logger.Info().Int("count", len(added)).Msg("fitables subscribed")
	return l.sync.OnSubscribed(ctx, added)
}

// MarkUnavailable hides a target after a failed call.
func (l *Listener) MarkUnavailable(target model.Target) {
	l.metrics.markedUnavailableCnt.Inc()
	l.logger.
		Warn().
		Str("fitable", target.Fitable.String()).
		Str("address", target.Address.String()).
		Int("cycles", l.expiration).
		Msg("endpoint marked unavailable")
	l.cache.MarkUnavailable(target, l.expiration)
}

// Notify applies instances pushed by the registry.
func (l *Listener) Notify(instances []model.FitableInstance) {
	if l.push == nil {
		l.logger.Debug().Int("instances", len(instances)).Msg("notification ignored, push disabled")
		return
	}
	l.push.Notify(instances)
}
