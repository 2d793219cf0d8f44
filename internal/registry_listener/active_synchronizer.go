package registry_listener

import (
	"context"
	"fmt"
	"time"

	"github.com/horockey/fit/internal/model"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var _ Synchronizer = &ActiveAddressSynchronizer{}

// ActiveAddressSynchronizer polls the registry every interval with one
// batched query for all dependencies.
type ActiveAddressSynchronizer struct {
	registry model.Registry
	cache    *Cache
	interval time.Duration
	logger   zerolog.Logger
	metrics  *metrics
}

func newActiveAddressSynchronizer(
	registry model.Registry,
	cache *Cache,
	interval time.Duration,
	logger zerolog.Logger,
	m *metrics,
) *ActiveAddressSynchronizer {
	return &ActiveAddressSynchronizer{
		registry: registry,
		cache:    cache,
		interval: interval,
		logger:   logger,
		metrics:  m,
	}
}

func (s *ActiveAddressSynchronizer) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("running context: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.logger.
					Error().
					Err(fmt.Errorf("synchronizing addresses: %w", err)).
					Send()
			}
		}
	}
}

// Sync runs one cycle: counts unavailable endpoints down, refreshes the
// fitable metas of every known generic and then their instances.
func (s *ActiveAddressSynchronizer) Sync(ctx context.Context) (resErr error) {
	defer s.metrics.observeSync("active", time.Now(), &resErr)

	if dropped := s.cache.ExpireUnavailable(); dropped > 0 {
		s.logger.Debug().Int("count", dropped).Msg("unavailable endpoints expired")
	}

	fitables := s.cache.Fitables()
	if len(fitables) == 0 {
		return nil
	}

	generics := lo.Uniq(lo.Map(fitables, func(f model.Fitable, _ int) string {
		return f.GenericID
	}))
	metas, err := s.registry.QueryFitableMetas(ctx, generics)
	if err != nil {
		return fmt.Errorf("querying fitable metas: %w", err)
	}

	s.cache.AddFitables(metas...)
	listed := lo.SliceToMap(metas, func(meta model.FitableMeta) (model.Fitable, struct{}) {
		return meta.Fitable, struct{}{}
	})
	for _, f := range fitables {
		if _, found := listed[f]; !found {
			s.logger.Info().Str("fitable", f.String()).Msg("fitable left the registry")
			s.cache.Forget(f)
		}
	}

	return s.refresh(ctx, s.cache.Fitables())
}

func (s *ActiveAddressSynchronizer) OnSubscribed(ctx context.Context, fitables []model.Fitable) error {
	return s.refresh(ctx, fitables)
}

func (s *ActiveAddressSynchronizer) refresh(ctx context.Context, fitables []model.Fitable) error {
	if len(fitables) == 0 {
		return nil
	}

	instances, err := s.registry.QueryApplicationInstances(ctx, fitables)
	if err != nil {
		return fmt.Errorf("querying application instances: %w", err)
	}

	diff := s.cache.Apply(instances)
	s.logger.
		Debug().
		Int("fitables", len(fitables)).
		Int("linked", diff.Linked).
		Int("unlinked", diff.Unlinked).
		Msg("addresses refreshed")
	return nil
}
