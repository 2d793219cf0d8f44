package registry_listener

import (
	"context"
	"fmt"
	"time"

	"github.com/horockey/fit/internal/model"
	"github.com/rs/zerolog"
)

const unsubscribeTimeout = 5 * time.Second

var _ Synchronizer = &PushSynchronizer{}

// PushSynchronizer subscribes to instance changes of every dependency and
// applies notifications sent by the registry. Subscriptions are renewed each
// heartbeat so that the registry keeps the listener alive.
type PushSynchronizer struct {
	registry   model.Registry
	cache      *Cache
	subscriber model.Subscriber
	heartbeat  time.Duration
	logger     zerolog.Logger
	metrics    *metrics
}

func newPushSynchronizer(
	registry model.Registry,
	cache *Cache,
	subscriber model.Subscriber,
	heartbeat time.Duration,
	logger zerolog.Logger,
	m *metrics,
) *PushSynchronizer {
	return &PushSynchronizer{
		registry:   registry,
		cache:      cache,
		subscriber: subscriber,
		heartbeat:  heartbeat,
		logger:     logger,
		metrics:    m,
	}
}

func (s *PushSynchronizer) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	defer func() {
		fitables := s.cache.Fitables()
		if len(fitables) == 0 {
			return
		}

		unsubCtx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
		defer cancel()

		if err := s.registry.UnsubscribeApplicationInstances(unsubCtx, fitables, s.subscriber.ListenerID); err != nil {
			s.logger.
				Error().
				Err(fmt.Errorf("unsubscribing from registry: %w", err)).
				Send()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("running context: %w", ctx.Err())
		case <-ticker.C:
			if err := s.subscribe(ctx, s.cache.Fitables()); err != nil {
				s.logger.
					Error().
					Err(fmt.Errorf("renewing subscriptions: %w", err)).
					Send()
			}
		}
	}
}

func (s *PushSynchronizer) OnSubscribed(ctx context.Context, fitables []model.Fitable) error {
	return s.subscribe(ctx, fitables)
}

// Notify applies instances pushed by the registry.
func (s *PushSynchronizer) Notify(instances []model.FitableInstance) {
	defer s.metrics.observeSync("notify", time.Now(), nil)

	// Only dependencies are cached.
	known := make([]model.FitableInstance, 0, len(instances))
	for _, fi := range instances {
		if _, found := s.cache.Fitable(fi.Fitable); found {
			known = append(known, fi)
		}
	}

	diff := s.cache.Apply(known)
	s.logger.
		Debug().
		Int("instances", len(known)).
		Int("linked", diff.Linked).
		Int("unlinked", diff.Unlinked).
		Msg("registry notification applied")
}

func (s *PushSynchronizer) subscribe(ctx context.Context, fitables []model.Fitable) (resErr error) {
	defer s.metrics.observeSync("push", time.Now(), &resErr)

	if len(fitables) == 0 {
		return nil
	}

	instances, err := s.registry.SubscribeApplicationInstances(ctx, fitables, s.subscriber)
	if err != nil {
		return fmt.Errorf("subscribing to application instances: %w", err)
	}

	s.cache.Apply(instances)
	return nil
}
