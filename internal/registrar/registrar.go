// Package registrar keeps the worker registered with the registry.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/horockey/fit/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Source describes what the worker currently serves.
type Source interface {
	Instance() model.ApplicationInstance
	FitableMetas() []model.FitableMeta
}

type Registrar struct {
	registry model.Registry
	source   Source
	interval time.Duration
	logger   zerolog.Logger
	metrics  *metrics

	mu         sync.Mutex
	registered bool
}

func New(registry model.Registry, source Source, checkInterval time.Duration, logger zerolog.Logger) *Registrar {
	return &Registrar{
		registry: registry,
		source:   source,
		interval: checkInterval,
		logger:   logger,
		metrics:  newMetrics(),
	}
}

func (r *Registrar) Metrics() []prometheus.Collector {
	return r.metrics.list()
}

// Register publishes the fitable metas and the application instance.
func (r *Registrar) Register(ctx context.Context) (resErr error) {
	defer func() {
		r.metrics.registrationsCnt.WithLabelValues(model.CodeOf(resErr).String()).Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	inst := r.source.Instance()
	if metas := r.source.FitableMetas(); len(metas) > 0 {
		if err := r.registry.RegisterFitableMetas(ctx, metas); err != nil {
			r.registered = false
			return fmt.Errorf("registering fitable metas: %w", err)
		}
	}
	if err := r.registry.RegisterApplicationInstances(ctx, []model.ApplicationInstance{inst}); err != nil {
		r.registered = false
		return fmt.Errorf("registering application instance: %w", err)
	}

	r.registered = true
	r.logger.
		Info().
		Str("application", inst.Application.String()).
		Msg("registered with registry")
	return nil
}

// Check asks the registry whether this worker is still known and
// registers again when it is not.
func (r *Registrar) Check(ctx context.Context) error {
	r.mu.Lock()
	registered := r.registered
	r.mu.Unlock()

	if !registered {
		return r.Register(ctx)
	}

	inst := r.source.Instance()
	elements := []model.CheckElement{{
		Type: model.CheckTypeApplication,
		Kvs:  map[string]string{inst.Application.Version: inst.Application.Name},
	}}
	for _, w := range inst.Workers {
		elements = append(elements, model.CheckElement{
			Type: model.CheckTypeApplicationInstance,
			Kvs: map[string]string{
				model.CheckKeyApplicationName:    inst.Application.Name,
				model.CheckKeyApplicationVersion: inst.Application.Version,
				model.CheckKeyWorkerID:           w.ID,
			},
		})
	}

	results, err := r.registry.Check(ctx, elements)
	if err != nil {
		return fmt.Errorf("checking registration: %w", err)
	}

	for _, res := range results {
		switch res.Code {
		case model.CodeOK:
			continue
		case model.CodeNotExist:
			r.metrics.lostCnt.Inc()
			r.logger.
				Warn().
				Str("type", res.Element.Type).
				Msg("registry lost this worker, registering again")
			return r.Register(ctx)
		default:
			return model.NewError(res.Code, "check %s rejected", res.Element.Type)
		}
	}
	return nil
}

// Unregister removes the workers of this instance from the registry.
func (r *Registrar) Unregister(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst := r.source.Instance()
	ids := make([]string, 0, len(inst.Workers))
	for _, w := range inst.Workers {
		ids = append(ids, w.ID)
	}

	r.registered = false
	if err := r.registry.UnregisterApplicationInstances(ctx, inst.Application, ids); err != nil {
		return fmt.Errorf("unregistering application instance: %w", err)
	}
	return nil
}

// Start registers, checks every interval and unregisters once ctx is done.
func (r *Registrar) Start(ctx context.Context) (resErr error) {
	if err := r.Register(ctx); err != nil {
		r.logger.
			Error().
			Err(fmt.Errorf("registering: %w", err)).
			Send()
	}

	defer func() {
		sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Unregister(sdCtx); err != nil {
			resErr = errors.Join(resErr, err)
		}
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("running context: %w", ctx.Err())
		case <-ticker.C:
			if err := r.Check(ctx); err != nil {
				r.logger.
					Error().
					Err(fmt.Errorf("checking registration: %w", err)).
					Send()
			}
		}
	}
}
