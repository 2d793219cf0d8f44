// Package registry_server is the authoritative directory of which
// applications serve which fitables.
package registry_server

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/pool"
	"github.com/horockey/fit/internal/repository/registry_records"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const notifyTimeout = 10 * time.Second

// Notifier delivers instance changes to a subscriber.
type Notifier interface {
	Notify(ctx context.Context, sub model.Subscriber, instances []model.FitableInstance) error
}

var (
	_ model.Registry        = &Service{}
	_ model.MetricsProvider = &Service{}
)

type Service struct {
	repo       registry_records.Repository
	subs       *subscriptions
	checks     *checkContext
	notifier   Notifier
	pool       *pool.Pool
	gcInterval time.Duration
	offline    OfflinePredicate
	clock      model.Clock
	logger     zerolog.Logger
	metrics    *metrics
}

func New(
	repo registry_records.Repository,
	notifier Notifier,
	workers *pool.Pool,
	gcInterval time.Duration,
	offline OfflinePredicate,
	clock model.Clock,
	logger zerolog.Logger,
) *Service {
	svc := Service{
		repo:       repo,
		subs:       newSubscriptions(),
		notifier:   notifier,
		pool:       workers,
		gcInterval: gcInterval,
		offline:    offline,
		clock:      clock,
		logger:     logger,
	}
	svc.checks = newCheckContext(func() []Strategy {
		return []Strategy{
			&applicationStrategy{repo: svc.repo},
			&applicationInstanceStrategy{repo: svc.repo},
		}
	})
	svc.metrics = newMetrics(&svc)
	return &svc
}

func (svc *Service) Metrics() []prometheus.Collector {
	return append(svc.metrics.list(), svc.repo.Metrics()...)
}

// Start collects subscriptions of offline listeners every gc interval.
func (svc *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(svc.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("running context: %w", ctx.Err())
		case <-ticker.C:
			svc.CollectGarbage()
		}
	}
}

// CollectGarbage runs one collector cycle and returns the purged listeners.
func (svc *Service) CollectGarbage() []string {
	ids := svc.subs.collect(svc.clock.Now(), svc.offline)
	if len(ids) > 0 {
		svc.metrics.collectedListenersCnt.Add(float64(len(ids)))
		svc.logger.Info().Strs("listeners", ids).Msg("offline listeners collected")
	}
	return ids
}

func (svc *Service) RegisterFitableMetas(_ context.Context, metas []model.FitableMeta) error {
	if err := svc.repo.SaveFitableMetas(metas...); err != nil {
		return fmt.Errorf("saving fitable metas: %w", err)
	}

	svc.logger.Debug().Int("count", len(metas)).Msg("fitable metas registered")
	svc.notify(lo.Map(metas, func(m model.FitableMeta, _ int) model.Fitable { return m.Fitable }))
	return nil
}

func (svc *Service) UnregisterFitableMetas(_ context.Context, app model.Application, fitables []model.Fitable) error {
	removed := svc.repo.RemoveFitableMetas(app, fitables...)

	svc.logger.Debug().Str("application", app.String()).Int("count", len(removed)).Msg("fitable metas unregistered")
	svc.notify(lo.Map(removed, func(m model.FitableMeta, _ int) model.Fitable { return m.Fitable }))
	return nil
}

func (svc *Service) QueryFitableMetas(_ context.Context, genericIDs []string) ([]model.FitableMeta, error) {
	return svc.repo.FitableMetasOf(genericIDs...), nil
}

func (svc *Service) RegisterApplicationInstances(_ context.Context, instances []model.ApplicationInstance) error {
	if err := svc.repo.SaveApplicationInstances(instances...); err != nil {
		return fmt.Errorf("saving application instances: %w", err)
	}

	changed := []model.Fitable{}
	for _, inst := range instances {
		changed = append(changed, svc.fitablesOf(inst.Application)...)
	}
	svc.notify(changed)
	return nil
}

func (svc *Service) UnregisterApplicationInstances(_ context.Context, app model.Application, workerIDs []string) error {
	if err := svc.repo.RemoveWorkers(app, workerIDs...); err != nil {
		return fmt.Errorf("removing workers of %s: %w", app, err)
	}

	svc.notify(svc.fitablesOf(app))
	return nil
}

func (svc *Service) SubscribeApplicationInstances(
	ctx context.Context,
	fitables []model.Fitable,
	sub model.Subscriber,
) ([]model.FitableInstance, error) {
	if sub.ListenerID == "" {
		return nil, model.NewError(model.CodeParameter, "empty listener id")
	}

	svc.subs.add(svc.clock.Now(), fitables, sub)
	return svc.QueryApplicationInstances(ctx, fitables)
}

func (svc *Service) UnsubscribeApplicationInstances(_ context.Context, fitables []model.Fitable, listenerID string) error {
	if listenerID == "" {
		return model.NewError(model.CodeParameter, "empty listener id")
	}

	svc.subs.remove(fitables, listenerID)
	return nil
}

func (svc *Service) QueryApplicationInstances(_ context.Context, fitables []model.Fitable) ([]model.FitableInstance, error) {
	res := make([]model.FitableInstance, 0, len(fitables))
	for _, f := range fitables {
		res = append(res, svc.instanceOf(f))
	}
	return res, nil
}

func (svc *Service) Check(_ context.Context, elements []model.CheckElement) ([]model.CheckResult, error) {
	results := svc.checks.check(elements)
	for _, r := range results {
		svc.metrics.checksCnt.WithLabelValues(r.Element.Type, r.Code.String()).Inc()
	}
	return results, nil
}

// instanceOf joins the metas of f with the instances of their applications.
func (svc *Service) instanceOf(f model.Fitable) model.FitableInstance {
	metas := svc.repo.FitableMetasOfFitable(f)

	fi := model.FitableInstance{
		Fitable:              f,
		ApplicationInstances: []model.ApplicationInstance{},
	}
	for idx, meta := range metas {
		if idx == 0 {
			fi.Aliases = meta.Aliases
			fi.Tags = meta.Tags
			fi.Extensions = meta.Extensions
		}
		inst, found := svc.repo.ApplicationInstance(meta.Application)
		if !found || len(inst.Workers) == 0 {
			continue
		}
		if len(inst.Formats) == 0 {
			inst.Formats = meta.Formats
		}
		fi.ApplicationInstances = append(fi.ApplicationInstances, inst)
	}
	return fi
}

func (svc *Service) fitablesOf(app model.Application) []model.Fitable {
	return lo.Map(svc.repo.FitableMetasOfApplication(app), func(m model.FitableMeta, _ int) model.Fitable {
		return m.Fitable
	})
}

// notify sends the current instances of changed fitables to their
// subscribers, one pool task per subscriber.
func (svc *Service) notify(changed []model.Fitable) {
	changed = lo.Uniq(changed)
	if svc.notifier == nil || len(changed) == 0 {
		return
	}

	perListener := map[string][]model.FitableInstance{}
	subscribers := map[string]model.Subscriber{}
	for _, f := range changed {
		subs := svc.subs.subscribers(f)
		if len(subs) == 0 {
			continue
		}
		fi := svc.instanceOf(f)
		for _, sub := range subs {
			perListener[sub.ListenerID] = append(perListener[sub.ListenerID], fi)
			subscribers[sub.ListenerID] = sub
		}
	}

	ids := lo.Keys(perListener)
	slices.Sort(ids)
	for _, id := range ids {
		sub, instances := subscribers[id], perListener[id]
		err := svc.pool.Submit(func() {
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()

			if err := svc.notifier.Notify(ctx, sub, instances); err != nil {
				svc.metrics.notifyCnt.WithLabelValues("error").Inc()
				svc.subs.markDying(sub.ListenerID)
				svc.logger.
					Error().
					Err(fmt.Errorf("notifying listener %s: %w", sub.ListenerID, err)).
					Send()
				return
			}
			svc.metrics.notifyCnt.WithLabelValues("ok").Inc()
		})
		if err != nil {
			svc.logger.
				Error().
				Err(fmt.Errorf("submitting notification: %w", err)).
				Send()
		}
	}
}
