package registry_server_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/horockey/fit/internal/formatter"
	"github.com/horockey/fit/internal/formatter/json_formatter"
	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/pool"
	"github.com/horockey/fit/internal/registry_protocol"
	"github.com/horockey/fit/internal/registry_server"
	"github.com/horockey/fit/internal/repository/registry_records/inmemory_registry_records"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	appA    = model.Application{Name: "A", Version: "v1"}
	fitable = model.Fitable{GenericID: "g", GenericVersion: "1.0.0", FitableID: "f1", FitableVersion: "1"}
	worker  = model.WorkerDetail{
		ID:          "w1",
		Environment: "prod",
		Endpoints:   []model.EndpointDetail{{Host: "10.0.0.1", Port: 8080, Protocol: model.ProtocolHTTP}},
	}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type notification struct {
	sub       model.Subscriber
	instances []model.FitableInstance
}

type fakeNotifier struct {
	mu   sync.Mutex
	got  []notification
	fail bool
}

func (n *fakeNotifier) Notify(_ context.Context, sub model.Subscriber, instances []model.FitableInstance) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("listener down")
	}
	n.got = append(n.got, notification{sub: sub, instances: instances})
	return nil
}

func (n *fakeNotifier) notifications() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification{}, n.got...)
}

func newService(t *testing.T, notifier registry_server.Notifier, clock model.Clock) (*registry_server.Service, *pool.Pool) {
	t.Helper()
	workers := pool.New("notify", 1, zerolog.Nop())
	svc := registry_server.New(
		inmemory_registry_records.New(),
		notifier,
		workers,
		time.Hour,
		registry_server.HeartbeatPredicate(time.Minute),
		clock,
		zerolog.Nop(),
	)
	return svc, workers
}

func registerApp(t *testing.T, reg model.Registry) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, reg.RegisterFitableMetas(ctx, []model.FitableMeta{{
		Fitable:     fitable,
		Aliases:     []string{"fast"},
		Formats:     []model.Format{model.FormatJSON},
		Application: appA,
	}}))
	require.NoError(t, reg.RegisterApplicationInstances(ctx, []model.ApplicationInstance{{
		Application: appA,
		Workers:     []model.WorkerDetail{worker},
	}}))
}

func Test_Service_Check(t *testing.T) {
	svc, workers := newService(t, nil, model.SystemClock)
	defer workers.Shutdown()
	registerApp(t, svc)

	results, err := svc.Check(context.Background(), []model.CheckElement{
		{Type: model.CheckTypeApplication, Kvs: map[string]string{"v1": "A"}},
		{Type: model.CheckTypeApplication, Kvs: map[string]string{"v1": "unknown_app"}},
		{Type: model.CheckTypeApplication},
		{Type: model.CheckTypeApplicationInstance, Kvs: map[string]string{
			model.CheckKeyApplicationName:    "A",
			model.CheckKeyApplicationVersion: "v1",
			model.CheckKeyWorkerID:           "w1",
		}},
		{Type: model.CheckTypeApplicationInstance, Kvs: map[string]string{
			model.CheckKeyApplicationName:    "A",
			model.CheckKeyApplicationVersion: "v1",
			model.CheckKeyWorkerID:           "gone",
		}},
		{Type: "unsupported"},
	})
	require.NoError(t, err)

	codes := []model.Code{}
	for _, r := range results {
		codes = append(codes, r.Code)
	}
	assert.Equal(t, []model.Code{
		model.CodeOK,
		model.CodeNotExist,
		model.CodeParameter,
		model.CodeOK,
		model.CodeNotExist,
		model.CodeNotFound,
	}, codes)
}

func Test_Service_CheckApplicationOfMetas(t *testing.T) {
	svc, workers := newService(t, nil, model.SystemClock)
	defer workers.Shutdown()

	ctx := context.Background()
	require.NoError(t, svc.RegisterFitableMetas(ctx, []model.FitableMeta{{Fitable: fitable, Application: appA}}))

	results, err := svc.Check(ctx, []model.CheckElement{
		{Type: model.CheckTypeApplication, Kvs: map[string]string{"v1": "A"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.CodeOK, results[0].Code)

	instances, err := svc.QueryApplicationInstances(ctx, []model.Fitable{fitable})
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Empty(t, instances[0].ApplicationInstances)
}

func Test_Service_QueryApplicationInstances(t *testing.T) {
	svc, workers := newService(t, nil, model.SystemClock)
	defer workers.Shutdown()
	registerApp(t, svc)

	metas, err := svc.QueryFitableMetas(context.Background(), []string{"g"})
	require.NoError(t, err)
	require.Len(t, metas, 1)

	instances, err := svc.QueryApplicationInstances(context.Background(), []model.Fitable{fitable})
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, []string{"fast"}, instances[0].Aliases)
	require.Len(t, instances[0].ApplicationInstances, 1)
	assert.Equal(t, []model.Format{model.FormatJSON}, instances[0].ApplicationInstances[0].Formats)
	assert.Equal(t, "w1", instances[0].ApplicationInstances[0].Workers[0].ID)

	require.NoError(t, svc.UnregisterApplicationInstances(context.Background(), appA, []string{"w1"}))
	instances, err = svc.QueryApplicationInstances(context.Background(), []model.Fitable{fitable})
	require.NoError(t, err)
	assert.Empty(t, instances[0].ApplicationInstances)

	require.NoError(t, svc.UnregisterFitableMetas(context.Background(), appA, nil))
	metas, err = svc.QueryFitableMetas(context.Background(), []string{"g"})
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func Test_Service_NotifiesSubscribers(t *testing.T) {
	notifier := &fakeNotifier{}
	svc, workers := newService(t, notifier, model.SystemClock)

	sub := model.Subscriber{ListenerID: "l1", Address: model.Address{Host: "10.0.0.2", Port: 9000}}
	instances, err := svc.SubscribeApplicationInstances(context.Background(), []model.Fitable{fitable}, sub)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Empty(t, instances[0].ApplicationInstances)

	registerApp(t, svc)
	workers.Shutdown()

	got := notifier.notifications()
	require.Len(t, got, 2)
	assert.Equal(t, "l1", got[1].sub.ListenerID)
	require.Len(t, got[1].instances, 1)
	require.Len(t, got[1].instances[0].ApplicationInstances, 1)
}

func Test_Service_CollectGarbage(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	notifier := &fakeNotifier{}
	svc, workers := newService(t, notifier, clock)
	defer workers.Shutdown()

	ctx := context.Background()
	_, err := svc.SubscribeApplicationInstances(ctx, []model.Fitable{fitable}, model.Subscriber{ListenerID: "old"})
	require.NoError(t, err)

	clock.advance(45 * time.Second)
	_, err = svc.SubscribeApplicationInstances(ctx, []model.Fitable{fitable}, model.Subscriber{ListenerID: "fresh"})
	require.NoError(t, err)

	assert.Empty(t, svc.CollectGarbage())

	clock.advance(30 * time.Second)
	assert.Equal(t, []string{"old"}, svc.CollectGarbage())
	assert.Empty(t, svc.CollectGarbage())
}

func Test_Service_FailedNotifyMarksDying(t *testing.T) {
	notifier := &fakeNotifier{fail: true}
	svc, workers := newService(t, notifier, model.SystemClock)

	_, err := svc.SubscribeApplicationInstances(context.Background(), []model.Fitable{fitable}, model.Subscriber{ListenerID: "l1"})
	require.NoError(t, err)

	registerApp(t, svc)
	workers.Shutdown()

	assert.Equal(t, []string{"l1"}, svc.CollectGarbage())
}

func Test_Service_Unsubscribe(t *testing.T) {
	notifier := &fakeNotifier{}
	svc, workers := newService(t, notifier, model.SystemClock)

	ctx := context.Background()
	_, err := svc.SubscribeApplicationInstances(ctx, []model.Fitable{fitable}, model.Subscriber{ListenerID: "l1"})
	require.NoError(t, err)
	require.NoError(t, svc.UnsubscribeApplicationInstances(ctx, []model.Fitable{fitable}, "l1"))

	registerApp(t, svc)
	workers.Shutdown()

	assert.Empty(t, notifier.notifications())
	assert.ErrorIs(t, svc.UnsubscribeApplicationInstances(ctx, nil, ""), model.ErrParameter)
	_, err = svc.SubscribeApplicationInstances(ctx, nil, model.Subscriber{})
	assert.ErrorIs(t, err, model.ErrParameter)
}

// jsonCaller serves the registry fitables behind a JSON round trip.
func jsonCaller(t *testing.T, reg model.Registry) registry_protocol.Caller {
	t.Helper()

	formatters := formatter.NewRepository(json_formatter.New())
	require.NoError(t, formatters.Register(registry_protocol.Metas()...))

	details := map[string]*model.FitableDetail{}
	for _, d := range registry_protocol.Fitables(reg) {
		details[d.GenericID] = d
	}

	return registry_protocol.CallerFunc(func(ctx context.Context, genericID string, in model.Arguments) (model.Arguments, error) {
		f, err := formatters.Get(genericID, model.FormatJSON)
		if err != nil {
			return nil, err
		}

		body, err := f.SerializeRequest(ctx, in)
		if err != nil {
			return nil, err
		}
		decodedIn, err := f.DeserializeRequest(ctx, body)
		if err != nil {
			return nil, err
		}

		out, callErr := details[genericID].Call(ctx, decodedIn)
		resp := formatter.Response{Code: model.CodeOf(callErr), Args: out}
		if callErr != nil {
			resp.Msg = callErr.Error()
		}

		respBody, err := f.SerializeResponse(ctx, resp)
		if err != nil {
			return nil, err
		}
		decoded, err := f.DeserializeResponse(ctx, respBody)
		if err != nil {
			return nil, err
		}
		return decoded.Args, decoded.Err()
	})
}

func Test_Service_ServedAsFitables(t *testing.T) {
	svc, workers := newService(t, nil, model.SystemClock)
	defer workers.Shutdown()

	client := registry_protocol.NewClient(jsonCaller(t, svc))
	registerApp(t, client)

	ctx := context.Background()
	metas, err := client.QueryFitableMetas(ctx, []string{"g"})
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, fitable, metas[0].Fitable)
	assert.Equal(t, appA, metas[0].Application)

	instances, err := client.SubscribeApplicationInstances(ctx, []model.Fitable{fitable}, model.Subscriber{ListenerID: "l1"})
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, worker, instances[0].ApplicationInstances[0].Workers[0])

	results, err := client.Check(ctx, []model.CheckElement{
		{Type: model.CheckTypeApplication, Kvs: map[string]string{"v1": "unknown_app"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.CodeNotExist, results[0].Code)

	require.NoError(t, client.UnsubscribeApplicationInstances(ctx, []model.Fitable{fitable}, "l1"))

	err = client.UnsubscribeApplicationInstances(ctx, nil, "")
	assert.ErrorIs(t, err, model.ErrParameter)

	err = client.UnregisterApplicationInstances(ctx, model.Application{Name: "missing"}, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
