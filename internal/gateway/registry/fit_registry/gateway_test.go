package fit_registry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/horockey/fit/internal/formatter"
	"github.com/horockey/fit/internal/formatter/json_formatter"
	"github.com/horockey/fit/internal/gateway/registry/fit_registry"
	"github.com/horockey/fit/internal/invoker"
	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/pool"
	"github.com/horockey/fit/internal/processor"
	"github.com/horockey/fit/internal/registry_protocol"
	"github.com/horockey/fit/internal/registry_server"
	"github.com/horockey/fit/internal/repository/local_fitables/inmemory_local_fitables"
	"github.com/horockey/fit/internal/repository/registry_records/inmemory_registry_records"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	app     = model.Application{Name: "billing", Version: "v1"}
	fitable = model.Fitable{GenericID: "g", GenericVersion: "1.0.0", FitableID: "f1", FitableVersion: "1"}
	down    = model.Address{Host: "10.0.0.1", Port: 1, Protocol: model.ProtocolHTTP}
	server  = model.Address{Host: "10.0.0.2", Port: 2, Protocol: model.ProtocolHTTP}
	client  = model.Address{Host: "10.0.0.3", Port: 3, Protocol: model.ProtocolHTTP}
)

// network routes envelopes to processors by port.
type network struct {
	mu    sync.Mutex
	nodes map[int]*processor.Processor
}

func (n *network) Metrics() []prometheus.Collector {
	return nil
}

func (n *network) Invoke(ctx context.Context, target model.Target, req []byte) ([]byte, error) {
	n.mu.Lock()
	node, found := n.nodes[target.Port]
	n.mu.Unlock()
	if !found {
		return nil, model.NewError(model.CodeTransport, "no route to %s", target.HostPort())
	}
	return node.Handle(ctx, req), nil
}

func (n *network) attach(port int, pr *processor.Processor) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nodes[port] = pr
}

func formatters(t *testing.T) *formatter.Repository {
	t.Helper()
	repo := formatter.NewRepository(json_formatter.New())
	require.NoError(t, repo.Register(registry_protocol.Metas()...))
	return repo
}

func node(t *testing.T, details ...*model.FitableDetail) *processor.Processor {
	t.Helper()
	local := inmemory_local_fitables.New()
	require.NoError(t, local.Register(details...))
	return processor.New(local, formatters(t), nil, nil, zerolog.Nop())
}

type setup struct {
	gw       model.Registry
	notified chan []model.FitableInstance
}

func newSetup(t *testing.T) setup {
	t.Helper()

	net := &network{nodes: map[int]*processor.Processor{}}
	remote := invoker.NewRemote(net, formatters(t), nil)
	gw := fit_registry.New(remote, []model.Address{down, server}, zerolog.Nop())

	workers := pool.New("notify", 1, zerolog.Nop())
	t.Cleanup(workers.Shutdown)
	svc := registry_server.New(
		inmemory_registry_records.New(),
		gw,
		workers,
		time.Hour,
		registry_server.HeartbeatPredicate(time.Minute),
		model.SystemClock,
		zerolog.Nop(),
	)
	net.attach(server.Port, node(t, registry_protocol.Fitables(svc)...))

	notified := make(chan []model.FitableInstance, 4)
	net.attach(client.Port, node(t, registry_protocol.NotifyDetail(
		func(_ context.Context, instances []model.FitableInstance) error {
			notified <- instances
			return nil
		},
	)))

	return setup{gw: gw, notified: notified}
}

func Test_Gateway_RoundTripWithFailover(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()

	require.NoError(t, s.gw.RegisterFitableMetas(ctx, []model.FitableMeta{{
		Fitable:     fitable,
		Aliases:     []string{"fast"},
		Formats:     []model.Format{model.FormatJSON},
		Application: app,
	}}))

	metas, err := s.gw.QueryFitableMetas(ctx, []string{"g"})
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, fitable, metas[0].Fitable)
	assert.Equal(t, []string{"fast"}, metas[0].Aliases)

	results, err := s.gw.Check(ctx, []model.CheckElement{
		{Type: model.CheckTypeApplication, Kvs: map[string]string{"v1": "billing"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.CodeOK, results[0].Code)
}

func Test_Gateway_NotifiesSubscriber(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()

	require.NoError(t, s.gw.RegisterFitableMetas(ctx, []model.FitableMeta{{Fitable: fitable, Application: app}}))

	instances, err := s.gw.SubscribeApplicationInstances(ctx, []model.Fitable{fitable}, model.Subscriber{
		ListenerID: "l1",
		Address:    client,
	})
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Empty(t, instances[0].ApplicationInstances)

	require.NoError(t, s.gw.RegisterApplicationInstances(ctx, []model.ApplicationInstance{{
		Application: app,
		Workers: []model.WorkerDetail{{
			ID:        "w1",
			Endpoints: []model.EndpointDetail{{Host: "10.0.0.9", Port: 8080, Protocol: model.ProtocolHTTP}},
		}},
	}}))

	select {
	case got := <-s.notified:
		require.Len(t, got, 1)
		assert.Equal(t, fitable, got[0].Fitable)
		require.Len(t, got[0].ApplicationInstances, 1)
		assert.Equal(t, "w1", got[0].ApplicationInstances[0].Workers[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("listener was not notified")
	}
}

func Test_Gateway_AllServersDown(t *testing.T) {
	net := &network{nodes: map[int]*processor.Processor{}}
	gw := fit_registry.New(invoker.NewRemote(net, formatters(t), nil), []model.Address{down}, zerolog.Nop())

	_, err := gw.QueryFitableMetas(context.Background(), []string{"g"})
	assert.ErrorIs(t, err, model.ErrTransport)
	assert.Len(t, gw.Metrics(), 3)

	empty := fit_registry.New(invoker.NewRemote(net, formatters(t), nil), nil, zerolog.Nop())
	_, err = empty.QueryFitableMetas(context.Background(), []string{"g"})
	assert.ErrorIs(t, err, model.ErrInternal)
}
