package invoker_test

import (
	"context"
	"sync"
	"testing"

	"github.com/horockey/fit/internal/formatter"
	"github.com/horockey/fit/internal/formatter/json_formatter"
	"github.com/horockey/fit/internal/formatter/proto_formatter"
	"github.com/horockey/fit/internal/invoker"
	"github.com/horockey/fit/internal/message"
	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/processor"
	"github.com/horockey/fit/internal/repository/local_fitables/inmemory_local_fitables"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var signature = model.Signature{
	In:  []model.Kind{model.KindString},
	Out: []model.Kind{model.KindString},
}

func echo(prefix string) model.FitableFunc {
	return func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
		s, _ := in[0].AsString()
		if user := message.GlobalContextFrom(ctx)["user"]; user != "" {
			s += "@" + user
		}
		return model.Arguments{model.String(prefix + s)}, nil
	}
}

func detail(fitableID string, fn model.FitableFunc, aliases ...string) *model.FitableDetail {
	return &model.FitableDetail{
		Fitable:   model.Fitable{GenericID: "G", GenericVersion: "1.0.0", FitableID: fitableID, FitableVersion: "1"},
		Type:      model.FitableTypeMain,
		Signature: signature,
		Aliases:   aliases,
		Func:      fn,
	}
}

type callbacks struct {
	mu    sync.Mutex
	infos []model.CallBackInfo
}

func (c *callbacks) cb(info model.CallBackInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.infos = append(c.infos, info)
}

type fakeDiscovery struct {
	targets []model.Target
	marked  []model.Target
}

func (d *fakeDiscovery) GetFitableAddresses(context.Context, string) ([]model.Target, error) {
	return d.targets, nil
}

func (d *fakeDiscovery) MarkUnavailable(t model.Target) {
	d.marked = append(d.marked, t)
}

// loopGateway hands envelopes to per port processors.
type loopGateway struct {
	servers map[int]*processor.Processor
	err     error
}

func (gw *loopGateway) Metrics() []prometheus.Collector {
	return nil
}

func (gw *loopGateway) Invoke(ctx context.Context, target model.Target, req []byte) ([]byte, error) {
	if gw.err != nil {
		return nil, gw.err
	}
	srv, found := gw.servers[target.Port]
	if !found {
		return nil, model.NewError(model.CodeTransport, "connection refused")
	}
	return srv.Handle(ctx, req), nil
}

func formatters(t *testing.T) *formatter.Repository {
	t.Helper()
	repo := formatter.NewRepository(json_formatter.New(), proto_formatter.New())
	require.NoError(t, repo.Register(formatter.Meta{GenericID: "G", Signature: signature}))
	return repo
}

func server(t *testing.T, details ...*model.FitableDetail) *processor.Processor {
	t.Helper()
	local := inmemory_local_fitables.New()
	require.NoError(t, local.Register(details...))
	return processor.New(local, formatters(t), nil, nil, zerolog.Nop())
}

func target(fitableID string, port int, formats ...model.Format) model.Target {
	return model.Target{
		Fitable: model.Fitable{GenericID: "G", GenericVersion: "1.0.0", FitableID: fitableID, FitableVersion: "1"},
		Address: model.Address{
			Host:     "127.0.0.1",
			Port:     port,
			WorkerID: "w",
			Protocol: model.ProtocolHTTP,
			Formats:  formats,
		},
	}
}

func Test_Exec_LocalDispatch(t *testing.T) {
	local := inmemory_local_fitables.New()
	require.NoError(t, local.Register(detail("F1", echo("F1:"))))

	cbs := callbacks{}
	inv := invoker.New("G", invoker.NewResolver(local, nil), nil, zerolog.Nop())

	out, err := inv.Exec(context.Background(), model.Arguments{model.String("hi")}, cbs.cb)
	require.NoError(t, err)
	assert.Equal(t, model.Arguments{model.String("F1:hi")}, out)

	require.Len(t, cbs.infos, 1)
	assert.Equal(t, model.CodeOK, cbs.infos[0].Code)
	assert.Equal(t, "F1", cbs.infos[0].FitableID)
	assert.True(t, cbs.infos[0].Local)
}

func Test_Exec_LocalRoute(t *testing.T) {
	local := inmemory_local_fitables.New()
	require.NoError(t, local.Register(
		detail("F1", echo("F1:")),
		detail("F2", echo("F2:"), "beta"),
	))

	inv := invoker.New("G", invoker.NewResolver(local, nil), nil, zerolog.Nop()).
		Route(invoker.ByAlias("beta"))

	out, err := inv.Exec(context.Background(), model.Arguments{model.String("x")}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.Arguments{model.String("F2:x")}, out)
}

func Test_Exec_FilterRejectsEverything(t *testing.T) {
	local := inmemory_local_fitables.New()
	require.NoError(t, local.Register(detail("F1", echo(""))))

	cbs := callbacks{}
	inv := invoker.New("G", invoker.NewResolver(local, nil), nil, zerolog.Nop()).
		Route(invoker.ByFitableID("F9"))

	_, err := inv.Exec(context.Background(), model.Arguments{model.String("x")}, cbs.cb)
	assert.ErrorIs(t, err, model.ErrNotFound)
	require.Len(t, cbs.infos, 1)
	assert.Equal(t, model.CodeNotFound, cbs.infos[0].Code)
}

func Test_Exec_BadArguments(t *testing.T) {
	local := inmemory_local_fitables.New()
	require.NoError(t, local.Register(detail("F1", echo(""))))

	cbs := callbacks{}
	inv := invoker.New("G", invoker.NewResolver(local, nil), nil, zerolog.Nop())

	_, err := inv.Exec(context.Background(), model.Arguments{model.Int(1)}, cbs.cb)
	assert.ErrorIs(t, err, model.ErrParameter)
	require.Len(t, cbs.infos, 1)
	assert.Equal(t, model.CodeParameter, cbs.infos[0].Code)
}

func Test_Exec_Remote(t *testing.T) {
	gw := &loopGateway{servers: map[int]*processor.Processor{
		8080: server(t, detail("F1", echo("remote:"))),
	}}
	disc := &fakeDiscovery{targets: []model.Target{target("F1", 8080, model.FormatProtobuf)}}

	cbs := callbacks{}
	inv := invoker.New(
		"G",
		invoker.NewResolver(inmemory_local_fitables.New(), disc),
		invoker.NewRemote(gw, formatters(t), nil),
		zerolog.Nop(),
	)

	ctx := message.WithGlobalContext(context.Background(), map[string]string{"user": "bob"})
	out, err := inv.Exec(ctx, model.Arguments{model.String("hi")}, cbs.cb)
	require.NoError(t, err)
	assert.Equal(t, model.Arguments{model.String("remote:hi@bob")}, out)

	require.Len(t, cbs.infos, 1)
	info := cbs.infos[0]
	assert.Equal(t, model.CodeOK, info.Code)
	assert.False(t, info.Local)
	assert.Equal(t, "127.0.0.1", info.Host)
	assert.Equal(t, 8080, info.Port)
	assert.Equal(t, "w", info.WorkerID)
}

func Test_Exec_RemoteError(t *testing.T) {
	failing := func(context.Context, model.Arguments) (model.Arguments, error) {
		return nil, model.NewError(model.CodeAuthorization, "nope")
	}
	gw := &loopGateway{servers: map[int]*processor.Processor{8080: server(t, detail("F1", failing))}}
	disc := &fakeDiscovery{targets: []model.Target{target("F1", 8080)}}

	inv := invoker.New(
		"G",
		invoker.NewResolver(inmemory_local_fitables.New(), disc),
		invoker.NewRemote(gw, formatters(t), nil),
		zerolog.Nop(),
	)

	_, err := inv.Exec(context.Background(), model.Arguments{model.String("hi")}, nil)
	assert.ErrorIs(t, err, model.ErrAuthorization)
	assert.Empty(t, disc.marked)
}

func Test_Exec_TransportFailureMarksUnavailable(t *testing.T) {
	gw := &loopGateway{servers: map[int]*processor.Processor{}}
	disc := &fakeDiscovery{targets: []model.Target{target("F1", 8080)}}

	cbs := callbacks{}
	inv := invoker.New(
		"G",
		invoker.NewResolver(inmemory_local_fitables.New(), disc),
		invoker.NewRemote(gw, formatters(t), nil),
		zerolog.Nop(),
	)

	_, err := inv.Exec(context.Background(), model.Arguments{model.String("hi")}, cbs.cb)
	assert.ErrorIs(t, err, model.ErrTransport)
	require.Len(t, disc.marked, 1)
	assert.Equal(t, 8080, disc.marked[0].Port)
	require.Len(t, cbs.infos, 1)
	assert.Equal(t, model.CodeTransport, cbs.infos[0].Code)
}

func Test_Exec_RoundRobinAndLBFilters(t *testing.T) {
	gw := &loopGateway{servers: map[int]*processor.Processor{
		8080: server(t, detail("F1", echo("a:"))),
		8081: server(t, detail("F1", echo("b:"))),
		8082: server(t, detail("F1", echo("c:"))),
	}}
	disc := &fakeDiscovery{targets: []model.Target{
		target("F1", 8080),
		target("F1", 8081),
		target("F1", 8082),
	}}

	inv := invoker.New(
		"G",
		invoker.NewResolver(inmemory_local_fitables.New(), disc),
		invoker.NewRemote(gw, formatters(t), nil),
		zerolog.Nop(),
	).Get(invoker.ExcludeHostPort("127.0.0.1", 8081)).Get(invoker.ByProtocol(model.ProtocolHTTP))

	got := []string{}
	for range 4 {
		out, err := inv.Exec(context.Background(), model.Arguments{model.String("")}, nil)
		require.NoError(t, err)
		s, _ := out[0].AsString()
		got = append(got, s)
	}
	assert.Equal(t, []string{"a:", "c:", "a:", "c:"}, got)
}

func Test_Exec_EmptyGeneric(t *testing.T) {
	cbs := callbacks{}
	inv := invoker.New("", invoker.NewResolver(inmemory_local_fitables.New(), nil), nil, zerolog.Nop())

	_, err := inv.Exec(context.Background(), nil, cbs.cb)
	assert.ErrorIs(t, err, model.ErrParameter)
	assert.Len(t, cbs.infos, 1)
}

func failing(code model.Code) model.FitableFunc {
	return func(context.Context, model.Arguments) (model.Arguments, error) {
		return nil, model.NewError(code, "main is down")
	}
}

func Test_Exec_DegradedFallback(t *testing.T) {
	degraded := detail("D1", echo("degraded:"), "backup")
	degraded.Type = model.FitableTypeDegraded

	local := inmemory_local_fitables.New()
	require.NoError(t, local.Register(detail("F1", failing(model.CodeInternal)), degraded))

	cbs := callbacks{}
	inv := invoker.New("G", invoker.NewResolver(local, nil), nil, zerolog.Nop())

	out, err := inv.Exec(context.Background(), model.Arguments{model.String("x")}, cbs.cb)
	require.NoError(t, err)
	assert.Equal(t, model.Arguments{model.String("degraded:x")}, out)

	require.Len(t, cbs.infos, 1)
	assert.Equal(t, model.CodeOK, cbs.infos[0].Code)
	assert.Equal(t, "D1", cbs.infos[0].FitableID)
	assert.Equal(t, []string{"backup"}, cbs.infos[0].Aliases)
	assert.True(t, cbs.infos[0].Local)
}

func Test_Exec_DegradedSkippedOnParameterError(t *testing.T) {
	degraded := detail("D1", echo("degraded:"))
	degraded.Type = model.FitableTypeDegraded

	local := inmemory_local_fitables.New()
	require.NoError(t, local.Register(detail("F1", failing(model.CodeParameter)), degraded))

	cbs := callbacks{}
	inv := invoker.New("G", invoker.NewResolver(local, nil), nil, zerolog.Nop())

	_, err := inv.Exec(context.Background(), model.Arguments{model.String("x")}, cbs.cb)
	assert.ErrorIs(t, err, model.ErrParameter)
	require.Len(t, cbs.infos, 1)
	assert.Equal(t, "F1", cbs.infos[0].FitableID)
}

func Test_Exec_DegradedIsNotMain(t *testing.T) {
	degraded := detail("D1", echo("degraded:"))
	degraded.Type = model.FitableTypeDegraded

	local := inmemory_local_fitables.New()
	require.NoError(t, local.Register(degraded))

	inv := invoker.New("G", invoker.NewResolver(local, nil), nil, zerolog.Nop())

	// no main anywhere: resolution fails with not found, then the fallback serves
	out, err := inv.Exec(context.Background(), model.Arguments{model.String("x")}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.Arguments{model.String("degraded:x")}, out)
	assert.Empty(t, invoker.NewResolver(local, nil).Local("G", nil))
}
