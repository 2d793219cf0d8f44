package http_controller_test

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/horockey/fit/internal/controller/http_controller"
	"github.com/horockey/fit/internal/formatter"
	"github.com/horockey/fit/internal/formatter/json_formatter"
	"github.com/horockey/fit/internal/gateway/remote_fitables/http_remote_fitables"
	"github.com/horockey/fit/internal/invoker"
	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/processor"
	"github.com/horockey/fit/internal/repository/local_fitables/inmemory_local_fitables"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upper = &model.FitableDetail{
	Fitable: model.Fitable{GenericID: "text.upper", GenericVersion: "1.0.0", FitableID: "default", FitableVersion: "1"},
	Signature: model.Signature{
		In:  []model.Kind{model.KindString},
		Out: []model.Kind{model.KindString},
	},
	Func: func(_ context.Context, in model.Arguments) (model.Arguments, error) {
		s, _ := in[0].AsString()
		return model.Arguments{model.String(strings.ToUpper(s))}, nil
	},
}

func formatters(t *testing.T) *formatter.Repository {
	t.Helper()
	repo := formatter.NewRepository(json_formatter.New())
	require.NoError(t, repo.Register(formatter.Meta{GenericID: upper.GenericID, Signature: upper.Signature}))
	return repo
}

func serve(t *testing.T, reg *prometheus.Registry) *httptest.Server {
	t.Helper()

	local := inmemory_local_fitables.New()
	require.NoError(t, local.Register(upper))
	pr := processor.New(local, formatters(t), nil, nil, zerolog.Nop())

	var gatherer prometheus.Gatherer
	if reg != nil {
		gatherer = reg
	}
	ctrl := http_controller.New("127.0.0.1:0", gatherer, zerolog.Nop())
	if reg != nil {
		reg.MustRegister(ctrl.Metrics()...)
	}

	srv := httptest.NewServer(ctrl.Handler(pr))
	t.Cleanup(srv.Close)
	return srv
}

func targetOf(t *testing.T, srv *httptest.Server) model.Target {
	t.Helper()

	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	return model.Target{
		Fitable: upper.Fitable,
		Address: model.Address{
			Host:     host,
			Port:     p,
			WorkerID: "w1",
			Protocol: model.ProtocolHTTP,
			Formats:  []model.Format{model.FormatJSON},
		},
	}
}

func Test_RemoteCallOverHTTP(t *testing.T) {
	srv := serve(t, nil)

	remote := invoker.NewRemote(http_remote_fitables.New(time.Second, zerolog.Nop()), formatters(t), nil)
	out, err := remote.Call(context.Background(), targetOf(t, srv), model.Arguments{model.String("hello")})
	require.NoError(t, err)
	assert.Equal(t, model.Arguments{model.String("HELLO")}, out)
}

func Test_RemoteCallUnknownFitable(t *testing.T) {
	srv := serve(t, nil)

	target := targetOf(t, srv)
	target.Fitable.FitableID = "missing"

	remote := invoker.NewRemote(http_remote_fitables.New(time.Second, zerolog.Nop()), formatters(t), nil)
	_, err := remote.Call(context.Background(), target, model.Arguments{model.String("hello")})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func Test_GatewayTransportErrors(t *testing.T) {
	srv := serve(t, nil)
	gw := http_remote_fitables.New(time.Second, zerolog.Nop())

	target := targetOf(t, srv)
	target.Protocol = model.ProtocolGRPC
	_, err := gw.Invoke(context.Background(), target, nil)
	assert.ErrorIs(t, err, model.ErrTransport)

	srv.Close()
	_, err = gw.Invoke(context.Background(), targetOf(t, srv), nil)
	assert.ErrorIs(t, err, model.ErrTransport)
}

func Test_GarbageEnvelopeStillAnswered(t *testing.T) {
	srv := serve(t, nil)

	resp, err := http.Post(srv.URL+"/fit/text.upper/default", http_remote_fitables.ContentType, bytes.NewReader([]byte("junk")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func Test_HealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := serve(t, reg)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/fit/text.upper/default")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}
