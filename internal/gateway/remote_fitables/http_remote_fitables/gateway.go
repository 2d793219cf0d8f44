package http_remote_fitables

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/horockey/fit/internal/gateway/remote_fitables"
	"github.com/horockey/fit/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// ContentType of fit envelopes on HTTP.
const ContentType = "application/x-fit-envelope"

var _ remote_fitables.Gateway = &httpRemoteFitables{}

type httpRemoteFitables struct {
	cl      *resty.Client
	metrics *metrics
	logger  zerolog.Logger
}

func New(timeout time.Duration, logger zerolog.Logger) *httpRemoteFitables {
	return &httpRemoteFitables{
		metrics: newMetrics(),
		logger:  logger,
		cl: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", ContentType).
			SetRetryCount(0),
	}
}

func (gw *httpRemoteFitables) Metrics() []prometheus.Collector {
	return gw.metrics.list()
}

func (gw *httpRemoteFitables) Invoke(
	ctx context.Context,
	target model.Target,
	req []byte,
) (res []byte, resErr error) {
	gw.logger.
		Debug().
		Str("generic_id", target.Fitable.GenericID).
		Str("fitable_id", target.Fitable.FitableID).
		Str("address", target.HostPort()).
		Msg("invoking remote fitable")
	defer func(ts time.Time) {
		gw.metrics.requestsCnt.WithLabelValues(target.HostPort()).Inc()
		gw.metrics.handleTimeHist.Observe(float64(time.Since(ts)))

		switch resErr {
		case nil:
			gw.metrics.successProcessCnt.Inc()
		default:
			gw.metrics.errProcessCnt.WithLabelValues(model.CodeOf(resErr).String()).Inc()
		}
	}(time.Now())

	var scheme string
	switch target.Protocol {
	case model.ProtocolHTTP:
		scheme = "http"
	case model.ProtocolHTTPS:
		scheme = "https"
	default:
		return nil, model.NewError(model.CodeTransport, "protocol %s is not supported by http gateway", target.Protocol)
	}

	resp, err := gw.cl.R().
		SetContext(ctx).
		SetPathParam("scheme", scheme).
		SetPathParam("hostname", target.Host).
		SetPathParam("port", strconv.Itoa(target.Port)).
		SetPathParam("genericId", target.Fitable.GenericID).
		SetPathParam("fitableId", target.Fitable.FitableID).
		SetBody(req).
		Post("{scheme}://{hostname}:{port}/fit/{genericId}/{fitableId}")
	if err != nil {
		return nil, model.NewError(model.CodeTransport, "executing request: %s", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, model.NewError(model.CodeTransport, "got non-ok response (%s): %s", resp.Status(), resp.String())
	}

	return resp.Body(), nil
}
