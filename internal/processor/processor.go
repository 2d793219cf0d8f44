// Package processor serves inbound fit envelopes with local fitables.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/horockey/fit/internal/formatter"
	"github.com/horockey/fit/internal/message"
	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/repository/local_fitables"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Authorizer decides whether an access token may call a fitable.
type Authorizer interface {
	IsAuthorized(ctx context.Context, token string, permission model.Permission) error
}

var _ model.MetricsProvider = &Processor{}

type Processor struct {
	local      local_fitables.Repository
	formatters *formatter.Repository
	auth       Authorizer
	public     map[string]struct{}
	Logger     zerolog.Logger
	metrics    *metrics
}

// New builds a processor. A nil auth disables token checks. Generics listed
// in public are served without a token.
func New(
	local local_fitables.Repository,
	formatters *formatter.Repository,
	auth Authorizer,
	public []string,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		local:      local,
		formatters: formatters,
		auth:       auth,
		public:     lo.SliceToMap(public, func(id string) (string, struct{}) { return id, struct{}{} }),
		Logger:     logger,
		metrics:    newMetrics(),
	}
}

func (pr *Processor) Metrics() []prometheus.Collector {
	return pr.metrics.list()
}

// Handle serves one request envelope and always returns a response envelope.
// Failures travel as the response code.
func (pr *Processor) Handle(ctx context.Context, req []byte) []byte {
	defer func(ts time.Time) {
		pr.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	h, body, err := message.Parse(req)
	if err != nil {
		pr.Logger.
			Error().
			Err(fmt.Errorf("parsing request envelope: %w", err)).
			Send()
		return pr.respond(message.Header{Format: model.FormatJSON}, nil, nil, err)
	}

	f, out, err := pr.dispatch(ctx, h, body)
	if err != nil {
		pr.Logger.
			Debug().
			Err(err).
			Str("generic_id", h.GenericID).
			Str("fitable_id", h.FitableID).
			Msg("request failed")
	}
	return pr.respond(h, f, out, err)
}

func (pr *Processor) dispatch(
	ctx context.Context,
	h message.Header,
	body []byte,
) (formatter.Formatter, model.Arguments, error) {
	if h.Kind != message.KindRequest {
		return nil, nil, model.NewError(model.CodeParameter, "envelope is not a request")
	}

	if err := pr.authorize(ctx, h); err != nil {
		return nil, nil, err
	}

	f, err := pr.formatters.Get(h.GenericID, h.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("getting formatter: %w", err)
	}

	args, err := f.DeserializeRequest(ctx, body)
	if err != nil {
		return f, nil, fmt.Errorf("deserializing request: %w", err)
	}

	detail, err := pr.resolve(h)
	if err != nil {
		return f, nil, err
	}

	gc, err := h.GlobalContext()
	if err != nil {
		return f, nil, fmt.Errorf("decoding global context: %w", err)
	}
	if len(gc) > 0 {
		ctx = message.WithGlobalContext(ctx, gc)
	}

	pr.metrics.callsCnt.WithLabelValues(h.GenericID).Inc()
	out, err := detail.Call(ctx, args)
	return f, out, err
}

func (pr *Processor) authorize(ctx context.Context, h message.Header) error {
	if pr.auth == nil {
		return nil
	}
	if _, found := pr.public[h.GenericID]; found {
		return nil
	}
	if h.AccessToken == "" {
		return model.NewError(model.CodeAuthentication, "missing access token")
	}

	return pr.auth.IsAuthorized(ctx, h.AccessToken, model.Permission{Fitable: model.Fitable{
		GenericID:      h.GenericID,
		GenericVersion: h.GenericVersion,
		FitableID:      h.FitableID,
	}})
}

// resolve picks the first enabled implementation matching the header.
func (pr *Processor) resolve(h message.Header) (*model.FitableDetail, error) {
	for _, d := range pr.local.GetByGenericID(h.GenericID) {
		if d.FitableID != h.FitableID {
			continue
		}
		if h.GenericVersion != "" && d.GenericVersion != h.GenericVersion {
			continue
		}
		return d, nil
	}
	return nil, model.NewError(model.CodeNotFound, "fitable %s of generic %s is not served here", h.FitableID, h.GenericID)
}

func (pr *Processor) respond(req message.Header, f formatter.Formatter, out model.Arguments, callErr error) []byte {
	if callErr != nil {
		pr.metrics.errProcessCnt.WithLabelValues(model.CodeOf(callErr).String()).Inc()
	} else {
		pr.metrics.successProcessCnt.Inc()
	}

	h := message.NewResponseHeader(req, callErr)

	body := []byte{}
	if f != nil {
		resp := formatter.Response{Code: model.CodeOf(callErr), Args: out}
		if callErr != nil {
			resp.Msg = callErr.Error()
			resp.Args = nil
		}

		encoded, err := f.SerializeResponse(context.Background(), resp)
		if err != nil {
			pr.Logger.
				Error().
				Err(fmt.Errorf("serializing response: %w", err)).
				Send()
			h = message.NewResponseHeader(req, model.NewError(model.CodeInternal, "serializing response: %s", err))
		} else {
			body = encoded
		}
	}

	buf, err := message.Build(h, body)
	if err != nil {
		pr.Logger.
			Error().
			Err(fmt.Errorf("building response envelope: %w", err)).
			Send()
		buf, _ = message.Build(message.NewResponseHeader(req, model.NewError(model.CodeInternal, "building response")), nil)
	}
	return buf
}
