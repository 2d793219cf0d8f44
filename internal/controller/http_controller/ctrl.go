package http_controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/horockey/fit/internal/processor"
	"github.com/horockey/go-toolbox/http_helpers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MaxEnvelopeSize bounds accepted request bodies.
const MaxEnvelopeSize = 16 << 20

type HttpController struct {
	serv    *http.Server
	proc    *processor.Processor
	logger  zerolog.Logger
	metrics *metrics
}

// New builds a controller listening on addr. A non-nil gatherer is served
// on /metrics.
func New(
	addr string,
	gatherer prometheus.Gatherer,
	logger zerolog.Logger,
) *HttpController {
	ctrl := HttpController{
		serv: &http.Server{
			Addr: addr,
			Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotImplemented)
			}),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:  logger,
		metrics: newMetrics(),
	}

	router := mux.NewRouter()
	if ctrl.serv.Handler != nil {
		router.NotFoundHandler = ctrl.serv.Handler
	}

	router.HandleFunc("/fit/{genericId}/{fitableId}", ctrl.postFitHandler).Methods(http.MethodPost)
	router.HandleFunc("/health", ctrl.getHealthHandler).Methods(http.MethodGet)
	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	ctrl.serv.Handler = router

	return &ctrl
}

func (ctrl *HttpController) Metrics() []prometheus.Collector {
	return ctrl.metrics.list()
}

// Handler exposes the router, mostly for tests.
func (ctrl *HttpController) Handler(pr *processor.Processor) http.Handler {
	ctrl.proc = pr
	return ctrl.serv.Handler
}

func (ctrl *HttpController) Start(ctx context.Context, pr *processor.Processor) (resErr error) {
	ctrl.proc = pr
	var wg sync.WaitGroup
	defer wg.Wait()

	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctrl.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
			resErr = errors.Join(resErr, fmt.Errorf("running context: %w", ctx.Err()))
		}

		sdCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := ctrl.serv.Shutdown(sdCtx); err != nil {
			resErr = errors.Join(resErr, fmt.Errorf("shutting down server: %w", err))
		}
		return resErr

	case err := <-errCh:
		return fmt.Errorf("running server: %w", err)
	}
}

func (ctrl *HttpController) postFitHandler(w http.ResponseWriter, req *http.Request) {
	defer func(ts time.Time) {
		ctrl.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	body, err := io.ReadAll(io.LimitReader(req.Body, MaxEnvelopeSize+1))
	if err != nil {
		ctrl.metrics.rejectedCnt.WithLabelValues("read").Inc()
		ctrl.logger.
			Error().
			Err(fmt.Errorf("reading request body: %w", err)).
			Send()
		_ = http_helpers.RespondWithErr(w, http.StatusBadRequest, err)
		return
	}
	if len(body) > MaxEnvelopeSize {
		ctrl.metrics.rejectedCnt.WithLabelValues("too_large").Inc()
		_ = http_helpers.RespondWithErr(w, http.StatusRequestEntityTooLarge, errors.New("envelope too large"))
		return
	}

	vars := mux.Vars(req)
	ctrl.metrics.callsCnt.WithLabelValues(vars["genericId"]).Inc()
	ctrl.metrics.envelopeSizeHist.WithLabelValues("in").Observe(float64(len(body)))
	ctrl.logger.
		Debug().
		Str("generic_id", vars["genericId"]).
		Str("fitable_id", vars["fitableId"]).
		Int("size", len(body)).
		Msg("inbound call")

	resp := ctrl.proc.Handle(req.Context(), body)
	ctrl.metrics.envelopeSizeHist.WithLabelValues("out").Observe(float64(len(resp)))

	// Failures travel inside the envelope, transport level status stays ok.
	w.Header().Set("Content-Type", req.Header.Get("Content-Type"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp); err != nil {
		ctrl.metrics.writeErrCnt.Inc()
		ctrl.logger.
			Error().
			Err(fmt.Errorf("writing response: %w", err)).
			Send()
	}
}

func (ctrl *HttpController) getHealthHandler(w http.ResponseWriter, _ *http.Request) {
	_ = http_helpers.RespondOK(w, map[string]string{"status": "ok"})
}
