// Package fit is a worker of the FIT distributed invocation runtime. A
// worker serves local fitables over HTTP, registers them with the registry,
// discovers remote fitables and invokes generics wherever they are served.
package fit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/horockey/fit/internal/config"
	"github.com/horockey/fit/internal/controller/http_controller"
	"github.com/horockey/fit/internal/formatter"
	"github.com/horockey/fit/internal/formatter/json_formatter"
	"github.com/horockey/fit/internal/formatter/proto_formatter"
	"github.com/horockey/fit/internal/gateway/registry/fit_registry"
	"github.com/horockey/fit/internal/gateway/remote_fitables"
	"github.com/horockey/fit/internal/gateway/remote_fitables/http_remote_fitables"
	"github.com/horockey/fit/internal/invoker"
	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/pool"
	"github.com/horockey/fit/internal/processor"
	"github.com/horockey/fit/internal/registrar"
	"github.com/horockey/fit/internal/registry_listener"
	"github.com/horockey/fit/internal/registry_protocol"
	"github.com/horockey/fit/internal/registry_server"
	"github.com/horockey/fit/internal/repository/auth_grants/inmemory_auth_grants"
	"github.com/horockey/fit/internal/repository/auth_tokens"
	"github.com/horockey/fit/internal/repository/auth_tokens/badger_auth_tokens"
	"github.com/horockey/fit/internal/repository/auth_tokens/composite_auth_tokens"
	"github.com/horockey/fit/internal/repository/auth_tokens/inmemory_auth_tokens"
	"github.com/horockey/fit/internal/repository/local_fitables"
	"github.com/horockey/fit/internal/repository/local_fitables/inmemory_local_fitables"
	"github.com/horockey/fit/internal/repository/registry_records/inmemory_registry_records"
	"github.com/horockey/fit/internal/secure_access"
	"github.com/horockey/go-toolbox/options"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type Worker struct {
	cfg     config.Config
	logger  zerolog.Logger
	clock   model.Clock
	formats []model.Format

	local      local_fitables.Repository
	formatters *formatter.Repository
	gateway    remote_fitables.Gateway
	remote     *invoker.Remote
	resolver   *invoker.Resolver
	proc       *processor.Processor
	ctrl       Controller
	listener   *registry_listener.Listener
	registrar  *registrar.Registrar
	metricsReg *prometheus.Registry

	registry     model.MetricsProvider
	server       *registry_server.Service
	notifyPool   *pool.Pool
	authority    *secure_access.Service
	tokenStore   auth_tokens.Repository
	tokenSource  *secure_access.TokenSource
	db           *badger.DB
	internalGens []string
}

type createWorkerParams struct {
	logger     zerolog.Logger
	clock      model.Clock
	local      local_fitables.Repository
	gateway    remote_fitables.Gateway
	controller Controller
}

func defaultCreateWorkerParams(cfg config.Config) createWorkerParams {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return createWorkerParams{
		clock: model.SystemClock,
		logger: zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).Level(level).With().
			Timestamp().
			Str("scope", "fit_worker").
			Str("worker_id", cfg.Worker.ID).
			Logger(),
	}
}

func NewWorker(cfg config.Config, opts ...options.Option[createWorkerParams]) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	params := defaultCreateWorkerParams(cfg)
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	w := Worker{
		cfg:        cfg,
		logger:     params.logger,
		clock:      params.clock,
		local:      params.local,
		gateway:    params.gateway,
		ctrl:       params.controller,
		metricsReg: prometheus.NewRegistry(),
	}

	for _, f := range cfg.Worker.Formats {
		format, _ := config.ParseFormat(f)
		w.formats = append(w.formats, format)
	}

	if w.local == nil {
		w.local = inmemory_local_fitables.New()
	}
	if w.gateway == nil {
		w.gateway = http_remote_fitables.New(
			cfg.Worker.CallTimeout,
			w.scoped("remote_fitables"),
		)
	}

	w.formatters = formatter.NewRepository(json_formatter.New(), proto_formatter.New())
	if err := w.formatters.Register(slices.Concat(registry_protocol.Metas(), secure_access.Metas())...); err != nil {
		return nil, fmt.Errorf("registering protocol formatters: %w", err)
	}
	plain := invoker.NewRemote(w.gateway, w.formatters, nil)

	registry, err := w.buildRegistry(plain)
	if err != nil {
		return nil, err
	}

	auth, err := w.buildSecurity(plain)
	if err != nil {
		return nil, err
	}
	w.remote = plain
	if w.tokenSource != nil {
		w.remote = invoker.NewRemote(w.gateway, w.formatters, w.tokenSource)
	}

	self := w.address()
	w.listener = registry_listener.New(registry, registry_listener.Config{
		SyncInterval:          cfg.Registry.SyncInterval,
		HeartbeatInterval:     cfg.Registry.HeartbeatInterval,
		UnavailableExpiration: cfg.Registry.UnavailableExpiration,
		Subscriber:            model.Subscriber{ListenerID: cfg.Worker.ID, Address: self},
	}, w.scoped("registry_listener"))
	if err := w.local.Register(registry_protocol.NotifyDetail(
		func(_ context.Context, instances []model.FitableInstance) error {
			w.listener.Notify(instances)
			return nil
		},
	)); err != nil {
		return nil, fmt.Errorf("registering notify fitable: %w", err)
	}

	w.internalGens = slices.Concat(model.RegistryGenericIDs, secure_access.GenericIDs)
	w.resolver = invoker.NewResolver(w.local, w.listener)
	w.registrar = registrar.New(registry, workerSource{w: &w}, cfg.Registry.CheckInterval, w.scoped("registrar"))

	w.proc = processor.New(w.local, w.formatters, auth, w.internalGens, w.scoped("processor"))

	if w.ctrl == nil {
		w.ctrl = http_controller.New(
			":"+strconv.Itoa(cfg.Worker.Port),
			w.metricsReg,
			w.scoped("http_controller"),
		)
	}

	for _, c := range w.Metrics() {
		if err := w.metricsReg.Register(c); err != nil {
			w.logger.
				Warn().
				Err(fmt.Errorf("registering collector: %w", err)).
				Send()
		}
	}

	return &w, nil
}

func (w *Worker) scoped(scope string) zerolog.Logger {
	return w.logger.With().Str("subscope", scope).Logger()
}

// buildRegistry hosts the registry in process or connects to remote servers.
func (w *Worker) buildRegistry(plain *invoker.Remote) (model.Registry, error) {
	addrs, err := parseAddresses(w.cfg.Registry.Hosts, w.cfg.Registry.Protocol)
	if err != nil {
		return nil, fmt.Errorf("parsing registry hosts: %w", err)
	}
	gw := fit_registry.New(plain, addrs, w.scoped("registry_gateway"))

	if !w.cfg.Registry.Server {
		w.registry = gw
		return gw, nil
	}

	w.notifyPool = pool.New("registry_notify", w.cfg.Registry.NotifyWorkers, w.scoped("notify_pool"))
	w.server = registry_server.New(
		inmemory_registry_records.New(),
		gw,
		w.notifyPool,
		w.cfg.Registry.GCInterval,
		registry_server.HeartbeatPredicate(w.cfg.Registry.ListenerTTL),
		w.clock,
		w.scoped("registry_server"),
	)
	w.registry = gw
	if err := w.local.Register(registry_protocol.Fitables(w.server)...); err != nil {
		return nil, fmt.Errorf("registering registry fitables: %w", err)
	}
	return w.server, nil
}

// buildSecurity returns the authorizer of inbound calls, nil when security
// is disabled.
func (w *Worker) buildSecurity(plain *invoker.Remote) (processor.Authorizer, error) {
	sec := w.cfg.Security
	if !sec.Enabled {
		return nil, nil
	}

	var (
		authorizer processor.Authorizer
		issuer     secure_access.Issuer
	)

	if sec.Authority {
		svc, err := w.buildAuthority()
		if err != nil {
			return nil, err
		}
		authorizer, issuer = svc, svc
	} else {
		hosts := sec.AuthorityHosts
		if len(hosts) == 0 {
			hosts = w.cfg.Registry.Hosts
		}
		addrs, err := parseAddresses(hosts, w.cfg.Registry.Protocol)
		if err != nil {
			return nil, fmt.Errorf("parsing authority hosts: %w", err)
		}
		client := secure_access.NewClient(failoverCaller{
			remote:  plain,
			addrs:   addrs,
			fitable: secure_access.AuthorityFitable,
		})
		authorizer, issuer = client, client
	}

	if sec.AK != "" {
		w.tokenSource = secure_access.NewTokenSource(issuer, sec.AK, []byte(sec.SK), w.clock)
	}
	return authorizer, nil
}

func (w *Worker) buildAuthority() (*secure_access.Service, error) {
	sec := w.cfg.Security

	w.tokenStore = inmemory_auth_tokens.New()
	if sec.DataDir != "" {
		db, err := badger.Open(badger.DefaultOptions(sec.DataDir))
		if err != nil {
			return nil, fmt.Errorf("opening token db: %w", err)
		}
		w.db = db
		w.tokenStore = composite_auth_tokens.New(
			badger_auth_tokens.New(db),
			inmemory_auth_tokens.New(),
			w.scoped("auth_tokens"),
		)
	}

	svc := secure_access.New(
		secure_access.Config{
			AccessTokenTTL:      sec.AccessTokenTTL,
			RefreshTokenTTL:     sec.RefreshTokenTTL,
			RotateRefreshBefore: sec.RotateRefreshBefore,
			MaxClockSkew:        sec.MaxClockSkew,
			EvictInterval:       sec.EvictInterval,
		},
		inmemory_auth_grants.New(),
		w.tokenStore,
		secure_access.NewSealer(sec.Passphrase),
		w.clock,
		w.scoped("secure_access"),
	)

	for _, k := range sec.Keys {
		if err := svc.AddKey(k.AK, []byte(k.SK), k.Role); err != nil {
			return nil, fmt.Errorf("adding key %s: %w", k.AK, err)
		}
	}
	for _, r := range sec.Roles {
		perms := lo.Map(r.Permissions, func(p config.Permission, _ int) model.Permission { return p.Model() })
		if err := svc.AddRole(r.Name, perms...); err != nil {
			return nil, fmt.Errorf("adding role %s: %w", r.Name, err)
		}
	}

	if err := w.local.Register(secure_access.Fitables(svc)...); err != nil {
		return nil, fmt.Errorf("registering secure access fitables: %w", err)
	}
	w.authority = svc
	return svc, nil
}

func (w *Worker) address() model.Address {
	protocol, _ := config.ParseProtocol(w.cfg.Worker.Protocol)
	return model.Address{
		Host:        w.cfg.Worker.Host,
		Port:        w.cfg.Worker.Port,
		WorkerID:    w.cfg.Worker.ID,
		Protocol:    protocol,
		Formats:     w.formats,
		Environment: w.cfg.Worker.Environment,
	}
}

// Start runs every component until ctx is done or one of them fails.
func (w *Worker) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	run := func(name string, start func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.
					Error().
					Err(fmt.Errorf("running %s: %w", name, err)).
					Send()
				cancel()
			}
		}()
	}

	run("http controller", func(ctx context.Context) error { return w.ctrl.Start(ctx, w.proc) })
	if w.server != nil {
		run("registry server", w.server.Start)
	}
	if w.authority != nil {
		run("secure access", w.authority.Start)
	}
	run("registry listener", w.listener.Start)
	run("registrar", w.registrar.Start)

	<-runCtx.Done()
	wg.Wait()

	var resErr error
	if w.notifyPool != nil {
		w.notifyPool.Shutdown()
	}
	if w.db != nil {
		if err := w.db.Close(); err != nil {
			resErr = fmt.Errorf("closing token db: %w", err)
		}
	}
	return errors.Join(fmt.Errorf("running context: %w", runCtx.Err()), resErr)
}

func (w *Worker) Metrics() []prometheus.Collector {
	res := slices.Concat(
		w.ctrl.Metrics(),
		w.proc.Metrics(),
		w.local.Metrics(),
		w.gateway.Metrics(),
		w.listener.Metrics(),
		w.registrar.Metrics(),
		w.registry.Metrics(),
	)
	if w.server != nil {
		res = slices.Concat(res, w.server.Metrics(), w.notifyPool.Metrics())
	}
	if w.authority != nil {
		res = slices.Concat(res, w.authority.Metrics(), w.tokenStore.Metrics())
	}
	return res
}

// Register serves details from this worker. Generics without a formatter
// meta get one derived from the signature.
func (w *Worker) Register(details ...*model.FitableDetail) error {
	for _, d := range details {
		if _, err := w.formatters.Meta(d.GenericID); err == nil {
			continue
		}
		if err := w.formatters.Register(formatter.Meta{GenericID: d.GenericID, Signature: d.Signature}); err != nil {
			return fmt.Errorf("registering formatter of %s: %w", d.GenericID, err)
		}
	}
	if err := w.local.Register(details...); err != nil {
		return fmt.Errorf("registering fitables: %w", err)
	}
	return nil
}

// RegisterGeneric declares the calling convention of a generic, including
// object factories.
func (w *Worker) RegisterGeneric(metas ...formatter.Meta) error {
	return w.formatters.Register(metas...)
}

// Publish registers the current fitables with the registry right away
// instead of waiting for the next check.
func (w *Worker) Publish(ctx context.Context) error {
	return w.registrar.Register(ctx)
}

// Invoker builds an invoker of genericID.
func (w *Worker) Invoker(genericID string) *invoker.MultiplexInvoker {
	return invoker.New(genericID, w.resolver, w.remote, w.scoped("invoker"))
}

// Gatherer exposes the worker metrics registry.
func (w *Worker) Gatherer() prometheus.Gatherer {
	return w.metricsReg
}

// workerSource reports the served fitables to the registrar.
type workerSource struct {
	w *Worker
}

func (src workerSource) Instance() model.ApplicationInstance {
	addr := src.w.address()
	return model.ApplicationInstance{
		Application: src.application(),
		Formats:     src.w.formats,
		Workers: []model.WorkerDetail{{
			ID:          src.w.cfg.Worker.ID,
			Environment: src.w.cfg.Worker.Environment,
			Endpoints:   []model.EndpointDetail{{Host: addr.Host, Port: addr.Port, Protocol: addr.Protocol}},
		}},
	}
}

func (src workerSource) FitableMetas() []model.FitableMeta {
	app := src.application()
	details := lo.Filter(src.w.local.GetAll(), func(d *model.FitableDetail, _ int) bool {
		return !slices.Contains(src.w.internalGens, d.GenericID)
	})
	return lo.Map(details, func(d *model.FitableDetail, _ int) model.FitableMeta {
		return model.FitableMeta{
			Fitable:     d.Fitable,
			Aliases:     d.Aliases,
			Tags:        d.Tags,
			Environment: src.w.cfg.Worker.Environment,
			Formats:     src.w.formats,
			Application: app,
		}
	})
}

func (src workerSource) application() model.Application {
	return model.Application{
		Name:       src.w.cfg.Application.Name,
		Version:    src.w.cfg.Application.Version,
		Extensions: src.w.cfg.Application.Extensions,
	}
}

// failoverCaller calls generics on the first reachable address.
type failoverCaller struct {
	remote  *invoker.Remote
	addrs   []model.Address
	fitable func(genericID string) model.Fitable
}

func (fc failoverCaller) Call(ctx context.Context, genericID string, in model.Arguments) (model.Arguments, error) {
	var errs error
	for _, addr := range fc.addrs {
		out, err := fc.remote.Call(ctx, model.Target{Fitable: fc.fitable(genericID), Address: addr}, in)
		if model.CodeOf(err) != model.CodeTransport {
			return out, err
		}
		errs = errors.Join(errs, err)
	}
	return nil, model.NewError(model.CodeTransport, "no reachable address of %d: %v", len(fc.addrs), errs)
}

func parseAddresses(hosts []string, protocol string) ([]model.Address, error) {
	p, err := config.ParseProtocol(protocol)
	if err != nil {
		return nil, err
	}

	res := make([]model.Address, 0, len(hosts))
	for _, hp := range hosts {
		host, port, err := net.SplitHostPort(hp)
		if err != nil {
			return nil, model.NewError(model.CodeParameter, "bad host %q: %s", hp, err)
		}
		n, err := strconv.Atoi(port)
		if err != nil {
			return nil, model.NewError(model.CodeParameter, "bad port in %q: %s", hp, err)
		}
		res = append(res, model.Address{Host: host, Port: n, Protocol: p})
	}
	return res, nil
}
