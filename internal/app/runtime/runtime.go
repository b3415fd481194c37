package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bsrBridge/internal/app"
	"bsrBridge/internal/app/events"
	"bsrBridge/internal/domain"
	"bsrBridge/internal/infrastructure/config"
	sqlitestorage "bsrBridge/internal/infrastructure/persistence/sqlite"
	twitchinfra "bsrBridge/internal/infrastructure/platform/twitch"
	"bsrBridge/internal/infrastructure/socket"
	ws "bsrBridge/internal/interface/api/ws"
	credentialsusecase "bsrBridge/internal/usecase/credentials"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	// Config se carga del entorno cuando es nil.
	Config *config.Config
	Logger *slog.Logger
}

// Runtime arma el bridge completo: store, loop, transporte, validador, API y feed.
type Runtime struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Config
	log     *slog.Logger
	store   *sqlitestorage.CredentialStore
	loop    *app.Loop
	bridge  *app.Bridge
	bus     *events.Bus
	server  *ws.Server
	wg      sync.WaitGroup
	started bool

	// settings solo se toca dentro del loop.
	settings *settingsCache
}

// settingsCache es la foto en memoria de lo persistido; el bridge la lee al conectar.
type settingsCache struct {
	target domain.ConnectionConfig
	creds  domain.RelayCredentials
}

func (s *settingsCache) ConnectionConfig() domain.ConnectionConfig { return s.target }
func (s *settingsCache) Credentials() domain.RelayCredentials      { return s.creds }

func Start(ctx context.Context, opts Options) (*Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	store, err := sqlitestorage.NewCredentialStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	settings, relayEnabled, err := loadSettings(ctx, store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	runtimeCtx, cancel := context.WithCancel(ctx)
	bus := events.NewBus()
	loop := app.NewLoop()

	run := &Runtime{
		ctx:      runtimeCtx,
		cancel:   cancel,
		cfg:      cfg,
		log:      logger.With(slog.String("component", "runtime")),
		store:    store,
		loop:     loop,
		bus:      bus,
		settings: settings,
	}

	transport := socket.NewTransport(loop, socket.Config{DialTimeout: cfg.DialTimeout, Logger: logger})
	identity := twitchinfra.NewIdentityService(twitchinfra.IdentityServiceConfig{
		ClientID:   cfg.TwitchClientID,
		APIBaseURL: cfg.HelixBaseURL,
		Timeout:    cfg.ValidationTimeout,
	})
	validator := credentialsusecase.NewValidator(identity, logger)
	reporter := newBusReporter(bus, logger)

	run.bridge = app.NewBridge(loop, transport, validator, settings, reporter, reporter, app.BridgeConfig{
		RelayURL:           cfg.RelayURL,
		ValidationTimeout:  cfg.ValidationTimeout,
		SplitDelay:         cfg.RelaySplitDelay,
		SourceReconnect:    cfg.SourceReconnectDelay,
		RelayAutoReconnect: cfg.RelayAutoReconnect,
		Logger:             logger,
	})

	run.server = ws.NewServer(ws.Config{
		Addr:       cfg.HTTPAddr,
		Controller: run,
		Logger:     logger,
	})

	run.wg.Add(1)
	go func() {
		defer run.wg.Done()
		loop.Run(runtimeCtx)
	}()

	forwardDone := run.server.Forward(runtimeCtx, bus)
	run.wg.Add(2)
	go func() {
		defer run.wg.Done()
		<-forwardDone
	}()
	go func() {
		defer run.wg.Done()
		if err := run.server.Start(runtimeCtx); err != nil {
			run.log.Error("http server error", slog.Any("err", err))
		}
	}()

	startRelay := relayEnabled && settings.creds.Complete()
	loop.Post(func() { run.bridge.Start(startRelay) })

	run.started = true
	run.log.Info("bridge started",
		slog.String("source", settings.target.URL()),
		slog.Bool("relay", startRelay),
		slog.String("http", cfg.HTTPAddr))
	return run, nil
}

// loadSettings mezcla lo guardado con los valores por defecto de la configuración.
func loadSettings(ctx context.Context, store *sqlitestorage.CredentialStore, cfg *config.Config) (*settingsCache, bool, error) {
	stored, err := store.GetSourceTarget(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load source target: %w", err)
	}
	creds, err := store.GetCredentials(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load credentials: %w", err)
	}
	enabled, ok, err := store.GetRelayEnabled(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load relay toggle: %w", err)
	}
	if !ok {
		enabled = cfg.RelayAutoConnect
	}

	return &settingsCache{
		target: mergeTarget(stored, cfg),
		creds:  creds,
	}, enabled, nil
}

func mergeTarget(stored domain.ConnectionConfig, cfg *config.Config) domain.ConnectionConfig {
	out := stored
	if out.Address == "" {
		out.Address = cfg.SourceAddress
	}
	if out.Port == "" {
		out.Port = cfg.SourcePort
	}
	if out.Path == "" {
		out.Path = cfg.SourcePath
	}
	return out
}

// Stop cierra el bridge dentro del loop y después todo lo demás.
func (r *Runtime) Stop() error {
	if r == nil || !r.started {
		return nil
	}
	r.started = false

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.do(ctx, r.bridge.Shutdown); err != nil {
		r.log.Warn("bridge shutdown", slog.Any("err", err))
	}

	r.cancel()
	r.wg.Wait()
	r.bus.Close()
	return r.store.Close()
}

func (r *Runtime) Bus() *events.Bus {
	if r == nil {
		return nil
	}
	return r.bus
}

func (r *Runtime) Config() *config.Config {
	if r == nil {
		return nil
	}
	return r.cfg
}

// ---------- ws.Controller ----------

func (r *Runtime) Status(ctx context.Context) (app.Status, error) {
	return app.Call(ctx, r.loop, r.bridge.Status)
}

func (r *Runtime) Credentials(ctx context.Context) (domain.RelayCredentials, error) {
	return app.Call(ctx, r.loop, r.settings.Credentials)
}

func (r *Runtime) SaveCredentials(ctx context.Context, creds domain.RelayCredentials) error {
	if err := r.store.SaveCredentials(ctx, creds); err != nil {
		return err
	}
	return r.do(ctx, func() {
		r.settings.creds = creds
		r.bridge.CredentialsSaved()
	})
}

func (r *Runtime) ConnectRelay(ctx context.Context) error {
	if err := r.store.SetRelayEnabled(ctx, true); err != nil {
		return err
	}
	return r.do(ctx, r.bridge.ConnectRelay)
}

func (r *Runtime) DisconnectRelay(ctx context.Context) error {
	if err := r.store.SetRelayEnabled(ctx, false); err != nil {
		return err
	}
	return r.do(ctx, r.bridge.DisconnectRelay)
}

func (r *Runtime) EditRelay(ctx context.Context) error {
	return r.do(ctx, r.bridge.EditRelay)
}

func (r *Runtime) SourceTarget(ctx context.Context) (domain.ConnectionConfig, error) {
	return app.Call(ctx, r.loop, r.settings.ConnectionConfig)
}

func (r *Runtime) SaveSourceTarget(ctx context.Context, cfg domain.ConnectionConfig, connect bool) error {
	if err := r.store.SaveSourceTarget(ctx, cfg); err != nil {
		return err
	}
	return r.do(ctx, func() {
		r.settings.target = mergeTarget(cfg, r.cfg)
		if connect {
			r.bridge.ConnectSource(r.settings.target)
		}
	})
}

func (r *Runtime) do(ctx context.Context, fn func()) error {
	_, err := app.Call(ctx, r.loop, func() struct{} {
		fn()
		return struct{}{}
	})
	return err
}

var _ ws.Controller = (*Runtime)(nil)
