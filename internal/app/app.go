// Package app wires the radio sources, ledgers, auto-connect controller,
// exporters and servers into one runnable engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lcalzada-xor/wbs/internal/adapters/driver"
	"github.com/lcalzada-xor/wbs/internal/adapters/grpcapi"
	"github.com/lcalzada-xor/wbs/internal/adapters/netctl"
	"github.com/lcalzada-xor/wbs/internal/adapters/radio/ble"
	"github.com/lcalzada-xor/wbs/internal/adapters/radio/mock"
	"github.com/lcalzada-xor/wbs/internal/adapters/radio/monitor"
	"github.com/lcalzada-xor/wbs/internal/adapters/radio/nmcli"
	"github.com/lcalzada-xor/wbs/internal/adapters/reporting"
	"github.com/lcalzada-xor/wbs/internal/adapters/storage"
	"github.com/lcalzada-xor/wbs/internal/adapters/web"
	"github.com/lcalzada-xor/wbs/internal/config"
	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
	"github.com/lcalzada-xor/wbs/internal/core/services/autoconnect"
	"github.com/lcalzada-xor/wbs/internal/core/services/classify"
	"github.com/lcalzada-xor/wbs/internal/core/services/export"
	"github.com/lcalzada-xor/wbs/internal/core/services/persistence"
	"github.com/lcalzada-xor/wbs/internal/core/services/registry"
	"github.com/lcalzada-xor/wbs/internal/core/services/scheduler"
	"github.com/lcalzada-xor/wbs/internal/telemetry"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

// Version is reported in traces.
var Version = "dev"

const mockConnectSuccess = 0.7

// Application holds the core components of the engine.
// It acts as the facade for the entire system.
type Application struct {
	Config      *config.Config
	Tags        *registry.TagLedger
	Networks    *registry.NetworkLedger
	Scheduler   *scheduler.Scheduler
	Controller  *autoconnect.Controller
	Exporter    *export.Exporter
	Persistence *persistence.PersistenceManager
	WebServer   *web.Server
	GRPCServer  *grpcapi.Server

	store          *storage.SQLiteAdapter
	runner         driver.Runner
	clock          timeutil.Clock
	logger         *slog.Logger
	configPath     string
	traceOut       io.Writer
	shutdownTracer func(context.Context) error
	monitorIface   string
}

// Option configures an Application.
type Option func(*Application)

// WithConfigPath enables hot reload of the tunables from path.
func WithConfigPath(path string) Option {
	return func(a *Application) { a.configPath = path }
}

// WithRunner overrides the command runner used for iw, ip and nmcli.
func WithRunner(r driver.Runner) Option {
	return func(a *Application) { a.runner = r }
}

// WithClock overrides the clock shared by every component.
func WithClock(c timeutil.Clock) Option {
	return func(a *Application) { a.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Application) { a.logger = l }
}

// WithTraceOutput sets where spans are written when tracing is enabled.
func WithTraceOutput(w io.Writer) Option {
	return func(a *Application) { a.traceOut = w }
}

// New creates a new Application and bootstraps its components.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	app := &Application{
		Config:   cfg,
		runner:   driver.ExecRunner{},
		clock:    timeutil.RealClock{},
		logger:   slog.Default(),
		traceOut: os.Stderr,
	}
	for _, opt := range opts {
		opt(app)
	}

	if err := app.bootstrap(); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	cfg := app.Config

	// 1. Foundation
	telemetry.InitMetrics()
	if cfg.App.Trace {
		shutdown, err := telemetry.InitTracer(Version, app.traceOut)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		app.shutdownTracer = shutdown
	}

	// 2. Ledgers
	app.Tags = registry.NewTagLedger(
		registry.WithEstimator(cfg.BLE.Estimator),
		registry.WithWindow(cfg.BLE.Window),
		registry.WithTagClock(app.clock),
	)
	app.Networks = registry.NewNetworkLedger(
		registry.WithThresholds(cfg.WiFi.Thresholds),
		registry.WithNetworkClock(app.clock),
	)

	// 3. Snapshot sinks
	sinks, err := app.initSinks()
	if err != nil {
		return err
	}
	app.Exporter = export.NewExporter(app.Tags, app.Networks, app.clock, app.logger, sinks...)

	// 4. Radio sources and the scheduler
	schedOpts, err := app.initSources()
	if err != nil {
		return err
	}
	if cfg.AutoConnect.Enabled {
		app.Controller = autoconnect.NewController(app.Networks, app.connector(), autoconnect.Config{
			MinSignal:      cfg.AutoConnect.MinSignal,
			AttemptTimeout: cfg.AutoConnect.AttemptTimeout,
			BackoffBase:    cfg.AutoConnect.BackoffBase,
			BackoffCap:     cfg.AutoConnect.BackoffCap,
			HistorySize:    cfg.AutoConnect.HistorySize,
		}, autoconnect.WithClock(app.clock), autoconnect.WithLogger(app.logger))
		schedOpts = append(schedOpts, scheduler.WithController(app.Controller))
	}

	filter, err := classify.ParseTagFilter(cfg.BLE.Filter)
	if err != nil {
		return err
	}
	schedCfg := scheduler.Config{
		BLE:       scheduler.LoopConfig{Interval: cfg.BLE.Interval, Timeout: cfg.BLE.Timeout, SweepEvery: cfg.BLE.SweepEvery},
		WiFi:      scheduler.LoopConfig{Interval: cfg.WiFi.Interval, Timeout: cfg.WiFi.Timeout, SweepEvery: cfg.WiFi.SweepEvery},
		TagFilter: filter,
	}
	if cfg.AutoConnect.Enabled {
		schedCfg.AutoConnectInterval = cfg.AutoConnect.Interval
	}
	if len(sinks) > 0 {
		schedCfg.ExportInterval = cfg.Export.Interval
		schedCfg.ExportKinds = app.exportKinds()
	}

	schedOpts = append(schedOpts,
		scheduler.WithAttemptHook(app.broadcastAttempt),
		scheduler.WithExporter(app.Exporter),
		scheduler.WithClock(app.clock),
		scheduler.WithLogger(app.logger),
	)
	app.Scheduler = scheduler.New(schedCfg, app.Tags, app.Networks, schedOpts...)

	// 5. Servers
	app.initServers()
	return nil
}

func (app *Application) initSinks() ([]ports.SnapshotSink, error) {
	cfg := app.Config
	var sinks []ports.SnapshotSink

	if cfg.Export.Dir != "" {
		for _, format := range cfg.Export.Formats {
			if format == "pdf" {
				sinks = append(sinks, export.NewFileSinkWithEncoder(cfg.Export.Dir, "pdf", reporting.NewPDFExporter().WritePDF))
				continue
			}
			sink, err := export.NewFileSink(cfg.Export.Dir, format)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, sink)
		}
	}

	if cfg.Storage.Enabled {
		store, err := app.initStorage()
		if err != nil {
			return nil, err
		}
		app.store = store
		app.Persistence = persistence.NewPersistenceManager(store, cfg.Storage.BufferSize, app.logger)
		sinks = append(sinks, app.Persistence)
	}
	return sinks, nil
}

func (app *Application) initStorage() (*storage.SQLiteAdapter, error) {
	path := app.Config.Storage.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	var opts []storage.Option
	if app.Config.App.Trace {
		opts = append(opts, storage.WithTracing())
	}
	store, err := storage.NewSQLiteAdapter(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init snapshot storage: %w", err)
	}
	return store, nil
}

func (app *Application) initSources() ([]scheduler.Option, error) {
	cfg := app.Config
	var opts []scheduler.Option

	if cfg.App.Mock {
		scenario, ok := mock.Scenarios[cfg.App.Scenario]
		if !ok {
			return nil, fmt.Errorf("unknown mock scenario %q", cfg.App.Scenario)
		}
		gen := mock.NewGenerator(cfg.App.MockSeed, scenario)
		app.logger.Info("Mock mode active", "scenario", cfg.App.Scenario, "seed", cfg.App.MockSeed)
		if cfg.BLE.Enabled {
			opts = append(opts, scheduler.WithBLESource(mock.NewSource(domain.KindBLE, gen, app.clock)))
		}
		if cfg.WiFi.Enabled {
			opts = append(opts, scheduler.WithWiFiSource(mock.NewSource(domain.KindWiFi, gen, app.clock)))
		}
		return opts, nil
	}

	if cfg.BLE.Enabled {
		opts = append(opts, scheduler.WithBLESource(ble.New(
			ble.WithBufferSize(cfg.BLE.BufferSize),
			ble.WithClock(app.clock),
			ble.WithLogger(app.logger),
		)))
	}
	if cfg.WiFi.Enabled {
		src, err := app.wifiSource()
		if err != nil {
			return nil, err
		}
		opts = append(opts, scheduler.WithWiFiSource(src))
	}
	return opts, nil
}

func (app *Application) wifiSource() (ports.RadioSource, error) {
	cfg := app.Config.WiFi
	if cfg.Source == config.SourceNmcli {
		return nmcli.New(
			nmcli.WithRunner(app.runner),
			nmcli.WithRescanEvery(cfg.RescanEvery),
			nmcli.WithClock(app.clock),
			nmcli.WithLogger(app.logger),
		), nil
	}

	if cfg.ManageMode {
		app.logger.Info("Enabling monitor mode", "interface", cfg.Interface)
		if err := driver.EnableMonitorMode(context.Background(), app.runner, cfg.Interface); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrAdapterUnavailable, err)
		}
		app.monitorIface = cfg.Interface
	}

	opts := []monitor.Option{
		monitor.WithRunner(app.runner),
		monitor.WithClock(app.clock),
		monitor.WithLogger(app.logger),
	}
	if cfg.Dwell > 0 {
		opts = append(opts, monitor.WithHopping(cfg.Channels, cfg.Dwell))
	}
	return monitor.New(cfg.Interface, opts...), nil
}

func (app *Application) connector() ports.NetworkConnector {
	if app.Config.App.Mock {
		return mock.NewConnector(app.Config.App.MockSeed, mockConnectSuccess)
	}
	return netctl.NewConnector(app.runner, app.Config.AutoConnect.Interface, app.logger)
}

func (app *Application) exportKinds() []domain.SnapshotKind {
	var kinds []domain.SnapshotKind
	for _, k := range app.Config.Export.SnapshotKinds() {
		if (k == domain.SnapshotTags && !app.Config.BLE.Enabled) || (k == domain.SnapshotNetworks && !app.Config.WiFi.Enabled) {
			continue
		}
		kinds = append(kinds, k)
	}
	return kinds
}

func (app *Application) initServers() {
	cfg := app.Config

	if cfg.HTTP.Addr != "" {
		opts := []web.Option{
			web.WithTokenHash(cfg.HTTP.TokenHash),
			web.WithFormat("pdf", web.Format{ContentType: "application/pdf", Encode: reporting.NewPDFExporter().WritePDF}),
			web.WithClock(app.clock),
			web.WithLogger(app.logger),
		}
		if app.Controller != nil {
			opts = append(opts, web.WithController(app.Controller))
		}
		app.WebServer = web.NewServer(cfg.HTTP.Addr, app.Scheduler, app.Exporter, opts...)
	}

	if cfg.GRPC.Addr != "" {
		app.GRPCServer = grpcapi.NewServer(app.Exporter, app.Scheduler,
			grpcapi.WithClock(app.clock),
			grpcapi.WithLogger(app.logger),
		)
	}
}

func (app *Application) broadcastAttempt(a domain.ConnectionAttempt) {
	if app.WebServer != nil {
		app.WebServer.WS().BroadcastAttempt(a)
	}
}

// Reconfigure applies hot-reloadable settings to the running engine.
func (app *Application) Reconfigure(t config.Tunables) {
	app.Tags.Reconfigure(t.Estimator, t.Window)
	app.Networks.Reconfigure(t.Thresholds)
	if app.Controller != nil {
		app.Controller.SetMinSignal(t.MinSignal)
	}
	app.logger.Info("Tunables applied",
		"min_signal", t.MinSignal,
		"window", t.Window,
		"excellent", t.Thresholds.Excellent,
	)
}

// Run starts every component and blocks until ctx is done or one of them
// fails. A radio that cannot be opened is returned as an error wrapping
// domain.ErrAdapterUnavailable.
func (app *Application) Run(ctx context.Context) error {
	app.logger.Info("Starting WBS components...")
	defer app.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	if app.Persistence != nil {
		app.Persistence.Start(gctx)
	}

	g.Go(func() error {
		return app.Scheduler.Run(gctx)
	})

	if app.WebServer != nil {
		g.Go(func() error {
			if err := app.WebServer.Run(gctx); err != nil {
				return fmt.Errorf("web server error: %w", err)
			}
			return nil
		})
	}

	if app.GRPCServer != nil {
		g.Go(func() error {
			if err := app.GRPCServer.Run(gctx, app.Config.GRPC.Addr, grpcapi.DefaultHealthInterval); err != nil {
				return fmt.Errorf("grpc server error: %w", err)
			}
			return nil
		})
	}

	if app.configPath != "" {
		g.Go(func() error {
			if err := config.Watch(gctx, app.configPath, app.logger, app.Reconfigure); err != nil {
				app.logger.Warn("Config watcher stopped", "error", err)
			}
			return nil
		})
	}

	app.logger.Info("WBS ready. Press Ctrl+C to terminate.")
	err := g.Wait()

	if app.Persistence != nil {
		select {
		case <-app.Persistence.Done():
		case <-time.After(5 * time.Second):
			app.logger.Warn("Timed out flushing snapshots")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (app *Application) cleanup() {
	if app.monitorIface != "" {
		app.logger.Info("Restoring managed mode", "interface", app.monitorIface)
		if err := driver.DisableMonitorMode(context.Background(), app.runner, app.monitorIface); err != nil {
			app.logger.Error("Failed to restore interface", "interface", app.monitorIface, "error", err)
		}
		app.monitorIface = ""
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Warn("Closing snapshot storage failed", "error", err)
		}
		app.store = nil
	}
	if app.shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.shutdownTracer(ctx)
		app.shutdownTracer = nil
	}
}
