// Package scheduler runs the BLE and WiFi polling loops and the optional
// auto-connect and snapshot export loops.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
	"github.com/lcalzada-xor/wbs/internal/core/services/autoconnect"
	"github.com/lcalzada-xor/wbs/internal/core/services/classify"
	"github.com/lcalzada-xor/wbs/internal/core/services/registry"
	"github.com/lcalzada-xor/wbs/internal/telemetry"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

// LoopConfig controls one polling loop.
type LoopConfig struct {
	Interval   time.Duration
	Timeout    time.Duration
	SweepEvery int
}

// Config controls every loop the scheduler runs. Zero intervals disable the
// auto-connect and export loops.
type Config struct {
	BLE                 LoopConfig
	WiFi                LoopConfig
	TagFilter           classify.TagFilter
	AutoConnectInterval time.Duration
	ExportInterval      time.Duration
	ExportKinds         []domain.SnapshotKind
}

// DefaultConfig returns 1s/60s for BLE and 10s/120s for WiFi, sweeping
// every tick, AirTags only.
func DefaultConfig() Config {
	return Config{
		BLE:       LoopConfig{Interval: time.Second, Timeout: 60 * time.Second, SweepEvery: 1},
		WiFi:      LoopConfig{Interval: 10 * time.Second, Timeout: 120 * time.Second, SweepEvery: 1},
		TagFilter: classify.FilterAirTag,
	}
}

// Exporter turns a ledger snapshot into a record and delivers it to sinks.
type Exporter interface {
	Export(ctx context.Context, kind domain.SnapshotKind) (domain.SnapshotRecord, error)
}

// Scheduler owns both ledgers and the sources feeding them.
type Scheduler struct {
	cfg      Config
	tags     *registry.TagLedger
	networks *registry.NetworkLedger

	ble        *loop
	wifi       *loop
	controller *autoconnect.Controller
	onAttempt  func(domain.ConnectionAttempt)
	exporter   Exporter

	clock  timeutil.Clock
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBLESource enables the BLE loop.
func WithBLESource(src ports.RadioSource) Option {
	return func(s *Scheduler) { s.ble = &loop{radio: domain.KindBLE, source: src} }
}

// WithWiFiSource enables the WiFi loop.
func WithWiFiSource(src ports.RadioSource) Option {
	return func(s *Scheduler) { s.wifi = &loop{radio: domain.KindWiFi, source: src} }
}

// WithController enables the auto-connect loop.
func WithController(c *autoconnect.Controller) Option {
	return func(s *Scheduler) { s.controller = c }
}

// WithAttemptHook is called after every auto-connect cycle.
func WithAttemptHook(fn func(domain.ConnectionAttempt)) Option {
	return func(s *Scheduler) { s.onAttempt = fn }
}

// WithExporter enables the snapshot export loop.
func WithExporter(e Exporter) Option {
	return func(s *Scheduler) { s.exporter = e }
}

// WithClock overrides the clock used for tickers and sweeps.
func WithClock(c timeutil.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a scheduler around the given ledgers.
func New(cfg Config, tags *registry.TagLedger, networks *registry.NetworkLedger, opts ...Option) *Scheduler {
	if cfg.TagFilter == "" {
		cfg.TagFilter = classify.FilterAirTag
	}
	s := &Scheduler{
		cfg:      cfg,
		tags:     tags,
		networks: networks,
		clock:    timeutil.RealClock{},
		logger:   slog.Default(),
		tracer:   otel.Tracer("wbs/scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ble != nil {
		s.ble.LoopConfig = cfg.BLE
		s.ble.apply = s.applyBLE
		s.ble.ledger = s.tags
	}
	if s.wifi != nil {
		s.wifi.LoopConfig = cfg.WiFi
		s.wifi.apply = s.applyWiFi
		s.wifi.ledger = s.networks
	}
	return s
}

// Run opens every enabled source and runs the loops until ctx is done.
// A source that fails to open aborts startup with an error wrapping
// domain.ErrAdapterUnavailable; nothing else is returned.
func (s *Scheduler) Run(ctx context.Context) error {
	loops := s.loops()
	if len(loops) == 0 {
		return fmt.Errorf("no radio source configured: %w", domain.ErrAdapterUnavailable)
	}

	var opened []*loop
	for _, l := range loops {
		if err := l.source.Open(ctx); err != nil {
			for _, o := range opened {
				o.source.Close()
			}
			if !errors.Is(err, domain.ErrAdapterUnavailable) {
				err = fmt.Errorf("%w: %w", domain.ErrAdapterUnavailable, err)
			}
			return fmt.Errorf("open %s source %s: %w", l.radio, l.source.Name(), err)
		}
		opened = append(opened, l)
		s.logger.Info("Radio source opened", "radio", l.radio, "source", l.source.Name())
	}
	defer func() {
		for _, l := range opened {
			if err := l.source.Close(); err != nil {
				s.logger.Warn("Closing radio source failed", "radio", l.radio, "error", err)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range loops {
		l := l
		l.running.Store(true)
		g.Go(func() error {
			defer l.running.Store(false)
			s.every(gctx, l.Interval, func(ctx context.Context) bool {
				return s.tick(ctx, l)
			})
			return nil
		})
	}
	if s.controller != nil && s.cfg.AutoConnectInterval > 0 {
		g.Go(func() error {
			s.every(gctx, s.cfg.AutoConnectInterval, func(ctx context.Context) bool {
				s.autoConnect(ctx)
				return true
			})
			return nil
		})
	}
	if s.exporter != nil && s.cfg.ExportInterval > 0 && len(s.cfg.ExportKinds) > 0 {
		g.Go(func() error {
			s.every(gctx, s.cfg.ExportInterval, func(ctx context.Context) bool {
				s.export(ctx)
				return true
			})
			return nil
		})
	}

	return g.Wait()
}

// every runs fn immediately and then on each tick until ctx is done or
// fn returns false.
func (s *Scheduler) every(ctx context.Context, interval time.Duration, fn func(context.Context) bool) {
	if !fn(ctx) {
		return
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil || !fn(ctx) {
				return
			}
		}
	}
}

func (s *Scheduler) loops() []*loop {
	var out []*loop
	if s.ble != nil {
		out = append(out, s.ble)
	}
	if s.wifi != nil {
		out = append(out, s.wifi)
	}
	return out
}

// tick polls once, applies the batch and sweeps on schedule. It returns
// false when the loop must stop.
func (s *Scheduler) tick(ctx context.Context, l *loop) bool {
	radio := string(l.radio)
	ctx, span := s.tracer.Start(ctx, "scheduler.tick", trace.WithAttributes(attribute.String("radio", radio)))
	defer span.End()

	n := l.ticks.Add(1)
	telemetry.ScansTotal.WithLabelValues(radio).Inc()

	obs, err := l.source.Poll(ctx)
	switch {
	case err == nil:
		applied := 0
		for _, o := range obs {
			if l.apply(o) {
				applied++
			}
		}
		telemetry.ObservationsTotal.WithLabelValues(radio).Add(float64(applied))
		span.SetAttributes(attribute.Int("observations", applied))
	case ctx.Err() != nil:
		return false
	case errors.Is(err, domain.ErrAdapterUnavailable):
		s.logger.Error("Radio source lost, stopping loop", "radio", radio, "source", l.source.Name(), "error", err)
		return false
	default:
		l.errors.Add(1)
		telemetry.ReadErrors.WithLabelValues(radio).Inc()
		span.RecordError(err)
		s.logger.Warn("Scan read failed", "radio", radio, "source", l.source.Name(), "error", err)
	}

	if l.SweepEvery > 0 && n%int64(l.SweepEvery) == 0 {
		evicted := l.ledger.Sweep(s.clock.Now(), l.Timeout)
		if len(evicted) > 0 {
			telemetry.Evictions.WithLabelValues(radio).Add(float64(len(evicted)))
			s.logger.Info("Evicted stale entries", "radio", radio, "count", len(evicted), "keys", evicted)
		}
	}
	telemetry.TrackedEntries.WithLabelValues(radio).Set(float64(l.ledger.Len()))
	return true
}

func (s *Scheduler) applyBLE(o domain.Observation) bool {
	if o.Kind != domain.KindBLE || o.BLE == nil {
		telemetry.ObservationsDropped.WithLabelValues(string(domain.KindBLE), "kind").Inc()
		return false
	}
	if !s.cfg.TagFilter.Accept(classify.Tag(o.BLE.ManufacturerData)) {
		telemetry.ObservationsDropped.WithLabelValues(string(domain.KindBLE), "filtered").Inc()
		return false
	}
	s.tags.Observe(*o.BLE)
	return true
}

func (s *Scheduler) applyWiFi(o domain.Observation) bool {
	if o.Kind != domain.KindWiFi || o.WiFi == nil {
		telemetry.ObservationsDropped.WithLabelValues(string(domain.KindWiFi), "kind").Inc()
		return false
	}
	if !domain.IsValidMAC(domain.NormalizeMAC(o.WiFi.BSSID)) {
		telemetry.ObservationsDropped.WithLabelValues(string(domain.KindWiFi), "bssid").Inc()
		return false
	}
	s.networks.Observe(*o.WiFi)
	return true
}

func (s *Scheduler) autoConnect(ctx context.Context) {
	a := s.controller.Tick(ctx)
	telemetry.ConnectionAttempts.WithLabelValues(string(a.Outcome)).Inc()
	if s.onAttempt != nil {
		s.onAttempt(a)
	}
}

func (s *Scheduler) export(ctx context.Context) {
	for _, kind := range s.cfg.ExportKinds {
		if _, err := s.exporter.Export(ctx, kind); err != nil && ctx.Err() == nil {
			s.logger.Warn("Snapshot export failed", "kind", kind, "error", err)
		}
	}
}

// Tags returns the current BLE ledger snapshot.
func (s *Scheduler) Tags() []domain.TrackedTag { return s.tags.Snapshot() }

// Networks returns the current WiFi ledger snapshot.
func (s *Scheduler) Networks() []domain.WifiNetwork { return s.networks.Snapshot() }

// LoopStatus reports which configured polling loops are currently running.
// A loop stopped by a lost adapter reports false.
func (s *Scheduler) LoopStatus() map[domain.ObservationKind]bool {
	status := make(map[domain.ObservationKind]bool)
	for _, l := range s.loops() {
		status[l.radio] = l.running.Load()
	}
	return status
}

// Controller returns the auto-connect controller, or nil when disabled.
func (s *Scheduler) Controller() *autoconnect.Controller { return s.controller }

// Statistics derives the aggregate view from counters and ledgers.
func (s *Scheduler) Statistics() domain.ScanStatistics {
	stats := domain.NewScanStatistics()
	stats.LastUpdated = s.clock.Now()

	if s.ble != nil {
		stats.BLEScans = s.ble.ticks.Load()
		stats.BLEErrors = s.ble.errors.Load()
	}
	if s.wifi != nil {
		stats.WiFiScans = s.wifi.ticks.Load()
		stats.WiFiErrors = s.wifi.errors.Load()
	}

	stats.UniqueTags = s.tags.UniqueSeen()
	stats.ActiveTags = s.tags.Len()
	stats.EvictedTags = s.tags.Evicted()

	networks := s.networks.Snapshot()
	stats.UniqueNetworks = s.networks.UniqueSeen()
	stats.ActiveNetworks = len(networks)
	stats.EvictedNetworks = s.networks.Evicted()
	for _, n := range networks {
		stats.BandStats[n.Band]++
		stats.SecurityStats[n.Security]++
		if n.IsOpen() {
			stats.OpenNetworks++
		}
	}

	if s.controller != nil {
		stats.ControllerState = s.controller.State()
	}
	return stats
}

var _ ports.EngineReader = (*Scheduler)(nil)

// loop is the per-radio state. ticks and errors are read by Statistics
// while the loop goroutine writes them.
type loop struct {
	LoopConfig
	radio  domain.ObservationKind
	source ports.RadioSource
	ledger interface {
		Sweep(now time.Time, timeout time.Duration) []string
		Len() int
	}
	apply func(domain.Observation) bool

	ticks   atomic.Int64
	errors  atomic.Int64
	running atomic.Bool
}
