// Package autoconnect selects the strongest eligible open network and
// drives one connection attempt per tick, backing off per BSSID on failure.
package autoconnect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

// Reasons attached to skipped and failed attempts.
const (
	ReasonAlreadyConnected = "already connected"
	ReasonNoCandidate      = "no eligible open network"
	ReasonCancelled        = "cancelled"
)

// Config holds the controller tunables.
type Config struct {
	MinSignal      int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	HistorySize    int
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		MinSignal:      40,
		AttemptTimeout: 15 * time.Second,
		BackoffBase:    30 * time.Second,
		BackoffCap:     10 * time.Minute,
		HistorySize:    50,
	}
}

// Backoff returns the delay applied after the n-th consecutive failure.
func (c Config) Backoff(failures int) time.Duration {
	if failures < 1 {
		return 0
	}
	d := c.BackoffBase
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= c.BackoffCap {
			return c.BackoffCap
		}
	}
	if d > c.BackoffCap {
		return c.BackoffCap
	}
	return d
}

type backoffState struct {
	failures int
	until    time.Time
}

// Controller is the auto-connect state machine. Tick is serialized; the
// accessors may be called concurrently with it.
type Controller struct {
	networks  ports.NetworkReader
	connector ports.NetworkConnector
	clock     timeutil.Clock
	logger    *slog.Logger
	tracer    trace.Tracer

	tickMu sync.Mutex

	mu        sync.RWMutex
	cfg       Config
	state     domain.ControllerState
	connected string
	backoff   map[string]*backoffState
	history   []domain.ConnectionAttempt
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the clock used for backoff windows.
func WithClock(c timeutil.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// NewController creates a controller reading candidates from networks and
// connecting through connector.
func NewController(networks ports.NetworkReader, connector ports.NetworkConnector, cfg Config, opts ...Option) *Controller {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}
	ctl := &Controller{
		networks:  networks,
		connector: connector,
		clock:     timeutil.RealClock{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("wbs/autoconnect"),
		cfg:       cfg,
		state:     domain.StateIdle,
		backoff:   make(map[string]*backoffState),
	}
	for _, opt := range opts {
		opt(ctl)
	}
	return ctl
}

// Tick runs one Idle -> Evaluating -> Connecting -> {Connected, Failed}
// cycle and returns the recorded attempt.
func (c *Controller) Tick(ctx context.Context) domain.ConnectionAttempt {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	attempt := domain.ConnectionAttempt{
		ID:        uuid.NewString(),
		Outcome:   domain.OutcomePending,
		StartedAt: c.clock.Now(),
	}

	c.setState(domain.StateEvaluating)
	snapshot := c.networks.Snapshot()

	c.mu.Lock()
	cfg := c.cfg
	if c.connected != "" {
		if present(snapshot, c.connected) {
			attempt.BSSID = c.connected
			c.state = domain.StateConnected
			c.mu.Unlock()
			return c.finish(attempt, domain.OutcomeSkipped, ReasonAlreadyConnected)
		}
		c.logger.Info("Connected network no longer visible", "bssid", c.connected)
		c.connected = ""
	}
	candidates := c.eligible(snapshot, cfg, attempt.StartedAt)
	if len(candidates) == 0 {
		c.state = domain.StateIdle
		c.mu.Unlock()
		return c.finish(attempt, domain.OutcomeSkipped, ReasonNoCandidate)
	}
	target := candidates[0]
	failures := 0
	if b, ok := c.backoff[target.BSSID]; ok {
		failures = b.failures
	}
	c.state = domain.StateConnecting
	c.mu.Unlock()

	attempt.BSSID = target.BSSID
	attempt.SSID = target.SSID
	attempt.Signal = target.Signal
	attempt.Attempt = failures + 1

	ctx, span := c.tracer.Start(ctx, "autoconnect.Connect", trace.WithAttributes(
		attribute.String("wifi.bssid", target.BSSID),
		attribute.String("wifi.ssid", target.SSID),
		attribute.Int("wifi.signal", target.Signal),
		attribute.Int("autoconnect.attempt", attempt.Attempt),
	))
	defer span.End()

	c.logger.Info("Attempting connection", "ssid", target.SSID, "bssid", target.BSSID, "signal", target.Signal, "attempt", attempt.Attempt)

	err := c.connect(ctx, cfg.AttemptTimeout, target)
	if err == nil {
		c.mu.Lock()
		delete(c.backoff, target.BSSID)
		c.connected = target.BSSID
		c.state = domain.StateConnected
		c.mu.Unlock()
		c.logger.Info("Connected", "ssid", target.SSID, "bssid", target.BSSID)
		return c.finish(attempt, domain.OutcomeSuccess, "")
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	c.mu.Lock()
	c.state = domain.StateFailed
	if ctx.Err() != nil {
		c.mu.Unlock()
		return c.finish(attempt, domain.OutcomeFailed, ReasonCancelled)
	}
	b, ok := c.backoff[target.BSSID]
	if !ok {
		b = &backoffState{}
		c.backoff[target.BSSID] = b
	}
	b.failures++
	attempt.Backoff = cfg.Backoff(b.failures)
	b.until = c.clock.Now().Add(attempt.Backoff)
	c.mu.Unlock()

	c.logger.Warn("Connection failed", "ssid", target.SSID, "bssid", target.BSSID, "error", err, "backoff", attempt.Backoff)
	return c.finish(attempt, domain.OutcomeFailed, err.Error())
}

// connect bounds a single collaborator call by timeout, even if the
// collaborator ignores its context.
func (c *Controller) connect(ctx context.Context, timeout time.Duration, target domain.WifiNetwork) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.connector.Connect(cctx, target.SSID, target.BSSID)
	}()

	var err error
	select {
	case err = <-done:
	case <-cctx.Done():
		err = cctx.Err()
	}

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrConnectionTimeout):
		return fmt.Errorf("%s after %s: %w", target.BSSID, timeout, domain.ErrConnectionTimeout)
	case errors.Is(err, domain.ErrConnectionRejected):
		return err
	default:
		return fmt.Errorf("%s: %v: %w", target.BSSID, err, domain.ErrConnectionRejected)
	}
}

// eligible filters and orders candidates. Caller holds c.mu.
func (c *Controller) eligible(snapshot []domain.WifiNetwork, cfg Config, now time.Time) []domain.WifiNetwork {
	var out []domain.WifiNetwork
	for _, n := range snapshot {
		if !n.IsOpen() || n.Signal < cfg.MinSignal {
			continue
		}
		if b, ok := c.backoff[n.BSSID]; ok && now.Before(b.until) {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Signal != out[j].Signal {
			return out[i].Signal > out[j].Signal
		}
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].BSSID < out[j].BSSID
	})
	return out
}

func (c *Controller) finish(a domain.ConnectionAttempt, outcome domain.AttemptOutcome, reason string) domain.ConnectionAttempt {
	a.Outcome = outcome
	a.Reason = reason
	a.FinishedAt = c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	// Connected and Failed are terminal per attempt; the outcome stays
	// visible through Attempts and Connected.
	c.state = domain.StateIdle
	c.history = append(c.history, a)
	if over := len(c.history) - c.cfg.HistorySize; over > 0 {
		c.history = append([]domain.ConnectionAttempt(nil), c.history[over:]...)
	}
	return a
}

func (c *Controller) setState(s domain.ControllerState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// State returns the current state machine position.
func (c *Controller) State() domain.ControllerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connected returns the BSSID of the last successful attempt, if any.
func (c *Controller) Connected() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Attempts returns a copy of the bounded attempt history, oldest first.
func (c *Controller) Attempts() []domain.ConnectionAttempt {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.ConnectionAttempt, len(c.history))
	copy(out, c.history)
	return out
}

// Backoffs lists every BSSID with recorded failures, ordered by BSSID.
func (c *Controller) Backoffs() []domain.BackoffEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.BackoffEntry, 0, len(c.backoff))
	for bssid, b := range c.backoff {
		out = append(out, domain.BackoffEntry{BSSID: bssid, Failures: b.failures, Until: b.until})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BSSID < out[j].BSSID })
	return out
}

// SetMinSignal changes the eligibility floor for subsequent ticks.
func (c *Controller) SetMinSignal(min int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.MinSignal = min
}

func present(snapshot []domain.WifiNetwork, bssid string) bool {
	for _, n := range snapshot {
		if n.BSSID == bssid {
			return true
		}
	}
	return false
}
