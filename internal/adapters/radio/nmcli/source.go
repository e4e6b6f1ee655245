// Package nmcli implements a WiFi radio source on top of NetworkManager's
// command line client.
package nmcli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lcalzada-xor/wbs/internal/adapters/driver"
	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

const binary = "nmcli"

var listArgs = []string{
	"--terse", "--escape", "yes",
	"-f", "BSSID,SSID,SECURITY,SIGNAL,FREQ,CHAN",
	"device", "wifi", "list",
}

// Source polls "nmcli device wifi list".
type Source struct {
	runner      driver.Runner
	clock       timeutil.Clock
	logger      *slog.Logger
	rescanEvery int
	polls       int
}

var _ ports.RadioSource = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithRunner replaces the command runner.
func WithRunner(r driver.Runner) Option {
	return func(s *Source) { s.runner = r }
}

// WithClock sets the clock used to timestamp observations.
func WithClock(c timeutil.Clock) Option {
	return func(s *Source) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// WithRescanEvery requests a fresh scan ("--rescan yes") every n polls.
// Zero leaves rescanning to NetworkManager.
func WithRescanEvery(n int) Option {
	return func(s *Source) { s.rescanEvery = n }
}

// New creates an nmcli source.
func New(opts ...Option) *Source {
	s := &Source{
		runner: driver.ExecRunner{},
		clock:  timeutil.RealClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Name() string { return "wifi-nmcli" }

// Open checks that nmcli is installed and the WiFi radio is switched on.
func (s *Source) Open(ctx context.Context) error {
	if _, err := s.runner.LookPath(binary); err != nil {
		return fmt.Errorf("%w: %s not found: %v", domain.ErrAdapterUnavailable, binary, err)
	}
	out, err := s.runner.Run(ctx, binary, "radio", "wifi")
	if err != nil {
		return fmt.Errorf("%w: query wifi radio: %v", domain.ErrAdapterUnavailable, err)
	}
	if state := strings.TrimSpace(string(out)); state != "enabled" {
		return fmt.Errorf("%w: wifi radio is %q", domain.ErrAdapterUnavailable, state)
	}
	return nil
}

// Poll lists the access points NetworkManager currently knows about.
func (s *Source) Poll(ctx context.Context) ([]domain.Observation, error) {
	args := listArgs
	s.polls++
	if s.rescanEvery > 0 && s.polls%s.rescanEvery == 0 {
		args = append(append([]string{}, listArgs...), "--rescan", "yes")
	}

	out, err := s.runner.Run(ctx, binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: nmcli timed out", domain.ErrTransientRead)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientRead, err)
	}

	now := s.clock.Now()
	results, dropped := ParseList(string(out), now)
	if dropped > 0 {
		s.logger.Debug("Dropped unparsable nmcli lines", "count", dropped)
	}

	obs := make([]domain.Observation, 0, len(results))
	for _, r := range results {
		obs = append(obs, domain.NewWifiObservation(r))
	}
	return obs, nil
}

func (s *Source) Close() error { return nil }
