// Package ble implements the BLE advertisement radio source.
package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
	"github.com/lcalzada-xor/wbs/internal/telemetry"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

// DefaultBufferSize bounds the advertisements held between polls.
const DefaultBufferSize = 1024

// Source buffers advertisements from a background scan until polled.
type Source struct {
	scanner Scanner
	clock   timeutil.Clock
	logger  *slog.Logger
	size    int

	mu       sync.Mutex
	buf      []domain.BleObservation
	dropped  int64
	scanning bool
	closing  bool
	stopped  bool
	reported bool
	scanErr  error
	wg       sync.WaitGroup
}

var _ ports.RadioSource = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithScanner replaces the host adapter.
func WithScanner(s Scanner) Option {
	return func(src *Source) { src.scanner = s }
}

// WithBufferSize sets how many advertisements are kept between polls.
// When full the oldest is dropped.
func WithBufferSize(n int) Option {
	return func(src *Source) {
		if n > 0 {
			src.size = n
		}
	}
}

// WithClock sets the clock used to timestamp advertisements.
func WithClock(c timeutil.Clock) Option {
	return func(src *Source) { src.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(src *Source) { src.logger = l }
}

// New creates a BLE source on the host adapter.
func New(opts ...Option) *Source {
	s := &Source{
		clock:  timeutil.RealClock{},
		logger: slog.Default(),
		size:   DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scanner == nil {
		s.scanner = NewHostScanner()
	}
	return s
}

func (s *Source) Name() string { return "ble" }

// Open enables the adapter and starts scanning.
func (s *Source) Open(ctx context.Context) error {
	if err := s.scanner.Enable(); err != nil {
		return fmt.Errorf("%w: enable bluetooth adapter: %v", domain.ErrAdapterUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = false
	s.startLocked()
	return nil
}

func (s *Source) startLocked() {
	s.scanning = true
	s.stopped = false
	s.reported = false
	s.scanErr = nil

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.scanner.Scan(s.push)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.scanning = false
		if !s.closing {
			s.stopped = true
			s.scanErr = err
		}
	}()
}

func (s *Source) push(adv Advertisement) {
	obs := domain.BleObservation{
		Address:          adv.Address,
		RSSI:             int(adv.RSSI),
		Name:             adv.Name,
		ManufacturerData: adv.ManufacturerData,
		Timestamp:        s.clock.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) >= s.size {
		s.buf = s.buf[1:]
		s.dropped++
		telemetry.ObservationsDropped.WithLabelValues(string(domain.KindBLE), "overflow").Inc()
	}
	s.buf = append(s.buf, obs)
}

// Poll returns the advertisements received since the previous poll. A scan
// that ended on its own is reported once and restarted on the next call.
func (s *Source) Poll(ctx context.Context) ([]domain.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Observation, 0, len(s.buf))
	for _, o := range s.buf {
		out = append(out, domain.NewBleObservation(o))
	}
	s.buf = s.buf[:0]

	if s.stopped {
		if !s.reported {
			s.reported = true
			return out, fmt.Errorf("%w: scan stopped: %v", domain.ErrTransientRead, s.scanErr)
		}
		s.logger.Info("Restarting BLE scan")
		s.startLocked()
	}
	return out, nil
}

// Dropped reports how many advertisements were discarded on overflow.
func (s *Source) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops the scan and waits for it to return.
func (s *Source) Close() error {
	s.mu.Lock()
	s.closing = true
	scanning := s.scanning
	s.mu.Unlock()

	var err error
	if scanning {
		err = s.scanner.StopScan()
	}
	s.wg.Wait()
	return err
}
