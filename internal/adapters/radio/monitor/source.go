// Package monitor implements a WiFi radio source that listens for beacons
// and probe responses on a monitor-mode interface.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"github.com/lcalzada-xor/wbs/internal/adapters/driver"
	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
	"github.com/lcalzada-xor/wbs/internal/telemetry"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

const (
	snapLen    = 2048
	bpfFilter  = "type mgt subtype beacon or type mgt subtype probe-resp"
	maxPending = 4096
)

// Capture is a stream of raw frames. The channel closes when the capture
// stops.
type Capture interface {
	Packets() <-chan gopacket.Packet
	Close()
}

// Opener starts a capture on an interface.
type Opener func(iface string) (Capture, error)

type pcapCapture struct {
	handle  *pcap.Handle
	packets chan gopacket.Packet
}

func (c *pcapCapture) Packets() <-chan gopacket.Packet { return c.packets }
func (c *pcapCapture) Close()                          { c.handle.Close() }

// OpenPcap opens a live pcap handle restricted to beacons and probe responses.
func OpenPcap(iface string) (Capture, error) {
	handle, err := pcap.OpenLive(iface, snapLen, true, pcap.BlockForever)
	if err != nil {
		return nil, err
	}
	if err := handle.SetBPFFilter(bpfFilter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("set bpf filter: %w", err)
	}
	src := gopacket.NewPacketSource(handle, handle.LinkType())
	return &pcapCapture{handle: handle, packets: src.Packets()}, nil
}

// Source collects decoded beacons between polls, keeping the latest
// sighting per BSSID.
type Source struct {
	iface    string
	open     Opener
	runner   driver.Runner
	channels []int
	dwell    time.Duration
	clock    timeutil.Clock
	logger   *slog.Logger

	mu       sync.Mutex
	capture  Capture
	pending  map[string]domain.WifiObservation
	stopped  bool
	reported bool
	gen      int
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	hopper   *ChannelHopper
}

var _ ports.RadioSource = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithOpener replaces the pcap capture.
func WithOpener(o Opener) Option {
	return func(s *Source) { s.open = o }
}

// WithRunner sets the runner used for iw commands.
func WithRunner(r driver.Runner) Option {
	return func(s *Source) { s.runner = r }
}

// WithHopping enables channel hopping. An empty channel list asks the phy
// for its enabled channels at open time.
func WithHopping(channels []int, dwell time.Duration) Option {
	return func(s *Source) {
		s.channels = channels
		s.dwell = dwell
	}
}

// WithClock sets the clock used for timestamps and hop timing.
func WithClock(c timeutil.Clock) Option {
	return func(s *Source) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// New creates a monitor source for iface.
func New(iface string, opts ...Option) *Source {
	s := &Source{
		iface:   iface,
		open:    OpenPcap,
		runner:  driver.ExecRunner{},
		clock:   timeutil.RealClock{},
		logger:  slog.Default(),
		pending: make(map[string]domain.WifiObservation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Name() string { return "wifi-monitor" }

// Open starts the capture and, when configured, the channel hopper.
func (s *Source) Open(ctx context.Context) error {
	if !domain.IsValidInterface(s.iface) {
		return fmt.Errorf("%w: invalid interface name %q", domain.ErrAdapterUnavailable, s.iface)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.startLocked(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAdapterUnavailable, err)
	}

	if s.dwell > 0 {
		channels := s.channels
		if len(channels) == 0 {
			var err error
			if channels, err = driver.Channels(ctx, s.runner, s.iface); err != nil {
				s.logger.Warn("Channel hopping disabled", "interface", s.iface, "error", err)
				return nil
			}
		}
		hopCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.hopper = NewHopper(func(ctx context.Context, ch int) error {
			return driver.SetChannel(ctx, s.runner, s.iface, ch)
		}, channels, s.dwell, s.clock, s.logger)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.hopper.Run(hopCtx)
		}()
	}
	return nil
}

func (s *Source) startLocked() error {
	c, err := s.open(s.iface)
	if err != nil {
		return err
	}
	s.capture = c
	s.stopped = false
	s.reported = false
	s.gen++

	gen := s.gen
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.consume(c, gen)
	}()
	return nil
}

func (s *Source) consume(c Capture, gen int) {
	for packet := range c.Packets() {
		obs, ok := Decode(packet, s.clock.Now())
		if !ok {
			continue
		}
		s.mu.Lock()
		if _, seen := s.pending[obs.BSSID]; !seen && len(s.pending) >= maxPending {
			s.mu.Unlock()
			telemetry.ObservationsDropped.WithLabelValues(string(domain.KindWiFi), "overflow").Inc()
			continue
		}
		s.pending[obs.BSSID] = obs
		s.mu.Unlock()
	}

	s.mu.Lock()
	if s.gen == gen && s.capture != nil {
		s.stopped = true
	}
	s.mu.Unlock()
}

// Poll returns one observation per BSSID heard since the previous poll.
// A capture that stopped is reported once and reopened on the next call.
func (s *Source) Poll(ctx context.Context) ([]domain.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		if !s.reported {
			s.reported = true
			return s.drainLocked(), fmt.Errorf("%w: capture on %s stopped", domain.ErrTransientRead, s.iface)
		}
		s.capture.Close()
		if err := s.startLocked(); err != nil {
			return nil, fmt.Errorf("%w: reopen %s: %v", domain.ErrAdapterUnavailable, s.iface, err)
		}
		s.logger.Info("Capture restarted", "interface", s.iface)
	}
	return s.drainLocked(), nil
}

func (s *Source) drainLocked() []domain.Observation {
	if len(s.pending) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.pending))
	for k := range s.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.Observation, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.NewWifiObservation(s.pending[k]))
	}
	s.pending = make(map[string]domain.WifiObservation)
	return out
}

// Close stops the hopper and the capture.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	c := s.capture
	s.capture = nil
	s.mu.Unlock()

	if c != nil {
		c.Close()
	}
	s.wg.Wait()
	return nil
}

// Hopper exposes the channel hopper, nil when hopping is off.
func (s *Source) Hopper() *ChannelHopper {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hopper
}
