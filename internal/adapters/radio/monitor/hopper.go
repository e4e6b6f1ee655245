package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

// ChannelSetter tunes the capture interface.
type ChannelSetter func(ctx context.Context, channel int) error

// ChannelHopper cycles the capture interface through a channel list so that
// beacons from every band are heard.
type ChannelHopper struct {
	set    ChannelSetter
	dwell  time.Duration
	clock  timeutil.Clock
	logger *slog.Logger

	mu       sync.Mutex
	channels []int
	index    int
	failures int
}

// NewHopper creates a round-robin hopper that stays dwell on each channel.
func NewHopper(set ChannelSetter, channels []int, dwell time.Duration, clock timeutil.Clock, logger *slog.Logger) *ChannelHopper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelHopper{
		set:      set,
		dwell:    dwell,
		clock:    clock,
		logger:   logger,
		channels: append([]int(nil), channels...),
	}
}

// SetChannels replaces the channel list and restarts the cycle.
func (h *ChannelHopper) SetChannels(channels []int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channels = append([]int(nil), channels...)
	h.index = 0
}

// Channels returns a copy of the current channel list.
func (h *ChannelHopper) Channels() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.channels...)
}

// Failures reports how many channel switches failed.
func (h *ChannelHopper) Failures() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failures
}

// Run hops until ctx is cancelled.
func (h *ChannelHopper) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(h.dwell)
	defer ticker.Stop()

	h.hop(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			h.hop(ctx)
		}
	}
}

func (h *ChannelHopper) next() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.channels) == 0 {
		return 0, false
	}
	ch := h.channels[h.index%len(h.channels)]
	h.index = (h.index + 1) % len(h.channels)
	return ch, true
}

func (h *ChannelHopper) hop(ctx context.Context) {
	ch, ok := h.next()
	if !ok {
		return
	}
	// A busy device or a channel outside the regulatory domain is not fatal.
	if err := h.set(ctx, ch); err != nil && ctx.Err() == nil {
		h.mu.Lock()
		h.failures++
		h.mu.Unlock()
		h.logger.Warn("Failed to switch channel", "channel", ch, "error", err)
	}
}
