package mock

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

// Source is a simulated radio of one kind backed by a Generator.
type Source struct {
	kind  domain.ObservationKind
	gen   *Generator
	clock timeutil.Clock
}

var _ ports.RadioSource = (*Source)(nil)

// NewSource creates a simulated radio producing observations of kind.
func NewSource(kind domain.ObservationKind, gen *Generator, clock timeutil.Clock) *Source {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Source{kind: kind, gen: gen, clock: clock}
}

func (s *Source) Name() string { return "mock-" + string(s.kind) }

func (s *Source) Open(ctx context.Context) error { return ctx.Err() }

func (s *Source) Poll(ctx context.Context) ([]domain.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var out []domain.Observation
	if s.kind == domain.KindBLE {
		for _, o := range s.gen.Tags(now) {
			out = append(out, domain.NewBleObservation(o))
		}
		return out, nil
	}
	for _, o := range s.gen.Networks(now) {
		out = append(out, domain.NewWifiObservation(o))
	}
	return out, nil
}

func (s *Source) Close() error { return nil }

var errAssociationRefused = errors.New("simulated association refused")

// Connector simulates association. Each attempt succeeds with probability
// SuccessRate.
type Connector struct {
	mu          sync.Mutex
	rand        *rand.Rand
	SuccessRate float64
}

var _ ports.NetworkConnector = (*Connector)(nil)

// NewConnector creates a seeded simulated connector.
func NewConnector(seed int64, successRate float64) *Connector {
	return &Connector{rand: rand.New(rand.NewSource(seed)), SuccessRate: successRate}
}

func (c *Connector) Connect(ctx context.Context, ssid, bssid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	ok := c.rand.Float64() < c.SuccessRate
	c.mu.Unlock()
	if !ok {
		return errAssociationRefused
	}
	return nil
}
