package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

func TestDistance_ReferencePower(t *testing.T) {
	p := DefaultParams()

	assert.InDelta(t, 1.0, p.Distance(-59), 1e-9, "measured power is the 1m reference")
	assert.InDelta(t, 10.0, p.Distance(-79), 1e-9)
	assert.InDelta(t, 0.1, p.Distance(-39), 1e-9)
}

func TestDistance_MonotoneInRSSI(t *testing.T) {
	p := DefaultParams()

	prev := p.Distance(domain.MinRSSI)
	for rssi := domain.MinRSSI + 1; rssi <= domain.MaxRSSI; rssi++ {
		d := p.Distance(rssi)
		assert.Less(t, d, prev, "stronger signal must not be farther (rssi=%d)", rssi)
		prev = d
	}
}

func TestDistanceFromWindow(t *testing.T) {
	p := DefaultParams()

	assert.Equal(t, 0.0, p.DistanceFromWindow(nil))
	assert.InDelta(t, p.Distance(-59), p.DistanceFromWindow([]int{-59}), 1e-9)

	// Only the last K samples contribute.
	assert.InDelta(t, p.Distance(-79), p.DistanceFromWindow([]int{-40, -40, -79, -79, -79}), 1e-9)
}

func TestTrend_InsufficientSamplesIsStable(t *testing.T) {
	p := DefaultParams()

	assert.Equal(t, domain.TrendStable, p.Trend(nil))
	assert.Equal(t, domain.TrendStable, p.Trend([]int{-90, -40}))
	assert.Equal(t, domain.TrendStable, p.Trend([]int{-90, -80, -70, -60, -50}))
}

// The documented walk-through reports rising once -45 follows
// [-60 -58 -55 -50]. With k=3 that is only five samples, and fewer than 2k
// samples is always stable, so rising is reported from the sixth sample.
func TestTrend_Scenario(t *testing.T) {
	p := DefaultParams()
	samples := []int{-60, -58, -55, -50}

	assert.Equal(t, domain.TrendStable, p.Trend(samples))

	samples = append(samples, -45)
	assert.Equal(t, domain.TrendStable, p.Trend(samples), "2k samples are required")

	samples = append(samples, -45)
	assert.Equal(t, domain.TrendRising, p.Trend(samples))
}

func TestTrend_Directions(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name    string
		samples []int
		want    domain.Trend
	}{
		{"rising", []int{-80, -80, -80, -70, -70, -70}, domain.TrendRising},
		{"falling", []int{-50, -50, -50, -60, -60, -60}, domain.TrendFalling},
		{"within noise", []int{-60, -60, -60, -58, -58, -58}, domain.TrendStable},
		{"exactly threshold", []int{-60, -60, -60, -57, -57, -57}, domain.TrendStable},
		{"older samples ignored", []int{-20, -20, -60, -60, -60, -60, -60, -60}, domain.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Trend(tt.samples))
		})
	}
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	bad := DefaultParams()
	bad.K = 0
	assert.Error(t, bad.Validate())

	bad = DefaultParams()
	bad.PathLossExponent = 0
	assert.Error(t, bad.Validate())

	bad = DefaultParams()
	bad.PathLossExponent = -1
	assert.Error(t, bad.Validate())

	bad = DefaultParams()
	bad.NoiseThreshold = -1
	assert.Error(t, bad.Validate())

	zeroNoise := DefaultParams()
	zeroNoise.NoiseThreshold = 0
	assert.NoError(t, zeroNoise.Validate())
}
