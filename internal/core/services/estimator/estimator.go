// Package estimator derives distance and trend from a window of RSSI samples.
// Every function here is pure; callers own the window.
package estimator

import (
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gonum.org/v1/gonum/stat"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

// Params tunes the path-loss model and the trend detector.
type Params struct {
	MeasuredPower    float64 `yaml:"measured_power" json:"measured_power"` // RSSI at 1m
	PathLossExponent float64 `yaml:"path_loss_exponent" json:"path_loss_exponent"`
	K                int     `yaml:"k" json:"k"`
	NoiseThreshold   float64 `yaml:"noise_threshold" json:"noise_threshold"`
}

// DefaultParams returns free-space defaults for a typical BLE tag.
func DefaultParams() Params {
	return Params{
		MeasuredPower:    -59,
		PathLossExponent: 2.0,
		K:                3,
		NoiseThreshold:   3,
	}
}

// Validate implements validation.Validatable.
func (p Params) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.PathLossExponent, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&p.K, validation.Required, validation.Min(1)),
		validation.Field(&p.NoiseThreshold, validation.Min(0.0)),
	)
}

// Distance converts a single RSSI reading into metres using the
// log-distance path-loss model.
func (p Params) Distance(rssi int) float64 {
	return p.distance(float64(rssi))
}

func (p Params) distance(rssi float64) float64 {
	return math.Pow(10, (p.MeasuredPower-rssi)/(10*p.PathLossExponent))
}

// DistanceFromWindow smooths the most recent min(K, n) samples before
// converting. An empty window yields 0.
func (p Params) DistanceFromWindow(samples []int) float64 {
	if len(samples) == 0 {
		return 0
	}
	k := p.K
	if k < 1 || k > len(samples) {
		k = len(samples)
	}
	return p.distance(stat.Mean(toFloats(samples[len(samples)-k:]), nil))
}

// Trend compares the mean of the last K samples with the mean of the K
// samples before them. Fewer than 2K samples is always stable.
func (p Params) Trend(samples []int) domain.Trend {
	k := p.K
	if k < 1 || len(samples) < 2*k {
		return domain.TrendStable
	}

	n := len(samples)
	recent := stat.Mean(toFloats(samples[n-k:]), nil)
	previous := stat.Mean(toFloats(samples[n-2*k:n-k]), nil)

	switch diff := recent - previous; {
	case diff > p.NoiseThreshold:
		return domain.TrendRising
	case diff < -p.NoiseThreshold:
		return domain.TrendFalling
	default:
		return domain.TrendStable
	}
}

func toFloats(samples []int) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	return out
}
