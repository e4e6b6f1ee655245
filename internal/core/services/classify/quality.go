// Package classify maps raw radio readings onto the domain's closed sets:
// quality tiers, security classes, bands, channels and tag kinds.
package classify

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

// Thresholds are the lower bounds (inclusive) of each quality tier.
type Thresholds struct {
	Excellent int `yaml:"excellent" json:"excellent"`
	Good      int `yaml:"good" json:"good"`
	Fair      int `yaml:"fair" json:"fair"`
}

// DefaultThresholds returns 80/60/40.
func DefaultThresholds() Thresholds {
	return Thresholds{Excellent: 80, Good: 60, Fair: 40}
}

// Validate implements validation.Validatable. Tiers must be strictly ordered
// within 0-100.
func (t Thresholds) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Excellent, validation.Max(100), validation.Min(t.Good+1)),
		validation.Field(&t.Good, validation.Min(t.Fair+1)),
		validation.Field(&t.Fair, validation.Min(0)),
	)
}

// Quality returns the tier for a 0-100 signal percentage.
func Quality(signal int, t Thresholds) domain.QualityTier {
	switch {
	case signal >= t.Excellent:
		return domain.QualityExcellent
	case signal >= t.Good:
		return domain.QualityGood
	case signal >= t.Fair:
		return domain.QualityFair
	default:
		return domain.QualityWeak
	}
}

// ClampSignal bounds a percentage to 0-100.
func ClampSignal(signal int) int {
	if signal < 0 {
		return 0
	}
	if signal > 100 {
		return 100
	}
	return signal
}

// SignalFromDBM derives a percentage from dBm using the NetworkManager
// convention (-100 dBm = 0%, -50 dBm = 100%).
func SignalFromDBM(dbm int) int {
	return ClampSignal(2 * (dbm + 100))
}
