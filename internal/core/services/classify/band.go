package classify

import "github.com/lcalzada-xor/wbs/internal/core/domain"

// Band maps a centre frequency in MHz to its band.
func Band(freq int) domain.WiFiBand {
	switch {
	case freq >= 2400 && freq <= 2500:
		return domain.Band24GHz
	case freq >= 4900 && freq < 5925:
		return domain.Band5GHz
	case freq >= 5925 && freq <= 7125:
		return domain.Band6GHz
	default:
		return domain.BandUnknown
	}
}

// Channel maps a centre frequency in MHz to its IEEE channel number, or 0
// when the frequency is not on a known grid.
func Channel(freq int) int {
	switch {
	case freq == 2484:
		return 14
	case freq >= 2412 && freq <= 2472:
		return (freq - 2407) / 5
	case freq == 5935:
		return 2
	case freq >= 5955 && freq <= 7115:
		return (freq - 5950) / 5
	case freq >= 5000 && freq < 5925:
		return (freq - 5000) / 5
	default:
		return 0
	}
}

// FrequencyForChannel is the inverse of Channel for a band. It returns 0 for
// combinations off the grid.
func FrequencyForChannel(band domain.WiFiBand, channel int) int {
	switch band {
	case domain.Band24GHz:
		if channel == 14 {
			return 2484
		}
		if channel >= 1 && channel <= 13 {
			return 2407 + 5*channel
		}
	case domain.Band5GHz:
		if channel >= 32 && channel <= 177 {
			return 5000 + 5*channel
		}
	case domain.Band6GHz:
		if channel == 2 {
			return 5935
		}
		if channel >= 1 && channel <= 233 {
			return 5950 + 5*channel
		}
	}
	return 0
}
