package classify

import (
	"fmt"
	"strings"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

// AppleCompanyID is the Bluetooth SIG company identifier of Apple Inc.
const AppleCompanyID uint16 = 0x004C

// Apple continuity payload types observed on AirTags.
const (
	airTagRegisteredType   = 0x12
	airTagUnregisteredType = 0x07
	airTagPayloadLength    = 0x19
	airTagStatusNormal     = 0x10
)

// Tag classifies a BLE advertiser from its manufacturer data.
func Tag(md []domain.ManufacturerData) domain.TagKind {
	apple := false
	for _, m := range md {
		if m.CompanyID != AppleCompanyID {
			continue
		}
		apple = true
		if kind, ok := airTag(m.Data); ok {
			return kind
		}
	}
	if apple {
		return domain.TagApple
	}
	return domain.TagGeneric
}

func airTag(data []byte) (domain.TagKind, bool) {
	if len(data) < 2 || data[1] != airTagPayloadLength {
		return "", false
	}
	switch data[0] {
	case airTagRegisteredType:
		if len(data) >= 4 && data[2] == airTagStatusNormal {
			return domain.TagAirTagRegistered, true
		}
	case airTagUnregisteredType:
		return domain.TagAirTagUnregistered, true
	}
	return "", false
}

// TagFilter selects which BLE advertisers reach the ledger.
type TagFilter string

const (
	FilterAirTag TagFilter = "airtag"
	FilterApple  TagFilter = "apple"
	FilterAll    TagFilter = "all"
)

// ParseTagFilter accepts airtag, apple or all (case-insensitive).
func ParseTagFilter(s string) (TagFilter, error) {
	switch f := TagFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterAirTag, FilterApple, FilterAll:
		return f, nil
	default:
		return "", fmt.Errorf("unknown tag filter %q", s)
	}
}

// Accept reports whether a tag of the given kind passes the filter.
func (f TagFilter) Accept(kind domain.TagKind) bool {
	switch f {
	case FilterAll:
		return true
	case FilterApple:
		return kind != domain.TagGeneric
	default:
		return kind.IsAirTag()
	}
}
