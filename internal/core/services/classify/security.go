package classify

import (
	"strings"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

var securityRank = map[domain.Security]int{
	domain.SecurityUnknown: 0,
	domain.SecurityOpen:    1,
	domain.SecurityWEP:     2,
	domain.SecurityWPA:     3,
	domain.SecurityWPA2:    4,
	domain.SecurityWPA3:    5,
}

// Security parses a capability flag string such as nmcli's SECURITY column
// ("WPA1 WPA2", "WPA2 802.1X", "OWE", "--") into a security class.
// The strongest recognized flag wins. Modifier flags like 802.1X carry no
// class of their own; a string with nothing recognized is unknown.
func Security(flags string) domain.Security {
	trimmed := strings.TrimSpace(flags)
	if trimmed == "" || trimmed == "--" {
		return domain.SecurityOpen
	}

	best := domain.SecurityUnknown
	for _, tok := range strings.FieldsFunc(trimmed, isFlagSeparator) {
		class := flagClass(tok)
		if securityRank[class] > securityRank[best] {
			best = class
		}
	}
	return best
}

func isFlagSeparator(r rune) bool {
	return r == ' ' || r == ',' || r == '/' || r == '\t'
}

func flagClass(tok string) domain.Security {
	switch strings.ToUpper(tok) {
	case "OPEN", "NONE":
		return domain.SecurityOpen
	case "WEP":
		return domain.SecurityWEP
	case "WPA", "WPA1":
		return domain.SecurityWPA
	case "WPA2", "RSN":
		return domain.SecurityWPA2
	case "WPA3", "SAE", "OWE":
		return domain.SecurityWPA3
	default:
		return domain.SecurityUnknown
	}
}
