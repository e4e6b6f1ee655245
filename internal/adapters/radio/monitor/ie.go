package monitor

import (
	"bytes"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

// Information element tags used by the beacon decoder.
const (
	tagSSID           = 0
	tagDSParameterSet = 3
	tagRSN            = 48
	tagVendorSpecific = 221
)

// capPrivacy is the privacy bit of the capability information field.
const capPrivacy = 0x0010

// RSN AKM suite selectors (00-0F-AC:n) that imply WPA3.
const (
	akmSAE       = 8
	akmFTSAE     = 9
	akmSuiteB192 = 12
	akmOWE       = 18
)

var ouiMicrosoftWPA = []byte{0x00, 0x50, 0xF2, 0x01}

// iterateIEs calls fn for each well-formed element and stops at the first
// element whose length runs past the buffer.
func iterateIEs(data []byte, fn func(id int, val []byte)) {
	for offset := 0; offset+2 <= len(data); {
		id := int(data[offset])
		length := int(data[offset+1])
		offset += 2
		if offset+length > len(data) {
			return
		}
		fn(id, data[offset:offset+length])
		offset += length
	}
}

// rsnAKMs returns the AKM suite types listed in an RSN element body.
func rsnAKMs(data []byte) []byte {
	// version(2) group cipher(4)
	offset := 6
	if offset+2 > len(data) {
		return nil
	}
	pairwise := int(data[offset]) | int(data[offset+1])<<8
	offset += 2 + 4*pairwise
	if offset+2 > len(data) {
		return nil
	}
	count := int(data[offset]) | int(data[offset+1])<<8
	offset += 2

	var akms []byte
	for i := 0; i < count && offset+4 <= len(data); i++ {
		akms = append(akms, data[offset+3])
		offset += 4
	}
	return akms
}

// elements is what the decoder needs from a management frame body.
type elements struct {
	ssid    string
	hasSSID bool
	channel int
	rsn     []byte
	hasRSN  bool
	wpa     bool
}

func parseElements(data []byte) elements {
	var e elements
	iterateIEs(data, func(id int, val []byte) {
		switch id {
		case tagSSID:
			if !e.hasSSID {
				e.hasSSID = true
				// hidden networks broadcast a zero-filled SSID
				if len(bytes.Trim(val, "\x00")) > 0 {
					e.ssid = string(val)
				}
			}
		case tagDSParameterSet:
			if len(val) == 1 {
				e.channel = int(val[0])
			}
		case tagRSN:
			e.rsn = val
			e.hasRSN = true
		case tagVendorSpecific:
			if bytes.HasPrefix(val, ouiMicrosoftWPA) {
				e.wpa = true
			}
		}
	})
	return e
}

// security picks the class advertised by a beacon: RSN (WPA3 when an
// SAE/OWE suite is offered), then the legacy WPA vendor element, then the
// privacy bit for WEP.
func (e elements) security(capabilities uint16) domain.Security {
	if e.hasRSN {
		for _, akm := range rsnAKMs(e.rsn) {
			switch akm {
			case akmSAE, akmFTSAE, akmSuiteB192, akmOWE:
				return domain.SecurityWPA3
			}
		}
		return domain.SecurityWPA2
	}
	if e.wpa {
		return domain.SecurityWPA
	}
	if capabilities&capPrivacy != 0 {
		return domain.SecurityWEP
	}
	return domain.SecurityOpen
}
