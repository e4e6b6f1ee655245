package monitor

import (
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/services/classify"
)

// Decode turns a captured beacon or probe response into a WiFi observation.
// Any other frame yields ok == false.
func Decode(packet gopacket.Packet, now time.Time) (obs domain.WifiObservation, ok bool) {
	dot11, isDot11 := packet.Layer(layers.LayerTypeDot11).(*layers.Dot11)
	if !isDot11 {
		return obs, false
	}

	var body []byte
	var capabilities uint16
	switch dot11.Type {
	case layers.Dot11TypeMgmtBeacon:
		beacon, found := packet.Layer(layers.LayerTypeDot11MgmtBeacon).(*layers.Dot11MgmtBeacon)
		if !found {
			return obs, false
		}
		body, capabilities = beacon.LayerPayload(), beacon.Flags
	case layers.Dot11TypeMgmtProbeResp:
		resp, found := packet.Layer(layers.LayerTypeDot11MgmtProbeResp).(*layers.Dot11MgmtProbeResp)
		if !found {
			return obs, false
		}
		body, capabilities = resp.LayerPayload(), resp.Flags
	default:
		return obs, false
	}

	bssid := domain.NormalizeMAC(dot11.Address3.String())
	if !domain.IsValidMAC(bssid) {
		return obs, false
	}

	e := parseElements(body)
	obs = domain.WifiObservation{
		BSSID:     bssid,
		SSID:      e.ssid,
		Signal:    -1,
		Security:  e.security(capabilities),
		Timestamp: now,
	}

	if rt, found := packet.Layer(layers.LayerTypeRadioTap).(*layers.RadioTap); found {
		if rt.Present.DBMAntennaSignal() {
			obs.RSSI = domain.ClampRSSI(int(rt.DBMAntennaSignal))
			obs.Signal = classify.SignalFromDBM(obs.RSSI)
		}
		if rt.Present.Channel() {
			obs.Frequency = int(rt.ChannelFrequency)
		}
	}

	if obs.Frequency == 0 && e.channel > 0 {
		obs.Channel = e.channel
		if e.channel <= 14 {
			obs.Frequency = classify.FrequencyForChannel(domain.Band24GHz, e.channel)
		} else {
			obs.Frequency = classify.FrequencyForChannel(domain.Band5GHz, e.channel)
		}
	}
	if obs.Channel == 0 {
		obs.Channel = classify.Channel(obs.Frequency)
	}
	obs.Band = classify.Band(obs.Frequency)
	return obs, true
}
