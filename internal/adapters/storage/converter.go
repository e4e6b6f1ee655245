package storage

import (
	"encoding/json"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

// toDomain converts a database model to a domain snapshot.
func toDomain(m SnapshotModel) domain.SnapshotRecord {
	rec := domain.SnapshotRecord{
		ID:         m.ID,
		Kind:       domain.SnapshotKind(m.Kind),
		CapturedAt: m.CapturedAt,
	}

	for _, t := range m.Tags {
		var samples []int
		if t.Samples != "" {
			_ = json.Unmarshal([]byte(t.Samples), &samples)
		}
		rec.Tags = append(rec.Tags, domain.TrackedTag{
			Address:   t.Address,
			Name:      t.Name,
			Kind:      domain.TagKind(t.Kind),
			RSSI:      t.RSSI,
			Samples:   samples,
			Trend:     domain.Trend(t.Trend),
			Distance:  t.Distance,
			Count:     t.Count,
			FirstSeen: t.FirstSeen,
			LastSeen:  t.LastSeen,
		})
	}

	for _, n := range m.Networks {
		rec.Networks = append(rec.Networks, domain.WifiNetwork{
			BSSID:     n.BSSID,
			SSID:      n.SSID,
			Security:  domain.ParseSecurityClass(n.Security),
			Signal:    n.Signal,
			RSSI:      n.RSSI,
			Band:      domain.WiFiBand(n.Band),
			Frequency: n.Frequency,
			Channel:   n.Channel,
			Quality:   domain.QualityTier(n.Quality),
			Count:     n.Count,
			FirstSeen: n.FirstSeen,
			LastSeen:  n.LastSeen,
		})
	}

	return rec
}

// toModel converts a domain snapshot to a database model.
func toModel(rec domain.SnapshotRecord) SnapshotModel {
	model := SnapshotModel{
		ID:         rec.ID,
		Kind:       string(rec.Kind),
		CapturedAt: rec.CapturedAt,
		Entries:    rec.Len(),
	}

	for i, t := range rec.Tags {
		samples, _ := json.Marshal(t.Samples)
		model.Tags = append(model.Tags, TagRecordModel{
			SnapshotID: rec.ID,
			Position:   i,
			Address:    t.Address,
			Name:       t.Name,
			Kind:       string(t.Kind),
			RSSI:       t.RSSI,
			Samples:    string(samples),
			Trend:      string(t.Trend),
			Distance:   t.Distance,
			Count:      t.Count,
			FirstSeen:  t.FirstSeen,
			LastSeen:   t.LastSeen,
		})
	}

	for i, n := range rec.Networks {
		model.Networks = append(model.Networks, NetworkRecordModel{
			SnapshotID: rec.ID,
			Position:   i,
			BSSID:      n.BSSID,
			SSID:       n.SSID,
			Security:   string(n.Security),
			Signal:     n.Signal,
			RSSI:       n.RSSI,
			Band:       string(n.Band),
			Frequency:  n.Frequency,
			Channel:    n.Channel,
			Quality:    string(n.Quality),
			Count:      n.Count,
			FirstSeen:  n.FirstSeen,
			LastSeen:   n.LastSeen,
		})
	}

	return model
}
