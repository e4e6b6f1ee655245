package reporting

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

func TestPDFExporter_Networks(t *testing.T) {
	exporter := NewPDFExporter()
	now := time.Now()

	rec := domain.SnapshotRecord{
		ID:         "snap-1",
		Kind:       domain.SnapshotNetworks,
		CapturedAt: now,
	}
	// Enough rows to force a page break
	for i := 0; i < 80; i++ {
		rec.Networks = append(rec.Networks, domain.WifiNetwork{
			BSSID:    "AA:BB:CC:DD:EE:FF",
			SSID:     "Cafe",
			Security: domain.SecurityOpen,
			Signal:   82 - i%60,
			Quality:  domain.QualityExcellent,
			Band:     domain.Band24GHz,
			Channel:  6,
			LastSeen: now,
		})
	}

	data, err := exporter.ExportSnapshot(rec)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestPDFExporter_WritePDFTags(t *testing.T) {
	exporter := NewPDFExporter()
	rec := domain.SnapshotRecord{
		ID:         "snap-2",
		Kind:       domain.SnapshotTags,
		CapturedAt: time.Now(),
		Tags: []domain.TrackedTag{
			{Address: "AA:00:00:00:00:01", Kind: domain.TagAirTagRegistered, RSSI: -60, Trend: domain.TrendRising, Distance: 1.1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, exporter.WritePDF(&buf, rec))
	assert.Greater(t, buf.Len(), 500)
}

func TestPDFExporter_EmptyAndInvalid(t *testing.T) {
	exporter := NewPDFExporter()

	_, err := exporter.ExportSnapshot(domain.SnapshotRecord{Kind: domain.SnapshotTags, CapturedAt: time.Now()})
	assert.NoError(t, err)

	_, err = exporter.ExportSnapshot(domain.SnapshotRecord{Kind: "devices"})
	assert.Error(t, err)
}
