package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

// WriteJSON writes a snapshot record as indented JSON.
func WriteJSON(w io.Writer, rec domain.SnapshotRecord) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rec)
}

// WriteCSV writes the entries of a snapshot record as CSV with headers.
func WriteCSV(w io.Writer, rec domain.SnapshotRecord) error {
	switch rec.Kind {
	case domain.SnapshotTags:
		return writeTagsCSV(w, rec.Tags)
	case domain.SnapshotNetworks:
		return writeNetworksCSV(w, rec.Networks)
	default:
		return fmt.Errorf("unknown snapshot kind %q", rec.Kind)
	}
}

func writeTagsCSV(w io.Writer, tags []domain.TrackedTag) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	headers := []string{"Address", "Name", "Kind", "RSSI", "Trend", "DistanceM", "Count", "FirstSeen", "LastSeen"}
	if err := writer.Write(headers); err != nil {
		return err
	}

	for _, t := range tags {
		row := []string{
			t.Address,
			t.Name,
			string(t.Kind),
			strconv.Itoa(t.RSSI),
			string(t.Trend),
			strconv.FormatFloat(t.Distance, 'f', 2, 64),
			strconv.Itoa(t.Count),
			t.FirstSeen.Format(time.RFC3339),
			t.LastSeen.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeNetworksCSV(w io.Writer, networks []domain.WifiNetwork) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	headers := []string{"BSSID", "SSID", "Security", "Signal", "Quality", "Band", "Frequency", "Channel", "Count", "FirstSeen", "LastSeen"}
	if err := writer.Write(headers); err != nil {
		return err
	}

	for _, n := range networks {
		row := []string{
			n.BSSID,
			n.SSID,
			string(n.Security),
			strconv.Itoa(n.Signal),
			string(n.Quality),
			string(n.Band),
			strconv.Itoa(n.Frequency),
			strconv.Itoa(n.Channel),
			strconv.Itoa(n.Count),
			n.FirstSeen.Format(time.RFC3339),
			n.LastSeen.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
