package nmcli

import (
	"bufio"
	"strconv"
	"strings"
	"time"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/services/classify"
)

const fieldCount = 6

// ParseList parses terse, escaped "device wifi list" output with the fields
// BSSID,SSID,SECURITY,SIGNAL,FREQ,CHAN. Lines that do not carry a valid BSSID
// are skipped and counted in dropped.
func ParseList(out string, now time.Time) (results []domain.WifiObservation, dropped int) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		obs, ok := parseLine(line, now)
		if !ok {
			dropped++
			continue
		}
		results = append(results, obs)
	}
	return results, dropped
}

func parseLine(line string, now time.Time) (domain.WifiObservation, bool) {
	fields := splitEscaped(line)
	if len(fields) < fieldCount {
		return domain.WifiObservation{}, false
	}

	bssid := domain.NormalizeMAC(fields[0])
	if !domain.IsValidMAC(bssid) {
		return domain.WifiObservation{}, false
	}

	signal := -1
	if v, err := strconv.Atoi(strings.TrimSpace(fields[3])); err == nil {
		signal = classify.ClampSignal(v)
	}

	freq := parseFrequency(fields[4])
	channel, _ := strconv.Atoi(strings.TrimSpace(fields[5]))
	if channel <= 0 {
		channel = classify.Channel(freq)
	}

	return domain.WifiObservation{
		BSSID:     bssid,
		SSID:      fields[1],
		Signal:    signal,
		Security:  classify.Security(fields[2]),
		Frequency: freq,
		Channel:   channel,
		Band:      classify.Band(freq),
		Timestamp: now,
	}, true
}

// splitEscaped splits on ':' honouring nmcli's "\:" and "\\" escapes.
func splitEscaped(line string) []string {
	var (
		fields []string
		cur    strings.Builder
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}

// parseFrequency accepts "2437 MHz", "5.18 GHz" or a bare MHz number.
func parseFrequency(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	multiplier := 1.0
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "ghz"):
		multiplier = 1000
		s = s[:len(s)-3]
	case strings.HasSuffix(lower, "mhz"):
		s = s[:len(s)-3]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return 0
	}
	return int(v*multiplier + 0.5)
}
