package driver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

// reChannel captures the channel number in "* 2412 MHz [1] (20.0 dBm)".
var reChannel = regexp.MustCompile(`\[([0-9]+)\]`)

// Channels returns the enabled channels of the phy backing iface.
func Channels(ctx context.Context, r Runner, iface string) ([]int, error) {
	phy, err := phyForInterface(ctx, r, iface)
	if err != nil {
		return nil, err
	}
	out, err := r.Run(ctx, "iw", "phy", phy, "info")
	if err != nil {
		return nil, err
	}
	return parsePhyChannels(out), nil
}

func phyForInterface(ctx context.Context, r Runner, iface string) (string, error) {
	out, err := r.Run(ctx, "iw", "dev")
	if err != nil {
		return "", err
	}

	// phy#0
	// 	Interface wlan0
	scanner := bufio.NewScanner(bytes.NewReader(out))
	currentPhy := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "phy#") {
			currentPhy = line
		} else if line == "Interface "+iface {
			return strings.Replace(currentPhy, "#", "", 1), nil
		}
	}
	return "", fmt.Errorf("interface %s not found in iw dev output", iface)
}

// parsePhyChannels reads the Frequencies blocks of "iw phy <phy> info",
// skipping disabled channels. Bitrate lists also start with '*', so only
// lines inside a Frequencies block count.
func parsePhyChannels(out []byte) []int {
	var channels []int
	scanner := bufio.NewScanner(bytes.NewReader(out))
	inFrequencies := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "Frequencies:" {
			inFrequencies = true
			continue
		}
		if !inFrequencies {
			continue
		}
		if !strings.HasPrefix(line, "*") {
			inFrequencies = false
			continue
		}
		if strings.Contains(line, "(disabled)") {
			continue
		}
		if m := reChannel.FindStringSubmatch(line); len(m) > 1 {
			ch, _ := strconv.Atoi(m[1])
			channels = append(channels, ch)
		}
	}
	return channels
}

// SetChannel tunes iface to channel.
func SetChannel(ctx context.Context, r Runner, iface string, channel int) error {
	if channel <= 0 {
		return fmt.Errorf("invalid channel: %d", channel)
	}
	if !domain.IsValidInterface(iface) {
		return fmt.Errorf("invalid interface name %q", iface)
	}
	if _, err := r.Run(ctx, "iw", "dev", iface, "set", "channel", strconv.Itoa(channel)); err != nil {
		return fmt.Errorf("failed to set channel %d on %s: %w", channel, iface, err)
	}
	return nil
}
