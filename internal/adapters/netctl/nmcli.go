// Package netctl associates with access points through NetworkManager.
package netctl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lcalzada-xor/wbs/internal/adapters/driver"
	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
)

// Connector runs "nmcli device wifi connect".
type Connector struct {
	runner driver.Runner
	iface  string
	logger *slog.Logger
}

var _ ports.NetworkConnector = (*Connector)(nil)

// NewConnector creates a connector. An empty iface lets NetworkManager pick
// the device.
func NewConnector(runner driver.Runner, iface string, logger *slog.Logger) *Connector {
	if runner == nil {
		runner = driver.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{runner: runner, iface: iface, logger: logger}
}

// Connect associates with bssid. Only open networks are attempted, so no
// password is passed.
func (c *Connector) Connect(ctx context.Context, ssid, bssid string) error {
	bssid = domain.NormalizeMAC(bssid)
	if !domain.IsValidMAC(bssid) {
		return fmt.Errorf("invalid bssid %q", bssid)
	}

	args := []string{"device", "wifi", "connect"}
	if ssid != "" {
		args = append(args, ssid)
	} else {
		args = append(args, bssid)
	}
	args = append(args, "bssid", bssid)
	if c.iface != "" {
		if !domain.IsValidInterface(c.iface) {
			return fmt.Errorf("invalid interface name %q", c.iface)
		}
		args = append(args, "ifname", c.iface)
	}

	out, err := c.runner.Run(ctx, "nmcli", args...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	c.logger.Info("Associated", "ssid", ssid, "bssid", bssid, "output", strings.TrimSpace(string(out)))
	return nil
}
