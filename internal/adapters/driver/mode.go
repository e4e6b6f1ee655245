package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

// EnableMonitorMode takes iface down, switches it to monitor mode and brings
// it back up. NetworkManager must not be managing the interface.
func EnableMonitorMode(ctx context.Context, r Runner, iface string) error {
	return setType(ctx, r, iface, "monitor")
}

// DisableMonitorMode puts iface back into managed mode. Every step is
// attempted; the errors are joined.
func DisableMonitorMode(ctx context.Context, r Runner, iface string) error {
	if !domain.IsValidInterface(iface) {
		return fmt.Errorf("invalid interface name %q", iface)
	}
	var errs []error
	for _, cmd := range [][]string{
		{"ip", "link", "set", iface, "down"},
		{"iw", "dev", iface, "set", "type", "managed"},
		{"ip", "link", "set", iface, "up"},
	} {
		if _, err := r.Run(ctx, cmd[0], cmd[1:]...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func setType(ctx context.Context, r Runner, iface, mode string) error {
	if !domain.IsValidInterface(iface) {
		return fmt.Errorf("invalid interface name %q", iface)
	}
	if _, err := r.Run(ctx, "ip", "link", "set", iface, "down"); err != nil {
		return err
	}
	if _, err := r.Run(ctx, "iw", "dev", iface, "set", "type", mode); err != nil {
		// "Device or resource busy" usually means NetworkManager or
		// wpa_supplicant still owns the interface.
		_, _ = r.Run(ctx, "ip", "link", "set", iface, "up")
		return fmt.Errorf("set %s type %s: %w", iface, mode, err)
	}
	_, err := r.Run(ctx, "ip", "link", "set", iface, "up")
	return err
}
