package ble

import (
	"tinygo.org/x/bluetooth"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

// Advertisement is one scan result as seen by the source.
type Advertisement struct {
	Address          string
	RSSI             int16
	Name             string
	ManufacturerData []domain.ManufacturerData
}

// Scanner is the part of a Bluetooth adapter the source drives. Scan blocks
// until StopScan is called or the adapter fails.
type Scanner interface {
	Enable() error
	Scan(fn func(Advertisement)) error
	StopScan() error
}

// HostScanner drives the host's default adapter through tinygo bluetooth.
type HostScanner struct {
	adapter *bluetooth.Adapter
}

// NewHostScanner wraps bluetooth.DefaultAdapter.
func NewHostScanner() *HostScanner {
	return &HostScanner{adapter: bluetooth.DefaultAdapter}
}

func (h *HostScanner) Enable() error { return h.adapter.Enable() }

func (h *HostScanner) Scan(fn func(Advertisement)) error {
	return h.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		adv := Advertisement{
			Address: result.Address.String(),
			RSSI:    result.RSSI,
			Name:    result.LocalName(),
		}
		for _, md := range result.ManufacturerData() {
			adv.ManufacturerData = append(adv.ManufacturerData, domain.ManufacturerData{
				CompanyID: md.CompanyID,
				Data:      append([]byte(nil), md.Data...),
			})
		}
		fn(adv)
	})
}

func (h *HostScanner) StopScan() error { return h.adapter.StopScan() }
