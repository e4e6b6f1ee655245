// Package config loads the engine configuration from defaults, a YAML file
// and WBS_* environment variables, and watches the file for tunable changes.
package config

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/services/classify"
	"github.com/lcalzada-xor/wbs/internal/core/services/estimator"
)

// WiFi source names.
const (
	SourceNmcli   = "nmcli"
	SourceMonitor = "monitor"
)

// Config holds all application configuration.
type Config struct {
	App         AppConfig         `yaml:"app"`
	BLE         BLEConfig         `yaml:"ble"`
	WiFi        WiFiConfig        `yaml:"wifi"`
	AutoConnect AutoConnectConfig `yaml:"autoconnect"`
	Export      ExportConfig      `yaml:"export"`
	Storage     StorageConfig     `yaml:"storage"`
	HTTP        HTTPConfig        `yaml:"http"`
	GRPC        GRPCConfig        `yaml:"grpc"`
}

// Validate validates every section.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"app", &c.App},
		{"ble", &c.BLE},
		{"wifi", &c.WiFi},
		{"autoconnect", &c.AutoConnect},
		{"export", &c.Export},
		{"storage", &c.Storage},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	if !c.BLE.Enabled && !c.WiFi.Enabled {
		return fmt.Errorf("at least one of ble.enabled and wifi.enabled must be set")
	}
	return nil
}

// AppConfig holds process-level settings.
type AppConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	Mock     bool       `yaml:"mock"`
	MockSeed int64      `yaml:"mock_seed"`
	Scenario string     `yaml:"scenario"`
	Trace    bool       `yaml:"trace"`
}

// Validate validates the application configuration.
func (c *AppConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Scenario, validation.In("basic", "crowded")),
	)
}

// BLEConfig controls the tag loop and its ledger.
type BLEConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Interval   time.Duration    `yaml:"interval"`
	Timeout    time.Duration    `yaml:"timeout"`
	SweepEvery int              `yaml:"sweep_every"`
	Filter     string           `yaml:"filter"`
	Window     int              `yaml:"window"`
	BufferSize int              `yaml:"buffer_size"`
	Estimator  estimator.Params `yaml:"estimator"`
}

// Validate validates the BLE configuration.
func (c *BLEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(c.Interval)),
		validation.Field(&c.SweepEvery, validation.Required, validation.Min(1)),
		validation.Field(&c.Filter, validation.In(string(classify.FilterAirTag), string(classify.FilterApple), string(classify.FilterAll))),
		validation.Field(&c.Window, validation.Required, validation.Min(1)),
		validation.Field(&c.BufferSize, validation.Min(1)),
		validation.Field(&c.Estimator),
	)
}

// WiFiConfig controls the network loop, its source and quality tiers.
type WiFiConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Source      string              `yaml:"source"`
	Interface   string              `yaml:"interface"`
	ManageMode  bool                `yaml:"manage_mode"` // switch Interface to monitor mode and back
	Interval    time.Duration       `yaml:"interval"`
	Timeout     time.Duration       `yaml:"timeout"`
	SweepEvery  int                 `yaml:"sweep_every"`
	RescanEvery int                 `yaml:"rescan_every"`
	Channels    []int               `yaml:"channels"`
	Dwell       time.Duration       `yaml:"dwell"`
	Thresholds  classify.Thresholds `yaml:"thresholds"`
}

// Validate validates the WiFi configuration.
func (c *WiFiConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Source, validation.Required, validation.In(SourceNmcli, SourceMonitor)),
		validation.Field(&c.Interface, validation.When(c.Source == SourceMonitor, validation.Required),
			validation.By(func(v any) error {
				if s, _ := v.(string); s != "" && !domain.IsValidInterface(s) {
					return fmt.Errorf("invalid interface name %q", s)
				}
				return nil
			})),
		validation.Field(&c.Interval, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(c.Interval)),
		validation.Field(&c.SweepEvery, validation.Required, validation.Min(1)),
		validation.Field(&c.RescanEvery, validation.Min(0)),
		validation.Field(&c.Dwell, validation.Min(time.Duration(0))),
		validation.Field(&c.Thresholds),
	)
}

// AutoConnectConfig controls the open-network auto-connect controller.
type AutoConnectConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	MinSignal      int           `yaml:"min_signal"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffCap     time.Duration `yaml:"backoff_cap"`
	HistorySize    int           `yaml:"history_size"`
	Interface      string        `yaml:"interface"`
}

// Validate validates the auto-connect configuration.
func (c *AutoConnectConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.MinSignal, validation.Min(0), validation.Max(100)),
		validation.Field(&c.AttemptTimeout, validation.Required),
		validation.Field(&c.BackoffBase, validation.Required),
		validation.Field(&c.BackoffCap, validation.Required, validation.Min(c.BackoffBase)),
		validation.Field(&c.HistorySize, validation.Required, validation.Min(1)),
	)
}

// ExportConfig controls periodic snapshot files.
type ExportConfig struct {
	Dir      string        `yaml:"dir"`
	Formats  []string      `yaml:"formats"`
	Interval time.Duration `yaml:"interval"`
	Kinds    []string      `yaml:"kinds"`
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Formats, validation.Each(validation.In("json", "csv", "pdf"))),
		validation.Field(&c.Kinds, validation.Each(validation.In(string(domain.SnapshotTags), string(domain.SnapshotNetworks)))),
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
	)
}

// SnapshotKinds converts Kinds to domain values.
func (c *ExportConfig) SnapshotKinds() []domain.SnapshotKind {
	out := make([]domain.SnapshotKind, 0, len(c.Kinds))
	for _, k := range c.Kinds {
		out = append(out, domain.SnapshotKind(k))
	}
	return out
}

// StorageConfig controls the snapshot database.
type StorageConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	BufferSize int    `yaml:"buffer_size"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.BufferSize, validation.Required, validation.Min(1)),
	)
}

// HTTPConfig holds the web server settings. An empty Addr disables it.
type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	TokenHash string `yaml:"token_hash"` // bcrypt hash of the API token
}

// GRPCConfig holds the gRPC server settings. An empty Addr disables it.
type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

// Tunables are the settings that may change while the engine runs.
type Tunables struct {
	Estimator  estimator.Params
	Window     int
	Thresholds classify.Thresholds
	MinSignal  int
}

// Tunables extracts the hot-reloadable subset.
func (c *Config) Tunables() Tunables {
	return Tunables{
		Estimator:  c.BLE.Estimator,
		Window:     c.BLE.Window,
		Thresholds: c.WiFi.Thresholds,
		MinSignal:  c.AutoConnect.MinSignal,
	}
}

// NewDefaultConfig returns a new Config with the stock values.
func NewDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel: slog.LevelInfo,
			MockSeed: 1,
			Scenario: "basic",
		},
		BLE: BLEConfig{
			Enabled:    true,
			Interval:   time.Second,
			Timeout:    60 * time.Second,
			SweepEvery: 1,
			Filter:     string(classify.FilterAirTag),
			Window:     10,
			BufferSize: 1024,
			Estimator:  estimator.DefaultParams(),
		},
		WiFi: WiFiConfig{
			Enabled:    true,
			Source:     SourceNmcli,
			Interval:   10 * time.Second,
			Timeout:    120 * time.Second,
			SweepEvery: 1,
			Dwell:      300 * time.Millisecond,
			Thresholds: classify.DefaultThresholds(),
		},
		AutoConnect: AutoConnectConfig{
			Enabled:        false,
			Interval:       15 * time.Second,
			MinSignal:      40,
			AttemptTimeout: 15 * time.Second,
			BackoffBase:    30 * time.Second,
			BackoffCap:     10 * time.Minute,
			HistorySize:    50,
		},
		Export: ExportConfig{
			Formats:  []string{"json"},
			Interval: time.Minute,
			Kinds:    []string{string(domain.SnapshotTags), string(domain.SnapshotNetworks)},
		},
		Storage: StorageConfig{
			Path:       defaultDBPath(),
			BufferSize: 100,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}
