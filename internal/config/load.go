package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, the YAML file at path (if
// any) and WBS_* environment variables, in that order, then validates it.
// A missing file at path is not an error when path is empty.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(content))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if v := getEnv("WBS_LOG_LEVEL", ""); v != "" {
		collect(c.App.LogLevel.UnmarshalText([]byte(v)))
	}
	c.App.Mock = getEnvBool("WBS_MOCK", c.App.Mock)
	c.App.Scenario = getEnv("WBS_SCENARIO", c.App.Scenario)
	c.App.Trace = getEnvBool("WBS_TRACE", c.App.Trace)

	c.BLE.Enabled = getEnvBool("WBS_BLE_ENABLED", c.BLE.Enabled)
	c.BLE.Filter = getEnv("WBS_BLE_FILTER", c.BLE.Filter)
	c.BLE.Interval = getEnvDuration("WBS_BLE_INTERVAL", c.BLE.Interval, collect)
	c.BLE.Timeout = getEnvDuration("WBS_BLE_TIMEOUT", c.BLE.Timeout, collect)

	c.WiFi.Enabled = getEnvBool("WBS_WIFI_ENABLED", c.WiFi.Enabled)
	c.WiFi.Source = getEnv("WBS_WIFI_SOURCE", c.WiFi.Source)
	c.WiFi.Interface = getEnv("WBS_INTERFACE", c.WiFi.Interface)
	c.WiFi.Interval = getEnvDuration("WBS_WIFI_INTERVAL", c.WiFi.Interval, collect)
	c.WiFi.Timeout = getEnvDuration("WBS_WIFI_TIMEOUT", c.WiFi.Timeout, collect)
	if v := getEnv("WBS_CHANNELS", ""); v != "" {
		chs, err := parseChannels(v)
		collect(err)
		if err == nil {
			c.WiFi.Channels = chs
		}
	}

	c.AutoConnect.Enabled = getEnvBool("WBS_AUTOCONNECT", c.AutoConnect.Enabled)
	c.AutoConnect.MinSignal = getEnvInt("WBS_MIN_SIGNAL", c.AutoConnect.MinSignal, collect)

	c.Export.Dir = getEnv("WBS_EXPORT_DIR", c.Export.Dir)
	if v := getEnv("WBS_EXPORT_FORMATS", ""); v != "" {
		c.Export.Formats = splitList(v)
	}

	c.Storage.Enabled = getEnvBool("WBS_STORAGE", c.Storage.Enabled)
	c.Storage.Path = getEnv("WBS_DB_PATH", c.Storage.Path)

	c.HTTP.Addr = getEnv("WBS_HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.TokenHash = getEnv("WBS_TOKEN_HASH", c.HTTP.TokenHash)
	c.GRPC.Addr = getEnv("WBS_GRPC_ADDR", c.GRPC.Addr)

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		slog.Warn("Ignoring invalid boolean", "key", key, "value", value)
	}
	return fallback
}

func getEnvInt(key string, fallback int, collect func(error)) int {
	if value, exists := os.LookupEnv(key); exists {
		n, err := strconv.Atoi(value)
		if err != nil {
			collect(fmt.Errorf("%s: %w", key, err))
			return fallback
		}
		return n
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration, collect func(error)) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		collect(fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

// parseChannels parses a comma-separated channel list such as "1,6,11".
func parseChannels(s string) ([]int, error) {
	var out []int
	for _, p := range splitList(s) {
		ch, err := strconv.Atoi(p)
		if err != nil || ch <= 0 {
			return nil, fmt.Errorf("invalid channel %q", p)
		}
		out = append(out, ch)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "wbs.db"
	}
	return filepath.Join(home, ".wbs", "wbs.db")
}
