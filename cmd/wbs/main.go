package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/lcalzada-xor/wbs/internal/app"
	"github.com/lcalzada-xor/wbs/internal/config"
	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

func main() {
	cmd := &cli.Command{
		Name:    "wbs",
		Usage:   "BLE tracker detector and WiFi scanner with open-network auto-connect",
		Version: app.Version,
		Flags:   globalFlags(),
		Action:  runAll,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the BLE and WiFi loops together with the HTTP and gRPC surfaces",
				Action: runAll,
			},
			{
				Name:  "tag",
				Usage: "Track BLE proximity tags only",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "filter", Usage: "airtag, apple or all", Sources: cli.EnvVars("WBS_BLE_FILTER")},
				},
				Action: runTag,
			},
			{
				Name:  "wifi",
				Usage: "Scan WiFi networks only",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "autoconnect", Usage: "Join the best open network automatically"},
					&cli.StringFlag{Name: "source", Usage: "nmcli or monitor"},
					&cli.StringFlag{Name: "interface", Aliases: []string{"i"}, Usage: "Monitor-mode interface"},
				},
				Action: runWiFi,
			},
			{
				Name:  "export",
				Usage: "Write the latest stored snapshot",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Value: string(domain.SnapshotNetworks), Usage: "tags or networks"},
					&cli.StringFlag{Name: "format", Value: "json", Usage: "json, csv or pdf"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
				},
				Action: exportLatest,
			},
			{
				Name:  "snapshot",
				Usage: "Fetch a live snapshot from a running engine over gRPC",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Value: string(domain.SnapshotNetworks), Usage: "tags or networks"},
					&cli.StringFlag{Name: "addr", Value: "localhost:9090", Usage: "gRPC address of the engine"},
				},
				Action: remoteSnapshot,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file",
			Sources: cli.EnvVars("WBS_CONFIG"),
		},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.BoolFlag{Name: "mock", Usage: "Simulate radios instead of opening hardware"},
		&cli.StringFlag{Name: "scenario", Usage: "Mock scenario (basic or crowded)"},
		&cli.IntFlag{Name: "seed", Usage: "Mock random seed"},
		&cli.StringFlag{Name: "http-addr", Usage: "HTTP listen address (empty disables)"},
		&cli.StringFlag{Name: "grpc-addr", Usage: "gRPC listen address (empty disables)"},
		&cli.StringFlag{Name: "export-dir", Usage: "Directory for periodic snapshot files"},
		&cli.BoolFlag{Name: "trace", Usage: "Write OpenTelemetry spans to stderr"},
	}
}

// loadConfig merges the config file, environment and command-line flags and
// installs the default logger.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("log-level") {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return nil, err
		}
	}
	if cmd.IsSet("mock") {
		cfg.App.Mock = cmd.Bool("mock")
	}
	if cmd.IsSet("scenario") {
		cfg.App.Scenario = cmd.String("scenario")
	}
	if cmd.IsSet("seed") {
		cfg.App.MockSeed = cmd.Int("seed")
	}
	if cmd.IsSet("http-addr") {
		cfg.HTTP.Addr = cmd.String("http-addr")
	}
	if cmd.IsSet("grpc-addr") {
		cfg.GRPC.Addr = cmd.String("grpc-addr")
	}
	if cmd.IsSet("export-dir") {
		cfg.Export.Dir = cmd.String("export-dir")
	}
	if cmd.IsSet("trace") {
		cfg.App.Trace = cmd.Bool("trace")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	slog.SetDefault(logger)
	return cfg, nil
}

func runAll(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return runEngine(ctx, cmd, cfg)
}

func runTag(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.BLE.Enabled = true
	cfg.WiFi.Enabled = false
	cfg.AutoConnect.Enabled = false
	if cmd.IsSet("filter") {
		cfg.BLE.Filter = cmd.String("filter")
	}
	return runEngine(ctx, cmd, cfg)
}

func runWiFi(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.BLE.Enabled = false
	cfg.WiFi.Enabled = true
	if cmd.IsSet("autoconnect") {
		cfg.AutoConnect.Enabled = cmd.Bool("autoconnect")
	}
	if cmd.IsSet("source") {
		cfg.WiFi.Source = cmd.String("source")
	}
	if cmd.IsSet("interface") {
		cfg.WiFi.Interface = cmd.String("interface")
	}
	return runEngine(ctx, cmd, cfg)
}

func runEngine(ctx context.Context, cmd *cli.Command, cfg *config.Config) error {
	// Flags may have changed what the file validated.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts []app.Option
	if path := cmd.String("config"); path != "" {
		opts = append(opts, app.WithConfigPath(path))
	}

	application, err := app.New(cfg, opts...)
	if err != nil {
		return err
	}

	slog.Info("WBS starting", "ble", cfg.BLE.Enabled, "wifi", cfg.WiFi.Enabled, "autoconnect", cfg.AutoConnect.Enabled, "mock", cfg.App.Mock)
	if err := application.Run(ctx); err != nil {
		if errors.Is(err, domain.ErrAdapterUnavailable) {
			return fmt.Errorf("radio unavailable, check the adapter and permissions: %w", err)
		}
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
