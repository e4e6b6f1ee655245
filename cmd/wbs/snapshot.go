package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/lcalzada-xor/wbs/internal/adapters/grpcapi"
	"github.com/lcalzada-xor/wbs/internal/adapters/reporting"
	"github.com/lcalzada-xor/wbs/internal/adapters/storage"
	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/services/export"
)

func parseKind(s string) (domain.SnapshotKind, error) {
	kind := domain.SnapshotKind(strings.ToLower(s))
	if !kind.IsValid() {
		return "", fmt.Errorf("unknown snapshot kind %q", s)
	}
	return kind, nil
}

// exportLatest writes the most recent stored snapshot of one kind.
func exportLatest(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	kind, err := parseKind(cmd.String("kind"))
	if err != nil {
		return err
	}

	var encode export.Encoder
	switch format := strings.ToLower(cmd.String("format")); format {
	case "json":
		encode = export.WriteJSON
	case "csv":
		encode = export.WriteCSV
	case "pdf":
		encode = reporting.NewPDFExporter().WritePDF
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}

	if _, err := os.Stat(cfg.Storage.Path); err != nil {
		return fmt.Errorf("no snapshot database at %s: %w", cfg.Storage.Path, err)
	}
	store, err := storage.NewSQLiteAdapter(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.LatestSnapshot(ctx, kind)
	if err != nil {
		return fmt.Errorf("latest %s snapshot: %w", kind, err)
	}

	out, err := openOutput(cmd.String("output"))
	if err != nil {
		return err
	}
	if err := encode(out, *rec); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// remoteSnapshot asks a running engine for a live snapshot.
func remoteSnapshot(ctx context.Context, cmd *cli.Command) error {
	kind, err := parseKind(cmd.String("kind"))
	if err != nil {
		return err
	}

	conn, err := grpc.NewClient(cmd.String("addr"), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	snap, err := grpcapi.GetSnapshot(ctx, conn, kind)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap.AsMap())
}
