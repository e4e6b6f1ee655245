// Package export builds timestamped ledger snapshots and hands them to sinks.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
	"github.com/lcalzada-xor/wbs/internal/telemetry"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

// Exporter reads ledgers through their read-only views.
type Exporter struct {
	tags     ports.TagReader
	networks ports.NetworkReader
	sinks    []ports.SnapshotSink
	clock    timeutil.Clock
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewExporter creates an exporter delivering to sinks in order.
func NewExporter(tags ports.TagReader, networks ports.NetworkReader, clock timeutil.Clock, logger *slog.Logger, sinks ...ports.SnapshotSink) *Exporter {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		tags:     tags,
		networks: networks,
		sinks:    sinks,
		clock:    clock,
		logger:   logger,
		tracer:   otel.Tracer("wbs/export"),
	}
}

// Record captures the current state of one ledger.
func (e *Exporter) Record(kind domain.SnapshotKind) (domain.SnapshotRecord, error) {
	rec := domain.SnapshotRecord{
		ID:         uuid.NewString(),
		Kind:       kind,
		CapturedAt: e.clock.Now(),
	}
	switch kind {
	case domain.SnapshotTags:
		rec.Tags = e.tags.Snapshot()
	case domain.SnapshotNetworks:
		rec.Networks = e.networks.Snapshot()
	default:
		return domain.SnapshotRecord{}, fmt.Errorf("unknown snapshot kind %q", kind)
	}
	return rec, nil
}

// Export captures one ledger and delivers it to every sink. A failing sink
// does not stop delivery to the others; all failures are joined.
func (e *Exporter) Export(ctx context.Context, kind domain.SnapshotKind) (domain.SnapshotRecord, error) {
	ctx, span := e.tracer.Start(ctx, "export.Snapshot", trace.WithAttributes(attribute.String("kind", string(kind))))
	defer span.End()

	rec, err := e.Record(kind)
	if err != nil {
		return rec, err
	}
	span.SetAttributes(attribute.Int("entries", rec.Len()))

	var errs []error
	for _, sink := range e.sinks {
		if err := sink.WriteSnapshot(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		telemetry.SnapshotsExported.WithLabelValues(string(kind), "error").Inc()
		return rec, fmt.Errorf("export %s snapshot: %w", kind, err)
	}
	telemetry.SnapshotsExported.WithLabelValues(string(kind), "ok").Inc()
	e.logger.Debug("Snapshot exported", "kind", kind, "id", rec.ID, "entries", rec.Len())
	return rec, nil
}
