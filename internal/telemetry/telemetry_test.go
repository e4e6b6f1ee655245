package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitMetrics_Idempotent(t *testing.T) {
	InitMetrics()
	InitMetrics()

	ScansTotal.WithLabelValues("test").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(ScansTotal.WithLabelValues("test")))
}

func TestInitTracer_WritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracer("test", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("wbs/test").Start(context.Background(), "unit")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"unit"`)
}
