package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{
		Level:       LogLevelInfo,
		Format:      LogFormatJSON,
		Output:      &buf,
		ServiceName: "tempora",
	})

	logger.Info("slot query completed", "slot_count", 12)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "slot query completed", entry["msg"])
	assert.Equal(t, "tempora", entry["service"])
	assert.EqualValues(t, 12, entry["slot_count"])
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{
		Level:  LogLevelWarn,
		Format: LogFormatText,
		Output: &buf,
	})

	logger.Info("should be dropped")
	logger.Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should be dropped")
	assert.Contains(t, out, "should appear")
}

func TestNewLogger_CorrelationIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{
		Level:  LogLevelInfo,
		Format: LogFormatJSON,
		Output: &buf,
	})

	ctx := WithCorrelationID(context.Background(), "corr-123")
	logger.InfoContext(ctx, "booking attempted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "corr-123", entry[CorrelationIDKey])
}

func TestNewRequestContext_GeneratesIDs(t *testing.T) {
	ctx := NewRequestContext(context.Background(), "")

	assert.NotEmpty(t, RequestIDFromContext(ctx))
	assert.NotEmpty(t, CorrelationIDFromContext(ctx))
}

func TestNewRequestContext_CarriesParentCorrelation(t *testing.T) {
	ctx := NewRequestContext(context.Background(), "parent-corr")
	assert.Equal(t, "parent-corr", CorrelationIDFromContext(ctx))
}

func TestMetrics_CountersAndDurations(t *testing.T) {
	m := NewMetrics()
	m.Inc("slots.query")
	m.Add("slots.query", 2)
	m.Observe("slots.query.duration", 10_000_000)
	m.Observe("slots.query.duration", 30_000_000)

	assert.EqualValues(t, 3, m.Counter("slots.query"))

	snap := m.Durations()["slots.query.duration"]
	assert.EqualValues(t, 2, snap.Count)
	assert.EqualValues(t, 20_000_000, snap.Avg)
	assert.EqualValues(t, 30_000_000, snap.Max)
}

func TestHealthChecker_Degraded(t *testing.T) {
	h := NewHealthChecker(0)
	h.Register("database", func(ctx context.Context) error { return nil })
	h.Register("redis", func(ctx context.Context) error { return assert.AnError })

	report := h.Check(context.Background())

	assert.Equal(t, HealthStatusDegraded, report.Status)
	assert.Equal(t, HealthStatusUp, report.Components["database"].Status)
	assert.Equal(t, HealthStatusDown, report.Components["redis"].Status)
	assert.True(t, strings.Contains(report.Components["redis"].Error, "assert.AnError"))
}
