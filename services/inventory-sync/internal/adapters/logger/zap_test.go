package logger

import (
	"context"
	"testing"

	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (interfaces.LoggerPort, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewFromZap(zap.New(core)), logs
}

func TestLogFieldsAreConverted(t *testing.T) {
	log, logs := newObserved()

	log.Info("импорт", interfaces.LogField{Key: "records", Value: 42})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "импорт", entry.Message)
	assert.Equal(t, int64(42), entry.ContextMap()["records"])
}

func TestContextFieldsAreExtracted(t *testing.T) {
	log, logs := newObserved()

	ctx := interfaces.WithJobID(context.Background(), "job-1")
	ctx = interfaces.WithSnapshotID(ctx, "snap-1")
	ctx = context.WithValue(ctx, interfaces.RequestIDKey, "req-1")

	log.WarnWithContext(ctx, "опрос")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "job-1", fields["job_id"])
	assert.Equal(t, "snap-1", fields["snapshot_id"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.NotContains(t, fields, "trace_id")
}

func TestWithJob(t *testing.T) {
	log, logs := newObserved()

	log.WithJob("job-9").Error("сбой", interfaces.LogField{Key: "error", Value: "boom"})

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "job-9", fields["job_id"])
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}
