package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "xrruntime", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, SessionID(1))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("InstanceID", func(t *testing.T) {
		attr := InstanceID("inst-1")
		assert.Equal(t, AttrInstanceID, string(attr.Key))
		assert.Equal(t, "inst-1", attr.Value.AsString())
	})

	t.Run("SessionID", func(t *testing.T) {
		attr := SessionID(42)
		assert.Equal(t, AttrSessionID, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("FrameID", func(t *testing.T) {
		attr := FrameID(7)
		assert.Equal(t, AttrFrameID, string(attr.Key))
		assert.Equal(t, int64(7), attr.Value.AsInt64())
	})

	t.Run("ActionSetName", func(t *testing.T) {
		attr := ActionSetName("gameplay")
		assert.Equal(t, AttrActionSet, string(attr.Key))
		assert.Equal(t, "gameplay", attr.Value.AsString())
	})

	t.Run("ActionName", func(t *testing.T) {
		attr := ActionName("grab")
		assert.Equal(t, AttrAction, string(attr.Key))
		assert.Equal(t, "grab", attr.Value.AsString())
	})

	t.Run("SubActionPath", func(t *testing.T) {
		attr := SubActionPath("/user/hand/left")
		assert.Equal(t, AttrSubAction, string(attr.Key))
		assert.Equal(t, "/user/hand/left", attr.Value.AsString())
	})

	t.Run("DeviceName", func(t *testing.T) {
		attr := DeviceName("dev-hmd-01")
		assert.Equal(t, AttrDeviceName, string(attr.Key))
		assert.Equal(t, "dev-hmd-01", attr.Value.AsString())
	})

	t.Run("LayerKind", func(t *testing.T) {
		attr := LayerKind("projection")
		assert.Equal(t, AttrLayerKind, string(attr.Key))
		assert.Equal(t, "projection", attr.Value.AsString())
	})

	t.Run("BlendMode", func(t *testing.T) {
		attr := BlendMode("opaque")
		assert.Equal(t, AttrBlendMode, string(attr.Key))
		assert.Equal(t, "opaque", attr.Value.AsString())
	})
}

func TestStartSessionSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSessionSpan(ctx, "begin", 1)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartFrameSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartFrameSpan(ctx, "wait", 1, 10)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	newCtx2, span2 := StartFrameSpan(ctx, "end", 1, 11, BlendMode("opaque"))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartActionsSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartActionsSpan(ctx, "sync", 1)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}
