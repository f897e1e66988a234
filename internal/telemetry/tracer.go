package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for runtime-core operations, following OpenTelemetry
// semantic-convention-style dotted naming.
const (
	AttrInstanceID = "xr.instance.id"
	AttrSessionID  = "xr.session.id"
	AttrFrameID    = "xr.frame.id"
	AttrActionSet  = "xr.action_set.name"
	AttrAction     = "xr.action.name"
	AttrSubAction  = "xr.sub_action.path"
	AttrDeviceName = "xr.device.name"
	AttrLayerKind  = "xr.layer.kind"
	AttrSwapchain  = "xr.swapchain.id"
	AttrBlendMode  = "xr.blend_mode"
)

// Span names for runtime-core operations.
const (
	SpanSessionCreate  = "session.create"
	SpanSessionBegin   = "session.begin"
	SpanSessionEnd     = "session.end"
	SpanFrameWait      = "frame.wait"
	SpanFrameBegin     = "frame.begin"
	SpanFrameEnd       = "frame.end"
	SpanLayerSubmit    = "layer.submit"
	SpanActionsSync    = "actions.sync"
	SpanActionsAttach  = "actions.attach"
	SpanSwapchainAcquire = "swapchain.acquire"
)

// InstanceID returns an attribute for a root instance's identity.
func InstanceID(id string) attribute.KeyValue { return attribute.String(AttrInstanceID, id) }

// SessionID returns an attribute for a session's identity.
func SessionID(id uint64) attribute.KeyValue { return attribute.Int64(AttrSessionID, int64(id)) }

// FrameID returns an attribute for a compositor-assigned frame identifier.
func FrameID(id uint64) attribute.KeyValue { return attribute.Int64(AttrFrameID, int64(id)) }

// ActionSetName returns an attribute for an action set's name.
func ActionSetName(name string) attribute.KeyValue { return attribute.String(AttrActionSet, name) }

// ActionName returns an attribute for an action's name.
func ActionName(name string) attribute.KeyValue { return attribute.String(AttrAction, name) }

// SubActionPath returns an attribute for a sub-action path string.
func SubActionPath(path string) attribute.KeyValue { return attribute.String(AttrSubAction, path) }

// DeviceName returns an attribute for a device's stable name.
func DeviceName(name string) attribute.KeyValue { return attribute.String(AttrDeviceName, name) }

// LayerKind returns an attribute for a composition layer's kind.
func LayerKind(kind string) attribute.KeyValue { return attribute.String(AttrLayerKind, kind) }

// BlendMode returns an attribute for the environment blend mode in use.
func BlendMode(mode string) attribute.KeyValue { return attribute.String(AttrBlendMode, mode) }

// StartSessionSpan starts a span for a session lifecycle operation.
func StartSessionSpan(ctx context.Context, operation string, sessionID uint64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{SessionID(sessionID)}, attrs...)
	return StartSpan(ctx, "session."+operation, trace.WithAttributes(allAttrs...))
}

// StartFrameSpan starts a span for one frame-pacing step.
func StartFrameSpan(ctx context.Context, operation string, sessionID uint64, frame uint64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{SessionID(sessionID), FrameID(frame)}, attrs...)
	return StartSpan(ctx, "frame."+operation, trace.WithAttributes(allAttrs...))
}

// StartActionsSpan starts a span for an action-binding operation.
func StartActionsSpan(ctx context.Context, operation string, sessionID uint64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{SessionID(sessionID)}, attrs...)
	return StartSpan(ctx, "actions."+operation, trace.WithAttributes(allAttrs...))
}
