package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the runtime core and its
// control plane. Use these keys consistently across all log statements for
// log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Runtime Operation
	// ========================================================================
	KeyOperation = "operation" // e.g. session.beginFrame, instance.createSession
	KeyHandle    = "handle"    // opaque handle identifier (instance/session/space/...)
	KeyStatus    = "status"    // xrerr.Code of a failed operation
	KeyStatusMsg = "status_msg"

	// ========================================================================
	// Session & Frame
	// ========================================================================
	KeySessionID      = "session_id"
	KeyFrameID        = "frame_id"
	KeySessionState   = "session_state"
	KeySessionsActive = "sessions_active"

	// ========================================================================
	// Request Origin
	// ========================================================================
	KeyClientIP   = "client_ip"
	KeyAuthMethod = "auth_method"

	// ========================================================================
	// Actions & Devices
	// ========================================================================
	KeyActionSet  = "action_set"
	KeyAction     = "action"
	KeySubAction  = "sub_action_path"
	KeyDeviceName = "device_name"

	// ========================================================================
	// Composition
	// ========================================================================
	KeyLayerKind  = "layer_kind"
	KeyBlendMode  = "blend_mode"
	KeySwapchain  = "swapchain_id"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeySource     = "source"
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for OpenTelemetry span ID.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Operation returns a slog.Attr for the runtime operation name.
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

// Handle returns a slog.Attr for a handle formatted as hex, matching the
// byte-slice opaque-identifier convention the control plane uses for
// exported handle IDs.
func Handle(h []byte) slog.Attr {
	return slog.String(KeyHandle, fmt.Sprintf("%x", h))
}

// HandleID returns a slog.Attr for a handle's numeric identifier.
func HandleID(id uint64) slog.Attr { return slog.Uint64(KeyHandle, id) }

// Status returns a slog.Attr for an operation's xrerr.Code, stringified.
func Status(code fmt.Stringer) slog.Attr { return slog.String(KeyStatus, code.String()) }

// StatusMsg returns a slog.Attr for a human-readable status message.
func StatusMsg(msg string) slog.Attr { return slog.String(KeyStatusMsg, msg) }

// SessionID returns a slog.Attr for a session's identifier.
func SessionID(id uint64) slog.Attr { return slog.Uint64(KeySessionID, id) }

// FrameID returns a slog.Attr for a compositor-assigned frame identifier.
func FrameID(id uint64) slog.Attr { return slog.Uint64(KeyFrameID, id) }

// SessionState returns a slog.Attr for a session's lifecycle state.
func SessionState(state string) slog.Attr { return slog.String(KeySessionState, state) }

// SessionsActive returns a slog.Attr for the instance's live session count.
func SessionsActive(n int) slog.Attr { return slog.Int(KeySessionsActive, n) }

// ActionSet returns a slog.Attr for an action set's name.
func ActionSet(name string) slog.Attr { return slog.String(KeyActionSet, name) }

// Action returns a slog.Attr for an action's name.
func Action(name string) slog.Attr { return slog.String(KeyAction, name) }

// SubAction returns a slog.Attr for a sub-action path string.
func SubAction(path string) slog.Attr { return slog.String(KeySubAction, path) }

// DeviceName returns a slog.Attr for a device's stable name.
func DeviceName(name string) slog.Attr { return slog.String(KeyDeviceName, name) }

// LayerKind returns a slog.Attr for a composition layer's kind.
func LayerKind(kind string) slog.Attr { return slog.String(KeyLayerKind, kind) }

// BlendMode returns a slog.Attr for the environment blend mode in use.
func BlendMode(mode string) slog.Attr { return slog.String(KeyBlendMode, mode) }

// Swapchain returns a slog.Attr for a swapchain's handle identifier.
func Swapchain(id uint64) slog.Attr { return slog.Uint64(KeySwapchain, id) }

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error. Returns a zero Attr for a nil error,
// which slog silently drops from the record.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr { return slog.Int(KeyErrorCode, code) }

// Source returns a slog.Attr for a data source (cache, badger, s3, ...).
func Source(src string) slog.Attr { return slog.String(KeySource, src) }
