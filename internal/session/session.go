// Package session implements spec.md section 4.I: the session lifecycle
// state machine, the wait/begin/end frame pacing contract, layer
// validation and submission, and view locate. It is the component every
// other piece of the runtime core ultimately serves.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ixrcore/runtime/internal/action"
	"github.com/ixrcore/runtime/internal/compositor"
	"github.com/ixrcore/runtime/internal/device"
	"github.com/ixrcore/runtime/internal/event"
	"github.com/ixrcore/runtime/internal/handle"
	"github.com/ixrcore/runtime/internal/logger"
	"github.com/ixrcore/runtime/internal/metrics"
	"github.com/ixrcore/runtime/internal/space"
	"github.com/ixrcore/runtime/internal/spacegraph"
	"github.com/ixrcore/runtime/internal/telemetry"
	"github.com/ixrcore/runtime/internal/xrerr"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

// State is one of the session lifecycle states of spec.md section 4.I.
type State int

const (
	StateIdle State = iota
	StateReady
	StateSynchronized
	StateVisible
	StateFocused
	StateStopping
	StateLossPending
	StateExiting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateReady:
		return "Ready"
	case StateSynchronized:
		return "Synchronized"
	case StateVisible:
		return "Visible"
	case StateFocused:
		return "Focused"
	case StateStopping:
		return "Stopping"
	case StateLossPending:
		return "LossPending"
	case StateExiting:
		return "Exiting"
	default:
		return "Unknown"
	}
}

func toEventState(s State) event.SessionState {
	switch s {
	case StateIdle:
		return event.StateIdle
	case StateReady:
		return event.StateReady
	case StateSynchronized:
		return event.StateSynchronized
	case StateVisible:
		return event.StateVisible
	case StateFocused:
		return event.StateFocused
	case StateStopping:
		return event.StateStopping
	case StateLossPending:
		return event.StateLossPending
	default:
		return event.StateExiting
	}
}

func isRunning(s State) bool {
	switch s {
	case StateSynchronized, StateVisible, StateFocused, StateStopping:
		return true
	default:
		return false
	}
}

var nextSessionID atomic.Uint64

// HeadSource is the slice of internal/system's state a Session needs: the
// head device, role devices for action sampling, the supported blend
// modes, and the configured IPD. A small capability interface rather than
// a direct internal/system dependency, consistent with spec.md section
// 9's "dynamic dispatch... modeled as a capability interface per
// component".
type HeadSource interface {
	HeadDevice() (device.Device, bool)
	RoleDevice(sub xrtypes.SubActionPath) (device.Device, bool)
	SupportedBlendModes() []compositor.BlendMode
	IPDMeters() float64
}

// Session is the root object the application drives through its lifetime:
// begin/end, wait/begin/end frame, and layer submission.
type Session struct {
	handle.Base

	id uint64

	mu      sync.Mutex
	state   State
	exiting bool

	events     *event.Queue
	compositor compositor.Compositor
	sys        HeadSource
	attachment *action.Attachment
	metrics    *metrics.Metrics

	opts Options

	headSpace *space.Space

	relMu                sync.Mutex
	initialHeadRelation  *spacegraph.Pose // captured yaw-only, nil until set
	localFloorOffsetY    float64          // calibration override, meters

	frame framePacing
}

// Options carries the process-wide session options of spec.md section 5,
// read once at instance creation and copied unchanged into every session.
type Options struct {
	// LogFrameTiming, when set, makes EndFrame emit a debug log line with
	// the observed frame latency.
	LogFrameTiming bool

	// ForceTimelineSemaphores, when set, makes BeginSession log that it is
	// forcing timeline semaphores for swapchain image ownership handoff.
	// The option is not passed to the compositor.
	ForceTimelineSemaphores bool
}

// New creates a session in the Idle state and immediately advances it to
// Ready, per spec.md section 4.I ("create → Idle → Ready, eager,
// immediate").
func New(parent *handle.Base, comp compositor.Compositor, sys HeadSource, attachment *action.Attachment, events *event.Queue, m *metrics.Metrics, opts Options) (*Session, error) {
	s := &Session{
		id:         nextSessionID.Add(1),
		state:      StateIdle,
		compositor: comp,
		sys:        sys,
		attachment: attachment,
		events:     events,
		metrics:    m,
		opts:       opts,
	}
	s.frame.init()

	if err := handle.Init(&s.Base, s, handle.KindSession, parent, destroy); err != nil {
		return nil, err
	}

	headSpace, err := space.CreateReference(&s.Base, xrtypes.ReferenceView, spacegraph.IdentityPose)
	if err != nil {
		return nil, err
	}
	s.headSpace = headSpace

	s.transitionLocked(StateReady)
	return s, nil
}

func destroy(b *handle.Base) {
	s := b.Owner().(*Session)
	s.attachment.Teardown()
}

// SetLocalFloorOffsetMeters installs the calibrated LocalFloor y-offset
// this session's AbsoluteReferenceRelation subtracts from Local when
// resolving a LocalFloor reference space. Left at its zero value,
// LocalFloor behaves identically to Local.
func (s *Session) SetLocalFloorOffsetMeters(offset float64) {
	s.relMu.Lock()
	defer s.relMu.Unlock()
	s.localFloorOffsetY = offset
}

// EventSessionID implements event.SessionHandle.
func (s *Session) EventSessionID() uint64 { return s.id }

// IsLive implements event.SessionHandle.
func (s *Session) IsLive() bool { return s.Base.State() == handle.Live }

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// pushEvent pushes ev onto the instance event queue, recording whether the
// push overflowed an already-full queue.
func (s *Session) pushEvent(ev event.Event) {
	if s.metrics == nil {
		s.events.Push(ev)
		return
	}
	before := s.events.Overflow()
	s.events.Push(ev)
	s.metrics.EventsPushed.Inc()
	if s.events.Overflow() != before {
		s.metrics.EventsDropped.Inc()
	}
}

// transitionLocked sets the state and pushes a SessionStateChanged event.
// Caller must hold s.mu.
func (s *Session) transitionLocked(to State) {
	s.state = to
	s.pushEvent(event.Event{
		Kind:    event.SessionStateChanged,
		Time:    now(),
		Session: s,
		State:   toEventState(to),
	})
}

// now is a seam for tests; spec.md has no wall-clock dependency beyond
// monotonic ordering of pushed events.
var now = time.Now

// BeginSession implements spec.md section 4.I's beginSession: Ready →
// Synchronized.
func (s *Session) BeginSession(ctx context.Context) error {
	ctx, span := telemetry.StartSessionSpan(ctx, "begin", s.id)
	defer span.End()

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		if isRunning(s.state) {
			err := xrerr.New(xrerr.SessionRunning, "session.BeginSession", "session is already running")
			telemetry.RecordError(ctx, err)
			return err
		}
		err := xrerr.New(xrerr.CallOrderInvalid, "session.BeginSession", "session is not in the Ready state")
		telemetry.RecordError(ctx, err)
		return err
	}
	s.mu.Unlock()

	if err := s.compositor.BeginSession(ctx); err != nil {
		err = xrerr.Wrap(xrerr.RuntimeFailure, "session.BeginSession", err)
		telemetry.RecordError(ctx, err)
		if s.metrics != nil {
			s.metrics.CompositorErrors.WithLabelValues("beginSession").Inc()
		}
		return err
	}
	if s.opts.ForceTimelineSemaphores {
		logger.DebugCtx(ctx, "session forcing timeline semaphores for swapchain handoff", "session_id", s.id)
	}

	s.mu.Lock()
	s.transitionLocked(StateSynchronized)
	s.mu.Unlock()
	return nil
}

// HandleCompositorEvent folds a compositor-reported visibility/focus event
// into the state machine per spec.md section 4.I's compositor-driven
// transitions.
func (s *Session) HandleCompositorEvent(ev compositor.Event) {
	if ev.Kind != compositor.EventStateChange {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateSynchronized:
		if ev.Visible {
			s.transitionLocked(StateVisible)
		}
	case StateVisible:
		if !ev.Visible {
			s.transitionLocked(StateSynchronized)
		} else if ev.Focused {
			s.transitionLocked(StateFocused)
		}
	case StateFocused:
		if !ev.Focused {
			s.transitionLocked(StateVisible)
		}
	}
}

// exitCascade is the order RequestExitSession walks down through, per
// spec.md section 4.I ("Focused↓Visible↓Synchronized↓Stopping").
var exitCascade = []State{StateFocused, StateVisible, StateSynchronized, StateStopping}

// RequestExitSession implements spec.md section 4.I's requestExitSession:
// marks the session exiting and cascades its state down to Stopping,
// emitting one event per state it passes through.
func (s *Session) RequestExitSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !isRunning(s.state) {
		return xrerr.New(xrerr.SessionNotRunning, "session.RequestExitSession", "session is not running")
	}
	s.exiting = true

	start := -1
	for i, st := range exitCascade {
		if st == s.state {
			start = i
			break
		}
	}
	if start < 0 {
		// Already Stopping: nothing to cascade through.
		return nil
	}
	for i := start + 1; i < len(exitCascade); i++ {
		s.transitionLocked(exitCascade[i])
	}
	return nil
}

// EndSession implements spec.md section 4.I's endSession: requires
// Stopping, discards pacing resources, then Idle → (Exiting if exiting,
// else Ready).
func (s *Session) EndSession(ctx context.Context) error {
	ctx, span := telemetry.StartSessionSpan(ctx, "end", s.id)
	defer span.End()

	s.mu.Lock()
	if s.state != StateStopping {
		s.mu.Unlock()
		err := xrerr.New(xrerr.SessionNotStopping, "session.EndSession", "session is not in the Stopping state")
		telemetry.RecordError(ctx, err)
		return err
	}
	s.mu.Unlock()

	s.frame.resetForEndSession(ctx, s.compositor, s.metrics)

	if err := s.compositor.EndSession(ctx); err != nil {
		err = xrerr.Wrap(xrerr.RuntimeFailure, "session.EndSession", err)
		telemetry.RecordError(ctx, err)
		if s.metrics != nil {
			s.metrics.CompositorErrors.WithLabelValues("endSession").Inc()
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(StateIdle)
	if s.exiting {
		s.transitionLocked(StateExiting)
	} else {
		s.transitionLocked(StateReady)
	}
	return nil
}

// SyncActions implements the syncActions entry point for this session,
// delegating to its Attachment with the head-source's role devices as the
// device lookup.
func (s *Session) SyncActions(subs []xrtypes.SubActionPath) error {
	return s.attachment.SyncActions(subs, sessionDeviceLookup{s})
}

type sessionDeviceLookup struct{ s *Session }

func (d sessionDeviceLookup) Device(name string) (device.Device, error) {
	if head, ok := d.s.sys.HeadDevice(); ok && head.Name() == name {
		return head, nil
	}
	for _, sub := range []xrtypes.SubActionPath{xrtypes.SubActionLeft, xrtypes.SubActionRight, xrtypes.SubActionGamepad} {
		if dev, ok := d.s.sys.RoleDevice(sub); ok && dev.Name() == name {
			return dev, nil
		}
	}
	return nil, xrerr.New(xrerr.ValidationFailure, "session.Device", "unknown device name")
}

