package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ixrcore/runtime/internal/compositor"
	"github.com/ixrcore/runtime/internal/metrics"
	"github.com/ixrcore/runtime/internal/telemetry"
	"github.com/ixrcore/runtime/internal/xrerr"
)

// framePacing implements spec.md section 4.I's frame-pacing contract: a
// binary semaphore wait_gate plus an atomic active_wait_frames counter
// bounding waitFrame/beginFrame/endFrame interleavings.
type framePacing struct {
	gateMu   sync.Mutex
	gateCond *sync.Cond
	gateOpen bool

	active atomic.Int32

	started   bool
	beganID   compositor.FrameID
	lastWait  compositor.FrameID
	waitStart time.Time
}

func (f *framePacing) init() {
	f.gateOpen = true
	f.gateCond = sync.NewCond(&f.gateMu)
}

func (f *framePacing) acquireGate() {
	f.gateMu.Lock()
	for !f.gateOpen {
		f.gateCond.Wait()
	}
	f.gateOpen = false
	f.gateMu.Unlock()
}

func (f *framePacing) openGate() {
	f.gateMu.Lock()
	f.gateOpen = true
	f.gateCond.Signal()
	f.gateMu.Unlock()
}

// WaitFrame implements waitFrame: acquire the gate, ask the compositor,
// validate the predicted display time, and increment active_wait_frames.
func (s *Session) WaitFrame(ctx context.Context) (compositor.WaitFrameResult, bool, error) {
	ctx, span := telemetry.StartSessionSpan(ctx, "waitFrame", s.id)
	defer span.End()

	s.frame.acquireGate()

	res, err := s.compositor.WaitFrame(ctx)
	if err != nil {
		s.frame.openGate()
		err = xrerr.Wrap(xrerr.RuntimeFailure, "session.WaitFrame", err)
		telemetry.RecordError(ctx, err)
		if s.metrics != nil {
			s.metrics.CompositorErrors.WithLabelValues("waitFrame").Inc()
		}
		return compositor.WaitFrameResult{}, false, err
	}
	telemetry.SetAttributes(ctx, telemetry.FrameID(uint64(res.FrameID)))
	if s.metrics != nil {
		s.metrics.FramesWaited.Inc()
	}
	if !res.PredictedDisplayTime.After(time.Unix(0, 0)) {
		s.frame.openGate()
		err := xrerr.New(xrerr.RuntimeFailure, "session.WaitFrame", "predicted display time must be positive")
		telemetry.RecordError(ctx, err)
		return compositor.WaitFrameResult{}, false, err
	}

	s.frame.gateMu.Lock()
	s.frame.lastWait = res.FrameID
	s.frame.waitStart = time.Now()
	s.frame.gateMu.Unlock()

	s.frame.active.Add(1)

	s.mu.Lock()
	shouldRender := s.state == StateVisible || s.state == StateFocused || s.state == StateStopping
	s.mu.Unlock()

	return res, shouldRender, nil
}

// BeginFrame implements beginFrame. The bool return is true exactly when
// the call discarded a stale frame (xrerr.FrameDiscarded), per spec.md's
// "not a failure... a distinguished success code".
func (s *Session) BeginFrame(ctx context.Context) (bool, error) {
	n := s.frame.active.Load()
	if n == 0 {
		return false, xrerr.New(xrerr.CallOrderInvalid, "session.BeginFrame", "no outstanding waitFrame")
	}

	ctx, span := telemetry.StartFrameSpan(ctx, "begin", s.id, uint64(s.frame.lastWait))
	defer span.End()

	s.frame.gateMu.Lock()

	if !s.frame.started {
		s.frame.started = true
		id := s.frame.lastWait
		s.frame.gateMu.Unlock()

		if err := s.compositor.BeginFrame(ctx, id); err != nil {
			err = xrerr.Wrap(xrerr.RuntimeFailure, "session.BeginFrame", err)
			telemetry.RecordError(ctx, err)
			if s.metrics != nil {
				s.metrics.CompositorErrors.WithLabelValues("beginFrame").Inc()
			}
			return false, err
		}
		s.frame.gateMu.Lock()
		s.frame.beganID = id
		s.frame.gateMu.Unlock()
		s.frame.openGate()
		if s.metrics != nil {
			s.metrics.FramesBegun.Inc()
		}
		return false, nil
	}

	if n == 2 {
		prevID := s.frame.beganID
		newID := s.frame.lastWait
		s.frame.gateMu.Unlock()

		_ = s.compositor.DiscardFrame(ctx, prevID)
		s.frame.active.Add(-1)

		if err := s.compositor.BeginFrame(ctx, newID); err != nil {
			err = xrerr.Wrap(xrerr.RuntimeFailure, "session.BeginFrame", err)
			telemetry.RecordError(ctx, err)
			if s.metrics != nil {
				s.metrics.CompositorErrors.WithLabelValues("beginFrame").Inc()
			}
			return false, err
		}
		s.frame.gateMu.Lock()
		s.frame.beganID = newID
		s.frame.gateMu.Unlock()
		s.frame.openGate()
		if s.metrics != nil {
			s.metrics.FramesBegun.Inc()
			s.metrics.FramesDiscarded.Inc()
		}

		err := xrerr.New(xrerr.FrameDiscarded, "session.BeginFrame", "second begin discarded the previously begun frame")
		telemetry.AddEvent(ctx, "frame.discarded")
		return true, err
	}

	s.frame.gateMu.Unlock()
	err := xrerr.New(xrerr.CallOrderInvalid, "session.BeginFrame", "frame already started with an invalid outstanding-wait count")
	telemetry.RecordError(ctx, err)
	return false, err
}

// endFrameEpilogue always runs after endFrame's body: decrement
// active_wait_frames and clear frame_started, per spec.md's "always"
// wording.
func (s *Session) endFrameEpilogue() {
	s.frame.gateMu.Lock()
	s.frame.started = false
	s.frame.gateMu.Unlock()
	s.frame.active.Add(-1)
}

// resetForEndSession discards both the waited and begun frames and
// reopens the gate, per spec.md's "endSession discards both waited and
// begun frames to release the pacing resources".
func (f *framePacing) resetForEndSession(ctx context.Context, comp compositor.Compositor, m *metrics.Metrics) {
	f.gateMu.Lock()
	started := f.started
	beganID := f.beganID
	f.started = false
	f.gateMu.Unlock()

	if started {
		_ = comp.DiscardFrame(ctx, beganID)
		if m != nil {
			m.FramesDiscarded.Inc()
		}
	}
	f.active.Store(0)
	f.openGate()
}
