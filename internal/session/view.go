package session

import (
	"time"

	"github.com/ixrcore/runtime/internal/device"
	"github.com/ixrcore/runtime/internal/space"
	"github.com/ixrcore/runtime/internal/spacegraph"
	"github.com/ixrcore/runtime/internal/xrerr"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

var _ space.Resolver = (*Session)(nil)

// AbsoluteReferenceRelation implements space.Resolver. Stage is the common
// world frame (identity, by construction). View is the head device's
// current pose, transformed into the system tracking origin via its
// TrackingOriginOffset. Local is anchored at the yaw-only projection of
// the first View relation ever observed, captured lazily on first use per
// spec.md section 4.G. LocalFloor is Local shifted down by the calibrated
// floor offset. CombinedEye and Unbounded are approximated as Stage: this
// runtime has no multi-origin-merge or world-locked-anchor tracking
// backend to ground a distinct frame for either, so both fall back to the
// same identity-to-stage relation rather than fabricating one.
func (s *Session) AbsoluteReferenceRelation(refKind xrtypes.ReferenceSpaceKind, t time.Time) (spacegraph.Relation, error) {
	switch refKind {
	case xrtypes.ReferenceStage, xrtypes.ReferenceCombinedEye, xrtypes.ReferenceUnbounded:
		return spacegraph.IdentityRelation, nil

	case xrtypes.ReferenceView:
		return s.headAbsoluteRelation(t)

	case xrtypes.ReferenceLocal:
		return s.localRelation(t)

	case xrtypes.ReferenceLocalFloor:
		local, err := s.localRelation(t)
		if err != nil {
			return spacegraph.Relation{}, err
		}
		s.relMu.Lock()
		offset := s.localFloorOffsetY
		s.relMu.Unlock()
		local.Pose.Position.Y -= offset
		return local, nil

	default:
		return spacegraph.Relation{}, xrerr.New(xrerr.ValidationFailure, "session.AbsoluteReferenceRelation", "unsupported reference space kind")
	}
}

func (s *Session) headAbsoluteRelation(t time.Time) (spacegraph.Relation, error) {
	head, ok := s.sys.HeadDevice()
	if !ok {
		return spacegraph.Relation{}, xrerr.New(xrerr.ValidationFailure, "session.headAbsoluteRelation", "no head device")
	}
	eyes, err := head.ViewPoses(t, spacegraph.Vec3{}, 1)
	if err != nil {
		return spacegraph.Relation{}, xrerr.Wrap(xrerr.RuntimeFailure, "session.headAbsoluteRelation", err)
	}
	if len(eyes) == 0 {
		return spacegraph.Relation{}, xrerr.New(xrerr.RuntimeFailure, "session.headAbsoluteRelation", "head device returned no pose")
	}
	offset := head.TrackingOriginOffset()
	return spacegraph.Relation{
		Pose:  offset.Compose(eyes[0].Pose),
		Flags: spacegraph.OrientationValid | spacegraph.PositionValid,
	}, nil
}

// localRelation captures the yaw-only projection of the first observed
// View relation on first call, then always returns that fixed frame.
func (s *Session) localRelation(t time.Time) (spacegraph.Relation, error) {
	s.relMu.Lock()
	captured := s.initialHeadRelation
	s.relMu.Unlock()
	if captured != nil {
		return spacegraph.Relation{
			Pose:  *captured,
			Flags: spacegraph.OrientationValid | spacegraph.PositionValid | spacegraph.LinearVelocityValid | spacegraph.AngularVelocityValid,
		}, nil
	}

	head, err := s.headAbsoluteRelation(t)
	if err != nil {
		return spacegraph.Relation{}, err
	}
	yawOnly := spacegraph.Pose{
		Orientation: head.Pose.Orientation.YawOnly(),
		Position:    head.Pose.Position,
	}

	s.relMu.Lock()
	if s.initialHeadRelation == nil {
		s.initialHeadRelation = &yawOnly
	}
	fixed := *s.initialHeadRelation
	s.relMu.Unlock()

	return spacegraph.Relation{
		Pose:  fixed,
		Flags: spacegraph.OrientationValid | spacegraph.PositionValid | spacegraph.LinearVelocityValid | spacegraph.AngularVelocityValid,
	}, nil
}

// ActionPoseRelation implements space.Resolver for pose-typed actions. The
// sampled pose is taken as already expressed in the system tracking
// origin; unlike the head device, per-device TrackingOriginOffset
// composition for arbitrary action sources is not modeled (the attachment
// layer caches input names, not device handles), a scope cut recorded in
// DESIGN.md.
func (s *Session) ActionPoseRelation(actionKey uint32, sub xrtypes.SubActionPath, t time.Time) (spacegraph.Relation, error) {
	attached, ok := s.attachment.Get(actionKey)
	if !ok {
		return spacegraph.Relation{}, xrerr.New(xrerr.ValidationFailure, "session.ActionPoseRelation", "action is not attached")
	}
	st := attached.Get(sub)
	if st.Value.Kind != device.ValuePose {
		return spacegraph.Relation{}, xrerr.New(xrerr.ValidationFailure, "session.ActionPoseRelation", "action is not pose-typed")
	}
	if !st.Active {
		return spacegraph.Relation{Pose: st.Value.Pose}, nil
	}
	return spacegraph.Relation{
		Pose:  st.Value.Pose,
		Flags: spacegraph.OrientationValid | spacegraph.PositionValid,
	}, nil
}

// ViewResult is one eye's located pose and field of view, relative to
// whatever base space LocateViews was asked to resolve against.
type ViewResult struct {
	Pose spacegraph.Pose
	FoV  device.FoV
}

// LocateViews implements spec.md section 4.I's view locate: per-eye poses
// and fields of view for the requested view configuration, relative to
// base, at displayTime.
func (s *Session) LocateViews(config xrtypes.ViewConfigurationType, base *space.Space, displayTime time.Time) ([]ViewResult, spacegraph.Flags, error) {
	head, ok := s.sys.HeadDevice()
	if !ok {
		return nil, 0, xrerr.New(xrerr.ValidationFailure, "session.LocateViews", "no head device")
	}

	count := 2
	if config == xrtypes.ViewConfigMono {
		count = 1
	}

	eyes, err := head.ViewPoses(displayTime, spacegraph.Vec3{X: s.sys.IPDMeters()}, count)
	if err != nil {
		return nil, 0, xrerr.Wrap(xrerr.RuntimeFailure, "session.LocateViews", err)
	}

	center, err := head.ViewPoses(displayTime, spacegraph.Vec3{}, 1)
	if err != nil || len(center) == 0 {
		return nil, 0, xrerr.Wrap(xrerr.RuntimeFailure, "session.LocateViews", err)
	}
	centerAbs := head.TrackingOriginOffset().Compose(center[0].Pose)

	headRel, err := space.Locate(s.headSpace, base, displayTime, s, false)
	if err != nil {
		return nil, 0, err
	}

	offset := head.TrackingOriginOffset()
	out := make([]ViewResult, len(eyes))
	for i, eye := range eyes {
		eyeAbs := offset.Compose(eye.Pose)
		relativeToCenter := centerAbs.Inverse().Compose(eyeAbs)
		out[i] = ViewResult{
			Pose: headRel.Pose.Compose(relativeToCenter),
			FoV:  eye.FoV,
		}
	}

	return out, headRel.Flags, nil
}
