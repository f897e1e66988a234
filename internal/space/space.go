// Package space implements spec.md section 4.G: reference and action space
// objects, and the locate() algorithm that resolves one space relative to
// another through internal/spacegraph's composition algebra.
package space

import (
	"time"

	"github.com/ixrcore/runtime/internal/handle"
	"github.com/ixrcore/runtime/internal/spacegraph"
	"github.com/ixrcore/runtime/internal/xrerr"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

// kind distinguishes a reference space from an action space.
type kind int

const (
	kindReference kind = iota
	kindAction
)

// Space is either a reference space (anchored to a well-known tracking
// frame) or an action space (anchored to a pose-typed action's current
// value), plus a fixed offset pose within that frame.
type Space struct {
	handle.Base

	kind          kind
	refKind       xrtypes.ReferenceSpaceKind
	actionKey     uint32
	subActionPath xrtypes.SubActionPath
	poseInSpace   spacegraph.Pose
}

const poseValidityTolerance = 0.01

func validatePose(p spacegraph.Pose) error {
	if !p.Position.IsFinite() {
		return xrerr.New(xrerr.PoseInvalid, "space.validatePose", "position is not finite")
	}
	if !p.Orientation.IsNormalized(poseValidityTolerance) {
		return xrerr.New(xrerr.PoseInvalid, "space.validatePose", "orientation is not within 1% of unit length")
	}
	return nil
}

func isSupportedReferenceKind(k xrtypes.ReferenceSpaceKind) bool {
	switch k {
	case xrtypes.ReferenceView, xrtypes.ReferenceLocal, xrtypes.ReferenceLocalFloor,
		xrtypes.ReferenceStage, xrtypes.ReferenceUnbounded, xrtypes.ReferenceCombinedEye:
		return true
	default:
		return false
	}
}

// CreateReference implements spec.md section 4.G's reference_create:
// validates the reference kind is supported and the pose is finite with a
// normalized quaternion within 1%.
func CreateReference(parent *handle.Base, refKind xrtypes.ReferenceSpaceKind, poseInSpace spacegraph.Pose) (*Space, error) {
	if !isSupportedReferenceKind(refKind) {
		return nil, xrerr.New(xrerr.ValidationFailure, "space.CreateReference", "unsupported reference space kind")
	}
	if err := validatePose(poseInSpace); err != nil {
		return nil, err
	}

	s := &Space{kind: kindReference, refKind: refKind, poseInSpace: poseInSpace}
	if err := handle.Init(&s.Base, s, handle.KindSpace, parent, nil); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateAction implements spec.md section 4.G's action_create: creates an
// action space bound to the action's key and the chosen sub-action-path.
func CreateAction(parent *handle.Base, actionKey uint32, sub xrtypes.SubActionPath, poseInSpace spacegraph.Pose) (*Space, error) {
	if err := validatePose(poseInSpace); err != nil {
		return nil, err
	}

	s := &Space{kind: kindAction, actionKey: actionKey, subActionPath: sub, poseInSpace: poseInSpace}
	if err := handle.Init(&s.Base, s, handle.KindSpace, parent, nil); err != nil {
		return nil, err
	}
	return s, nil
}

// IsAction reports whether s is an action space.
func (s *Space) IsAction() bool { return s.kind == kindAction }

// ReferenceKind returns s's reference kind; only meaningful if !IsAction().
func (s *Space) ReferenceKind() xrtypes.ReferenceSpaceKind { return s.refKind }

// ActionKey and SubActionPath identify the action an action space samples;
// only meaningful if IsAction().
func (s *Space) ActionKey() uint32                         { return s.actionKey }
func (s *Space) SubActionPath() xrtypes.SubActionPath       { return s.subActionPath }

// Resolver supplies the tracking-system state locate() needs: absolute
// reference-frame relations (relative to a common world/stage frame) and
// action pose sources, in that same frame. Implemented by internal/session,
// which owns the device set and the captured initial-head relation.
type Resolver interface {
	// AbsoluteReferenceRelation returns refKind's relation to the common
	// world frame at t.
	AbsoluteReferenceRelation(refKind xrtypes.ReferenceSpaceKind, t time.Time) (spacegraph.Relation, error)

	// ActionPoseRelation returns the given pose action's relation to the
	// common world frame at t, for the given sub-action path.
	ActionPoseRelation(actionKey uint32, sub xrtypes.SubActionPath, t time.Time) (spacegraph.Relation, error)
}

// Result is locate()'s output: a pose, the public validity flags, and an
// optional velocity when the flags claim it.
type Result struct {
	Pose     spacegraph.Pose
	Flags    spacegraph.Flags
	Velocity *Velocity
}

// Velocity carries linear and angular velocity in the base space's frame.
type Velocity struct {
	Linear  spacegraph.Vec3
	Angular spacegraph.Vec3
}

// Locate implements spec.md section 4.G's locate(): computes the pure
// relation between space and base's frames, then combines it with each
// space's fixed offset pose via the Space Graph.
func Locate(spaceObj, baseObj *Space, t time.Time, resolver Resolver, wantVelocity bool) (Result, error) {
	pure, err := pureRelation(spaceObj, baseObj, t, resolver)
	if err != nil {
		return Result{}, err
	}

	var g spacegraph.Graph
	g.PushPose(spaceObj.poseInSpace)
	g.PushRelation(pure)
	g.PushInvertedPose(baseObj.poseInSpace)
	resolved := g.Resolve()

	res := Result{Pose: resolved.Pose, Flags: resolved.Flags}
	if wantVelocity && resolved.Flags.Has(spacegraph.LinearVelocityValid) && resolved.Flags.Has(spacegraph.AngularVelocityValid) {
		res.Velocity = &Velocity{Linear: resolved.LinearVel, Angular: resolved.AngularVel}
	}
	return res, nil
}

// pureRelation dispatches on (ref/action) x (ref/action) per spec.md
// section 4.G step 1. action<->action is reserved for a true-space-pivot
// implementation; until implemented it returns an empty-flags relation.
func pureRelation(spaceObj, baseObj *Space, t time.Time, resolver Resolver) (spacegraph.Relation, error) {
	if spaceObj.IsAction() && baseObj.IsAction() {
		return spacegraph.Relation{Pose: spacegraph.IdentityPose}, nil
	}

	spaceAbs, err := absoluteRelation(spaceObj, t, resolver)
	if err != nil {
		return spacegraph.Relation{}, err
	}
	baseAbs, err := absoluteRelation(baseObj, t, resolver)
	if err != nil {
		return spacegraph.Relation{}, err
	}

	return invertThenCompose(baseAbs, spaceAbs), nil
}

// invertThenCompose returns inverse(base) ∘ space using the same
// compose/invert rules the Space Graph applies (velocity validity cleared
// on inversion), without needing a throwaway Graph for the common case.
func invertThenCompose(base, space spacegraph.Relation) spacegraph.Relation {
	var g spacegraph.Graph
	g.PushInvertedRelation(base)
	g.PushRelation(space)
	return g.Resolve()
}

func absoluteRelation(s *Space, t time.Time, resolver Resolver) (spacegraph.Relation, error) {
	if s.IsAction() {
		return resolver.ActionPoseRelation(s.actionKey, s.subActionPath, t)
	}
	return resolver.AbsoluteReferenceRelation(s.refKind, t)
}
