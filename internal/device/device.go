// Package device defines the abstract device interface spec.md section 6
// describes as a consumed collaborator: the runtime core never talks to a
// tracking SDK directly, only to this interface. Concrete backends (a real
// tracking driver, or the fixture-driven fake backend in
// internal/device/fixture) are factories producing Device implementations,
// per spec.md section 9's "dynamic dispatch... modeled as a capability
// interface per component".
package device

import (
	"time"

	"github.com/ixrcore/runtime/internal/spacegraph"
)

// Role identifies which well-known body part or controller a device plays,
// matching the system roles of spec.md section 4.J.
type Role int

const (
	RoleHead Role = iota
	RoleLeft
	RoleRight
	RoleGamepad
	RoleHandTrackingLeft
	RoleHandTrackingRight
)

// Input is a single named input's current sampled state.
type Input struct {
	Name      string
	Active    bool
	Value     InputValue
	Timestamp time.Time
}

// InputValueKind distinguishes the shape of InputValue's payload.
type InputValueKind int

const (
	ValueBool InputValueKind = iota
	ValueFloat
	ValueVec2
	ValuePose
)

// InputValue is a tagged union over the action types spec.md section 3
// supports for actions: bool, float, vec2, pose.
type InputValue struct {
	Kind  InputValueKind
	Bool  bool
	Float float64
	Vec2  [2]float64
	Pose  spacegraph.Pose
}

// Output describes one named haptic output a device exposes.
type Output struct {
	Name string
}

// EyePose is one eye's pose and field of view, returned by ViewPoses.
type EyePose struct {
	Pose spacegraph.Pose
	FoV  FoV
}

// FoV is a symmetric-or-asymmetric field of view in radians.
type FoV struct {
	AngleLeft, AngleRight, AngleUp, AngleDown float64
}

// JointPose is one hand-tracking joint's pose and validity.
type JointPose struct {
	Pose  spacegraph.Pose
	Valid bool
	Radius float64
}

// Device is the abstract per-device capability surface the runtime core
// consumes. A concrete backend must be safe for concurrent use: ViewPoses
// and SampleInputs may be called from the render thread while Capabilities
// is read from a control-plane goroutine.
type Device interface {
	// Name is a stable identifier used by the binding/profile engine's
	// device-name → preferred-profile table (spec.md 4.E) and by
	// internal/calibration's per-device persistence key.
	Name() string

	// Capabilities reports static device capabilities (hand-tracking
	// support, etc).
	Capabilities() Capabilities

	// Inputs returns the current snapshot of every named input this device
	// exposes.
	Inputs() []Input

	// Outputs returns the haptic outputs this device exposes.
	Outputs() []Output

	// ApplyHaptic forwards a haptic feedback request to outputName.
	ApplyHaptic(outputName string, amplitude float64, duration time.Duration) error

	// StopHaptic cancels any pending haptic feedback on outputName.
	StopHaptic(outputName string) error

	// ViewPoses computes per-eye poses and FoVs at t, given an inter-eye
	// relation vector built from the configured IPD.
	ViewPoses(t time.Time, eyeRelation spacegraph.Vec3, count int) ([]EyePose, error)

	// SampleHandJoints samples a hand-tracking joint set at t. Returns an
	// error if this device lacks hand-tracking capability.
	SampleHandJoints(t time.Time) ([]JointPose, error)

	// TrackingOriginOffset is the pose offset between this device's native
	// tracking origin and the system tracking origin.
	TrackingOriginOffset() spacegraph.Pose

	// Destroy releases backend resources.
	Destroy()
}

// Capabilities describes static, queryable device features.
type Capabilities struct {
	HandTracking bool
}

// Prober discovers devices at instance creation time, per spec.md section
// 6 ("The runtime calls a device-prober to discover devices at instance
// creation").
type Prober interface {
	// Probe returns every discovered device, keyed by the role it should
	// fill. A prober may return fewer roles than the system wants; System
	// fill-in treats a missing role as "not present".
	Probe() (map[Role]Device, error)
}
