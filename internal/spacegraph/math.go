// Package spacegraph implements the pose/relation composition algebra of
// spec.md section 4.D: a small value-semantics chain of poses and relations
// that resolves to a single Relation, with velocity propagation and
// flag-clearing on missing validity.
package spacegraph

import "math"

// Vec3 is a 3-component vector (meters or radians/sec depending on use).
type Vec3 struct{ X, Y, Z float64 }

// Quat is a unit quaternion, (X, Y, Z, W).
type Quat struct{ X, Y, Z, W float64 }

// IdentityQuat is the no-rotation quaternion.
var IdentityQuat = Quat{0, 0, 0, 1}

// Pose is a rigid-body position and orientation.
type Pose struct {
	Orientation Quat
	Position    Vec3
}

// IdentityPose is the origin with no rotation.
var IdentityPose = Pose{Orientation: IdentityQuat}

// Flags describes which parts of a Relation are valid, one bit per field.
type Flags uint8

const (
	OrientationValid Flags = 1 << iota
	PositionValid
	LinearVelocityValid
	AngularVelocityValid
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Relation is a pose plus linear/angular velocity and a validity bitmask,
// spec.md's "Relation" node type.
type Relation struct {
	Pose           Pose
	LinearVel      Vec3
	AngularVel     Vec3
	Flags          Flags
}

// IdentityRelation is a fully-valid identity relation with zero velocity.
var IdentityRelation = Relation{
	Pose:  IdentityPose,
	Flags: OrientationValid | PositionValid | LinearVelocityValid | AngularVelocityValid,
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}
func (v Vec3) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// Mul composes quaternions: (q ∘ r) rotates by r first, then q.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

// Conjugate returns q's inverse (for unit quaternions, the conjugate).
func (q Quat) Conjugate() Quat { return Quat{-q.X, -q.Y, -q.Z, q.W} }

// Norm returns the quaternion's magnitude.
func (q Quat) Norm() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Normalized returns q scaled to unit length. Returns IdentityQuat if q has
// ~zero length.
func (q Quat) Normalized() Quat {
	n := q.Norm()
	if n < 1e-9 {
		return IdentityQuat
	}
	return Quat{q.X / n, q.Y / n, q.Z / n, q.W / n}
}

// IsNormalized reports whether q's norm is within tolerance of 1, per
// spec.md's 1% pose-validity rule.
func (q Quat) IsNormalized(tolerance float64) bool {
	return math.Abs(q.Norm()-1) <= tolerance
}

// RotateVec3 rotates v by q.
func (q Quat) RotateVec3(v Vec3) Vec3 {
	qv := Quat{v.X, v.Y, v.Z, 0}
	r := q.Mul(qv).Mul(q.Conjugate())
	return Vec3{r.X, r.Y, r.Z}
}

// Compose applies b then a: result = a ∘ b, per spec.md's pose composition
// rule.
func (a Pose) Compose(b Pose) Pose {
	return Pose{
		Orientation: a.Orientation.Mul(b.Orientation),
		Position:    a.Position.Add(a.Orientation.RotateVec3(b.Position)),
	}
}

// Inverse returns the pose that undoes p.
func (p Pose) Inverse() Pose {
	invOrientation := p.Orientation.Conjugate()
	return Pose{
		Orientation: invOrientation,
		Position:    invOrientation.RotateVec3(p.Position).Scale(-1),
	}
}

// YawOnly projects q to a yaw-only rotation around the vertical (Y) axis,
// zeroing X and Z and renormalizing, per spec.md 4.G's LocalFloor/Local
// anchoring rule ("the first VIEW relation... projected to yaw-only").
func (q Quat) YawOnly() Quat {
	return Quat{0, q.Y, 0, q.W}.Normalized()
}
