package spacegraph

// nodeKind distinguishes a pure pose node (no derivative information) from
// a full relation node.
type nodeKind int

const (
	nodePose nodeKind = iota
	nodeRelation
)

type node struct {
	kind     nodeKind
	relation Relation // for nodePose, only relation.Pose and Flags (orientation/position) are meaningful
	inverted bool
}

// Graph is a small value-semantics chain of pose/relation nodes that
// resolves, front-to-back, to a single composed Relation. It has no
// identity beyond the slice of nodes it holds — callers build one per
// locate() call.
type Graph struct {
	nodes []node
}

// PushPose appends an orientation+position-only node.
func (g *Graph) PushPose(p Pose) {
	g.nodes = append(g.nodes, node{
		kind: nodePose,
		relation: Relation{
			Pose:  p,
			Flags: OrientationValid | PositionValid,
		},
	})
}

// PushPoseIfNotIdentity appends p only if it differs from the identity
// pose, an optimization spec.md calls out explicitly ("identity elision")
// that also avoids compounding floating point error across long chains.
func (g *Graph) PushPoseIfNotIdentity(p Pose) {
	if isIdentityPose(p) {
		return
	}
	g.PushPose(p)
}

// PushRelation appends a full pose+velocity node.
func (g *Graph) PushRelation(r Relation) {
	g.nodes = append(g.nodes, node{kind: nodeRelation, relation: r})
}

// PushInvertedPose appends the inverse of p.
func (g *Graph) PushInvertedPose(p Pose) {
	g.nodes = append(g.nodes, node{
		kind: nodePose,
		relation: Relation{
			Pose:  p,
			Flags: OrientationValid | PositionValid,
		},
		inverted: true,
	})
}

// PushInvertedRelation appends the inverse of r. Per spec.md section 9, an
// inverted relation deliberately loses its derivative-validity flags (the
// linear/angular velocity flags), never widening validity beyond the
// input's.
func (g *Graph) PushInvertedRelation(r Relation) {
	g.nodes = append(g.nodes, node{kind: nodeRelation, relation: r, inverted: true})
}

func isIdentityPose(p Pose) bool {
	const eps = 1e-9
	return approxEq(p.Position.X, 0, eps) && approxEq(p.Position.Y, 0, eps) && approxEq(p.Position.Z, 0, eps) &&
		approxEq(p.Orientation.X, 0, eps) && approxEq(p.Orientation.Y, 0, eps) &&
		approxEq(p.Orientation.Z, 0, eps) && approxEq(p.Orientation.W, 1, eps)
}

func approxEq(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

// Resolve composes every pushed node, front to back, into a single
// Relation. Poses compose as result = a ∘ b (apply b then a, i.e. each
// subsequent node is applied "inside" the accumulated result so far).
// Velocities propagate via rigid-body composition; any node missing a
// validity flag clears that flag in the final result.
func (g *Graph) Resolve() Relation {
	acc := IdentityRelation
	for _, n := range g.nodes {
		r := n.relation
		if n.inverted {
			r = invert(r)
		}
		acc = compose(acc, r)
	}
	return acc
}

// invert returns r's inverse relation. Per spec.md section 9, inversion
// clears linear/angular velocity validity regardless of the input's flags.
func invert(r Relation) Relation {
	invPose := r.Pose.Inverse()
	flags := r.Flags &^ (LinearVelocityValid | AngularVelocityValid)

	// Angular velocity, if we chose to keep it (we don't, per the rule
	// above), would need to be rotated into the new frame and negated; we
	// zero it instead since the flags never claim it valid.
	return Relation{
		Pose:       invPose,
		LinearVel:  Vec3{},
		AngularVel: Vec3{},
		Flags:      flags,
	}
}

// compose folds next onto acc: result pose = acc.Pose ∘ next.Pose, with
// standard rigid-body velocity composition (next's velocity expressed in
// acc's frame, plus the lever-arm term from angular velocity acting on the
// offset, plus acc's own velocity).
func compose(acc, next Relation) Relation {
	pose := acc.Pose.Compose(next.Pose)

	flags := OrientationValid | PositionValid
	if !acc.Flags.Has(OrientationValid) || !next.Flags.Has(OrientationValid) {
		flags &^= OrientationValid
	}
	if !acc.Flags.Has(PositionValid) || !next.Flags.Has(PositionValid) {
		flags &^= PositionValid
	}

	// Linear velocity: v = v_acc + w_acc x (R_acc * p_next) + R_acc * v_next
	leverArm := acc.Orientation().RotateVec3(next.Pose.Position)
	linVel := acc.LinearVel.
		Add(acc.AngularVel.Cross(leverArm)).
		Add(acc.Orientation().RotateVec3(next.LinearVel))

	// Angular velocity: w = w_acc + R_acc * w_next
	angVel := acc.AngularVel.Add(acc.Orientation().RotateVec3(next.AngularVel))

	if acc.Flags.Has(LinearVelocityValid) && next.Flags.Has(LinearVelocityValid) &&
		acc.Flags.Has(AngularVelocityValid) {
		flags |= LinearVelocityValid
	}
	if acc.Flags.Has(AngularVelocityValid) && next.Flags.Has(AngularVelocityValid) {
		flags |= AngularVelocityValid
	}

	return Relation{
		Pose:       pose,
		LinearVel:  linVel,
		AngularVel: angVel,
		Flags:      flags,
	}
}

// Orientation is a convenience accessor used by compose's lever-arm math.
func (r Relation) Orientation() Quat { return r.Pose.Orientation }
