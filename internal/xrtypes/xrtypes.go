// Package xrtypes holds small shared enums used across the binding/action/
// space/session packages, kept in one leaf package to avoid import cycles
// between them.
package xrtypes

// SubActionPath disambiguates which device a bound action should read,
// spec.md's GLOSSARY entry for "sub-action path".
type SubActionPath int

const (
	SubActionUser SubActionPath = iota
	SubActionHead
	SubActionLeft
	SubActionRight
	SubActionGamepad
)

func (s SubActionPath) String() string {
	switch s {
	case SubActionUser:
		return "/user"
	case SubActionHead:
		return "/user/head"
	case SubActionLeft:
		return "/user/hand/left"
	case SubActionRight:
		return "/user/hand/right"
	case SubActionGamepad:
		return "/user/gamepad"
	default:
		return "unknown"
	}
}

// ActionType is the data type an action carries, spec.md section 3.
type ActionType int

const (
	ActionBool ActionType = iota
	ActionFloat
	ActionVec2
	ActionPose
	ActionHaptic
)

// ReferenceSpaceKind enumerates the reference space kinds spec.md section 3
// defines.
type ReferenceSpaceKind int

const (
	ReferenceView ReferenceSpaceKind = iota
	ReferenceLocal
	ReferenceLocalFloor
	ReferenceStage
	ReferenceUnbounded
	ReferenceCombinedEye
)

// ViewConfigurationType identifies the view layout a system exposes.
type ViewConfigurationType int

const (
	ViewConfigStereo ViewConfigurationType = iota
	ViewConfigMono
)

// EnvironmentBlendMode is one of the three blend modes spec.md section 4.I
// allows.
type EnvironmentBlendMode int

const (
	BlendModeOpaque EnvironmentBlendMode = iota
	BlendModeAdditive
	BlendModeAlphaBlend
)
