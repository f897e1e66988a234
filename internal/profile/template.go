package profile

import "github.com/ixrcore/runtime/internal/xrtypes"

// Template is a shipped interaction profile definition, loaded once at
// instance creation and lazily instantiated into a Profile on first
// reference. See internal/profile/template for the on-disk YAML format
// this is loaded from.
type Template struct {
	ProfilePath          string   `yaml:"profilePath" json:"profilePath" jsonschema:"required"`
	PreferredForDevices  []string `yaml:"preferredForDevices" json:"preferredForDevices"`
	Bindings             []TemplateBinding `yaml:"bindings" json:"bindings" jsonschema:"required"`
}

// TemplateBinding is one row of a Template's shipped binding table.
type TemplateBinding struct {
	SubActionPath xrtypes.SubActionPath `yaml:"-" json:"-"`
	SubActionName string                `yaml:"subActionPath" json:"subActionPath" jsonschema:"required,enum=/user,enum=/user/head,enum=/user/hand/left,enum=/user/hand/right,enum=/user/gamepad"`
	SubPaths      []string              `yaml:"subPaths" json:"subPaths" jsonschema:"required"`
	InputNames    []string              `yaml:"inputNames" json:"inputNames"`
	OutputNames   []string              `yaml:"outputNames" json:"outputNames"`
}

func subActionFromName(name string) xrtypes.SubActionPath {
	switch name {
	case "/user/head":
		return xrtypes.SubActionHead
	case "/user/hand/left":
		return xrtypes.SubActionLeft
	case "/user/hand/right":
		return xrtypes.SubActionRight
	case "/user/gamepad":
		return xrtypes.SubActionGamepad
	default:
		return xrtypes.SubActionUser
	}
}

// ResolveSubActions fills in the SubActionPath enum field from the
// human-readable SubActionName parsed from YAML. Called by the template
// loader after unmarshaling.
func (t *Template) ResolveSubActions() {
	for i := range t.Bindings {
		t.Bindings[i].SubActionPath = subActionFromName(t.Bindings[i].SubActionName)
	}
}
