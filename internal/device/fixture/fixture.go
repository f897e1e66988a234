// Package fixture implements a YAML-described fake device.Prober, for
// development and tests against a runtime core with no real tracking
// hardware attached.
//
// The file-format pattern (generic YAML unmarshal into a map, then a
// mapstructure decode into typed fields, with a jsonschema generated from
// the same struct tags) is the one internal/profile/template uses for
// shipped interaction profiles; the fixture format reuses it rather than
// inventing a second YAML convention. Files are not validated against the
// generated schema; Load checks the decoded fields by hand.
package fixture

import (
	"fmt"
	"io/fs"
	"math"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/ixrcore/runtime/internal/device"
	"github.com/ixrcore/runtime/internal/spacegraph"
	"github.com/ixrcore/runtime/internal/xrerr"
)

// PoseDescriptor is a fixture-authored static pose.
type PoseDescriptor struct {
	PositionX float64 `yaml:"positionX" json:"positionX"`
	PositionY float64 `yaml:"positionY" json:"positionY"`
	PositionZ float64 `yaml:"positionZ" json:"positionZ"`
	// YawDegrees is the only orientation component a fixture author needs;
	// fixture devices never pitch or roll.
	YawDegrees float64 `yaml:"yawDegrees" json:"yawDegrees"`
}

func (d PoseDescriptor) toPose() spacegraph.Pose {
	half := (d.YawDegrees * math.Pi / 180) / 2
	return spacegraph.Pose{
		Orientation: spacegraph.Quat{Y: math.Sin(half), W: math.Cos(half)},
		Position:    spacegraph.Vec3{X: d.PositionX, Y: d.PositionY, Z: d.PositionZ},
	}
}

// DeviceDescriptor is one fixture-described device.
type DeviceDescriptor struct {
	Name         string         `yaml:"name" json:"name" jsonschema:"required"`
	Role         string         `yaml:"role" json:"role" jsonschema:"required,enum=head,enum=left,enum=right,enum=gamepad,enum=hand-tracking-left,enum=hand-tracking-right"`
	HandTracking bool           `yaml:"handTracking" json:"handTracking"`
	Pose         PoseDescriptor `yaml:"pose" json:"pose"`
	FoVDegrees   float64        `yaml:"fovDegrees" json:"fovDegrees"`
}

// Set is the fixture file's top-level shape: every device a fake prober
// will report.
type Set struct {
	Devices []DeviceDescriptor `yaml:"devices" json:"devices" jsonschema:"required"`
}

// Schema returns a JSON schema for fixture files, generated from Set's
// jsonschema struct tags. Load does not apply it.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	return r.Reflect(&Set{})
}

// Load parses a fixture YAML file at path within fsys into a Set.
func Load(fsys fs.FS, path string) (*Set, error) {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("fixture.Load: reading %s: %w", path, err)
	}

	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("fixture.Load: parsing %s: %w", path, err)
	}

	var set Set
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &set,
		WeaklyTypedInput: true,
		TagName:          "yaml",
	})
	if err != nil {
		return nil, fmt.Errorf("fixture.Load: building decoder: %w", err)
	}
	if err := dec.Decode(generic); err != nil {
		return nil, fmt.Errorf("fixture.Load: decoding %s: %w", path, err)
	}
	if len(set.Devices) == 0 {
		return nil, fmt.Errorf("fixture.Load: %s: at least one device is required", path)
	}
	return &set, nil
}

func roleFromName(name string) (device.Role, bool) {
	switch name {
	case "head":
		return device.RoleHead, true
	case "left":
		return device.RoleLeft, true
	case "right":
		return device.RoleRight, true
	case "gamepad":
		return device.RoleGamepad, true
	case "hand-tracking-left":
		return device.RoleHandTrackingLeft, true
	case "hand-tracking-right":
		return device.RoleHandTrackingRight, true
	default:
		return 0, false
	}
}

// Prober implements device.Prober over a fixture Set: every device reports
// the fixed pose and capability the fixture described, regardless of when
// it is sampled.
type Prober struct {
	set *Set
}

// NewProber returns a device.Prober backed by set.
func NewProber(set *Set) *Prober { return &Prober{set: set} }

// Probe implements device.Prober.
func (p *Prober) Probe() (map[device.Role]device.Device, error) {
	out := make(map[device.Role]device.Device, len(p.set.Devices))
	for _, d := range p.set.Devices {
		role, ok := roleFromName(d.Role)
		if !ok {
			return nil, xrerr.New(xrerr.ValidationFailure, "fixture.Probe", "unknown device role: "+d.Role)
		}
		out[role] = newFixtureDevice(d)
	}
	return out, nil
}

// fixtureDevice is a fake device.Device that always reports the pose and
// capabilities its fixture descriptor specified.
type fixtureDevice struct {
	mu     sync.Mutex
	name   string
	caps   device.Capabilities
	pose   spacegraph.Pose
	fov    device.FoV
	inputs map[string]device.InputValue
}

func newFixtureDevice(d DeviceDescriptor) *fixtureDevice {
	halfFoV := d.FoVDegrees * math.Pi / 180 / 2
	return &fixtureDevice{
		name:   d.Name,
		caps:   device.Capabilities{HandTracking: d.HandTracking},
		pose:   d.Pose.toPose(),
		fov:    device.FoV{AngleLeft: -halfFoV, AngleRight: halfFoV, AngleUp: halfFoV, AngleDown: -halfFoV},
		inputs: make(map[string]device.InputValue),
	}
}

func (d *fixtureDevice) Name() string                     { return d.name }
func (d *fixtureDevice) Capabilities() device.Capabilities { return d.caps }

func (d *fixtureDevice) Inputs() []device.Input {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]device.Input, 0, len(d.inputs))
	for name, v := range d.inputs {
		out = append(out, device.Input{Name: name, Active: true, Value: v, Timestamp: time.Now()})
	}
	return out
}

func (d *fixtureDevice) Outputs() []device.Output { return nil }

func (d *fixtureDevice) ApplyHaptic(string, float64, time.Duration) error { return nil }
func (d *fixtureDevice) StopHaptic(string) error                         { return nil }

// ViewPoses returns count copies of the fixture's static pose, spaced by
// half of eyeRelation to either side for a stereo pair the way a real head
// device spaces its eyes around its tracked center. Views beyond the first
// pair reuse the centered pose.
func (d *fixtureDevice) ViewPoses(_ time.Time, eyeRelation spacegraph.Vec3, count int) ([]device.EyePose, error) {
	half := eyeRelation.Scale(0.5)
	out := make([]device.EyePose, count)
	for i := range out {
		pose := d.pose
		switch {
		case i == 0 && count > 1:
			pose.Position = pose.Position.Sub(half)
		case i == 1:
			pose.Position = pose.Position.Add(half)
		}
		out[i] = device.EyePose{Pose: pose, FoV: d.fov}
	}
	return out, nil
}

func (d *fixtureDevice) SampleHandJoints(time.Time) ([]device.JointPose, error) {
	if !d.caps.HandTracking {
		return nil, xrerr.New(xrerr.ValidationFailure, "fixtureDevice.SampleHandJoints", "device has no hand-tracking capability")
	}
	return nil, nil
}

func (d *fixtureDevice) TrackingOriginOffset() spacegraph.Pose { return spacegraph.IdentityPose }

func (d *fixtureDevice) Destroy() {}

// SetInput lets a development harness drive a fixture device's reported
// input state (e.g. from a keyboard-to-controller bridge).
func (d *fixtureDevice) SetInput(name string, v device.InputValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputs[name] = v
}
