package fixture

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixrcore/runtime/internal/device"
	"github.com/ixrcore/runtime/internal/spacegraph"
)

const sampleYAML = `
devices:
  - name: dev-hmd-01
    role: head
    handTracking: false
    pose:
      positionX: 0
      positionY: 1.6
      positionZ: 0
      yawDegrees: 0
    fovDegrees: 90
  - name: dev-left-01
    role: left
    handTracking: true
    pose:
      positionX: -0.2
      positionY: 1.0
      positionZ: -0.3
      yawDegrees: 0
`

func loadSample(t *testing.T) *Set {
	t.Helper()
	fsys := fstest.MapFS{
		"fixture.yaml": &fstest.MapFile{Data: []byte(sampleYAML)},
	}
	set, err := Load(fsys, "fixture.yaml")
	require.NoError(t, err)
	return set
}

func TestLoad_ParsesDevices(t *testing.T) {
	set := loadSample(t)
	require.Len(t, set.Devices, 2)
	assert.Equal(t, "dev-hmd-01", set.Devices[0].Name)
	assert.Equal(t, "head", set.Devices[0].Role)
	assert.True(t, set.Devices[1].HandTracking)
}

func TestLoad_EmptyDeviceListIsRejected(t *testing.T) {
	fsys := fstest.MapFS{
		"empty.yaml": &fstest.MapFile{Data: []byte("devices: []\n")},
	}
	_, err := Load(fsys, "empty.yaml")
	assert.Error(t, err)
}

func TestProbe_ResolvesRolesAndCapabilities(t *testing.T) {
	set := loadSample(t)
	prober := NewProber(set)

	devices, err := prober.Probe()
	require.NoError(t, err)
	require.Contains(t, devices, device.RoleHead)
	require.Contains(t, devices, device.RoleLeft)

	assert.Equal(t, "dev-hmd-01", devices[device.RoleHead].Name())
	assert.False(t, devices[device.RoleHead].Capabilities().HandTracking)
	assert.True(t, devices[device.RoleLeft].Capabilities().HandTracking)
}

func TestProbe_UnknownRoleIsRejected(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.yaml": &fstest.MapFile{Data: []byte("devices:\n  - name: x\n    role: nonsense\n")},
	}
	set, err := Load(fsys, "bad.yaml")
	require.NoError(t, err)

	_, err = NewProber(set).Probe()
	assert.Error(t, err)
}

func TestViewPoses_SpacesStereoEyesAroundCenter(t *testing.T) {
	set := loadSample(t)
	devices, err := NewProber(set).Probe()
	require.NoError(t, err)

	head := devices[device.RoleHead]
	eyeRelation := spacegraph.Vec3{X: 0.06}
	poses, err := head.ViewPoses(time.Now(), eyeRelation, 2)
	require.NoError(t, err)
	require.Len(t, poses, 2)

	assert.InDelta(t, -0.03, poses[0].Pose.Position.X, 1e-9)
	assert.InDelta(t, 0.03, poses[1].Pose.Position.X, 1e-9)
	assert.InDelta(t, 1.6, poses[0].Pose.Position.Y, 1e-9)
}

func TestSampleHandJoints_RejectsDeviceWithoutCapability(t *testing.T) {
	set := loadSample(t)
	devices, err := NewProber(set).Probe()
	require.NoError(t, err)

	_, err = devices[device.RoleHead].SampleHandJoints(time.Now())
	assert.Error(t, err)

	_, err = devices[device.RoleLeft].SampleHandJoints(time.Now())
	assert.NoError(t, err)
}

func TestSetInput_IsReflectedInInputs(t *testing.T) {
	set := loadSample(t)
	devices, err := NewProber(set).Probe()
	require.NoError(t, err)

	left := devices[device.RoleLeft].(*fixtureDevice)
	left.SetInput("grab", device.InputValue{Kind: device.ValueFloat, Float: 0.75})

	inputs := left.Inputs()
	require.Len(t, inputs, 1)
	assert.Equal(t, "grab", inputs[0].Name)
	assert.InDelta(t, 0.75, inputs[0].Value.Float, 1e-9)
}
