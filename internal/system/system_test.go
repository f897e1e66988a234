package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixrcore/runtime/internal/compositor"
	"github.com/ixrcore/runtime/internal/device"
	"github.com/ixrcore/runtime/internal/spacegraph"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

type stubDevice struct {
	name         string
	destroyed    bool
	handTracking bool
}

func (d *stubDevice) Name() string { return d.name }
func (d *stubDevice) Capabilities() device.Capabilities {
	return device.Capabilities{HandTracking: d.handTracking}
}
func (d *stubDevice) Inputs() []device.Input   { return nil }
func (d *stubDevice) Outputs() []device.Output { return nil }
func (d *stubDevice) ApplyHaptic(string, float64, time.Duration) error { return nil }
func (d *stubDevice) StopHaptic(string) error                         { return nil }
func (d *stubDevice) ViewPoses(time.Time, spacegraph.Vec3, int) ([]device.EyePose, error) {
	return nil, nil
}
func (d *stubDevice) SampleHandJoints(time.Time) ([]device.JointPose, error) { return nil, nil }
func (d *stubDevice) TrackingOriginOffset() spacegraph.Pose                 { return spacegraph.IdentityPose }
func (d *stubDevice) Destroy()                                              { d.destroyed = true }

type fakeProber struct {
	devices map[device.Role]device.Device
}

func (p *fakeProber) Probe() (map[device.Role]device.Device, error) { return p.devices, nil }

func TestFillIn_ResolvesHeadAndRoles(t *testing.T) {
	left := &stubDevice{name: "left-controller"}
	right := &stubDevice{name: "right-controller"}
	head := &stubDevice{name: "hmd"}
	prober := &fakeProber{devices: map[device.Role]device.Device{
		device.RoleHead:  head,
		device.RoleLeft:  left,
		device.RoleRight: right,
	}}

	s, err := FillIn(prober, Config{DefaultIPDMeters: 0.063, ViewConfig: xrtypes.ViewConfigStereo, BlendModes: []compositor.BlendMode{compositor.BlendOpaque}})
	require.NoError(t, err)

	gotHead, ok := s.HeadDevice()
	require.True(t, ok)
	assert.Equal(t, head, gotHead)

	gotLeft, ok := s.RoleDevice(xrtypes.SubActionLeft)
	require.True(t, ok)
	assert.Equal(t, left, gotLeft)

	_, ok = s.RoleDevice(xrtypes.SubActionGamepad)
	assert.False(t, ok)

	assert.Equal(t, 2, s.ViewCount())
	assert.Equal(t, 0.063, s.IPDMeters())
}

func TestFillIn_MissingRoleIsAbsentNotError(t *testing.T) {
	prober := &fakeProber{devices: map[device.Role]device.Device{}}
	s, err := FillIn(prober, Config{})
	require.NoError(t, err)

	_, ok := s.HeadDevice()
	assert.False(t, ok)
}

func TestDestroy_DestroysEveryProbedDevice(t *testing.T) {
	head := &stubDevice{name: "hmd"}
	left := &stubDevice{name: "left"}
	prober := &fakeProber{devices: map[device.Role]device.Device{
		device.RoleHead: head,
		device.RoleLeft: left,
	}}
	s, err := FillIn(prober, Config{})
	require.NoError(t, err)

	s.Destroy()
	assert.True(t, head.destroyed)
	assert.True(t, left.destroyed)
	_, ok := s.HeadDevice()
	assert.False(t, ok)
}

func TestHasHandTracking_ReflectsDeviceCapability(t *testing.T) {
	handLeft := &stubDevice{name: "hand-left", handTracking: true}
	prober := &fakeProber{devices: map[device.Role]device.Device{
		device.RoleHandTrackingLeft: handLeft,
	}}
	s, err := FillIn(prober, Config{})
	require.NoError(t, err)
	assert.True(t, s.HasHandTracking())
}
