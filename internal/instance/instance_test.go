package instance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixrcore/runtime/internal/compositor"
	"github.com/ixrcore/runtime/internal/device"
	"github.com/ixrcore/runtime/internal/handle"
	"github.com/ixrcore/runtime/internal/spacegraph"
	"github.com/ixrcore/runtime/internal/xrerr"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

type stubDevice struct{ name string }

func (d *stubDevice) Name() string                      { return d.name }
func (d *stubDevice) Capabilities() device.Capabilities  { return device.Capabilities{} }
func (d *stubDevice) Inputs() []device.Input             { return nil }
func (d *stubDevice) Outputs() []device.Output           { return nil }
func (d *stubDevice) ApplyHaptic(string, float64, time.Duration) error { return nil }
func (d *stubDevice) StopHaptic(string) error                         { return nil }
func (d *stubDevice) ViewPoses(t time.Time, eyeRelation spacegraph.Vec3, count int) ([]device.EyePose, error) {
	out := make([]device.EyePose, count)
	for i := range out {
		out[i] = device.EyePose{Pose: spacegraph.IdentityPose}
	}
	return out, nil
}
func (d *stubDevice) SampleHandJoints(time.Time) ([]device.JointPose, error) { return nil, nil }
func (d *stubDevice) TrackingOriginOffset() spacegraph.Pose                 { return spacegraph.IdentityPose }
func (d *stubDevice) Destroy()                                              {}

type fakeProber struct{ devices map[device.Role]device.Device }

func (p *fakeProber) Probe() (map[device.Role]device.Device, error) { return p.devices, nil }

type fakeCompositor struct{ destroyed bool }

func (c *fakeCompositor) BeginSession(context.Context) error { return nil }
func (c *fakeCompositor) EndSession(context.Context) error   { return nil }
func (c *fakeCompositor) WaitFrame(context.Context) (compositor.WaitFrameResult, error) {
	return compositor.WaitFrameResult{FrameID: 1, PredictedDisplayTime: time.Unix(1, 0)}, nil
}
func (c *fakeCompositor) BeginFrame(context.Context, compositor.FrameID) error   { return nil }
func (c *fakeCompositor) DiscardFrame(context.Context, compositor.FrameID) error { return nil }
func (c *fakeCompositor) LayerBegin(context.Context, compositor.FrameID, compositor.BlendMode) error {
	return nil
}
func (c *fakeCompositor) LayerSubmit(context.Context, compositor.FrameID, compositor.Layer) error {
	return nil
}
func (c *fakeCompositor) LayerCommit(context.Context, compositor.FrameID) error { return nil }
func (c *fakeCompositor) CreateSwapchain(compositor.SwapchainCreateInfo) (compositor.Swapchain, error) {
	return nil, xrerr.New(xrerr.ValidationFailure, "fakeCompositor.CreateSwapchain", "not implemented")
}
func (c *fakeCompositor) PollEvent() (compositor.Event, error) { return compositor.Event{}, nil }
func (c *fakeCompositor) Destroy()                             { c.destroyed = true }

type fakeCompositorFactory struct{ created []*fakeCompositor }

func (f *fakeCompositorFactory) CreateCompositor() (compositor.Compositor, error) {
	c := &fakeCompositor{}
	f.created = append(f.created, c)
	return c, nil
}

func newTestInstance(t *testing.T) (*Instance, *fakeCompositorFactory) {
	t.Helper()
	prober := &fakeProber{devices: map[device.Role]device.Device{
		device.RoleHead: &stubDevice{name: "hmd"},
	}}
	compFac := &fakeCompositorFactory{}
	inst, err := New(prober, compFac, Config{
		DefaultIPDMeters: 0.063,
		ViewConfig:       xrtypes.ViewConfigStereo,
		BlendModes:       []compositor.BlendMode{compositor.BlendOpaque},
	}, nil)
	require.NoError(t, err)
	return inst, compFac
}

func TestNew_CachesWellKnownPaths(t *testing.T) {
	inst, _ := newTestInstance(t)
	assert.NotEqual(t, 0, inst.WellKnownUserPath(xrtypes.SubActionUser))
	head := inst.WellKnownUserPath(xrtypes.SubActionHead)
	str, err := inst.Paths().GetString(head)
	require.NoError(t, err)
	assert.Equal(t, "/user/head", str)
}

func TestCreateSession_RegistersSessionAndUsesFactory(t *testing.T) {
	inst, compFac := newTestInstance(t)
	sess, err := inst.CreateSession()
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Len(t, compFac.created, 1)
}

func TestCreateActionSetAndAction(t *testing.T) {
	inst, _ := newTestInstance(t)
	set, err := inst.CreateActionSet("gameplay")
	require.NoError(t, err)

	a, err := inst.CreateAction(set, "grab", xrtypes.ActionBool, nil)
	require.NoError(t, err)
	assert.Equal(t, "grab", a.Action.Name)
}

func TestCreateDebugMessenger_FansOutAndSelfDetaches(t *testing.T) {
	inst, _ := newTestInstance(t)
	var got []string
	m, err := inst.CreateDebugMessenger(func(sev, msg string) { got = append(got, sev+":"+msg) })
	require.NoError(t, err)

	inst.EmitDebugMessage("info", "hello")
	assert.Equal(t, []string{"info:hello"}, got)

	require.NoError(t, handle.Destroy(&m.Base))
	inst.EmitDebugMessage("info", "should not arrive")
	assert.Equal(t, []string{"info:hello"}, got)
}

func TestDestroy_TearsDownSessionsActionSetsAndSystem(t *testing.T) {
	inst, compFac := newTestInstance(t)
	_, err := inst.CreateSession()
	require.NoError(t, err)
	_, err = inst.CreateActionSet("gameplay")
	require.NoError(t, err)

	require.NoError(t, inst.Destroy())
	assert.True(t, compFac.created[0].destroyed)
	_, ok := inst.System().HeadDevice()
	assert.False(t, ok)
}
