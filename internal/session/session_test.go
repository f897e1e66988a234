package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixrcore/runtime/internal/action"
	"github.com/ixrcore/runtime/internal/compositor"
	"github.com/ixrcore/runtime/internal/device"
	"github.com/ixrcore/runtime/internal/event"
	"github.com/ixrcore/runtime/internal/handle"
	"github.com/ixrcore/runtime/internal/pathstore"
	"github.com/ixrcore/runtime/internal/profile"
	"github.com/ixrcore/runtime/internal/spacegraph"
	"github.com/ixrcore/runtime/internal/xrerr"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

type fakeCompositor struct {
	mu        sync.Mutex
	nextFrame compositor.FrameID
	displayAt time.Time

	began    []compositor.FrameID
	discarded []compositor.FrameID
}

func (c *fakeCompositor) BeginSession(ctx context.Context) error { return nil }
func (c *fakeCompositor) EndSession(ctx context.Context) error   { return nil }

func (c *fakeCompositor) WaitFrame(ctx context.Context) (compositor.WaitFrameResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextFrame++
	if c.displayAt.IsZero() {
		c.displayAt = time.Unix(1, 0)
	} else {
		c.displayAt = c.displayAt.Add(16 * time.Millisecond)
	}
	return compositor.WaitFrameResult{FrameID: c.nextFrame, PredictedDisplayTime: c.displayAt, PredictedDisplayPeriod: 16 * time.Millisecond}, nil
}

func (c *fakeCompositor) BeginFrame(ctx context.Context, id compositor.FrameID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.began = append(c.began, id)
	return nil
}

func (c *fakeCompositor) DiscardFrame(ctx context.Context, id compositor.FrameID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discarded = append(c.discarded, id)
	return nil
}

func (c *fakeCompositor) LayerBegin(ctx context.Context, id compositor.FrameID, blend compositor.BlendMode) error {
	return nil
}
func (c *fakeCompositor) LayerSubmit(ctx context.Context, id compositor.FrameID, layer compositor.Layer) error {
	return nil
}
func (c *fakeCompositor) LayerCommit(ctx context.Context, id compositor.FrameID) error { return nil }

func (c *fakeCompositor) CreateSwapchain(info compositor.SwapchainCreateInfo) (compositor.Swapchain, error) {
	return nil, xrerr.New(xrerr.ValidationFailure, "fakeCompositor.CreateSwapchain", "not implemented")
}
func (c *fakeCompositor) PollEvent() (compositor.Event, error) { return compositor.Event{}, nil }
func (c *fakeCompositor) Destroy()                             {}

type fakeHeadDevice struct{}

func (fakeHeadDevice) Name() string                      { return "head" }
func (fakeHeadDevice) Capabilities() device.Capabilities { return device.Capabilities{} }
func (fakeHeadDevice) Inputs() []device.Input            { return nil }
func (fakeHeadDevice) Outputs() []device.Output          { return nil }
func (fakeHeadDevice) ApplyHaptic(string, float64, time.Duration) error { return nil }
func (fakeHeadDevice) StopHaptic(string) error                         { return nil }
func (fakeHeadDevice) ViewPoses(t time.Time, eyeRelation spacegraph.Vec3, count int) ([]device.EyePose, error) {
	out := make([]device.EyePose, count)
	for i := range out {
		out[i] = device.EyePose{Pose: spacegraph.IdentityPose}
	}
	return out, nil
}
func (fakeHeadDevice) SampleHandJoints(t time.Time) ([]device.JointPose, error) { return nil, nil }
func (fakeHeadDevice) TrackingOriginOffset() spacegraph.Pose                   { return spacegraph.IdentityPose }
func (fakeHeadDevice) Destroy()                                                {}

type fakeHeadSource struct{}

func (fakeHeadSource) HeadDevice() (device.Device, bool) { return fakeHeadDevice{}, true }
func (fakeHeadSource) RoleDevice(sub xrtypes.SubActionPath) (device.Device, bool) {
	return nil, false
}
func (fakeHeadSource) SupportedBlendModes() []compositor.BlendMode {
	return []compositor.BlendMode{compositor.BlendOpaque}
}
func (fakeHeadSource) IPDMeters() float64 { return 0.063 }

func newTestSession(t *testing.T) (*Session, *fakeCompositor) {
	t.Helper()
	root := &struct{ handle.Base }{}
	require.NoError(t, handle.Init(&root.Base, root, handle.KindInstance, nil, nil))

	engine := profile.NewEngine(pathstore.New(), nil)
	attachment := action.NewAttachment(engine, pathstore.New())
	comp := &fakeCompositor{}

	s, err := New(&root.Base, comp, fakeHeadSource{}, attachment, event.New(0), nil, Options{})
	require.NoError(t, err)
	return s, comp
}

func TestNew_StartsInReadyState(t *testing.T) {
	s, _ := newTestSession(t)
	assert.Equal(t, StateReady, s.State())
}

func TestBeginSession_TransitionsToSynchronized(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.BeginSession(context.Background()))
	assert.Equal(t, StateSynchronized, s.State())
}

func TestBeginSession_FailsWhenAlreadyRunning(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.BeginSession(context.Background()))
	err := s.BeginSession(context.Background())
	require.Error(t, err)
	assert.True(t, xrerr.Is(err, xrerr.SessionRunning))
}

func TestStateMachine_FullLifecycleCascade(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.BeginSession(context.Background()))
	s.HandleCompositorEvent(compositor.Event{Kind: compositor.EventStateChange, Visible: true})
	assert.Equal(t, StateVisible, s.State())
	s.HandleCompositorEvent(compositor.Event{Kind: compositor.EventStateChange, Visible: true, Focused: true})
	assert.Equal(t, StateFocused, s.State())

	require.NoError(t, s.RequestExitSession())
	assert.Equal(t, StateStopping, s.State())

	require.NoError(t, s.EndSession(context.Background()))
	assert.Equal(t, StateExiting, s.State())
}

func TestRequestExitSession_WithoutExit_ReturnsToReady(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.BeginSession(context.Background()))
	require.NoError(t, s.RequestExitSession())
	require.NoError(t, s.EndSession(context.Background()))
	assert.Equal(t, StateReady, s.State())
}

func TestWaitFrame_PredictedDisplayTimeAdvancesMonotonically(t *testing.T) {
	s, _ := newTestSession(t)
	res1, _, err := s.WaitFrame(context.Background())
	require.NoError(t, err)
	_, err = s.BeginFrame(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.EndFrame(context.Background(), compositor.BlendOpaque, res1.PredictedDisplayTime, nil))

	res2, shouldRender, err := s.WaitFrame(context.Background())
	require.NoError(t, err)
	assert.True(t, res2.PredictedDisplayTime.After(res1.PredictedDisplayTime))
	assert.False(t, shouldRender) // session is still Ready, not Visible/Focused/Stopping
}

func TestBeginFrame_WithoutWaitFrame_IsCallOrderInvalid(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.BeginFrame(context.Background())
	require.Error(t, err)
	assert.True(t, xrerr.Is(err, xrerr.CallOrderInvalid))
}

func TestBeginFrame_SecondCallDiscardsFirst(t *testing.T) {
	s, _ := newTestSession(t)
	_, _, err := s.WaitFrame(context.Background())
	require.NoError(t, err)
	discarded, err := s.BeginFrame(context.Background())
	require.NoError(t, err)
	assert.False(t, discarded)

	_, _, err = s.WaitFrame(context.Background())
	require.NoError(t, err)
	discarded, err = s.BeginFrame(context.Background())
	require.True(t, xrerr.Is(err, xrerr.FrameDiscarded))
	assert.True(t, discarded)
}

func TestBeginFrame_ThirdCallWithoutAnotherWait_IsCallOrderInvalid(t *testing.T) {
	s, _ := newTestSession(t)
	_, _, err := s.WaitFrame(context.Background())
	require.NoError(t, err)
	_, err = s.BeginFrame(context.Background())
	require.NoError(t, err)

	_, _, err = s.WaitFrame(context.Background())
	require.NoError(t, err)
	_, err = s.BeginFrame(context.Background())
	require.True(t, xrerr.Is(err, xrerr.FrameDiscarded))

	_, err = s.BeginFrame(context.Background())
	require.Error(t, err)
	assert.True(t, xrerr.Is(err, xrerr.CallOrderInvalid))
}

func TestEndFrame_NoLayersDiscardsAndSucceeds(t *testing.T) {
	s, comp := newTestSession(t)
	res, _, err := s.WaitFrame(context.Background())
	require.NoError(t, err)
	_, err = s.BeginFrame(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.EndFrame(context.Background(), compositor.BlendOpaque, res.PredictedDisplayTime, nil))
	assert.Contains(t, comp.discarded, res.FrameID)
}

func TestEndFrame_WithoutBeginFrame_IsCallOrderInvalid(t *testing.T) {
	s, _ := newTestSession(t)
	err := s.EndFrame(context.Background(), compositor.BlendOpaque, time.Now(), nil)
	require.Error(t, err)
	assert.True(t, xrerr.Is(err, xrerr.CallOrderInvalid))
}

func TestEndFrame_UnsupportedBlendModeFails(t *testing.T) {
	s, _ := newTestSession(t)
	res, _, err := s.WaitFrame(context.Background())
	require.NoError(t, err)
	_, err = s.BeginFrame(context.Background())
	require.NoError(t, err)

	layer := LayerInput{
		Kind:  compositor.LayerQuad,
		Space: s.headSpace,
		Pose:  spacegraph.IdentityPose,
		Quad:  &QuadLayerInput{Width: 1, Height: 1},
	}
	err = s.EndFrame(context.Background(), compositor.BlendAdditive, res.PredictedDisplayTime, []LayerInput{layer})
	require.Error(t, err)
	assert.True(t, xrerr.Is(err, xrerr.EnvironmentBlendModeUnsupported))
}

func TestAttachActionSets_NoAssignedRoleDevicesYieldsNoProfileChanges(t *testing.T) {
	s, _ := newTestSession(t)
	set := action.NewActionSet(1, "gameplay")
	_, err := set.CreateAction(1, "grab", xrtypes.ActionBool, nil)
	require.NoError(t, err)

	// fakeHeadSource only reports a head device, and the profile engine has
	// no shipped templates in this test, so no candidate profile is ever
	// selected; the call must still succeed and freeze the set.
	require.NoError(t, s.AttachActionSets([]*action.ActionSet{set}))
	assert.True(t, set.IsAttached())

	_, err = set.CreateAction(2, "grab2", xrtypes.ActionBool, nil)
	assert.Error(t, err)
}

func TestConcurrentWaitAndEndFrame_DoesNotRace(t *testing.T) {
	s, _ := newTestSession(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := s.WaitFrame(context.Background())
			if err != nil {
				return
			}
			if _, err := s.BeginFrame(context.Background()); err != nil && !xrerr.Is(err, xrerr.FrameDiscarded) {
				return
			}
			_ = s.EndFrame(context.Background(), compositor.BlendOpaque, res.PredictedDisplayTime, nil)
		}()
	}
	wg.Wait()
}
