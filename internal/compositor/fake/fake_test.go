package fake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixrcore/runtime/internal/compositor"
)

func TestCreateCompositor_ReturnsIndependentInstances(t *testing.T) {
	f := NewFactory(Config{FramePeriod: time.Millisecond})
	a, err := f.CreateCompositor()
	require.NoError(t, err)
	b, err := f.CreateCompositor()
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestSessionLifecycle_RejectsOutOfOrderCalls(t *testing.T) {
	f := NewFactory(Config{FramePeriod: time.Millisecond})
	c, err := f.CreateCompositor()
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, c.EndSession(ctx))
	require.NoError(t, c.BeginSession(ctx))
	assert.Error(t, c.BeginSession(ctx))
	require.NoError(t, c.EndSession(ctx))
}

func TestWaitBeginLayerCommit_HappyPath(t *testing.T) {
	f := NewFactory(Config{FramePeriod: time.Millisecond})
	c, err := f.CreateCompositor()
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.BeginSession(ctx))

	res, err := c.WaitFrame(ctx)
	require.NoError(t, err)

	require.NoError(t, c.BeginFrame(ctx, res.FrameID))
	require.NoError(t, c.LayerBegin(ctx, res.FrameID, compositor.BlendOpaque))
	require.NoError(t, c.LayerSubmit(ctx, res.FrameID, compositor.Layer{Kind: compositor.LayerProjection}))
	require.NoError(t, c.LayerCommit(ctx, res.FrameID))
}

func TestLayerSubmit_BeforeBeginFrameIsRejected(t *testing.T) {
	f := NewFactory(Config{FramePeriod: time.Millisecond})
	c, err := f.CreateCompositor()
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.BeginSession(ctx))

	res, err := c.WaitFrame(ctx)
	require.NoError(t, err)
	err = c.LayerSubmit(ctx, res.FrameID, compositor.Layer{})
	assert.Error(t, err)
}

func TestWaitFrame_PacesAgainstConfiguredPeriod(t *testing.T) {
	period := 20 * time.Millisecond
	f := NewFactory(Config{FramePeriod: period})
	c, err := f.CreateCompositor()
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.WaitFrame(ctx)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.WaitFrame(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), period-2*time.Millisecond)
}

func TestPollEvent_ReportsSessionStateChanges(t *testing.T) {
	f := NewFactory(Config{FramePeriod: time.Millisecond})
	c, err := f.CreateCompositor()
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.BeginSession(ctx))

	ev, err := c.PollEvent()
	require.NoError(t, err)
	assert.Equal(t, compositor.EventStateChange, ev.Kind)
	assert.True(t, ev.Visible)

	ev, err = c.PollEvent()
	require.NoError(t, err)
	assert.Equal(t, compositor.EventNone, ev.Kind)
}

func TestSwapchain_AcquireWaitRelease(t *testing.T) {
	f := NewFactory(Config{})
	c, err := f.CreateCompositor()
	require.NoError(t, err)

	sc, err := c.CreateSwapchain(compositor.SwapchainCreateInfo{Width: 1024, Height: 1024})
	require.NoError(t, err)
	w, h := sc.Extent()
	assert.Equal(t, uint32(1024), w)
	assert.Equal(t, uint32(1024), h)

	idx, err := sc.AcquireImage()
	require.NoError(t, err)
	require.NoError(t, sc.WaitImage(idx, time.Second))
	require.NoError(t, sc.ReleaseImage(idx))
	assert.Error(t, sc.ReleaseImage(idx))
}

func TestCreateSwapchain_RejectsZeroExtent(t *testing.T) {
	f := NewFactory(Config{})
	c, err := f.CreateCompositor()
	require.NoError(t, err)

	_, err = c.CreateSwapchain(compositor.SwapchainCreateInfo{Width: 0, Height: 512})
	assert.Error(t, err)
}
