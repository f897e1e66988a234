// Package fake implements an in-process compositor.Compositor and
// compositor.Factory, for development and tests against a runtime core with
// no real graphics backend attached. It paces frames against a fixed
// interval instead of vsync, and accepts any layer submission without
// touching actual image memory.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/ixrcore/runtime/internal/compositor"
	"github.com/ixrcore/runtime/internal/xrerr"
)

// Config parameterizes a Factory's compositors.
type Config struct {
	// FramePeriod is the interval WaitFrame paces against. Defaults to a
	// 90Hz cadence if zero.
	FramePeriod time.Duration
}

const defaultFramePeriod = time.Second / 90

// Factory implements compositor.Factory, minting one Compositor per call.
type Factory struct {
	cfg Config
}

// NewFactory returns a compositor.Factory backed by fake compositors.
func NewFactory(cfg Config) *Factory {
	if cfg.FramePeriod <= 0 {
		cfg.FramePeriod = defaultFramePeriod
	}
	return &Factory{cfg: cfg}
}

// CreateCompositor implements compositor.Factory.
func (f *Factory) CreateCompositor() (compositor.Compositor, error) {
	return &Compositor{period: f.cfg.FramePeriod}, nil
}

type sessionState int

const (
	stateIdle sessionState = iota
	stateRunning
)

// Compositor is a fake compositor.Compositor: it paces frames against a
// fixed period and accepts every layer submission without rendering
// anything.
type Compositor struct {
	mu sync.Mutex

	period    time.Duration
	state     sessionState
	nextFrame compositor.FrameID
	begun     map[compositor.FrameID]bool
	lastWait  time.Time

	events []compositor.Event
}

func (c *Compositor) BeginSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateRunning {
		return xrerr.New(xrerr.CallOrderInvalid, "fake.BeginSession", "session already running")
	}
	c.state = stateRunning
	c.begun = make(map[compositor.FrameID]bool)
	c.events = append(c.events, compositor.Event{Kind: compositor.EventStateChange, Visible: true, Focused: true})
	return nil
}

func (c *Compositor) EndSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateRunning {
		return xrerr.New(xrerr.CallOrderInvalid, "fake.EndSession", "session not running")
	}
	c.state = stateIdle
	c.events = append(c.events, compositor.Event{Kind: compositor.EventStateChange, Visible: false, Focused: false})
	return nil
}

// WaitFrame sleeps until period has elapsed since the previous WaitFrame
// call (or returns immediately on the first call), then hands out a fresh
// FrameID.
func (c *Compositor) WaitFrame(ctx context.Context) (compositor.WaitFrameResult, error) {
	c.mu.Lock()
	last := c.lastWait
	period := c.period
	c.mu.Unlock()

	if !last.IsZero() {
		if remaining := period - time.Since(last); remaining > 0 {
			select {
			case <-time.After(remaining):
			case <-ctx.Done():
				return compositor.WaitFrameResult{}, ctx.Err()
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastWait = time.Now()
	c.nextFrame++
	id := c.nextFrame
	if c.begun == nil {
		c.begun = make(map[compositor.FrameID]bool)
	}
	c.begun[id] = false
	return compositor.WaitFrameResult{
		FrameID:                id,
		PredictedDisplayTime:   c.lastWait.Add(period),
		PredictedDisplayPeriod: period,
	}, nil
}

func (c *Compositor) BeginFrame(ctx context.Context, id compositor.FrameID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.begun[id]; !ok {
		return xrerr.New(xrerr.CallOrderInvalid, "fake.BeginFrame", "unknown frame id")
	}
	c.begun[id] = true
	return nil
}

func (c *Compositor) DiscardFrame(ctx context.Context, id compositor.FrameID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.begun, id)
	return nil
}

func (c *Compositor) LayerBegin(ctx context.Context, id compositor.FrameID, blend compositor.BlendMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.begun[id] {
		return xrerr.New(xrerr.CallOrderInvalid, "fake.LayerBegin", "frame was not begun")
	}
	return nil
}

func (c *Compositor) LayerSubmit(ctx context.Context, id compositor.FrameID, layer compositor.Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.begun[id] {
		return xrerr.New(xrerr.CallOrderInvalid, "fake.LayerSubmit", "frame was not begun")
	}
	return nil
}

func (c *Compositor) LayerCommit(ctx context.Context, id compositor.FrameID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.begun[id]; !ok {
		return xrerr.New(xrerr.CallOrderInvalid, "fake.LayerCommit", "unknown frame id")
	}
	delete(c.begun, id)
	return nil
}

func (c *Compositor) CreateSwapchain(info compositor.SwapchainCreateInfo) (compositor.Swapchain, error) {
	if info.Width == 0 || info.Height == 0 {
		return nil, xrerr.New(xrerr.ValidationFailure, "fake.CreateSwapchain", "width and height must be nonzero")
	}
	arraySize := info.ArraySize
	if arraySize == 0 {
		arraySize = 1
	}
	imageCount := 3
	return &Swapchain{
		width: info.Width, height: info.Height,
		layerCount: int(arraySize),
		imageCount: imageCount,
		ready:      make([]bool, imageCount),
	}, nil
}

// PollEvent drains one queued event (session state changes for now).
func (c *Compositor) PollEvent() (compositor.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return compositor.Event{Kind: compositor.EventNone}, nil
	}
	ev := c.events[0]
	c.events = c.events[1:]
	return ev, nil
}

func (c *Compositor) Destroy() {}

// Swapchain is a fake compositor.Swapchain: it hands out images round-robin
// and tracks acquire/wait/release only enough to catch ordering mistakes.
type Swapchain struct {
	mu sync.Mutex

	width, height uint32
	layerCount    int
	imageCount    int
	next          int
	acquired      map[int]bool
	ready         []bool
}

func (s *Swapchain) ImageCount() int { return s.imageCount }
func (s *Swapchain) LayerCount() int { return s.layerCount }
func (s *Swapchain) Extent() (uint32, uint32) { return s.width, s.height }

func (s *Swapchain) AcquireImage() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acquired == nil {
		s.acquired = make(map[int]bool)
	}
	idx := s.next % s.imageCount
	s.next++
	s.acquired[idx] = true
	s.ready[idx] = false
	return idx, nil
}

func (s *Swapchain) WaitImage(index int, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= s.imageCount {
		return xrerr.New(xrerr.ValidationFailure, "fake.WaitImage", "image index out of range")
	}
	s.ready[index] = true
	return nil
}

func (s *Swapchain) ReleaseImage(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acquired[index] {
		return xrerr.New(xrerr.CallOrderInvalid, "fake.ReleaseImage", "image was not acquired")
	}
	delete(s.acquired, index)
	return nil
}

func (s *Swapchain) Destroy() {}
