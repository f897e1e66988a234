// Package swapchain implements the image-index FIFO and acquire/wait/release
// state machine of spec.md section 4.H, driving an abstract
// internal/compositor.Swapchain backend.
package swapchain

import (
	"sync"
	"time"

	"github.com/ixrcore/runtime/internal/compositor"
	"github.com/ixrcore/runtime/internal/handle"
	"github.com/ixrcore/runtime/internal/xrerr"
)

// Swapchain tracks per-image state and the acquired/waited/released
// bookkeeping on top of a backend compositor.Swapchain.
type Swapchain struct {
	handle.Base

	mu      sync.Mutex
	backend compositor.Swapchain
	static  bool

	images []compositor.ImageState
	fifo   []int // indices currently Acquired, oldest first

	waitedIndex    *int
	releasedIndex  *int
	everReleased   bool
}

// New wraps backend in a Swapchain handle, parented under parent.
func New(parent *handle.Base, backend compositor.Swapchain, static bool) (*Swapchain, error) {
	s := &Swapchain{
		backend: backend,
		static:  static,
		images:  make([]compositor.ImageState, backend.ImageCount()),
	}
	if err := handle.Init(&s.Base, s, handle.KindSwapchain, parent, destroy); err != nil {
		return nil, err
	}
	return s, nil
}

func destroy(b *handle.Base) {
	s := b.Owner().(*Swapchain)
	s.backend.Destroy()
}

// ImageCount returns the backend's fixed image count.
func (s *Swapchain) ImageCount() int { return len(s.images) }

// LayerCount returns the backend's array size (for texture-array
// swapchains).
func (s *Swapchain) LayerCount() int { return s.backend.LayerCount() }

// Extent returns the backend's width and height.
func (s *Swapchain) Extent() (uint32, uint32) { return s.backend.Extent() }

// Backend returns the underlying compositor.Swapchain, for handing to a
// layer submission that needs the raw backend reference rather than this
// state machine's bookkeeping.
func (s *Swapchain) Backend() compositor.Swapchain { return s.backend }

// ReleasedIndex returns the most recently released image index, if any.
func (s *Swapchain) ReleasedIndex() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.releasedIndex == nil {
		return 0, false
	}
	return *s.releasedIndex, true
}

// AcquireImage implements spec.md 4.H's acquire_image: rejects a second
// in-flight acquisition beyond image_count, rejects a second acquire on a
// static swapchain that already completed a cycle, asks the backend for an
// index, requires it be Ready, and pushes it onto the FIFO.
func (s *Swapchain) AcquireImage() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.fifo) >= len(s.images) {
		return 0, xrerr.New(xrerr.CallOrderInvalid, "swapchain.AcquireImage", "all images already acquired")
	}
	if s.static && (s.waitedIndex != nil || s.everReleased) {
		return 0, xrerr.New(xrerr.CallOrderInvalid, "swapchain.AcquireImage", "static swapchain already completed its one cycle")
	}

	idx, err := s.backend.AcquireImage()
	if err != nil {
		return 0, xrerr.Wrap(xrerr.RuntimeFailure, "swapchain.AcquireImage", err)
	}
	if idx < 0 || idx >= len(s.images) {
		return 0, xrerr.New(xrerr.RuntimeFailure, "swapchain.AcquireImage", "backend returned out-of-range index")
	}
	if s.images[idx] != compositor.ImageReady {
		return 0, xrerr.New(xrerr.RuntimeFailure, "swapchain.AcquireImage", "backend returned a non-Ready image")
	}

	s.images[idx] = compositor.ImageAcquired
	s.fifo = append(s.fifo, idx)

	if s.releasedIndex != nil && *s.releasedIndex == idx {
		s.releasedIndex = nil
	}

	return idx, nil
}

// WaitImage implements spec.md 4.H's wait_image: exactly one image may be
// Waited at a time; pops the FIFO head, asks the backend to wait (bounded
// by timeout), and transitions it to Waited.
func (s *Swapchain) WaitImage(timeout time.Duration) (int, error) {
	s.mu.Lock()
	if s.waitedIndex != nil {
		s.mu.Unlock()
		return 0, xrerr.New(xrerr.CallOrderInvalid, "swapchain.WaitImage", "an image is already waited")
	}
	if len(s.fifo) == 0 {
		s.mu.Unlock()
		return 0, xrerr.New(xrerr.CallOrderInvalid, "swapchain.WaitImage", "no acquired image to wait on")
	}
	idx := s.fifo[0]
	s.fifo = s.fifo[1:]
	s.mu.Unlock()

	if err := s.backend.WaitImage(idx, timeout); err != nil {
		s.mu.Lock()
		// Put it back at the head so a retry (or release-on-error path)
		// sees consistent state.
		s.fifo = append([]int{idx}, s.fifo...)
		s.mu.Unlock()
		return 0, xrerr.Wrap(xrerr.RuntimeFailure, "swapchain.WaitImage", err)
	}

	s.mu.Lock()
	s.images[idx] = compositor.ImageWaited
	s.waitedIndex = &idx
	s.mu.Unlock()

	return idx, nil
}

// ReleaseImage implements spec.md 4.H's release_image: requires a Waited
// image, asks the backend to release it, transitions it to Ready, and
// records it as the most-recently-released index.
func (s *Swapchain) ReleaseImage() error {
	s.mu.Lock()
	if s.waitedIndex == nil {
		s.mu.Unlock()
		return xrerr.New(xrerr.CallOrderInvalid, "swapchain.ReleaseImage", "no waited image to release")
	}
	idx := *s.waitedIndex
	s.mu.Unlock()

	if err := s.backend.ReleaseImage(idx); err != nil {
		return xrerr.Wrap(xrerr.RuntimeFailure, "swapchain.ReleaseImage", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[idx] = compositor.ImageReady
	s.waitedIndex = nil
	s.releasedIndex = &idx
	s.everReleased = true
	return nil
}

// AcquiredCount reports how many images are currently Acquired (including
// the Waited one, if any), for the invariant "sum of Acquired-state images
// <= image_count" in spec.md section 8.
func (s *Swapchain) AcquiredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.images {
		if st != compositor.ImageReady {
			n++
		}
	}
	return n
}
