// Package compositor defines the abstract native-compositor interface of
// spec.md section 6: begin/end session, the wait/begin/commit frame-pacing
// triad, layer submission, and swapchain creation. Like internal/device,
// this is a consumed collaborator — the runtime core never touches a
// graphics API directly.
package compositor

import (
	"context"
	"time"
)

// EventKind distinguishes the compositor-originated events spec.md section
// 6 lists.
type EventKind int

const (
	EventNone EventKind = iota
	EventStateChange
	EventOverlayChange
)

// Event is a single compositor-originated event, polled by the session's
// internal event pump and translated into spec.md section 4.C events.
type Event struct {
	Kind     EventKind
	Visible  bool
	Focused  bool
}

// FrameID is an opaque, compositor-assigned frame identifier. The same
// FrameID returned from WaitFrame must be passed to BeginFrame and then to
// LayerCommit, per spec.md section 5's ordering guarantee.
type FrameID uint64

// BlendMode is the environment blend mode a layer submission selects.
type BlendMode int

const (
	BlendOpaque BlendMode = iota
	BlendAdditive
	BlendAlphaBlend
)

// WaitFrameResult carries the compositor's prediction for the next frame.
type WaitFrameResult struct {
	FrameID             FrameID
	PredictedDisplayTime time.Time
	PredictedDisplayPeriod time.Duration
}

// Layer is a typed, already-validated composition layer descriptor handed
// to the compositor for submission. The runtime core resolves all spaces
// and samples all action-space poses before building one of these; the
// compositor never sees a Space or Action handle.
type Layer struct {
	Kind LayerKind

	// Pose is the layer's pose relative to the view/tracking origin,
	// already resolved by internal/session's submission path.
	Pose Pose

	// ViewSpace is true when the layer was expressed in View space and
	// should not have the tracking-system origin subtracted again.
	ViewSpace bool

	Projection *ProjectionLayer
	Quad       *QuadLayer
	Cube       *CubeLayer
	Cylinder   *CylinderLayer
	Equirect   *EquirectLayer
}

// LayerKind identifies which of Layer's typed fields is populated.
type LayerKind int

const (
	LayerProjection LayerKind = iota
	LayerQuad
	LayerCube
	LayerCylinder
	LayerEquirect
	LayerEquirect2
)

// Pose duplicates spacegraph.Pose's shape to keep this package free of a
// dependency on internal/spacegraph's full algebra — the compositor only
// ever receives already-resolved poses.
type Pose struct {
	OrientationX, OrientationY, OrientationZ, OrientationW float64
	PositionX, PositionY, PositionZ                        float64
}

// ProjectionView is one eye's resolved view within a projection layer.
type ProjectionView struct {
	Pose       Pose
	FoVLeft    float64
	FoVRight   float64
	FoVUp      float64
	FoVDown    float64
	Swapchain  SwapchainRef
	DepthMin   *float64
	DepthMax   *float64
	DepthNearZ *float64
	DepthFarZ  *float64
}

// SwapchainRef identifies a previously-created swapchain's released image
// and sub-rect.
type SwapchainRef struct {
	Swapchain       Swapchain
	ImageArrayIndex uint32
	RectX, RectY    int32
	RectW, RectH    int32
}

// ProjectionLayer is a stereo projection layer (spec.md requires exactly
// two views).
type ProjectionLayer struct {
	Views [2]ProjectionView
}

// QuadLayer is a single flat quad.
type QuadLayer struct {
	Swapchain SwapchainRef
	Width, Height float64
}

// CubeLayer is a cubemap skybox layer.
type CubeLayer struct {
	Swapchain Swapchain
}

// CylinderLayer is a curved cylindrical layer.
type CylinderLayer struct {
	Swapchain     SwapchainRef
	Radius        float64
	CentralAngle  float64
	AspectRatio   float64
}

// EquirectLayer is an equirectangular (v1) layer.
type EquirectLayer struct {
	Swapchain SwapchainRef
	Radius    float64
}

// Compositor is the abstract native compositor the runtime core drives.
type Compositor interface {
	BeginSession(ctx context.Context) error
	EndSession(ctx context.Context) error

	WaitFrame(ctx context.Context) (WaitFrameResult, error)
	BeginFrame(ctx context.Context, id FrameID) error
	DiscardFrame(ctx context.Context, id FrameID) error

	LayerBegin(ctx context.Context, id FrameID, blend BlendMode) error
	LayerSubmit(ctx context.Context, id FrameID, layer Layer) error
	LayerCommit(ctx context.Context, id FrameID) error

	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error)

	// PollEvent returns at most one compositor event; EventKind None if
	// there is nothing pending.
	PollEvent() (Event, error)

	Destroy()
}

// Factory creates one native Compositor per session, mirroring the
// create-native-compositor entry point spec.md section 6 lists first among
// the compositor interface's operations. A concrete backend is a factory
// producing Compositor implementations, the same capability-interface
// shape internal/device's Prober uses for devices.
type Factory interface {
	CreateCompositor() (Compositor, error)
}

// ImageState is a single swapchain image's lifecycle state, spec.md
// section 3.
type ImageState int

const (
	ImageReady ImageState = iota
	ImageAcquired
	ImageWaited
)

// SwapchainCreateInfo parameterizes swapchain creation.
type SwapchainCreateInfo struct {
	Width, Height uint32
	ArraySize     uint32
	MipCount      uint32
	SampleCount   uint32
	Format        int64
	FaceCount     uint32 // 6 for cube swapchains, 1 otherwise
	Static        bool
}

// Swapchain is the abstract backend behind internal/swapchain's state
// machine: it owns the actual image array and answers low-level
// acquire/wait/release index queries. internal/swapchain owns the state
// machine described in spec.md section 4.H; this interface is only the
// backend it drives.
type Swapchain interface {
	ImageCount() int
	LayerCount() int
	Extent() (width, height uint32)

	// AcquireImage asks the backend for the next image index. The backend
	// is expected to know which images are free; internal/swapchain only
	// double-checks the returned image is Ready.
	AcquireImage() (index int, err error)

	// WaitImage blocks until the image at index is ready for the
	// application to render into, or timeout elapses.
	WaitImage(index int, timeout time.Duration) error

	// ReleaseImage returns the image at index to the compositor.
	ReleaseImage(index int) error

	Destroy()
}
