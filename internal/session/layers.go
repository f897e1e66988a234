package session

import (
	"context"
	"math"
	"time"

	"github.com/ixrcore/runtime/internal/compositor"
	"github.com/ixrcore/runtime/internal/device"
	"github.com/ixrcore/runtime/internal/logger"
	"github.com/ixrcore/runtime/internal/space"
	"github.com/ixrcore/runtime/internal/spacegraph"
	"github.com/ixrcore/runtime/internal/swapchain"
	"github.com/ixrcore/runtime/internal/telemetry"
	"github.com/ixrcore/runtime/internal/xrerr"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

// ProjectionViewInput is one eye's application-supplied view within a
// projection layer submission.
type ProjectionViewInput struct {
	Pose       spacegraph.Pose
	FoV        device.FoV
	Swapchain  SwapchainRefInput
	DepthMin   *float64
	DepthMax   *float64
	DepthNearZ *float64
	DepthFarZ  *float64
}

// SwapchainRefInput identifies a previously-created swapchain's released
// image and sub-rect for a layer submission.
type SwapchainRefInput struct {
	Swapchain       *swapchain.Swapchain
	ImageArrayIndex uint32
	RectX, RectY    int32
	RectW, RectH    int32
}

// QuadLayerInput, CubeLayerInput, CylinderLayerInput, EquirectLayerInput
// mirror internal/compositor's layer payloads, referencing
// SwapchainRefInput / *swapchain.Swapchain rather than raw backend types.
type QuadLayerInput struct {
	Swapchain     SwapchainRefInput
	Width, Height float64
}

type CubeLayerInput struct {
	Swapchain *swapchain.Swapchain
}

type CylinderLayerInput struct {
	Swapchain    SwapchainRefInput
	Radius       float64
	CentralAngle float64
	AspectRatio  float64
}

type EquirectLayerInput struct {
	Swapchain SwapchainRefInput
	Radius    float64
}

// LayerInput is one application-submitted composition layer, prior to
// validation and space resolution.
type LayerInput struct {
	Kind  compositor.LayerKind
	Space *space.Space
	Pose  spacegraph.Pose

	Projection *[2]ProjectionViewInput
	Quad       *QuadLayerInput
	Cube       *CubeLayerInput
	Cylinder   *CylinderLayerInput
	Equirect   *EquirectLayerInput
}

const poseTolerance = 0.01

func validLayerPose(p spacegraph.Pose) error {
	if !p.Position.IsFinite() {
		return xrerr.New(xrerr.PoseInvalid, "session.validLayerPose", "position is not finite")
	}
	if !p.Orientation.IsNormalized(poseTolerance) {
		return xrerr.New(xrerr.PoseInvalid, "session.validLayerPose", "orientation is not within 1% of unit length")
	}
	return nil
}

func validateSwapchainRef(ref SwapchainRefInput) error {
	if ref.Swapchain == nil {
		return xrerr.New(xrerr.ValidationFailure, "session.validateSwapchainRef", "nil swapchain")
	}
	if ref.ImageArrayIndex >= uint32(ref.Swapchain.LayerCount()) {
		return xrerr.New(xrerr.LayerInvalid, "session.validateSwapchainRef", "imageArrayIndex out of range")
	}
	if ref.RectX < 0 || ref.RectY < 0 {
		return xrerr.New(xrerr.SwapchainRectInvalid, "session.validateSwapchainRef", "negative rect offset")
	}
	w, h := ref.Swapchain.Extent()
	if ref.RectX+ref.RectW > int32(w) || ref.RectY+ref.RectH > int32(h) {
		return xrerr.New(xrerr.SwapchainRectInvalid, "session.validateSwapchainRef", "rect exceeds swapchain extents")
	}
	if _, ok := ref.Swapchain.ReleasedIndex(); !ok {
		return xrerr.New(xrerr.LayerInvalid, "session.validateSwapchainRef", "swapchain has no released image")
	}
	return nil
}

// validateLayer implements spec.md section 4.I's common and kind-specific
// layer validation rules.
func validateLayer(l LayerInput) error {
	if l.Space == nil {
		return xrerr.New(xrerr.ValidationFailure, "session.validateLayer", "layer has no space")
	}
	if err := validLayerPose(l.Pose); err != nil {
		return err
	}

	switch l.Kind {
	case compositor.LayerProjection:
		if l.Projection == nil {
			return xrerr.New(xrerr.ValidationFailure, "session.validateLayer", "projection layer missing views")
		}
		return validateProjection(*l.Projection)
	case compositor.LayerQuad:
		if l.Quad == nil {
			return xrerr.New(xrerr.ValidationFailure, "session.validateLayer", "quad layer missing payload")
		}
		return validateSwapchainRef(l.Quad.Swapchain)
	case compositor.LayerCube:
		if l.Cube == nil || l.Cube.Swapchain == nil {
			return xrerr.New(xrerr.ValidationFailure, "session.validateLayer", "cube layer missing swapchain")
		}
		return nil
	case compositor.LayerCylinder:
		if l.Cylinder == nil {
			return xrerr.New(xrerr.ValidationFailure, "session.validateLayer", "cylinder layer missing payload")
		}
		return validateCylinder(*l.Cylinder)
	case compositor.LayerEquirect, compositor.LayerEquirect2:
		if l.Equirect == nil {
			return xrerr.New(xrerr.ValidationFailure, "session.validateLayer", "equirect layer missing payload")
		}
		return validateSwapchainRef(l.Equirect.Swapchain)
	default:
		return xrerr.New(xrerr.ValidationFailure, "session.validateLayer", "unknown layer kind")
	}
}

func validateProjection(views [2]ProjectionViewInput) error {
	var depthCount int
	for i := range views {
		v := views[i]
		if err := validLayerPose(v.Pose); err != nil {
			return err
		}
		if err := validateSwapchainRef(v.Swapchain); err != nil {
			return err
		}
		if v.DepthMin != nil || v.DepthMax != nil || v.DepthNearZ != nil || v.DepthFarZ != nil {
			depthCount++
			if v.DepthMin == nil || v.DepthMax == nil || v.DepthNearZ == nil || v.DepthFarZ == nil {
				return xrerr.New(xrerr.ValidationFailure, "session.validateProjection", "partial depth info on view")
			}
			if *v.DepthMin < 0 || *v.DepthMin > 1 || *v.DepthMax < 0 || *v.DepthMax > 1 || *v.DepthMin > *v.DepthMax {
				return xrerr.New(xrerr.ValidationFailure, "session.validateProjection", "depth min/max out of range")
			}
			if *v.DepthNearZ == *v.DepthFarZ {
				return xrerr.New(xrerr.ValidationFailure, "session.validateProjection", "depth nearZ equals farZ")
			}
		}
	}
	if depthCount != 0 && depthCount != len(views) {
		return xrerr.New(xrerr.ValidationFailure, "session.validateProjection", "depth info must be present on all views or none")
	}
	return nil
}

func validateCylinder(c CylinderLayerInput) error {
	if c.Radius < 0 {
		return xrerr.New(xrerr.ValidationFailure, "session.validateCylinder", "radius must be non-negative")
	}
	if c.CentralAngle < 0 || c.CentralAngle > 2*math.Pi {
		return xrerr.New(xrerr.ValidationFailure, "session.validateCylinder", "centralAngle out of [0, 2pi]")
	}
	if c.AspectRatio <= 0 {
		return xrerr.New(xrerr.ValidationFailure, "session.validateCylinder", "aspectRatio must be positive")
	}
	return validateSwapchainRef(c.Swapchain)
}

// EndFrame implements spec.md section 4.I's endFrame: discards with
// success if there are no layers, otherwise validates and resolves every
// layer, submits them, and commits.
func (s *Session) EndFrame(ctx context.Context, blend compositor.BlendMode, displayTime time.Time, layers []LayerInput) error {
	defer s.endFrameEpilogue()

	s.frame.gateMu.Lock()
	started := s.frame.started
	id := s.frame.beganID
	s.frame.gateMu.Unlock()

	ctx, span := telemetry.StartFrameSpan(ctx, "end", s.id, uint64(id), telemetry.BlendMode(blendModeName(blend)))
	defer span.End()

	if !started {
		err := xrerr.New(xrerr.CallOrderInvalid, "session.EndFrame", "endFrame called without a prior beginFrame")
		telemetry.RecordError(ctx, err)
		return err
	}

	if len(layers) == 0 {
		if s.metrics != nil {
			s.metrics.FramesDiscarded.Inc()
		}
		return wrapRuntime(s.compositor.DiscardFrame(ctx, id))
	}

	if !blendModeSupported(blend, s.sys.SupportedBlendModes()) {
		_ = s.compositor.DiscardFrame(ctx, id)
		if s.metrics != nil {
			s.metrics.FramesDiscarded.Inc()
		}
		err := xrerr.New(xrerr.EnvironmentBlendModeUnsupported, "session.EndFrame", "blend mode not supported by the head device")
		telemetry.RecordError(ctx, err)
		return err
	}

	resolved := make([]compositor.Layer, 0, len(layers))
	for _, l := range layers {
		if err := validateLayer(l); err != nil {
			_ = s.compositor.DiscardFrame(ctx, id)
			telemetry.RecordError(ctx, err)
			if s.metrics != nil {
				s.metrics.FramesDiscarded.Inc()
			}
			return err
		}
		out, skip, err := s.resolveLayer(l, displayTime)
		if err != nil {
			_ = s.compositor.DiscardFrame(ctx, id)
			telemetry.RecordError(ctx, err)
			if s.metrics != nil {
				s.metrics.FramesDiscarded.Inc()
			}
			return err
		}
		if skip {
			continue
		}
		resolved = append(resolved, out)
	}

	if err := s.compositor.LayerBegin(ctx, id, blend); err != nil {
		err = xrerr.Wrap(xrerr.RuntimeFailure, "session.EndFrame", err)
		telemetry.RecordError(ctx, err)
		if s.metrics != nil {
			s.metrics.CompositorErrors.WithLabelValues("layerBegin").Inc()
		}
		return err
	}
	for _, l := range resolved {
		if err := s.compositor.LayerSubmit(ctx, id, l); err != nil {
			err = xrerr.Wrap(xrerr.RuntimeFailure, "session.EndFrame", err)
			telemetry.RecordError(ctx, err)
			if s.metrics != nil {
				s.metrics.CompositorErrors.WithLabelValues("layerSubmit").Inc()
			}
			return err
		}
		if s.metrics != nil {
			s.metrics.LayersSubmitted.WithLabelValues(layerKindName(l.Kind)).Inc()
		}
	}
	if err := s.compositor.LayerCommit(ctx, id); err != nil {
		err = xrerr.Wrap(xrerr.RuntimeFailure, "session.EndFrame", err)
		telemetry.RecordError(ctx, err)
		if s.metrics != nil {
			s.metrics.CompositorErrors.WithLabelValues("layerCommit").Inc()
		}
		return err
	}
	s.frame.gateMu.Lock()
	waitStart := s.frame.waitStart
	s.frame.gateMu.Unlock()
	if !waitStart.IsZero() {
		latency := time.Since(waitStart)
		if s.metrics != nil {
			s.metrics.FramesEnded.Inc()
			s.metrics.FrameLatency.Observe(latency.Seconds())
		}
		if s.opts.LogFrameTiming {
			logger.DebugCtx(ctx, "frame timing", "session_id", s.id, "frame_id", uint64(id), "latency_ms", latency.Milliseconds())
		}
	} else if s.metrics != nil {
		s.metrics.FramesEnded.Inc()
	}
	return nil
}

func layerKindName(k compositor.LayerKind) string {
	switch k {
	case compositor.LayerProjection:
		return "projection"
	case compositor.LayerQuad:
		return "quad"
	case compositor.LayerCube:
		return "cube"
	case compositor.LayerCylinder:
		return "cylinder"
	case compositor.LayerEquirect:
		return "equirect"
	case compositor.LayerEquirect2:
		return "equirect2"
	default:
		return "unknown"
	}
}

func wrapRuntime(err error) error {
	if err == nil {
		return nil
	}
	return xrerr.Wrap(xrerr.RuntimeFailure, "session.EndFrame", err)
}

func blendModeName(b compositor.BlendMode) string {
	switch b {
	case compositor.BlendOpaque:
		return "opaque"
	case compositor.BlendAdditive:
		return "additive"
	case compositor.BlendAlphaBlend:
		return "alphaBlend"
	default:
		return "unknown"
	}
}

func blendModeSupported(want compositor.BlendMode, supported []compositor.BlendMode) bool {
	for _, b := range supported {
		if b == want {
			return true
		}
	}
	return false
}

// resolveLayer implements spec.md section 4.I's submission phase: resolve
// the layer's space to a pose relative to the head, honoring the
// view-space flag and action-space activity skip.
func (s *Session) resolveLayer(l LayerInput, displayTime time.Time) (compositor.Layer, bool, error) {
	res, err := space.Locate(l.Space, s.headSpace, displayTime, s, false)
	if err != nil {
		return compositor.Layer{}, false, err
	}

	if l.Space.IsAction() {
		attached, ok := s.attachment.Get(l.Space.ActionKey())
		if !ok {
			return compositor.Layer{}, false, xrerr.New(xrerr.ValidationFailure, "session.resolveLayer", "layer space's action is not attached")
		}
		if !attached.Get(l.Space.SubActionPath()).Active {
			return compositor.Layer{}, true, nil
		}
	}

	viewSpace := !l.Space.IsAction() && l.Space.ReferenceKind() == xrtypes.ReferenceView

	finalPose := res.Pose.Compose(l.Pose)

	out := compositor.Layer{
		Kind:      l.Kind,
		Pose:      toCompositorPose(finalPose),
		ViewSpace: viewSpace,
	}

	switch l.Kind {
	case compositor.LayerProjection:
		out.Projection = &compositor.ProjectionLayer{}
		for i, v := range l.Projection {
			out.Projection.Views[i] = compositor.ProjectionView{
				Pose:       toCompositorPose(v.Pose),
				FoVLeft:    v.FoV.AngleLeft,
				FoVRight:   v.FoV.AngleRight,
				FoVUp:      v.FoV.AngleUp,
				FoVDown:    v.FoV.AngleDown,
				Swapchain:  toSwapchainRef(v.Swapchain),
				DepthMin:   v.DepthMin,
				DepthMax:   v.DepthMax,
				DepthNearZ: v.DepthNearZ,
				DepthFarZ:  v.DepthFarZ,
			}
		}
	case compositor.LayerQuad:
		out.Quad = &compositor.QuadLayer{Swapchain: toSwapchainRef(l.Quad.Swapchain), Width: l.Quad.Width, Height: l.Quad.Height}
	case compositor.LayerCube:
		out.Cube = &compositor.CubeLayer{Swapchain: l.Cube.Swapchain.Backend()}
	case compositor.LayerCylinder:
		out.Cylinder = &compositor.CylinderLayer{
			Swapchain:    toSwapchainRef(l.Cylinder.Swapchain),
			Radius:       l.Cylinder.Radius,
			CentralAngle: l.Cylinder.CentralAngle,
			AspectRatio:  l.Cylinder.AspectRatio,
		}
	case compositor.LayerEquirect, compositor.LayerEquirect2:
		out.Equirect = &compositor.EquirectLayer{Swapchain: toSwapchainRef(l.Equirect.Swapchain), Radius: l.Equirect.Radius}
	}

	return out, false, nil
}

func toCompositorPose(p spacegraph.Pose) compositor.Pose {
	return compositor.Pose{
		OrientationX: p.Orientation.X, OrientationY: p.Orientation.Y, OrientationZ: p.Orientation.Z, OrientationW: p.Orientation.W,
		PositionX: p.Position.X, PositionY: p.Position.Y, PositionZ: p.Position.Z,
	}
}

func toSwapchainRef(ref SwapchainRefInput) compositor.SwapchainRef {
	return compositor.SwapchainRef{
		Swapchain:       ref.Swapchain.Backend(),
		ImageArrayIndex: ref.ImageArrayIndex,
		RectX:           ref.RectX,
		RectY:           ref.RectY,
		RectW:           ref.RectW,
		RectH:           ref.RectH,
	}
}
