// Package system implements spec.md section 4.J: the single System object
// every instance owns, resolving the head and per-role devices from an
// abstract device prober, and exposing the view-configuration and
// blend-mode surface internal/session needs through its HeadSource
// capability interface.
package system

import (
	"sync"

	"github.com/ixrcore/runtime/internal/compositor"
	"github.com/ixrcore/runtime/internal/device"
	"github.com/ixrcore/runtime/internal/xrerr"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

// System holds the resolved device roles, view configuration, and blend
// modes for one instance. There is exactly one System per Instance, per
// spec.md section 4.J.
type System struct {
	mu sync.RWMutex

	head    device.Device
	roles   map[xrtypes.SubActionPath]device.Device
	devices []device.Device

	viewConfig    xrtypes.ViewConfigurationType
	blendModes    []compositor.BlendMode
	defaultIPD    float64
}

// Config parameterizes system fill-in: the default IPD (a process-wide
// option per spec.md section 5) and the blend modes the compositor/head
// device combination supports.
type Config struct {
	DefaultIPDMeters float64
	ViewConfig       xrtypes.ViewConfigurationType
	BlendModes       []compositor.BlendMode
}

// FillIn implements spec.md section 4.J's device-role resolution: probes
// for devices and assigns each to its well-known role. A prober returning
// fewer roles than exist is not an error; missing roles are simply absent
// from the System (spec.md: "a prober may return fewer roles... treats a
// missing role as not present").
func FillIn(prober device.Prober, cfg Config) (*System, error) {
	found, err := prober.Probe()
	if err != nil {
		return nil, xrerr.Wrap(xrerr.RuntimeFailure, "system.FillIn", err)
	}

	s := &System{
		roles:      make(map[xrtypes.SubActionPath]device.Device),
		viewConfig: cfg.ViewConfig,
		blendModes: append([]compositor.BlendMode(nil), cfg.BlendModes...),
		defaultIPD: cfg.DefaultIPDMeters,
	}

	if head, ok := found[device.RoleHead]; ok {
		s.head = head
		s.devices = append(s.devices, head)
	}
	roleMap := map[device.Role]xrtypes.SubActionPath{
		device.RoleLeft:    xrtypes.SubActionLeft,
		device.RoleRight:   xrtypes.SubActionRight,
		device.RoleGamepad: xrtypes.SubActionGamepad,
	}
	for role, sub := range roleMap {
		if dev, ok := found[role]; ok {
			s.roles[sub] = dev
			s.devices = append(s.devices, dev)
		}
	}
	// Hand-tracking roles are queried through the standard input/pose
	// surface, not a dedicated sub-action path, but must still be kept
	// alive and destroyed with the system.
	for _, role := range []device.Role{device.RoleHandTrackingLeft, device.RoleHandTrackingRight} {
		if dev, ok := found[role]; ok {
			s.devices = append(s.devices, dev)
		}
	}

	return s, nil
}

// HeadDevice implements session.HeadSource.
func (s *System) HeadDevice() (device.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.head, s.head != nil
}

// RoleDevice implements session.HeadSource.
func (s *System) RoleDevice(sub xrtypes.SubActionPath) (device.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.roles[sub]
	return d, ok
}

// SupportedBlendModes implements session.HeadSource.
func (s *System) SupportedBlendModes() []compositor.BlendMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]compositor.BlendMode, len(s.blendModes))
	copy(out, s.blendModes)
	return out
}

// IPDMeters implements session.HeadSource.
func (s *System) IPDMeters() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultIPD
}

// SetIPDMeters lets the control plane (or a calibration flow) override
// the process-wide default IPD for this system.
func (s *System) SetIPDMeters(ipd float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultIPD = ipd
}

// ViewConfiguration returns the system's configured view layout.
func (s *System) ViewConfiguration() xrtypes.ViewConfigurationType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewConfig
}

// ViewCount returns how many views the configured view configuration
// produces (2 for stereo, 1 for mono).
func (s *System) ViewCount() int {
	if s.ViewConfiguration() == xrtypes.ViewConfigMono {
		return 1
	}
	return 2
}

// HasHandTracking reports whether any probed device advertises
// hand-tracking capability.
func (s *System) HasHandTracking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.Capabilities().HandTracking {
			return true
		}
	}
	return false
}

// Destroy releases every probed device, head and role devices alike.
func (s *System) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		d.Destroy()
	}
	s.devices = nil
	s.head = nil
	s.roles = make(map[xrtypes.SubActionPath]device.Device)
}
