// Package instance implements spec.md section 4.K: the root handle an
// application creates first and destroys last, owning the Path Store, the
// event queue, the extension bitmap, the single System, the cached
// well-known paths, the live-session list, and the debug-messenger list.
package instance

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ixrcore/runtime/internal/action"
	"github.com/ixrcore/runtime/internal/calibration"
	"github.com/ixrcore/runtime/internal/compositor"
	"github.com/ixrcore/runtime/internal/device"
	"github.com/ixrcore/runtime/internal/event"
	"github.com/ixrcore/runtime/internal/handle"
	"github.com/ixrcore/runtime/internal/logger"
	"github.com/ixrcore/runtime/internal/metrics"
	"github.com/ixrcore/runtime/internal/pathstore"
	"github.com/ixrcore/runtime/internal/profile"
	"github.com/ixrcore/runtime/internal/session"
	"github.com/ixrcore/runtime/internal/system"
	"github.com/ixrcore/runtime/internal/xrerr"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

// satisfies session.HeadSource structurally; the assertion lives here
// rather than in internal/system, since internal/session cannot import
// internal/system without a cycle back through this very interface.
var _ session.HeadSource = (*system.System)(nil)

// ExtensionFlags is the bitmap of runtime extensions an instance was
// created with, captured once at creation per spec.md section 5's
// "process-wide state... read once at instance creation."
type ExtensionFlags uint64

const (
	ExtHandTracking ExtensionFlags = 1 << iota
	ExtCompositionLayerCylinder
	ExtCompositionLayerEquirect
)

// Has reports whether every bit set in want is also set in f.
func (f ExtensionFlags) Has(want ExtensionFlags) bool { return f&want == want }

// MaxDebugMessengers bounds the capped debug-messenger list, the same
// "bounded table" discipline spec.md applies to handle child slots.
const MaxDebugMessengers = 32

// DebugMessenger is a registered callback invoked for runtime-emitted
// diagnostic messages. It self-detaches from its owning Instance's
// messenger list on Destroy.
type DebugMessenger struct {
	handle.Base

	inst     *Instance
	Callback func(severity, message string)
}

func (m *DebugMessenger) emit(severity, message string) {
	if m.Base.State() != handle.Live {
		return
	}
	m.Callback(severity, message)
}

func destroyMessenger(b *handle.Base) {
	m := b.Owner().(*DebugMessenger)
	m.inst.removeMessenger(m)
}

// Config parameterizes instance creation: the extension bitmap, the
// default IPD and view configuration system fill-in needs, and the
// compositor/device backends to probe.
type Config struct {
	Extensions       ExtensionFlags
	DefaultIPDMeters float64
	ViewConfig       xrtypes.ViewConfigurationType
	BlendModes       []compositor.BlendMode

	// Calibration, if non-nil, supplies the operator-set default-IPD
	// override (applied once here) and per-device LocalFloor offsets
	// (applied per session in CreateSession).
	Calibration *calibration.Store

	// Metrics, if non-nil, receives session-count and event-queue-depth
	// observations as the instance's lifecycle progresses.
	Metrics *metrics.Metrics

	// LogFrameTiming and ForceTimelineSemaphores are process-wide
	// session options, per spec.md section 5: read once here and copied
	// into every session this instance creates, never re-read.
	LogFrameTiming          bool
	ForceTimelineSemaphores bool
}

// Instance is the root object of a runtime session: create one, create
// sessions and action sets beneath it, destroy it last.
type Instance struct {
	handle.Base

	extensions ExtensionFlags

	paths   *pathstore.Store
	events  *event.Queue
	engine  *profile.Engine
	sys     *system.System
	compFac compositor.Factory
	calib   *calibration.Store
	metrics *metrics.Metrics

	wellKnown wellKnownPaths

	nextActionSetKey atomic.Uint32
	nextActionKey    atomic.Uint32

	logFrameTiming          bool
	forceTimelineSemaphores bool

	sessionsMu sync.Mutex
	sessions   []*session.Session

	actionSetsMu sync.Mutex
	actionSets   []*ActionSetHandle

	debugMu         sync.Mutex
	debugMessengers []*DebugMessenger
}

// wellKnownPaths is the cached user/profile path set spec.md section 4.K
// names explicitly: "cached well-known paths (user/head/left/right/gamepad
// and all shipped interaction-profile paths)".
type wellKnownPaths struct {
	User     pathstore.ID
	Head     pathstore.ID
	Left     pathstore.ID
	Right    pathstore.ID
	Gamepad  pathstore.ID
	Profiles []pathstore.ID
}

// New creates an instance: probes devices, fills in the system, loads the
// shipped interaction-profile templates, and caches every well-known path.
func New(prober device.Prober, compFac compositor.Factory, cfg Config, templates []*profile.Template) (*Instance, error) {
	sys, err := system.FillIn(prober, system.Config{
		DefaultIPDMeters: cfg.DefaultIPDMeters,
		ViewConfig:       cfg.ViewConfig,
		BlendModes:       cfg.BlendModes,
	})
	if err != nil {
		return nil, xrerr.Wrap(xrerr.RuntimeFailure, "instance.New", err)
	}

	if cfg.Calibration != nil {
		if ipd, ok, err := cfg.Calibration.DefaultIPDOverride(); err != nil {
			return nil, err
		} else if ok {
			sys.SetIPDMeters(ipd)
		}
	}

	paths := pathstore.New()
	engine := profile.NewEngine(paths, templates)

	inst := &Instance{
		extensions:              cfg.Extensions,
		paths:                   paths,
		events:                  event.New(0),
		engine:                  engine,
		sys:                     sys,
		compFac:                 compFac,
		calib:                   cfg.Calibration,
		metrics:                 cfg.Metrics,
		logFrameTiming:          cfg.LogFrameTiming,
		forceTimelineSemaphores: cfg.ForceTimelineSemaphores,
	}
	if err := handle.Init(&inst.Base, inst, handle.KindInstance, nil, destroyInstance); err != nil {
		return nil, err
	}

	inst.wellKnown = wellKnownPaths{
		User:    paths.GetOrCreate(xrtypes.SubActionUser.String()),
		Head:    paths.GetOrCreate(xrtypes.SubActionHead.String()),
		Left:    paths.GetOrCreate(xrtypes.SubActionLeft.String()),
		Right:   paths.GetOrCreate(xrtypes.SubActionRight.String()),
		Gamepad: paths.GetOrCreate(xrtypes.SubActionGamepad.String()),
	}
	for _, tpl := range templates {
		inst.wellKnown.Profiles = append(inst.wellKnown.Profiles, paths.GetOrCreate(tpl.ProfilePath))
	}

	return inst, nil
}

func destroyInstance(b *handle.Base) {
	inst := b.Owner().(*Instance)
	inst.sys.Destroy()
}

// Extensions returns the bitmap the instance was created with.
func (inst *Instance) Extensions() ExtensionFlags { return inst.extensions }

// Paths returns the instance's path store, for callers resolving path
// strings to IDs (spec.md section 4.A).
func (inst *Instance) Paths() *pathstore.Store { return inst.paths }

// ProfileEngine returns the instance's interaction-profile engine, for the
// binding-suggestion entry point (spec.md section 4.E phase 1).
func (inst *Instance) ProfileEngine() *profile.Engine { return inst.engine }

// System returns the instance's single System object.
func (inst *Instance) System() *system.System { return inst.sys }

// WellKnownUserPath returns the cached path ID for one of the five
// top-level user paths, or pathstore.Nil if sub names none of them.
func (inst *Instance) WellKnownUserPath(sub xrtypes.SubActionPath) pathstore.ID {
	switch sub {
	case xrtypes.SubActionUser:
		return inst.wellKnown.User
	case xrtypes.SubActionHead:
		return inst.wellKnown.Head
	case xrtypes.SubActionLeft:
		return inst.wellKnown.Left
	case xrtypes.SubActionRight:
		return inst.wellKnown.Right
	case xrtypes.SubActionGamepad:
		return inst.wellKnown.Gamepad
	default:
		return pathstore.Nil
	}
}

// ShippedProfilePaths returns the cached path IDs of every interaction
// profile template the instance loaded at creation.
func (inst *Instance) ShippedProfilePaths() []pathstore.ID {
	out := make([]pathstore.ID, len(inst.wellKnown.Profiles))
	copy(out, inst.wellKnown.Profiles)
	return out
}

// PollEvent returns at most one queued event, per spec.md section 4.C.
func (inst *Instance) PollEvent() (event.Event, bool) {
	ev, ok := inst.events.Poll()
	if inst.metrics != nil {
		inst.metrics.EventQueueDepth.Set(float64(inst.events.Len()))
	}
	return ev, ok
}

// Events exposes the instance's event queue for components (sessions) that
// need to push into it directly.
func (inst *Instance) Events() *event.Queue { return inst.events }

// CreateSession implements spec.md section 4.I's session creation: asks
// the compositor factory for a fresh native compositor, builds a new
// per-session action Attachment bound to the instance's profile engine,
// and registers the session in the instance's sessions list.
func (inst *Instance) CreateSession() (*session.Session, error) {
	comp, err := inst.compFac.CreateCompositor()
	if err != nil {
		return nil, xrerr.Wrap(xrerr.RuntimeFailure, "instance.CreateSession", err)
	}

	attachment := action.NewAttachment(inst.engine, inst.paths)
	sess, err := session.New(&inst.Base, comp, inst.sys, attachment, inst.events, inst.metrics, session.Options{
		LogFrameTiming:          inst.logFrameTiming,
		ForceTimelineSemaphores: inst.forceTimelineSemaphores,
	})
	if err != nil {
		comp.Destroy()
		return nil, err
	}

	if inst.calib != nil {
		if head, ok := inst.sys.HeadDevice(); ok {
			if offset, found, err := inst.calib.FloorOffsetMeters(head.Name()); err == nil && found {
				sess.SetLocalFloorOffsetMeters(offset)
			}
		}
	}

	inst.sessionsMu.Lock()
	inst.sessions = append(inst.sessions, sess)
	count := len(inst.sessions)
	inst.sessionsMu.Unlock()
	if inst.metrics != nil {
		inst.metrics.SessionsActive.Set(float64(count))
	}
	logger.Info("session created", "sessions_active", count)
	return sess, nil
}

// AttachActionSets unwraps the given action-set handles and attaches them
// to sess, per spec.md section 4.E phase 2.
func (inst *Instance) AttachActionSets(sess *session.Session, sets []*ActionSetHandle) error {
	plain := make([]*action.ActionSet, len(sets))
	for i, h := range sets {
		plain[i] = h.Set
	}
	return sess.AttachActionSets(plain)
}

// DestroySession destroys one session and removes it from the instance's
// sessions list.
func (inst *Instance) DestroySession(sess *session.Session) error {
	if err := handle.Destroy(&sess.Base); err != nil {
		return err
	}
	inst.sessionsMu.Lock()
	for i, s := range inst.sessions {
		if s == sess {
			inst.sessions = append(inst.sessions[:i], inst.sessions[i+1:]...)
			break
		}
	}
	count := len(inst.sessions)
	inst.sessionsMu.Unlock()
	if inst.metrics != nil {
		inst.metrics.SessionsActive.Set(float64(count))
	}
	logger.Info("session destroyed", "sessions_active", count)
	return nil
}

// ActionSetHandle wraps an action.ActionSet with the handle identity the
// Instance exposes it under, since action.ActionSet itself carries no
// handle.Base (it is plain application-facing state shared across the
// sessions it gets attached to).
type ActionSetHandle struct {
	handle.Base
	Set *action.ActionSet
}

// ActionHandle wraps one action.Action with its own handle identity.
type ActionHandle struct {
	handle.Base
	Action *action.Action
}

// CreateActionSet implements spec.md section 4.F's action-set creation:
// allocates a fresh set key and registers the set as a child handle of the
// instance.
func (inst *Instance) CreateActionSet(name string) (*ActionSetHandle, error) {
	key := inst.nextActionSetKey.Add(1)
	h := &ActionSetHandle{Set: action.NewActionSet(key, name)}
	if err := handle.Init(&h.Base, h, handle.KindActionSet, &inst.Base, nil); err != nil {
		return nil, err
	}
	inst.actionSetsMu.Lock()
	inst.actionSets = append(inst.actionSets, h)
	inst.actionSetsMu.Unlock()
	return h, nil
}

// CreateAction implements spec.md section 4.F's action creation within an
// action set, registering the action as a child handle of the set.
func (inst *Instance) CreateAction(set *ActionSetHandle, name string, typ xrtypes.ActionType, subPaths []xrtypes.SubActionPath) (*ActionHandle, error) {
	key := inst.nextActionKey.Add(1)
	a, err := set.Set.CreateAction(key, name, typ, subPaths)
	if err != nil {
		return nil, err
	}
	h := &ActionHandle{Action: a}
	if err := handle.Init(&h.Base, h, handle.KindAction, &set.Base, nil); err != nil {
		return nil, err
	}
	return h, nil
}

// CreateDebugMessenger registers cb to be invoked for diagnostic messages,
// up to MaxDebugMessengers concurrently registered messengers.
func (inst *Instance) CreateDebugMessenger(cb func(severity, message string)) (*DebugMessenger, error) {
	inst.debugMu.Lock()
	if len(inst.debugMessengers) >= MaxDebugMessengers {
		inst.debugMu.Unlock()
		return nil, xrerr.New(xrerr.LimitReached, "instance.CreateDebugMessenger", "debug messenger table is full")
	}
	inst.debugMu.Unlock()

	m := &DebugMessenger{inst: inst, Callback: cb}
	if err := handle.Init(&m.Base, m, handle.KindDebugMessenger, &inst.Base, destroyMessenger); err != nil {
		return nil, err
	}

	inst.debugMu.Lock()
	inst.debugMessengers = append(inst.debugMessengers, m)
	inst.debugMu.Unlock()
	return m, nil
}

func (inst *Instance) removeMessenger(m *DebugMessenger) {
	inst.debugMu.Lock()
	defer inst.debugMu.Unlock()
	for i, d := range inst.debugMessengers {
		if d == m {
			inst.debugMessengers = append(inst.debugMessengers[:i], inst.debugMessengers[i+1:]...)
			break
		}
	}
}

// EmitDebugMessage fans severity/message out to every live debug
// messenger, the runtime-internal counterpart of the application-visible
// diagnostic stream.
func (inst *Instance) EmitDebugMessage(severity, message string) {
	inst.debugMu.Lock()
	messengers := make([]*DebugMessenger, len(inst.debugMessengers))
	copy(messengers, inst.debugMessengers)
	inst.debugMu.Unlock()
	for _, m := range messengers {
		m.emit(severity, message)
	}

	// correlationID ties one fanned-out emission to its log lines, so an
	// operator grepping logs can tell which CreateDebugMessenger
	// callbacks saw the same message.
	correlationID := uuid.NewString()
	switch severity {
	case "error":
		logger.Error(message, "fanout", len(messengers), "correlation_id", correlationID)
	case "warning":
		logger.Warn(message, "fanout", len(messengers), "correlation_id", correlationID)
	default:
		logger.Debug(message, "severity", severity, "fanout", len(messengers), "correlation_id", correlationID)
	}
}

// Destroy implements spec.md section 4.K's explicit instance destruction
// order: sessions first, then action-sets, then cached paths (nothing to
// do — the Path Store dies with the instance), then the system. Debug
// messengers, and any other children that remain, are destroyed by the
// generic handle-tree teardown of the root, just before its destroyer
// tears down the system.
func (inst *Instance) Destroy() error {
	inst.sessionsMu.Lock()
	sessions := make([]*session.Session, len(inst.sessions))
	copy(sessions, inst.sessions)
	inst.sessions = nil
	inst.sessionsMu.Unlock()
	for _, sess := range sessions {
		if err := handle.Destroy(&sess.Base); err != nil {
			return err
		}
	}

	inst.actionSetsMu.Lock()
	actionSets := make([]*ActionSetHandle, len(inst.actionSets))
	copy(actionSets, inst.actionSets)
	inst.actionSets = nil
	inst.actionSetsMu.Unlock()
	for _, set := range actionSets {
		if err := handle.Destroy(&set.Base); err != nil {
			return err
		}
	}

	// handle.Destroy on the root recursively destroys whatever children
	// remain (debug messengers) and then invokes destroyInstance, which
	// tears down the system last.
	return handle.Destroy(&inst.Base)
}
