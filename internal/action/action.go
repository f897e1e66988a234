// Package action implements the action/action-set/attachment model and the
// per-sync sampling pipeline of spec.md sections 4.E (phase 2, "Attach" and
// "syncActions") and 4.F.
package action

import (
	"sync"
	"time"

	"github.com/ixrcore/runtime/internal/device"
	"github.com/ixrcore/runtime/internal/pathstore"
	"github.com/ixrcore/runtime/internal/profile"
	"github.com/ixrcore/runtime/internal/xrerr"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

// Action is one typed input/output the application created within an
// ActionSet. A nil SubActionPaths selector means the action applies to
// every sub-action path.
type Action struct {
	Key            uint32
	Name           string
	Type           xrtypes.ActionType
	SubActionPaths []xrtypes.SubActionPath
	Set            *ActionSet
}

// AppliesTo reports whether sub is one of a's selected sub-action paths
// (or a has no selector at all).
func (a *Action) AppliesTo(sub xrtypes.SubActionPath) bool {
	if len(a.SubActionPaths) == 0 {
		return true
	}
	for _, s := range a.SubActionPaths {
		if s == sub {
			return true
		}
	}
	return false
}

// ActionSet groups actions that are enabled/disabled together at sync time.
// Mutable until first attachment, per spec.md section 4.F.
type ActionSet struct {
	mu       sync.Mutex
	Key      uint32
	Name     string
	Actions  []*Action
	attached bool
}

// NewActionSet returns an empty, mutable action set.
func NewActionSet(key uint32, name string) *ActionSet {
	return &ActionSet{Key: key, Name: name}
}

// CreateAction adds a new action to the set. Fails once the set has been
// attached to any session, per spec.md section 4.F.
func (s *ActionSet) CreateAction(key uint32, name string, typ xrtypes.ActionType, subPaths []xrtypes.SubActionPath) (*Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return nil, xrerr.New(xrerr.ValidationFailure, "actionSet.CreateAction", "action-set is already attached")
	}
	a := &Action{Key: key, Name: name, Type: typ, SubActionPaths: subPaths, Set: s}
	s.Actions = append(s.Actions, a)
	return a, nil
}

// MarkAttached freezes the set against further CreateAction calls. Called
// once by Attachment.Attach; idempotent.
func (s *ActionSet) MarkAttached() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = true
}

// IsAttached reports whether the set has ever been attached to a session.
func (s *ActionSet) IsAttached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

func (s *ActionSet) snapshotActions() []*Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Action, len(s.Actions))
	copy(out, s.Actions)
	return out
}

// Source is a resolved (device, input-or-output-name) pair in an action's
// source cache.
type Source struct {
	Device string
	Name   string
}

// SourceCache is the per-sub-action-path resolved binding set for one
// action, built once at attach time (spec.md section 4.E phase 2).
type SourceCache struct {
	Inputs  map[xrtypes.SubActionPath][]Source
	Outputs map[xrtypes.SubActionPath][]Source
}

func newSourceCache() *SourceCache {
	return &SourceCache{
		Inputs:  make(map[xrtypes.SubActionPath][]Source),
		Outputs: make(map[xrtypes.SubActionPath][]Source),
	}
}

func (c *SourceCache) addInput(sub xrtypes.SubActionPath, s Source) {
	for _, existing := range c.Inputs[sub] {
		if existing == s {
			return
		}
	}
	c.Inputs[sub] = append(c.Inputs[sub], s)
}

func (c *SourceCache) addOutput(sub xrtypes.SubActionPath, s Source) {
	for _, existing := range c.Outputs[sub] {
		if existing == s {
			return
		}
	}
	c.Outputs[sub] = append(c.Outputs[sub], s)
}

// syncState remembers the previous sync's aggregated value per sub-action
// path, to compute the "changed" flag.
type syncState struct {
	haveValue bool
	value     device.InputValue
	active    bool
	changed   bool
	timestamp time.Time
}

// AttachedAction pairs an Action with its resolved SourceCache and the
// per-sub-action-path bookkeeping syncActions needs: last-sync state for
// the changed flag, and a pending haptic stop deadline.
type AttachedAction struct {
	Action *Action
	Cache  *SourceCache

	mu             sync.Mutex
	last           map[xrtypes.SubActionPath]*syncState
	hapticDeadline map[xrtypes.SubActionPath]time.Time
}

// State is one sub-action-path's sampled result from syncActions.
type State struct {
	Active    bool
	Changed   bool
	Timestamp time.Time
	Value     device.InputValue
}

// Get returns the most recently synced state for sub, or the zero State if
// syncActions has not yet run for this sub-action path.
func (a *AttachedAction) Get(sub xrtypes.SubActionPath) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.last[sub]
	if !ok || !st.haveValue {
		return State{}
	}
	return State{Active: st.active, Changed: st.changed, Timestamp: st.timestamp, Value: st.value}
}

// DeviceLookup resolves a device by its stable Name(), per spec.md
// section 4.E's source cache being keyed on (device, input) pairs.
type DeviceLookup interface {
	Device(name string) (device.Device, error)
}

// Attachment is a session's frozen view of its action-sets: spec.md
// section 4.F's "pair of hash maps keyed on action-key and action-set-key".
type Attachment struct {
	mu          sync.Mutex
	sets        map[uint32]*ActionSet
	byActionKey map[uint32]*AttachedAction
	engine      *profile.Engine
	paths       *pathstore.Store

	// currentProfile is the chosen interaction profile path per
	// sub-action-path's top-level user path, set during Attach.
	currentProfile map[xrtypes.SubActionPath]pathstore.ID
}

// NewAttachment builds an empty, unattached Attachment bound to engine for
// profile resolution.
func NewAttachment(engine *profile.Engine, paths *pathstore.Store) *Attachment {
	return &Attachment{
		sets:           make(map[uint32]*ActionSet),
		byActionKey:    make(map[uint32]*AttachedAction),
		engine:         engine,
		paths:          paths,
		currentProfile: make(map[xrtypes.SubActionPath]pathstore.ID),
	}
}

// DeviceAssignment maps a top-level user sub-action path to the device
// name currently filling that role, supplied by the session/system at
// attach time.
type DeviceAssignment struct {
	SubActionPath xrtypes.SubActionPath
	DeviceName    string
}

// ProfileChange is emitted by Attach for each sub-action path whose
// interaction profile was (re)selected, for the caller to push an
// InteractionProfileChanged event.
type ProfileChange struct {
	SubActionPath xrtypes.SubActionPath
	ProfilePath   pathstore.ID
}

// Attach implements spec.md section 4.E phase 2 ("attachSessionActionSets"):
// snapshots actionSets forever, scores and selects an interaction profile
// per assignment, and resolves each attached action's Source-Cache.
func (at *Attachment) Attach(actionSets []*ActionSet, assignments []DeviceAssignment) ([]ProfileChange, error) {
	at.mu.Lock()
	defer at.mu.Unlock()

	var allActions []*Action
	for _, set := range actionSets {
		set.MarkAttached()
		at.sets[set.Key] = set
		allActions = append(allActions, set.snapshotActions()...)
	}

	var changes []ProfileChange
	for _, asn := range assignments {
		candidates := at.engine.CandidatesForDevice(asn.DeviceName)
		chosen, ok := selectProfile(at.engine, candidates, asn.SubActionPath, allActions)
		if !ok {
			continue
		}
		at.currentProfile[asn.SubActionPath] = chosen
		changes = append(changes, ProfileChange{SubActionPath: asn.SubActionPath, ProfilePath: chosen})

		prof, err := at.engine.Get(chosen)
		if err != nil {
			return nil, xrerr.Wrap(xrerr.RuntimeFailure, "attachment.Attach", err)
		}
		resolveSourceCaches(at, prof, asn.SubActionPath, asn.DeviceName, allActions)
	}

	return changes, nil
}

// selectProfile scores candidate profiles (highest-scoring = earliest in
// the device's preferred list) and returns the first whose bindings
// reference at least one attached action on sub.
func selectProfile(engine *profile.Engine, candidates []pathstore.ID, sub xrtypes.SubActionPath, actions []*Action) (pathstore.ID, bool) {
	attachedKeys := make(map[uint32]bool, len(actions))
	for _, a := range actions {
		if a.AppliesTo(sub) {
			attachedKeys[a.Key] = true
		}
	}

	for _, candidate := range candidates {
		prof, err := engine.Get(candidate)
		if err != nil {
			continue
		}
		for _, b := range prof.Bindings {
			if b.SubActionPath != sub {
				continue
			}
			for _, ba := range b.BoundActions {
				if attachedKeys[ba.ActionKey] {
					return candidate, true
				}
			}
		}
	}
	return 0, false
}

func resolveSourceCaches(at *Attachment, prof *profile.Profile, sub xrtypes.SubActionPath, deviceName string, actions []*Action) {
	for _, a := range actions {
		if !a.AppliesTo(sub) {
			continue
		}
		att, ok := at.byActionKey[a.Key]
		if !ok {
			att = &AttachedAction{
				Action:         a,
				Cache:          newSourceCache(),
				last:           make(map[xrtypes.SubActionPath]*syncState),
				hapticDeadline: make(map[xrtypes.SubActionPath]time.Time),
			}
			at.byActionKey[a.Key] = att
		}

		for _, b := range prof.Bindings {
			if b.SubActionPath != sub {
				continue
			}
			if !b.BoundTo(a.Key) {
				continue
			}
			if a.Type == xrtypes.ActionHaptic {
				for _, out := range b.OutputNames {
					att.Cache.addOutput(sub, Source{Device: deviceName, Name: out})
				}
				continue
			}
			for _, in := range b.InputNames {
				att.Cache.addInput(sub, Source{Device: deviceName, Name: in})
			}
		}
	}
}

// Get returns the AttachedAction for key, if the session has attached it.
func (at *Attachment) Get(key uint32) (*AttachedAction, bool) {
	at.mu.Lock()
	defer at.mu.Unlock()
	a, ok := at.byActionKey[key]
	return a, ok
}

// ActionSet returns the attached ActionSet for key, if any.
func (at *Attachment) ActionSet(key uint32) (*ActionSet, bool) {
	at.mu.Lock()
	defer at.mu.Unlock()
	s, ok := at.sets[key]
	return s, ok
}

// Teardown clears both hash maps, per spec.md section 4.F's "destruction of
// the session tears these down".
func (at *Attachment) Teardown() {
	at.mu.Lock()
	defer at.mu.Unlock()
	at.sets = make(map[uint32]*ActionSet)
	at.byActionKey = make(map[uint32]*AttachedAction)
	at.currentProfile = make(map[xrtypes.SubActionPath]pathstore.ID)
}

// attachedActionsSnapshot returns a stable slice of the currently attached
// actions, for syncActions to iterate without holding at.mu throughout.
func (at *Attachment) attachedActionsSnapshot() []*AttachedAction {
	at.mu.Lock()
	defer at.mu.Unlock()
	out := make([]*AttachedAction, 0, len(at.byActionKey))
	for _, a := range at.byActionKey {
		out = append(out, a)
	}
	return out
}

// SyncActions implements spec.md section 4.E's "syncActions": for each
// requested sub-action path, reads every attached action's bound
// (device, input) sources and aggregates per the type-specific rule.
func (at *Attachment) SyncActions(subs []xrtypes.SubActionPath, devices DeviceLookup) error {
	deviceInputs := make(map[string]map[string]device.Input)
	resolveInputs := func(name string) (map[string]device.Input, error) {
		if cached, ok := deviceInputs[name]; ok {
			return cached, nil
		}
		d, err := devices.Device(name)
		if err != nil {
			return nil, err
		}
		byName := make(map[string]device.Input)
		for _, in := range d.Inputs() {
			byName[in.Name] = in
		}
		deviceInputs[name] = byName
		return byName, nil
	}

	for _, attached := range at.attachedActionsSnapshot() {
		for _, sub := range subs {
			if !attached.Action.AppliesTo(sub) {
				continue
			}
			sources := attached.Cache.Inputs[sub]
			if len(sources) == 0 {
				continue
			}

			var values []device.Input
			for _, src := range sources {
				byName, err := resolveInputs(src.Device)
				if err != nil {
					continue
				}
				if in, ok := byName[src.Name]; ok {
					values = append(values, in)
				}
			}
			if len(values) == 0 {
				continue
			}

			aggregated, active, winnerTime := aggregate(attached.Action.Type, values)

			attached.mu.Lock()
			prev, had := attached.last[sub]
			changed := !had || prev.active != active || !sameValue(prev.value, aggregated)
			attached.last[sub] = &syncState{haveValue: true, value: aggregated, active: active, changed: changed, timestamp: winnerTime}
			attached.mu.Unlock()
		}
	}
	return nil
}

func sameValue(a, b device.InputValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case device.ValueBool:
		return a.Bool == b.Bool
	case device.ValueFloat:
		return a.Float == b.Float
	case device.ValueVec2:
		return a.Vec2 == b.Vec2
	default:
		return false
	}
}

func aggregate(typ xrtypes.ActionType, values []device.Input) (device.InputValue, bool, time.Time) {
	switch typ {
	case xrtypes.ActionBool:
		active := false
		winner := values[0]
		for _, v := range values {
			if v.Active {
				active = true
			}
			if v.Value.Bool {
				winner = v
			}
		}
		return device.InputValue{Kind: device.ValueBool, Bool: winner.Value.Bool}, active, winner.Timestamp
	case xrtypes.ActionFloat:
		best := values[0]
		active := false
		for _, v := range values {
			if v.Active {
				active = true
			}
			if abs(v.Value.Float) > abs(best.Value.Float) {
				best = v
			}
		}
		return device.InputValue{Kind: device.ValueFloat, Float: best.Value.Float}, active, best.Timestamp
	case xrtypes.ActionVec2:
		best := values[0]
		active := false
		bestMag := mag2(best.Value.Vec2)
		for _, v := range values {
			if v.Active {
				active = true
			}
			if m := mag2(v.Value.Vec2); m > bestMag {
				best, bestMag = v, m
			}
		}
		return device.InputValue{Kind: device.ValueVec2, Vec2: best.Value.Vec2}, active, best.Timestamp
	case xrtypes.ActionPose:
		for _, v := range values {
			if v.Active {
				return device.InputValue{Kind: device.ValuePose, Pose: v.Value.Pose}, true, v.Timestamp
			}
		}
		return device.InputValue{Kind: device.ValuePose, Pose: values[0].Value.Pose}, false, values[0].Timestamp
	default:
		return device.InputValue{}, false, time.Time{}
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func mag2(v [2]float64) float64 { return v[0]*v[0] + v[1]*v[1] }

// ApplyHapticFeedback implements spec.md section 4.E's
// "applyHapticFeedback": forwards amplitude/duration to every
// (device, output) pair in the action's cache for sub, tracking the later
// of any pending deadline and this request's deadline.
func (at *Attachment) ApplyHapticFeedback(actionKey uint32, sub xrtypes.SubActionPath, amplitude float64, duration time.Duration, now time.Time, devices DeviceLookup) error {
	attached, ok := at.Get(actionKey)
	if !ok {
		return xrerr.New(xrerr.ValidationFailure, "attachment.ApplyHapticFeedback", "action is not attached")
	}

	deadline := now.Add(duration)
	attached.mu.Lock()
	if existing, ok := attached.hapticDeadline[sub]; ok && existing.After(deadline) {
		deadline = existing
	}
	attached.hapticDeadline[sub] = deadline
	attached.mu.Unlock()

	for _, src := range attached.Cache.Outputs[sub] {
		d, err := devices.Device(src.Device)
		if err != nil {
			continue
		}
		if err := d.ApplyHaptic(src.Name, amplitude, duration); err != nil {
			return xrerr.Wrap(xrerr.RuntimeFailure, "attachment.ApplyHapticFeedback", err)
		}
	}
	return nil
}

// StopHapticFeedback implements "stop": forwards a stop request to every
// (device, output) pair in the action's cache for sub and clears the
// pending deadline.
func (at *Attachment) StopHapticFeedback(actionKey uint32, sub xrtypes.SubActionPath, devices DeviceLookup) error {
	attached, ok := at.Get(actionKey)
	if !ok {
		return xrerr.New(xrerr.ValidationFailure, "attachment.StopHapticFeedback", "action is not attached")
	}

	attached.mu.Lock()
	delete(attached.hapticDeadline, sub)
	attached.mu.Unlock()

	for _, src := range attached.Cache.Outputs[sub] {
		d, err := devices.Device(src.Device)
		if err != nil {
			continue
		}
		if err := d.StopHaptic(src.Name); err != nil {
			return xrerr.Wrap(xrerr.RuntimeFailure, "attachment.StopHapticFeedback", err)
		}
	}
	return nil
}
