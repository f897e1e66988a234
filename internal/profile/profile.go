// Package profile implements the interaction-profile and binding engine of
// spec.md section 4.E, phase 1 (suggestInteractionProfileBindings): matching
// devices to interaction profiles and resolving application-suggested
// bindings against a profile's shipped binding table.
package profile

import (
	"sync"

	"github.com/ixrcore/runtime/internal/pathstore"
	"github.com/ixrcore/runtime/internal/xrerr"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

// BoundAction records that action Key was suggested for a binding path that
// matched this Binding, at the given index into the Binding's SubPaths
// list (spec.md's "preferred-path-index").
type BoundAction struct {
	ActionKey          uint32
	PreferredPathIndex int
}

// Binding is one row of a profile's shipped binding table, spec.md section
// 3's "Binding".
type Binding struct {
	SubActionPath xrtypes.SubActionPath
	SubPaths      []pathstore.ID // ordered; index into this is PreferredPathIndex
	InputNames    []string
	OutputNames   []string
	BoundActions  []BoundAction
}

// HasSubPath reports the index of p within b.SubPaths, or -1.
func (b *Binding) HasSubPath(p pathstore.ID) int {
	for i, sp := range b.SubPaths {
		if sp == p {
			return i
		}
	}
	return -1
}

// BoundTo reports whether any BoundAction in b targets actionKey.
func (b *Binding) BoundTo(actionKey uint32) bool {
	for _, ba := range b.BoundActions {
		if ba.ActionKey == actionKey {
			return true
		}
	}
	return false
}

// Profile is an instantiated interaction profile: a name path plus its
// (mutable, per-instance) binding table.
type Profile struct {
	NamePath pathstore.ID
	Bindings []*Binding
}

// Suggestion is one client-supplied (action, binding-path) pair passed to
// Suggest.
type Suggestion struct {
	ActionKey   uint32
	BindingPath pathstore.ID
}

// Engine owns the shipped profile templates and the lazily-instantiated,
// per-instance Profile objects that accumulate suggested bindings.
type Engine struct {
	mu            sync.Mutex
	paths         *pathstore.Store
	templates     map[pathstore.ID]*Template
	instantiated  map[pathstore.ID]*Profile
	devicePrefs   map[string][]pathstore.ID // device name -> ordered preferred profile paths
}

// NewEngine returns an Engine with templates pre-registered and no
// instantiated profiles yet.
func NewEngine(paths *pathstore.Store, templates []*Template) *Engine {
	e := &Engine{
		paths:        paths,
		templates:    make(map[pathstore.ID]*Template),
		instantiated: make(map[pathstore.ID]*Profile),
		devicePrefs:  make(map[string][]pathstore.ID),
	}
	for _, t := range templates {
		id := paths.GetOrCreate(t.ProfilePath)
		e.templates[id] = t
		for _, dn := range t.PreferredForDevices {
			e.devicePrefs[dn] = append(e.devicePrefs[dn], id)
		}
	}
	return e
}

// Get returns the instantiated Profile for pathID, lazily building it from
// its shipped Template on first use. Returns an error if pathID names no
// shipped template.
func (e *Engine) Get(pathID pathstore.ID) (*Profile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getLocked(pathID)
}

func (e *Engine) getLocked(pathID pathstore.ID) (*Profile, error) {
	if p, ok := e.instantiated[pathID]; ok {
		return p, nil
	}
	tpl, ok := e.templates[pathID]
	if !ok {
		return nil, xrerr.New(xrerr.ValidationFailure, "profile.Get", "unknown interaction profile")
	}
	p := instantiate(e.paths, tpl)
	e.instantiated[pathID] = p
	return p, nil
}

// CandidatesForDevice returns the ordered, preferred profile path ids for
// deviceName, used by the attach phase's device-to-profile scoring
// (spec.md section 4.E phase 2).
func (e *Engine) CandidatesForDevice(deviceName string) []pathstore.ID {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]pathstore.ID, len(e.devicePrefs[deviceName]))
	copy(out, e.devicePrefs[deviceName])
	return out
}

// Suggest implements spec.md section 4.E phase 1: locates or instantiates
// the profile, clears prior action-key entries from every shipped Binding,
// then appends (action, matched-path-index) for every suggestion that
// matches one of the profile's Bindings.
func (e *Engine) Suggest(profilePath pathstore.ID, suggestions []Suggestion) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.getLocked(profilePath)
	if err != nil {
		return xrerr.Wrap(xrerr.ValidationFailure, "profile.Suggest", err)
	}

	for _, b := range p.Bindings {
		b.BoundActions = nil
	}

	for _, s := range suggestions {
		for _, b := range p.Bindings {
			idx := b.HasSubPath(s.BindingPath)
			if idx < 0 {
				continue
			}
			b.BoundActions = append(b.BoundActions, BoundAction{
				ActionKey:          s.ActionKey,
				PreferredPathIndex: idx,
			})
		}
	}
	return nil
}

func instantiate(paths *pathstore.Store, tpl *Template) *Profile {
	p := &Profile{NamePath: paths.GetOrCreate(tpl.ProfilePath)}
	for _, tb := range tpl.Bindings {
		b := &Binding{
			SubActionPath: tb.SubActionPath,
			InputNames:    append([]string(nil), tb.InputNames...),
			OutputNames:   append([]string(nil), tb.OutputNames...),
		}
		for _, sp := range tb.SubPaths {
			b.SubPaths = append(b.SubPaths, paths.GetOrCreate(sp))
		}
		p.Bindings = append(p.Bindings, b)
	}
	return p
}
