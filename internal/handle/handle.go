// Package handle implements the hierarchical handle registry of spec.md
// section 4.B: allocation, state tracking, and recursive bottom-up
// destruction of a parent/child handle tree.
//
// spec.md section 9 notes that the source's 64-bit magic-tag-in-pointer
// scheme is redundant in a systems language with real type safety; this
// package replaces it with a Kind enum checked on every dereference, kept
// alongside a concrete *Base per handle the way the teacher guards shared
// mutable state with sync.RWMutex (see internal/adapter/nlm's lock table).
package handle

import (
	"sync"

	"github.com/ixrcore/runtime/internal/xrerr"
)

// MaxChildren bounds the number of live children a single handle may hold,
// mirroring spec.md's "bounded list of child handles (cap e.g. 256)".
const MaxChildren = 256

// Kind identifies a handle's concrete type for validation, replacing the
// source's 8-byte ASCII magic tag.
type Kind int

const (
	KindInstance Kind = iota
	KindSession
	KindSpace
	KindSwapchain
	KindActionSet
	KindAction
	KindDebugMessenger
)

func (k Kind) String() string {
	switch k {
	case KindInstance:
		return "Instance"
	case KindSession:
		return "Session"
	case KindSpace:
		return "Space"
	case KindSwapchain:
		return "Swapchain"
	case KindActionSet:
		return "ActionSet"
	case KindAction:
		return "Action"
	case KindDebugMessenger:
		return "DebugMessenger"
	default:
		return "Unknown"
	}
}

// State is a handle's lifecycle state.
type State int

const (
	Uninitialized State = iota
	Live
	Destroyed
)

// Destroyer frees the type-specific resources owned by a handle and, by
// convention, is the last thing invoked during Destroy — it must not touch
// h.children or h.parent, which the registry has already finished with.
type Destroyer func(h *Base)

// Base is embedded in every handle object (Instance, Session, Space,
// Swapchain, ActionSet, Action, DebugMessenger).
type Base struct {
	mu sync.RWMutex

	kind      Kind
	state     State
	parent    *Base
	children  []*Base
	destroyer Destroyer

	// owner points back at the concrete handle object embedding this Base,
	// so destroyers and validators can recover it without a type switch
	// table.
	owner any
}

// Init wires up a freshly allocated handle. parent must be nil only for the
// root (Instance); any other parent must be Live.
func Init(b *Base, owner any, kind Kind, parent *Base, destroyer Destroyer) error {
	b.kind = kind
	b.owner = owner
	b.destroyer = destroyer
	b.state = Live
	b.parent = parent

	if parent == nil {
		return nil
	}

	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.state != Live {
		return xrerr.New(xrerr.RuntimeFailure, "handle.Init", "parent handle is not live")
	}
	if len(parent.children) >= MaxChildren {
		return xrerr.New(xrerr.LimitReached, "handle.Init", "parent child slot table is full")
	}
	parent.children = append(parent.children, b)
	return nil
}

// Validate checks that h is non-nil, has the expected kind, and is Live.
func Validate(b *Base, want Kind) error {
	if b == nil {
		return xrerr.New(xrerr.HandleInvalid, "handle.Validate", "nil handle")
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.kind != want {
		return xrerr.New(xrerr.HandleInvalid, "handle.Validate", "handle kind mismatch")
	}
	if b.state != Live {
		return xrerr.New(xrerr.HandleInvalid, "handle.Validate", "handle invalid")
	}
	return nil
}

// Kind returns b's kind.
func (b *Base) Kind() Kind { return b.kind }

// Owner returns the concrete object this Base is embedded in.
func (b *Base) Owner() any { return b.owner }

// State returns b's current lifecycle state.
func (b *Base) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Parent returns b's parent Base, or nil for the root.
func (b *Base) Parent() *Base { return b.parent }

// Children returns a snapshot slice of b's current children.
func (b *Base) Children() []*Base {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Base, len(b.children))
	copy(out, b.children)
	return out
}

// Destroy recursively destroys h bottom-up: detach from parent, destroy
// every child, mark Destroyed, then invoke the destroyer.
//
// Algorithm follows spec.md section 4.B exactly: (1) detach from the
// parent's child slot, (2) recursively destroy every child, (3) set
// state=Destroyed, (4) invoke the destroyer.
func Destroy(h *Base) error {
	if h == nil {
		return xrerr.New(xrerr.HandleInvalid, "handle.Destroy", "nil handle")
	}

	if h.parent != nil {
		if err := detachFromParent(h.parent, h); err != nil {
			return err
		}
	}

	h.mu.Lock()
	children := make([]*Base, len(h.children))
	copy(children, h.children)
	h.mu.Unlock()

	for _, c := range children {
		// Each child detaches itself from h.children; a child that is no
		// longer found there fails with RuntimeFailure, which is returned.
		if err := Destroy(c); err != nil {
			return err
		}
	}

	h.mu.Lock()
	h.state = Destroyed
	destroyer := h.destroyer
	h.mu.Unlock()

	if destroyer != nil {
		destroyer(h)
	}
	return nil
}

func detachFromParent(parent, child *Base) error {
	parent.mu.Lock()
	defer parent.mu.Unlock()
	for i, c := range parent.children {
		if c == child {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			return nil
		}
	}
	return xrerr.New(xrerr.RuntimeFailure, "handle.Destroy", "handle not found in parent's child slots")
}

// DestroyChildOnly detaches and destroys a single named child without
// touching the rest of the parent's children — used when a handle destroys
// one specific child handle (e.g. a session destroying one of its own
// spaces) rather than tearing down everything beneath it.
func DestroyChildOnly(parent, child *Base) error {
	if child.parent != parent {
		return xrerr.New(xrerr.RuntimeFailure, "handle.DestroyChildOnly", "child does not belong to parent")
	}
	return Destroy(child)
}
