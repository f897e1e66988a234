// Package pathstore interns hierarchical OpenXR path strings (things like
// "/user/hand/left/input/select/click") into stable, comparable IDs.
//
// Grounded on spec.md section 4.A. Paths are instance-lifetime only — unlike
// the teacher's badger-backed metadata, nothing here is persisted, because
// spec.md is explicit that path identity only needs to be stable for the
// instance's lifetime, not across restarts.
package pathstore

import (
	"sync"

	"github.com/ixrcore/runtime/internal/xrerr"
)

// ID is an opaque, comparable path identifier. The zero value is the null
// path and is distinct from every interned path.
type ID uint64

// Nil is the null path ID.
const Nil ID = 0

type entry struct {
	str      string
	attached any
}

// Store interns path strings and assigns them stable IDs for as long as the
// Store is alive.
type Store struct {
	mu       sync.RWMutex
	byString map[string]ID
	byID     map[ID]*entry
	next     ID
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byString: make(map[string]ID),
		byID:     make(map[ID]*entry),
		next:     1,
	}
}

// GetOrCreate interns str, returning the existing ID if an equal string was
// already interned, or allocating a new one. Two structurally equal strings
// always yield the same ID.
func (s *Store) GetOrCreate(str string) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byString[str]; ok {
		return id
	}
	id := s.next
	s.next++
	s.byString[str] = id
	// Stored with a trailing zero byte in the same backing array: GetString
	// never returns the terminator itself, but the byte just past the
	// returned string's end is always zero, so the bytes can be handed to a
	// C-style consumer that expects zero termination.
	buf := str + "\x00"
	s.byID[id] = &entry{str: buf[:len(str)]}
	return id
}

// OnlyGet looks up str without interning it. Returns (Nil, false) if str was
// never interned.
func (s *Store) OnlyGet(str string) (ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byString[str]
	return id, ok
}

// GetString returns the interned string for id. The returned string lives
// as long as the Store does.
func (s *Store) GetString(id ID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return "", xrerr.New(xrerr.ValidationFailure, "pathstore.GetString", "unknown path id")
	}
	return e.str, nil
}

// Attach associates one opaque pointer with id, replacing any previous
// attachment. Used to associate interaction profiles with their canonical
// path (spec.md 4.A).
func (s *Store) Attach(id ID, ptr any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return xrerr.New(xrerr.ValidationFailure, "pathstore.Attach", "unknown path id")
	}
	e.attached = ptr
	return nil
}

// GetAttached returns the pointer previously passed to Attach, or nil if
// none was attached.
func (s *Store) GetAttached(id ID) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil
	}
	return e.attached
}

// DestroyAll frees every interned path and its attachment. Instance teardown
// does not call it; the Store is dropped together with its Instance.
func (s *Store) DestroyAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byString = make(map[string]ID)
	s.byID = make(map[ID]*entry)
}

// Len reports the number of interned paths, for metrics/debug snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
