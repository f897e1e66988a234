// Package calibration persists the per-device operator overrides spec.md
// leaves as open policy: a device's LocalFloor y-offset, and an override
// for the process-wide default IPD. Both are small, rarely-written values
// that must survive a runtime restart, so they get a real embedded store
// rather than living only in memory.
//
// Key namespace and transaction shape are grounded on the teacher's
// pkg/metadata/store/badger/encoding.go: prefixed string keys per data
// type, JSON-encoded values, one struct decode/encode pair per record.
package calibration

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/ixrcore/runtime/internal/xrerr"
)

const (
	prefixFloorOffset = "floor:"
	prefixIPDOverride = "ipd:"
)

func keyFloorOffset(deviceName string) []byte { return []byte(prefixFloorOffset + deviceName) }
func keyIPDOverride() []byte                  { return []byte(prefixIPDOverride + "default") }

// Store persists calibration overrides in an embedded BadgerDB database.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a BadgerDB database rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, xrerr.Wrap(xrerr.RuntimeFailure, "calibration.Open", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return xrerr.Wrap(xrerr.RuntimeFailure, "calibration.Close", err)
	}
	return nil
}

// FloorOffsetMeters returns the operator-calibrated LocalFloor y-offset for
// deviceName, or (0, false) if no override has been recorded. A missing
// override is resolved by callers as "LocalFloor == Local", per spec.md's
// deliberately left-open policy.
func (s *Store) FloorOffsetMeters(deviceName string) (float64, bool, error) {
	var offset float64
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyFloorOffset(deviceName))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &offset); err != nil {
				return fmt.Errorf("decode floor offset for %q: %w", deviceName, err)
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return 0, false, xrerr.Wrap(xrerr.RuntimeFailure, "calibration.FloorOffsetMeters", err)
	}
	return offset, found, nil
}

// SetFloorOffsetMeters records an operator-set LocalFloor y-offset for
// deviceName.
func (s *Store) SetFloorOffsetMeters(deviceName string, offset float64) error {
	val, err := json.Marshal(offset)
	if err != nil {
		return xrerr.Wrap(xrerr.RuntimeFailure, "calibration.SetFloorOffsetMeters", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyFloorOffset(deviceName), val)
	})
	if err != nil {
		return xrerr.Wrap(xrerr.RuntimeFailure, "calibration.SetFloorOffsetMeters", err)
	}
	return nil
}

// DefaultIPDOverride returns the operator-set default IPD override, or
// (0, false) if none has been recorded, in which case the caller should
// fall back to the process-wide configured default.
func (s *Store) DefaultIPDOverride() (float64, bool, error) {
	var ipd float64
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyIPDOverride())
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &ipd); err != nil {
				return fmt.Errorf("decode ipd override: %w", err)
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return 0, false, xrerr.Wrap(xrerr.RuntimeFailure, "calibration.DefaultIPDOverride", err)
	}
	return ipd, found, nil
}

// SetDefaultIPDOverride records an operator-set default IPD override, in
// meters.
func (s *Store) SetDefaultIPDOverride(ipd float64) error {
	val, err := json.Marshal(ipd)
	if err != nil {
		return xrerr.Wrap(xrerr.RuntimeFailure, "calibration.SetDefaultIPDOverride", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyIPDOverride(), val)
	})
	if err != nil {
		return xrerr.Wrap(xrerr.RuntimeFailure, "calibration.SetDefaultIPDOverride", err)
	}
	return nil
}
