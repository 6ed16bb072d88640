package cache

import (
	"errors"
	"fmt"

	"github.com/IvanBrykalov/globalcache/key"
	"github.com/IvanBrykalov/globalcache/persist"
)

// ErrNotCached is returned by Var.Get before any value has been set.
var ErrNotCached = errors.New("cache: variable not yet set")

// UnhashableInputError is returned from Lookup/Store when a signature value
// has no deterministic canonical form. See key.Encode.
type UnhashableInputError = key.UnhashableInputError

// PersistenceIOError wraps a disk save/load/delete failure.
// Save failures always propagate; callers should fall back to uncached
// computation rather than retry.
type PersistenceIOError = persist.IOError

// NameCollisionError is returned by Registry.Bind when a name is already
// bound under an incompatible configuration. Mixing two shapes (say, one
// size-limited and one unbounded store) under one name would silently
// change semantics, so it is rejected instead.
type NameCollisionError struct {
	Name      string
	Existing  Config
	Requested Config
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("cache: binding %q already exists with a different configuration (existing %+v, requested %+v)",
		e.Name, e.Existing, e.Requested)
}
