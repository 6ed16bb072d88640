package cache

import (
	"sync"

	"github.com/IvanBrykalov/globalcache/internal/singleflight"
	"github.com/IvanBrykalov/globalcache/key"
	"github.com/IvanBrykalov/globalcache/persist"
)

// Binding is a named cache slot: one entry store plus, when Save is set,
// a write-through disk mirror. Bindings are created by Registry.Bind and
// identified by a name unique within their registry.
type Binding struct {
	name string
	cfg  Config
	reg  *Registry

	store *entryStore
	disk  *persist.Adapter // nil unless cfg.Save

	// mu guards the lazy disk load and serializes write-through saves so
	// two concurrent stores cannot interleave partial snapshots.
	mu     sync.Mutex
	loaded bool

	flight singleflight.Group[any]
}

// Name returns the binding's registry-unique name.
func (b *Binding) Name() string { return b.name }

// Config returns the configuration fixed at bind time.
func (b *Binding) Config() Config { return b.cfg }

// Len reports the number of resident in-memory entries.
func (b *Binding) Len() int { return b.store.size() }

// Lookup encodes the call signature and queries the store. The boolean
// reports a hit. When the registry is disabled every lookup is a miss.
// On first use in a process a Save binding seeds its store from disk.
func (b *Binding) Lookup(positional []any, named map[string]any) (any, bool, error) {
	if b.reg.Disabled() {
		return nil, false, nil
	}
	fp, err := key.Encode(positional, named)
	if err != nil {
		return nil, false, err
	}
	return b.lookupFP(fp)
}

// Store encodes the call signature and inserts the value. With Save set
// the full entry set is written through to disk before returning; a save
// failure propagates and the in-memory entry remains. When the registry
// is disabled Store is a no-op that touches neither memory nor disk.
func (b *Binding) Store(positional []any, named map[string]any, v any) error {
	if b.reg.Disabled() {
		return nil
	}
	fp, err := key.Encode(positional, named)
	if err != nil {
		return err
	}
	return b.storeFP(fp, v)
}

// Contains reports whether the signature has a cached value, without
// recording a hit or a miss.
func (b *Binding) Contains(positional []any, named map[string]any) (bool, error) {
	if b.reg.Disabled() {
		return false, nil
	}
	fp, err := key.Encode(positional, named)
	if err != nil {
		return false, err
	}
	if err := b.ensureLoaded(); err != nil {
		return false, err
	}
	return b.store.contains(fp), nil
}

// Reset clears the in-memory entries. With deleteDisk the mirror file is
// removed as well; without it the next lookup re-seeds from disk, matching
// the mirror's role as the durable copy. Reset is idempotent.
func (b *Binding) Reset(deleteDisk bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store.removeAll()
	b.loaded = b.disk == nil
	if deleteDisk && b.disk != nil {
		if err := b.disk.Delete(); err != nil {
			return err
		}
	}
	return nil
}

// ---- fingerprint-level operations (shared with Var and Wrap) ----

func (b *Binding) lookupFP(fp key.Fingerprint) (any, bool, error) {
	if err := b.ensureLoaded(); err != nil {
		return nil, false, err
	}
	v, ok := b.store.get(fp)
	return v, ok, nil
}

func (b *Binding) storeFP(fp key.Fingerprint, v any) error {
	if err := b.ensureLoaded(); err != nil {
		return err
	}
	b.store.put(fp, v)
	return b.saveThrough()
}

func (b *Binding) removeFP(fp key.Fingerprint) error {
	if err := b.ensureLoaded(); err != nil {
		return err
	}
	if !b.store.remove(fp) {
		return nil
	}
	return b.saveThrough()
}

func (b *Binding) containsFP(fp key.Fingerprint) bool {
	if err := b.ensureLoaded(); err != nil {
		b.reg.log.WithError(err).WithField("binding", b.name).Warn("cache load failed")
		return false
	}
	return b.store.contains(fp)
}

// ensureLoaded seeds the store from disk exactly once per process (and
// again after Reset). Seeding happens before the first store as well, so
// a write-through save cannot clobber prior disk entries that were never
// read in this process. The loaded flag is set only after the load
// succeeds or reports Absent: an I/O failure keeps surfacing on every
// operation until the mirror is readable again, rather than letting the
// next write-through replace it with a partial snapshot.
func (b *Binding) ensureLoaded() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loaded {
		return nil
	}
	recs, found, err := b.disk.Load()
	if err != nil {
		return err
	}
	b.loaded = true
	if found {
		b.store.seed(recs)
	}
	return nil
}

// saveThrough writes the full current entry set to disk.
func (b *Binding) saveThrough() error {
	if b.disk == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disk.Save(b.store.snapshot())
}
