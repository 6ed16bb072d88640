package cache

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"

	"github.com/IvanBrykalov/globalcache/persist"
)

// Namespace is the narrow handle the registry needs from the host: store a
// value under a reserved name and read it back. It is how one registry
// instance survives re-execution of the same script or session — the host
// keeps the namespace, the namespace keeps the registry.
type Namespace interface {
	Store(name string, v any)
	Load(name string) (any, bool)
}

// MapNamespace is the simplest Namespace: a plain map owned by the caller.
// Not safe for concurrent use; wrap it if the host is.
type MapNamespace map[string]any

func (m MapNamespace) Store(name string, v any) { m[name] = v }

func (m MapNamespace) Load(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Registry is the top-level object bound to one host namespace. It creates
// and looks up bindings by name, holds the save directory and the disable
// flag, and performs bulk reset.
type Registry struct {
	name    string
	saveDir string
	limit   int // default binding size limit, never DefaultLimit
	met     Metrics
	log     log.Interface

	disabled atomic.Bool

	mu       sync.Mutex
	ns       Namespace
	bindings map[string]*Binding
}

// New constructs a registry bound to ns, or revives the one a previous
// execution stored there under the reserved name. Revival adopts the old
// binding table, so results computed before a re-run stay cached; pass
// Options.Reset to start empty instead. The registry stores itself back
// into ns before returning. ns may be nil for a registry that lives only
// as long as the caller holds it.
func New(ns Namespace, opts Options) *Registry {
	name := opts.Name
	if name == "" {
		name = envName()
	}
	saveDir := opts.SaveDir
	if saveDir == "" {
		if wd, err := os.Getwd(); err == nil {
			saveDir = wd
		} else {
			saveDir = "."
		}
	}
	limit := opts.SizeLimit
	if limit == DefaultLimit {
		limit = envSizeLimit()
	}
	met := opts.Metrics
	if met == nil {
		met = NoopMetrics{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = &log.Logger{Handler: discard.Default}
	}

	r := &Registry{
		name:     name,
		saveDir:  saveDir,
		limit:    limit,
		met:      met,
		log:      logger,
		bindings: make(map[string]*Binding),
	}
	r.disabled.Store(opts.Disable || envDisabled())

	if ns != nil {
		if prev, ok := ns.Load(name); ok && !opts.Reset {
			if pr, ok := prev.(*Registry); ok {
				r.adopt(pr)
			}
		}
		ns.Store(name, r)
	}
	r.ns = ns
	return r
}

// adopt takes over another registry's binding table. Bindings are keyed by
// name, not by namespace identity, so they carry over as-is; only their
// back-pointer moves to the new registry.
func (r *Registry) adopt(prev *Registry) {
	prev.mu.Lock()
	defer prev.mu.Unlock()
	for name, b := range prev.bindings {
		b.reg = r
		r.bindings[name] = b
	}
}

// Rebind points the registry at a different host namespace, preserving all
// bindings, and stores the registry there.
func (r *Registry) Rebind(ns Namespace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ns = ns
	if ns != nil {
		ns.Store(r.name, r)
	}
}

// Bind returns the binding for name, creating it on first use. Re-binding
// an existing name with a compatible configuration returns the existing
// binding (applying Config.Reset if requested); an incompatible
// configuration fails with *NameCollisionError.
func (r *Registry) Bind(name string, cfg Config) (*Binding, error) {
	// Construction is pure struct wiring (no I/O), so the whole operation
	// stays under one lock: concurrent binds of the same name converge on
	// one binding and a Reset request cannot get lost in a race.
	r.mu.Lock()
	if b, ok := r.bindings[name]; ok {
		r.mu.Unlock()
		if !r.compatible(b.cfg, cfg) {
			return nil, &NameCollisionError{Name: name, Existing: b.cfg, Requested: cfg}
		}
		if cfg.Reset {
			if err := b.Reset(false); err != nil {
				return nil, err
			}
		}
		return b, nil
	}

	b := &Binding{
		name:  name,
		cfg:   cfg,
		reg:   r,
		store: newEntryStore(r.storeLimit(cfg.SizeLimit), r.met),
	}
	if cfg.Save {
		b.disk = persist.New(r.saveDir, name, r.log)
	} else {
		b.loaded = true
	}
	r.bindings[name] = b
	r.mu.Unlock()

	r.log.WithField("binding", name).Debug("cache binding created")
	return b, nil
}

// ResetAll resets every binding this registry knows about.
func (r *Registry) ResetAll(deleteDisk bool) error {
	r.mu.Lock()
	bs := make([]*Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		bs = append(bs, b)
	}
	r.mu.Unlock()

	var errs []error
	for _, b := range bs {
		if err := b.Reset(deleteDisk); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetDisabled toggles the process-wide disable flag: while set, every
// lookup misses and every store is a no-op, forcing fresh computation
// without restarting the process.
func (r *Registry) SetDisabled(v bool) { r.disabled.Store(v) }

// Disabled reports the disable flag.
func (r *Registry) Disabled() bool { return r.disabled.Load() }

// SaveDir reports the directory persistent mirrors are rooted at.
func (r *Registry) SaveDir() string { return r.saveDir }

// compatible reports whether two configs describe the same binding shape.
// Reset is an action, not a shape, so it is ignored here.
func (r *Registry) compatible(a, b Config) bool {
	return a.Save == b.Save && r.storeLimit(a.SizeLimit) == r.storeLimit(b.SizeLimit)
}

// storeLimit maps a public SizeLimit onto the store's internal convention
// (negative = unbounded, zero = discard, positive = bound).
func (r *Registry) storeLimit(c int) int {
	if c == DefaultLimit {
		c = r.limit
	}
	switch {
	case c == Discard:
		return 0
	case c < 0:
		return -1
	default:
		return c
	}
}
