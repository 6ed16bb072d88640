package cache

import "github.com/IvanBrykalov/globalcache/key"

// Var is a binding specialized to a single fingerprint: an ad-hoc cached
// variable. The fingerprint is derived from the dependency values given to
// Registry.Var, so changing a dependency is the same as a different call
// signature and the prior result simply stops matching — no explicit reset
// needed.
//
// Typical use mirrors an if-block around expensive work:
//
//	v, err := reg.Var("p1", cache.Config{}, nil, nil)
//	if v.NotCached() {
//	    v.Set(compute())
//	}
//	out, _ := v.Get()
type Var struct {
	b  *Binding
	fp key.Fingerprint
}

// Var returns the cached variable name with the given dependency values.
// Repeated calls with the same name are allowed and share the underlying
// binding; an incompatible cfg fails with *NameCollisionError, and a
// non-encodable dependency with *UnhashableInputError.
func (r *Registry) Var(name string, cfg Config, positional []any, named map[string]any) (*Var, error) {
	b, err := r.Bind(name, cfg)
	if err != nil {
		return nil, err
	}
	fp, err := key.Encode(positional, named)
	if err != nil {
		return nil, err
	}
	return &Var{b: b, fp: fp}, nil
}

// Get returns the cached value, or ErrNotCached if nothing has been set
// for the current dependency values (or the registry is disabled).
func (v *Var) Get() (any, error) {
	if v.b.reg.Disabled() {
		return nil, ErrNotCached
	}
	val, ok, err := v.b.lookupFP(v.fp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotCached
	}
	return val, nil
}

// Set caches the value and returns it, so a computation can be stored and
// used in one expression. A disabled registry makes Set a no-op.
func (v *Var) Set(val any) (any, error) {
	if v.b.reg.Disabled() {
		return val, nil
	}
	if err := v.b.storeFP(v.fp, val); err != nil {
		return val, err
	}
	return val, nil
}

// IsCached reports whether a value is present for the current dependency
// values. Always false while the registry is disabled.
func (v *Var) IsCached() bool {
	if v.b.reg.Disabled() {
		return false
	}
	return v.b.containsFP(v.fp)
}

// NotCached is the guard-clause complement of IsCached.
func (v *Var) NotCached() bool { return !v.IsCached() }

// Reset forgets only this variable's value for the current dependency
// values; other entries in the binding are untouched.
func (v *Var) Reset() error { return v.b.removeFP(v.fp) }
