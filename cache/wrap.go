package cache

import "github.com/IvanBrykalov/globalcache/key"

// Func is the shape of a computation that can be memoized: positional
// arguments in, one result out. The arguments must be encodable by the
// key package.
type Func[V any] func(args ...any) (V, error)

// Wrap returns a memoized version of fn backed by b: lookup, then compute
// on miss, then store. Concurrent calls with the same signature are
// coalesced so fn runs once. While the registry is disabled the wrapper
// calls straight through to fn.
//
// A store failure (write-through save) is reported alongside the computed
// value, so callers can use the result and still observe that persistence
// broke.
func Wrap[V any](b *Binding, fn Func[V]) Func[V] {
	return func(args ...any) (V, error) {
		var zero V
		if b.reg.Disabled() {
			return fn(args...)
		}
		fp, err := key.Encode(args, nil)
		if err != nil {
			return zero, err
		}

		v, err := b.flight.Do(string(fp), func() (any, error) {
			prior, ok, err := b.lookupFP(fp)
			if err != nil {
				return nil, err
			}
			if ok {
				if tv, ok := prior.(V); ok {
					return tv, nil
				}
				// A stale disk entry of another type; recompute and overwrite.
			}
			out, err := fn(args...)
			if err != nil {
				return nil, err
			}
			return out, b.storeFP(fp, out)
		})
		if err != nil {
			if tv, ok := v.(V); ok {
				return tv, err
			}
			return zero, err
		}
		return v.(V), nil
	}
}

// WrapReset returns a wrapper that always recomputes and overwrites the
// cached value: the force-refresh counterpart of Wrap. Useful while
// iterating on the wrapped function itself.
func WrapReset[V any](b *Binding, fn Func[V]) Func[V] {
	return func(args ...any) (V, error) {
		out, err := fn(args...)
		if err != nil || b.reg.Disabled() {
			return out, err
		}
		fp, err := key.Encode(args, nil)
		if err != nil {
			return out, err
		}
		return out, b.storeFP(fp, out)
	}
}
