// Package cache memoizes expensive computations per named binding within
// one long-lived process. A binding maps a call signature (positional and
// named values, canonically fingerprinted) to the previously computed
// result, with a size-bounded in-memory store and an optional write-through
// disk mirror, so re-running the same work skips the heavy part.
//
// Design
//
//   - Keys: the key package derives a SHA-256 fingerprint from the call
//     signature. Positional order matters, named order never does, and the
//     encoding is stable across processes so fingerprints double as keys in
//     the persistent store. Values without a deterministic canonical form
//     are rejected with *UnhashableInputError rather than guessed at.
//
//   - Storage: each binding owns an entry store — a fingerprint→entry map
//     plus an intrusive doubly linked list ordered by write sequence.
//     Eviction is FIFO-with-refresh: a write (insert or overwrite) makes an
//     entry newest, a read changes nothing, and overflow always removes the
//     entry with the smallest sequence number. The limit is enforced after
//     every insert, never on read.
//
//   - Persistence: with Config.Save a binding mirrors its full entry set to
//     {SaveDir}/.globalcache/{name} on every store (write-through; the
//     workload is interactive and low-frequency). Files are replaced via
//     temp-file-plus-rename, a missing or corrupt file loads as "no prior
//     cache", and save failures propagate. Independent processes writing
//     the same binding are unsupported; a lock file turns the common case
//     of that mistake into an error instead of silent last-wins.
//
//   - Registry: one Registry per host namespace holds the binding table,
//     the save directory and the disable flag. Constructing a registry
//     against a namespace that already holds one adopts its bindings, which
//     is what keeps results alive across re-executions of a script. While
//     disabled, lookups miss and stores do nothing.
//
//   - Concurrency: the intended shape is one interactive control thread.
//     Stores and registries still guard their mutable state internally, so
//     concurrent lookups and stores from one process are safe; the
//     expensive computation always happens outside any cache lock.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals.
//     NoopMetrics is the default; metrics/prom exports them to Prometheus.
//
// Basic usage
//
//	reg := cache.New(cache.MapNamespace{}, cache.Options{})
//	b, _ := reg.Bind("fib", cache.Config{SizeLimit: 100})
//
//	fib := cache.Wrap(b, func(args ...any) (int, error) {
//	    return slowFib(args[0].(int)), nil
//	})
//	v, _ := fib(40) // computed
//	v, _ = fib(40)  // cached
//
// Cached variables
//
//	v, _ := reg.Var("dataset", cache.Config{Save: true}, []any{path}, nil)
//	if v.NotCached() {
//	    v.Set(loadDataset(path))
//	}
//	ds, _ := v.Get()
//
// Changing path above changes the fingerprint, so the stale result is
// simply never matched again — no explicit invalidation required.
package cache
