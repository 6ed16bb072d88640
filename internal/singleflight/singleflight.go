// Package singleflight coalesces concurrent computations of the same
// fingerprint so that a wrapped function body runs at most once per key
// at any moment. Followers block until the leader publishes its result.
package singleflight

import "sync"

// Group deduplicates in-flight calls by string key.
// The zero value is ready to use.
type Group[V any] struct {
	mu sync.Mutex
	m  map[string]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed after val/err are published
	val  V
	err  error
}

// Do invokes fn once for key; concurrent callers with the same key wait for
// the leader's result instead of running fn themselves. Publishing val/err
// happens before close(done), so followers observe the final values.
func (g *Group[V]) Do(key string, fn func() (V, error)) (V, error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[string]*call[V])
	}
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		<-c.done
		return c.val, c.err
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()
	close(c.done)

	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()

	return c.val, c.err
}
