package cache

import (
	"errors"
	"testing"
)

// The if-block workflow: NotCached before Set, cached after, Get returns
// the stored value.
func TestVar_SetGetLifecycle(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, Options{})
	v, err := r.Var("p1", Config{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !v.NotCached() {
		t.Fatal("fresh var must report NotCached")
	}
	if _, err := v.Get(); !errors.Is(err, ErrNotCached) {
		t.Fatalf("Get before Set: want ErrNotCached, got %v", err)
	}

	if got, err := v.Set(3.14); err != nil || got != 3.14 {
		t.Fatalf("Set must echo its value, got %v err=%v", got, err)
	}
	if v.NotCached() {
		t.Fatal("var must be cached after Set")
	}
	if got, err := v.Get(); err != nil || got != 3.14 {
		t.Fatalf("Get: want 3.14, got %v err=%v", got, err)
	}

	// A second handle to the same name sees the same value.
	again, err := r.Var("p1", Config{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.NotCached() {
		t.Fatal("second handle must observe the cached value")
	}
}

// Changing a dependency value is the same as a different call signature:
// the prior result stops matching without an explicit reset.
func TestVar_DependencyChangeInvalidates(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, Options{})
	v1, _ := r.Var("model", Config{}, []any{"dataset-v1", 0.5}, nil)
	if _, err := v1.Set("result-1"); err != nil {
		t.Fatal(err)
	}

	v2, _ := r.Var("model", Config{}, []any{"dataset-v2", 0.5}, nil)
	if v2.IsCached() {
		t.Fatal("changed dependency must not match the prior result")
	}
	if _, err := v2.Set("result-2"); err != nil {
		t.Fatal(err)
	}

	// The original dependency set still has its own value.
	back, _ := r.Var("model", Config{}, []any{"dataset-v1", 0.5}, nil)
	got, err := back.Get()
	if err != nil || got != "result-1" {
		t.Fatalf("original deps: want result-1, got %v err=%v", got, err)
	}
}

func TestVar_ResetForgetsOnlyThisKey(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, Options{})
	a, _ := r.Var("shared", Config{}, []any{1}, nil)
	b, _ := r.Var("shared", Config{}, []any{2}, nil)
	a.Set("one")
	b.Set("two")

	if err := a.Reset(); err != nil {
		t.Fatal(err)
	}
	if a.IsCached() {
		t.Fatal("reset var must be uncached")
	}
	if b.NotCached() {
		t.Fatal("sibling key must be untouched")
	}
}

func TestVar_DisabledRegistry(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, Options{Disable: true})
	v, _ := r.Var("p1", Config{}, nil, nil)

	if v.IsCached() {
		t.Fatal("disabled registry: IsCached must be false")
	}
	if _, err := v.Set(1); err != nil {
		t.Fatal(err)
	}
	if !v.NotCached() {
		t.Fatal("disabled registry: Set must be a no-op")
	}
	if _, err := v.Get(); !errors.Is(err, ErrNotCached) {
		t.Fatalf("disabled registry: want ErrNotCached, got %v", err)
	}
}

func TestVar_UnhashableDependency(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, Options{})
	var uh *UnhashableInputError
	if _, err := r.Var("p1", Config{}, []any{make(chan int)}, nil); !errors.As(err, &uh) {
		t.Fatalf("want *UnhashableInputError, got %v", err)
	}
}
