package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/IvanBrykalov/globalcache/key"
)

// countingMetrics records signals for assertions.
type countingMetrics struct {
	mu      sync.Mutex
	hits    int
	misses  int
	evicts  map[EvictReason]int
	lastLen int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{evicts: make(map[EvictReason]int)}
}

func (m *countingMetrics) Hit()  { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *countingMetrics) Miss() { m.mu.Lock(); m.misses++; m.mu.Unlock() }
func (m *countingMetrics) Evict(r EvictReason) {
	m.mu.Lock()
	m.evicts[r]++
	m.mu.Unlock()
}
func (m *countingMetrics) Size(entries int) { m.mu.Lock(); m.lastLen = entries; m.mu.Unlock() }

func testFP(t *testing.T, args ...any) key.Fingerprint {
	t.Helper()
	fp, err := key.Encode(args, nil)
	if err != nil {
		t.Fatal(err)
	}
	return fp
}

// The documented eviction scenario: limit 2, store A, B, C in order leaves
// {B, C}. A read of B does not refresh it, so storing D evicts B, not C.
func TestStore_FIFOWithRefreshNotLRU(t *testing.T) {
	t.Parallel()

	s := newEntryStore(2, NoopMetrics{})
	a, b, c, d := testFP(t, "A"), testFP(t, "B"), testFP(t, "C"), testFP(t, "D")

	s.put(a, "A")
	s.put(b, "B")
	s.put(c, "C")
	if s.size() != 2 {
		t.Fatalf("size after overflow: want 2, got %d", s.size())
	}
	if _, ok := s.get(a); ok {
		t.Fatal("A must be evicted as the oldest write")
	}
	if _, ok := s.get(b); !ok {
		t.Fatal("B must survive")
	}

	// The read of B above must not count as a refresh.
	s.put(d, "D")
	if _, ok := s.get(b); ok {
		t.Fatal("B must be evicted despite the recent read")
	}
	if _, ok := s.get(c); !ok {
		t.Fatal("C must survive: its write is newer than B's")
	}
}

// Overwriting a fingerprint refreshes its sequence number.
func TestStore_OverwriteRefreshes(t *testing.T) {
	t.Parallel()

	s := newEntryStore(2, NoopMetrics{})
	a, b, c := testFP(t, "A"), testFP(t, "B"), testFP(t, "C")

	s.put(a, 1)
	s.put(b, 2)
	s.put(a, 11) // A is now newest
	s.put(c, 3)  // overflow evicts B

	if _, ok := s.get(b); ok {
		t.Fatal("B must be evicted: A's overwrite made it newest")
	}
	if v, ok := s.get(a); !ok || v != 11 {
		t.Fatalf("A must survive with refreshed value, got %v ok=%v", v, ok)
	}
}

// After every put, size never exceeds the limit, and each overflow evicts
// exactly one entry: the smallest sequence number present.
func TestStore_LimitInvariant(t *testing.T) {
	t.Parallel()

	const limit = 5
	m := newCountingMetrics()
	s := newEntryStore(limit, m)

	for i := 0; i < 20; i++ {
		s.put(testFP(t, i), i)
		if got := s.size(); got > limit {
			t.Fatalf("put %d: size %d exceeds limit %d", i, got, limit)
		}
		if got, want := s.size(), min(i+1, limit); got != want {
			t.Fatalf("put %d: size %d, want %d", i, got, want)
		}
	}
	if m.evicts[EvictCapacity] != 15 {
		t.Fatalf("want 15 capacity evictions, got %d", m.evicts[EvictCapacity])
	}
	// Oldest 15 gone, newest 5 present.
	for i := 0; i < 15; i++ {
		if _, ok := s.get(testFP(t, i)); ok {
			t.Fatalf("entry %d should be evicted", i)
		}
	}
	for i := 15; i < 20; i++ {
		if _, ok := s.get(testFP(t, i)); !ok {
			t.Fatalf("entry %d should be resident", i)
		}
	}
}

// max 0 turns the store into a pass-through; negative max disables
// eviction entirely.
func TestStore_ZeroAndUnbounded(t *testing.T) {
	t.Parallel()

	zero := newEntryStore(0, NoopMetrics{})
	fp := testFP(t, "x")
	zero.put(fp, 1)
	if zero.size() != 0 {
		t.Fatal("max 0 must evict every put immediately")
	}
	if _, ok := zero.get(fp); ok {
		t.Fatal("pass-through store must never hit")
	}

	unbounded := newEntryStore(-1, NoopMetrics{})
	for i := 0; i < 10_000; i++ {
		unbounded.put(testFP(t, i), i)
	}
	if unbounded.size() != 10_000 {
		t.Fatalf("unbounded store lost entries: %d", unbounded.size())
	}
}

func TestStore_RemoveAndRemoveAll(t *testing.T) {
	t.Parallel()

	s := newEntryStore(-1, NoopMetrics{})
	a, b := testFP(t, "a"), testFP(t, "b")
	s.put(a, 1)
	s.put(b, 2)

	if !s.remove(a) {
		t.Fatal("remove of resident entry must report true")
	}
	if s.remove(a) {
		t.Fatal("second remove must report false")
	}
	if s.size() != 1 {
		t.Fatalf("size after remove: %d", s.size())
	}

	s.removeAll()
	if s.size() != 0 {
		t.Fatal("removeAll must empty the store")
	}
	// List links must be fully reset: new puts work as before.
	s.put(a, 3)
	if v, ok := s.get(a); !ok || v != 3 {
		t.Fatalf("store unusable after removeAll: %v %v", v, ok)
	}
}

// Snapshot/seed preserves values, sequence numbers and eviction order.
func TestStore_SnapshotSeedPreservesOrder(t *testing.T) {
	t.Parallel()

	src := newEntryStore(-1, NoopMetrics{})
	fps := make([]key.Fingerprint, 4)
	for i := range fps {
		fps[i] = testFP(t, i)
		src.put(fps[i], fmt.Sprintf("v%d", i))
	}
	src.put(fps[0], "v0*") // refresh 0 to newest

	dst := newEntryStore(3, NoopMetrics{})
	dst.seed(src.snapshot())
	if dst.size() != 3 {
		t.Fatalf("seed must honor the smaller limit, size=%d", dst.size())
	}
	// Entry 1 had the smallest surviving sequence before the limit cut;
	// after seeding into a 3-slot store the oldest (1) is gone.
	if _, ok := dst.get(fps[1]); ok {
		t.Fatal("oldest seeded entry must be evicted by the tighter limit")
	}
	if v, ok := dst.get(fps[0]); !ok || v != "v0*" {
		t.Fatalf("refreshed entry must survive with latest value, got %v", v)
	}

	// Writes after seeding must continue the sequence: the next overflow
	// evicts the oldest of the seeded survivors, not the fresh write.
	dst.put(testFP(t, "new"), "n")
	if _, ok := dst.get(testFP(t, "new")); !ok {
		t.Fatal("fresh write must survive the post-seed overflow")
	}
	if _, ok := dst.get(fps[2]); ok {
		t.Fatal("oldest seeded survivor must be the overflow victim")
	}
}

func TestStore_HitMissMetrics(t *testing.T) {
	t.Parallel()

	m := newCountingMetrics()
	s := newEntryStore(-1, m)
	fp := testFP(t, "k")

	s.get(fp)
	s.put(fp, 1)
	s.get(fp)
	s.get(fp)

	if m.misses != 1 || m.hits != 2 {
		t.Fatalf("want 1 miss / 2 hits, got %d / %d", m.misses, m.hits)
	}
	if m.lastLen != 1 {
		t.Fatalf("size gauge: want 1, got %d", m.lastLen)
	}
}
