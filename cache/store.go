package cache

import (
	"sort"
	"sync"

	"github.com/IvanBrykalov/globalcache/key"
	"github.com/IvanBrykalov/globalcache/persist"
)

// entry is an intrusive list element owned by an entryStore.
type entry struct {
	fp  key.Fingerprint
	val any

	// Monotonic per-store write sequence. Refreshed on overwrite,
	// never on read; eviction always takes the smallest.
	seq uint64

	// Intrusive list links: head is the newest write, tail the oldest.
	prev *entry
	next *entry
}

// entryStore maps fingerprints to entries and enforces a size limit with
// FIFO-with-refresh eviction: a put (insert or overwrite) counts as most
// recent, a get does not touch ordering. The list order therefore always
// matches ascending sequence numbers, and the tail is the eviction victim.
//
// max < 0 disables eviction; max == 0 evicts every entry immediately after
// insertion (pass-through). The limit is enforced after every insert and
// never on read.
type entryStore struct {
	mu   sync.Mutex
	m    map[key.Fingerprint]*entry
	head *entry // newest write
	tail *entry // oldest write, next eviction candidate
	len  int
	max  int
	seq  uint64
	met  Metrics
}

func newEntryStore(max int, met Metrics) *entryStore {
	return &entryStore{
		m:   make(map[key.Fingerprint]*entry),
		max: max,
		met: met,
	}
}

// get returns the value for fp. Reads never mutate ordering.
func (s *entryStore) get(fp key.Fingerprint) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[fp]
	if !ok {
		s.met.Miss()
		return nil, false
	}
	s.met.Hit()
	return e.val, true
}

func (s *entryStore) contains(fp key.Fingerprint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[fp]
	return ok
}

// put inserts or overwrites fp→v. An overwrite refreshes the sequence
// number, so the entry counts as most recent again.
func (s *entryStore) put(fp key.Fingerprint, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	if e, ok := s.m[fp]; ok {
		e.val = v
		e.seq = s.seq
		s.moveToFront(e)
	} else {
		e := &entry{fp: fp, val: v, seq: s.seq}
		s.m[fp] = e
		s.pushFront(e)
	}
	s.enforceLimitLocked()
	s.met.Size(s.len)
}

// remove deletes a single entry; used by Var.Reset.
func (s *entryStore) remove(fp key.Fingerprint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[fp]
	if !ok {
		return false
	}
	s.unlink(e)
	delete(s.m, fp)
	s.met.Size(s.len)
	return true
}

// removeAll clears the store.
func (s *entryStore) removeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for range s.m {
		s.met.Evict(EvictReset)
	}
	s.m = make(map[key.Fingerprint]*entry)
	s.head, s.tail = nil, nil
	s.len = 0
	s.met.Size(0)
}

func (s *entryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.len
}

// snapshot copies the current entry set for persistence, newest last.
func (s *entryStore) snapshot() []persist.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]persist.Record, 0, s.len)
	for e := s.tail; e != nil; e = e.prev {
		recs = append(recs, persist.Record{Fingerprint: e.fp, Seq: e.seq, Value: e.val})
	}
	return recs
}

// seed populates an empty store from persisted records, preserving the
// original write order so later eviction decisions match the saved state.
// Records already present in memory are skipped; the limit is enforced
// afterwards in case it shrank between runs.
func (s *entryStore) seed(recs []persist.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]persist.Record, len(recs))
	copy(sorted, recs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	for _, r := range sorted {
		if _, ok := s.m[r.Fingerprint]; ok {
			continue
		}
		e := &entry{fp: r.Fingerprint, val: r.Value, seq: r.Seq}
		s.m[r.Fingerprint] = e
		s.pushFront(e)
		if r.Seq > s.seq {
			s.seq = r.Seq
		}
	}
	s.enforceLimitLocked()
	s.met.Size(s.len)
}

// -------------------- internals (mu held) --------------------

// enforceLimitLocked evicts oldest-sequence entries until len <= max.
// Exactly one entry leaves per overflow unit; a read never gets here.
func (s *entryStore) enforceLimitLocked() {
	if s.max < 0 {
		return
	}
	for s.len > s.max {
		victim := s.tail
		if victim == nil {
			break
		}
		s.unlink(victim)
		delete(s.m, victim.fp)
		s.met.Evict(EvictCapacity)
	}
}

// pushFront inserts e as the newest entry in O(1).
func (s *entryStore) pushFront(e *entry) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
	s.len++
}

// moveToFront refreshes e to newest in O(1).
func (s *entryStore) moveToFront(e *entry) {
	if e == s.head {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if s.tail == e {
		s.tail = e.prev
	}
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

// unlink detaches e from the list and updates counters in O(1).
func (s *entryStore) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if s.head == e {
		s.head = e.next
	}
	if s.tail == e {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
	s.len--
}
