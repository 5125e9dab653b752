package kad

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type memoryStore struct {
	mu       sync.Mutex
	records  map[string][]Record
	failures map[string]error
	now      func() time.Time
}

// MemoryDHT keeps records in process. It serves single-node setups and tests:
// queries complete on a separate goroutine, like on a real network.
type MemoryDHT struct {
	store *memoryStore

	nextID atomic.Uint64
	events chan Event
	closed chan struct{}
	once   sync.Once
}

func NewMemoryDHT() *MemoryDHT {
	return newMemoryDHT(&memoryStore{
		records:  make(map[string][]Record),
		failures: make(map[string]error),
		now:      time.Now,
	})
}

func newMemoryDHT(store *memoryStore) *MemoryDHT {
	return &MemoryDHT{
		store:  store,
		events: make(chan Event, 64),
		closed: make(chan struct{}),
	}
}

// Peer returns another node on the same records, with its own queries and
// events.
func (m *MemoryDHT) Peer() *MemoryDHT {
	return newMemoryDHT(m.store)
}

func (m *MemoryDHT) Events() <-chan Event { return m.events }

// GetRecord reports every unexpired record stored under key, one step each.
func (m *MemoryDHT) GetRecord(_ context.Context, key []byte) QueryID {
	id := QueryID(m.nextID.Add(1))

	s := m.store
	s.mu.Lock()
	failure := s.failures[string(key)]
	now := s.now()
	var found []Record
	for _, rec := range s.records[string(key)] {
		if rec.Expires.IsZero() || now.Before(rec.Expires) {
			found = append(found, rec)
		}
	}
	s.mu.Unlock()

	var evs []Event
	if failure == nil {
		for i := range found {
			rec := found[i]
			evs = append(evs, &QueryProgressed{ID: id, Kind: QueryGetRecord, Step: Step{Count: i + 1}, Record: &rec})
		}
	}
	last := &QueryProgressed{ID: id, Kind: QueryGetRecord, Step: Step{Count: len(evs) + 1, Last: true}, Err: failure}
	if failure == nil && len(found) == 0 {
		last.Err = ErrNotFound
	}
	m.emit(append(evs, last))
	return id
}

// PutRecord stores rec, replacing an earlier record from the same publisher.
func (m *MemoryDHT) PutRecord(_ context.Context, rec Record, _ Quorum) (QueryID, error) {
	id := QueryID(m.nextID.Add(1))

	s := m.store
	s.mu.Lock()
	failure := s.failures[string(rec.Key)]
	if failure == nil {
		s.put(rec)
	}
	s.mu.Unlock()

	m.emit([]Event{&QueryProgressed{ID: id, Kind: QueryPutRecord, Step: Step{Count: 1, Last: true}, Err: failure}})
	return id, nil
}

func (s *memoryStore) put(rec Record) {
	rec.Key = bytes.Clone(rec.Key)
	rec.Value = bytes.Clone(rec.Value)
	key := string(rec.Key)
	for i, old := range s.records[key] {
		if old.Publisher == rec.Publisher {
			s.records[key][i] = rec
			return
		}
	}
	s.records[key] = append(s.records[key], rec)
}

// Put stores rec directly, without a query.
func (m *MemoryDHT) Put(rec Record) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.put(rec)
}

// Records returns what is stored under key.
func (m *MemoryDHT) Records(key []byte) []Record {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return append([]Record(nil), m.store.records[string(key)]...)
}

// Fail makes every query on key end with err. A nil err clears it.
func (m *MemoryDHT) Fail(key []byte, err error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if err == nil {
		delete(m.store.failures, string(key))
		return
	}
	m.store.failures[string(key)] = err
}

// SetClock replaces the clock used to drop expired records.
func (m *MemoryDHT) SetClock(now func() time.Time) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.now = now
}

// Inject emits ev as if it came from the network.
func (m *MemoryDHT) Inject(ev Event) {
	m.emit([]Event{ev})
}

func (m *MemoryDHT) emit(evs []Event) {
	go func() {
		for _, ev := range evs {
			select {
			case m.events <- ev:
			case <-m.closed:
				return
			}
		}
	}()
}

// Close stops event delivery.
func (m *MemoryDHT) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}
