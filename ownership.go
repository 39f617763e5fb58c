package main

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	ErrStoreUnavailable = errors.New("ownership store unavailable")
	ErrUnknownBlock     = errors.New("unknown block")
)

// OwnershipStore is the external, eventually consistent ownership record.
// A write is not guaranteed to show up in the next Snapshot.
type OwnershipStore interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	SetOwner(ctx context.Context, id BlockID, owner OwnerType, x, y int32) error
}

// Snapshot is a read-only copy of the store taken once per tick
type Snapshot struct {
	records map[BlockID]BlockRecord
}

// NewSnapshot builds a snapshot from store rows
func NewSnapshot(records []BlockRecord) *Snapshot {
	s := &Snapshot{records: make(map[BlockID]BlockRecord, len(records))}
	for _, rec := range records {
		s.records[rec.ID] = rec
	}
	return s
}

// Get returns the row for a block id
func (s *Snapshot) Get(id BlockID) (BlockRecord, bool) {
	rec, ok := s.records[id]
	return rec, ok
}

// Len returns the number of rows
func (s *Snapshot) Len() int {
	return len(s.records)
}

// Records returns every row ordered by block id
func (s *Snapshot) Records() []BlockRecord {
	out := make([]BlockRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Owners returns every player that owns at least one block
func (s *Snapshot) Owners() []OwnerID {
	seen := make(map[OwnerID]struct{})
	for _, rec := range s.records {
		if rec.Owner.Kind == OwnerPlayer {
			seen[rec.Owner.Player] = struct{}{}
		}
	}
	out := make([]OwnerID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns how many blocks the snapshot assigns to an owner
func (s *Snapshot) Count(owner OwnerID) int {
	n := 0
	for _, rec := range s.records {
		if rec.Owner.Is(owner) {
			n++
		}
	}
	return n
}

type pendingWrite struct {
	rec       BlockRecord
	remaining int
}

// MemoryStore is an in-process OwnershipStore. Writes become visible after
// Lag further snapshots, and FailNext makes upcoming writes fail.
type MemoryStore struct {
	mu       sync.Mutex
	rows     map[BlockID]BlockRecord
	pending  []pendingWrite
	lag      int
	failNext int
	writes   int
	lastID   BlockID
}

// NewMemoryStore creates an empty store with the given visibility lag
func NewMemoryStore(lag int) *MemoryStore {
	if lag < 0 {
		lag = 0
	}
	return &MemoryStore{
		rows: make(map[BlockID]BlockRecord),
		lag:  lag,
	}
}

// Insert adds or replaces a row immediately
func (m *MemoryStore) Insert(rec BlockRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[rec.ID] = rec
	if rec.ID > m.lastID {
		m.lastID = rec.ID
	}
}

// FailNext makes the next n SetOwner calls fail
func (m *MemoryStore) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// Writes returns the number of accepted SetOwner calls
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Get returns the committed row for a block
func (m *MemoryStore) Get(id BlockID) (BlockRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[id]
	return rec, ok
}

// SetOwner queues an ownership change
func (m *MemoryStore) SetOwner(ctx context.Context, id BlockID, owner OwnerType, x, y int32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext > 0 {
		m.failNext--
		return ErrStoreUnavailable
	}
	if _, ok := m.rows[id]; !ok {
		return ErrUnknownBlock
	}
	m.writes++
	rec := BlockRecord{ID: id, Owner: owner, X: x, Y: y}
	if m.lag == 0 {
		m.rows[id] = rec
		return nil
	}
	m.pending = append(m.pending, pendingWrite{rec: rec, remaining: m.lag})
	return nil
}

// Snapshot returns the committed rows. Writes still in flight are missing.
func (m *MemoryStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.pending[:0]
	for _, w := range m.pending {
		if w.remaining <= 0 {
			m.rows[w.rec.ID] = w.rec
			continue
		}
		kept = append(kept, w)
	}
	m.pending = kept

	records := make([]BlockRecord, 0, len(m.rows))
	for _, rec := range m.rows {
		records = append(records, rec)
	}
	for i := range m.pending {
		m.pending[i].remaining--
	}
	return NewSnapshot(records), nil
}

// SpawnBlock adds a new unowned block and returns its id
func (m *MemoryStore) SpawnBlock(ctx context.Context, x, y int32) (BlockID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastID++
	id := m.lastID
	m.rows[id] = BlockRecord{ID: id, Owner: NoOwner(), X: x, Y: y}
	return id, nil
}
