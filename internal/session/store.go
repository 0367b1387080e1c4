package session

import (
	"sync"
	"time"

	"rybalka.web/internal/game"
	"rybalka.web/internal/game/bonus"
	"rybalka.web/internal/protocol"
)

// Store holds the session's authoritative snapshot and transient local flags.
// It performs no I/O.
type Store struct {
	mu sync.RWMutex

	loaded bool
	snap   Snapshot

	busy bool
	// seq advances whenever an action begins or the snapshot is replaced. Reads that
	// started under an older seq must not overwrite newer state.
	seq uint64

	filter  game.Category
	catalog game.Catalog

	now func() time.Time
}

func NewStore() *Store {
	return &Store{filter: game.CategoryAll, now: time.Now}
}

// Snapshot returns a deep copy of the current state. ok is false until the first load.
func (s *Store) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return Snapshot{}, false
	}
	return s.snap.Clone(), true
}

// Replace swaps every authoritative field for the payload's. Nothing is merged.
func (s *Store) Replace(userID string, p protocol.StatePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(userID, p)
}

// ReplaceIf applies the payload only if no action began and no other replacement
// landed since seq was read.
func (s *Store) ReplaceIf(seq uint64, userID string, p protocol.StatePayload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq || s.busy {
		return false
	}
	s.replaceLocked(userID, p)
	return true
}

func (s *Store) replaceLocked(userID string, p protocol.StatePayload) {
	snap := Snapshot{
		Profile:      p.Profile(userID),
		Equipped:     p.Equipped(),
		Inventory:    p.Items(),
		KeepNet:      p.KeepNet(),
		PendingCatch: p.PendingCatch(),
		FetchedAt:    s.now().UTC(),
	}
	s.resolveSlotsLocked(&snap)
	snap.Bonuses = bonus.Aggregate(snap.Equipped)
	s.snap = snap
	s.loaded = true
	s.seq++
}

// Restore seeds the store from a cached snapshot. It only applies before the first
// server load.
func (s *Store) Restore(snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return false
	}
	snap = snap.Clone()
	s.resolveSlotsLocked(&snap)
	snap.Bonuses = bonus.Aggregate(snap.Equipped)
	s.snap = snap
	s.loaded = true
	s.seq++
	return true
}

func (s *Store) resolveSlotsLocked(snap *Snapshot) {
	if s.catalog == nil {
		return
	}
	for i, it := range snap.Inventory {
		if slot, ok := s.catalog.SlotOf(it); ok {
			snap.Inventory[i].Slot = slot
		}
	}
}

func (s *Store) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

func (s *Store) SetBusy(busy bool) {
	s.mu.Lock()
	s.busy = busy
	s.mu.Unlock()
}

func (s *Store) IsBusy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// TryBegin marks the store busy and reports true, or reports false if an action is
// already in flight.
func (s *Store) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	s.seq++
	return true
}

func (s *Store) SetFilter(c game.Category) {
	s.mu.Lock()
	s.filter = c
	s.mu.Unlock()
}

func (s *Store) Filter() game.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// SetCatalog publishes the shop catalog once; later calls are ignored.
func (s *Store) SetCatalog(c game.Catalog) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog != nil || c == nil {
		return false
	}
	s.catalog = c
	if s.loaded {
		s.resolveSlotsLocked(&s.snap)
	}
	return true
}

// Catalog returns the shared catalog. Callers must not modify it.
func (s *Store) Catalog() game.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

func (s *Store) SetPendingCatch(c game.Catch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return
	}
	s.snap.PendingCatch = &c
}

func (s *Store) ClearPendingCatch() {
	s.mu.Lock()
	s.snap.PendingCatch = nil
	s.mu.Unlock()
}

func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := View{Loaded: s.loaded, Busy: s.busy, Filter: s.filter}
	if s.loaded {
		v.Snapshot = s.snap.Clone()
	}
	return v
}
