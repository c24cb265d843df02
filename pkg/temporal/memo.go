package temporal

import (
	"sync"

	"github.com/soundprediction/go-lineage/pkg/types"
)

// ConflictMemo remembers how an edge's institution conflict was resolved, so a
// decision is made once and reused by every later snapshot.
type ConflictMemo interface {
	Lookup(id types.EdgeIdentity) (string, bool, error)
	Store(id types.EdgeIdentity, institution string) error
}

// MemoryMemo is a ConflictMemo that lives for a single run.
type MemoryMemo struct {
	mu        sync.Mutex
	decisions map[types.EdgeIdentity]string
}

// NewMemoryMemo creates an empty MemoryMemo.
func NewMemoryMemo() *MemoryMemo {
	return &MemoryMemo{decisions: make(map[types.EdgeIdentity]string)}
}

// Lookup implements ConflictMemo.
func (m *MemoryMemo) Lookup(id types.EdgeIdentity) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.decisions[id]
	return inst, ok, nil
}

// Store implements ConflictMemo.
func (m *MemoryMemo) Store(id types.EdgeIdentity, institution string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[id] = institution
	return nil
}

// Len returns the number of stored decisions.
func (m *MemoryMemo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.decisions)
}
