package inmemory

import (
	"context"
	"sync"

	"github.com/barekit/rihlat/pkg/memory"
)

// InMemory implements memory.Memory with a slice guarded by a RWMutex.
type InMemory struct {
	mu    sync.RWMutex
	turns []memory.Turn
}

// New creates an empty history.
func New() *InMemory {
	return &InMemory{}
}

// Append adds turns to the end of the history.
func (m *InMemory) Append(ctx context.Context, turns ...memory.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, turns...)
	return nil
}

// Turns returns a copy of the whole history.
func (m *InMemory) Turns(ctx context.Context) ([]memory.Turn, error) {
	return m.Recent(ctx, -1)
}

// Recent returns a copy of the newest n turns. A negative n returns everything.
func (m *InMemory) Recent(ctx context.Context, n int) ([]memory.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := 0
	if n >= 0 && n < len(m.turns) {
		start = len(m.turns) - n
	}
	// Return a copy to avoid races if the caller modifies the slice
	result := make([]memory.Turn, len(m.turns)-start)
	copy(result, m.turns[start:])
	return result, nil
}
