// Package replay provides a fixed-capacity buffer of recent room deltas so a
// resuming session can catch up without a full snapshot.
package replay

import (
	"sync"

	"github.com/yourboymarti/poker-everest/internal/model"
)

// Buffer is a thread-safe ring of the most recent deltas for one room. When
// the buffer is full the oldest delta is discarded. Deltas arrive in strictly
// increasing version order, so the buffered window is always contiguous.
type Buffer struct {
	deltas   []model.Delta
	capacity int
	mu       sync.RWMutex
}

// NewBuffer creates a Buffer with the specified capacity. The capacity must
// be greater than 0; if not, it defaults to 1.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		deltas:   make([]model.Delta, 0, capacity),
		capacity: capacity,
	}
}

// Append records a delta, discarding the oldest one if the buffer is full.
func (b *Buffer) Append(d model.Delta) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.deltas) == b.capacity {
		copy(b.deltas, b.deltas[1:])
		b.deltas[len(b.deltas)-1] = d
		return
	}
	b.deltas = append(b.deltas, d)
}

// Since returns every buffered delta with a version greater than after, in
// order. The second return is false when the window no longer reaches back to
// after+1: the caller has a gap and needs a full snapshot instead.
func (b *Buffer) Since(after uint64) ([]model.Delta, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.deltas) == 0 {
		// Nothing buffered: only a fully caught-up caller has no gap.
		return nil, after == b.lastVersionLocked()
	}
	if b.deltas[0].Version > after+1 {
		return nil, false
	}
	for i, d := range b.deltas {
		if d.Version > after {
			out := make([]model.Delta, len(b.deltas)-i)
			copy(out, b.deltas[i:])
			return out, true
		}
	}
	return nil, true
}

// Len returns the number of buffered deltas.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.deltas)
}

// LastVersion returns the version of the newest buffered delta, or 0 when
// empty.
func (b *Buffer) LastVersion() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastVersionLocked()
}

func (b *Buffer) lastVersionLocked() uint64 {
	if len(b.deltas) == 0 {
		return 0
	}
	return b.deltas[len(b.deltas)-1].Version
}
