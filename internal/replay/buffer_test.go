package replay

import (
	"testing"

	"github.com/yourboymarti/poker-everest/internal/model"
)

func delta(version uint64) model.Delta {
	return model.Delta{Type: model.DeltaVoteRecorded, RoomID: "ROOM1", Version: version}
}

func fill(b *Buffer, from, to uint64) {
	for v := from; v <= to; v++ {
		b.Append(delta(v))
	}
}

func TestBuffer_Append(t *testing.T) {
	t.Run("grows up to capacity", func(t *testing.T) {
		b := NewBuffer(5)
		fill(b, 1, 3)

		if b.Len() != 3 {
			t.Errorf("Expected 3 deltas, got %d", b.Len())
		}
		if b.LastVersion() != 3 {
			t.Errorf("Expected last version 3, got %d", b.LastVersion())
		}
	})

	t.Run("discards the oldest when full", func(t *testing.T) {
		b := NewBuffer(3)
		fill(b, 1, 5)

		if b.Len() != 3 {
			t.Errorf("Expected capacity-bounded length 3, got %d", b.Len())
		}
		out, ok := b.Since(2)
		if !ok {
			t.Fatal("Version 2 is still inside the window")
		}
		if len(out) != 3 || out[0].Version != 3 || out[2].Version != 5 {
			t.Errorf("Expected versions 3..5, got %v", out)
		}
	})

	t.Run("zero capacity defaults to one", func(t *testing.T) {
		b := NewBuffer(0)
		fill(b, 1, 2)

		if b.Len() != 1 {
			t.Errorf("Expected length 1, got %d", b.Len())
		}
		if b.LastVersion() != 2 {
			t.Errorf("Expected last version 2, got %d", b.LastVersion())
		}
	})
}

func TestBuffer_Since(t *testing.T) {
	t.Run("returns everything after the given version", func(t *testing.T) {
		b := NewBuffer(10)
		fill(b, 1, 6)

		out, ok := b.Since(4)
		if !ok {
			t.Fatal("Expected no gap")
		}
		if len(out) != 2 || out[0].Version != 5 || out[1].Version != 6 {
			t.Errorf("Expected versions 5,6, got %v", out)
		}
	})

	t.Run("caught-up caller gets an empty catch-up", func(t *testing.T) {
		b := NewBuffer(10)
		fill(b, 1, 6)

		out, ok := b.Since(6)
		if !ok {
			t.Fatal("Expected no gap for a caught-up caller")
		}
		if len(out) != 0 {
			t.Errorf("Expected no deltas, got %v", out)
		}
	})

	t.Run("reports a gap when the window moved past the caller", func(t *testing.T) {
		b := NewBuffer(3)
		fill(b, 1, 10) // window is now 8..10

		if _, ok := b.Since(5); ok {
			t.Error("Expected a gap: version 6 fell out of the window")
		}
		if out, ok := b.Since(7); !ok || len(out) != 3 {
			t.Errorf("Version 7 is exactly at the window edge: ok=%v len=%d", ok, len(out))
		}
	})

	t.Run("empty buffer has a gap for any stale caller", func(t *testing.T) {
		b := NewBuffer(10)

		if _, ok := b.Since(0); !ok {
			t.Error("A fresh caller against an empty buffer is caught up")
		}
		if _, ok := b.Since(3); ok {
			t.Error("A stale caller against an empty buffer has a gap")
		}
	})
}

func TestBuffer_LastVersion(t *testing.T) {
	b := NewBuffer(4)
	if b.LastVersion() != 0 {
		t.Errorf("Expected 0 for an empty buffer, got %d", b.LastVersion())
	}
	fill(b, 1, 9)
	if b.LastVersion() != 9 {
		t.Errorf("Expected 9, got %d", b.LastVersion())
	}
}
