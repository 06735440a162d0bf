package repository

import (
	"context"
	"testing"
	"time"

	"github.com/yourboymarti/poker-everest/internal/db"
	"github.com/yourboymarti/poker-everest/internal/model"
)

func setupRepo(t *testing.T) *HistoryRepository {
	t.Helper()
	testDB, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { testDB.Close() })
	return NewHistoryRepository(testDB)
}

func TestHistoryRepository_Rooms(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		if err := repo.CreateRoom(ctx, "ROOM1", "Test Sprint"); err != nil {
			t.Fatalf("CreateRoom failed: %v", err)
		}

		name, createdAt, err := repo.GetRoom(ctx, "ROOM1")
		if err != nil {
			t.Fatalf("GetRoom failed: %v", err)
		}
		if name != "Test Sprint" {
			t.Errorf("Expected name 'Test Sprint', got %q", name)
		}
		if createdAt.IsZero() {
			t.Error("Expected a creation timestamp")
		}
	})

	t.Run("get unknown room", func(t *testing.T) {
		if _, _, err := repo.GetRoom(ctx, "NOSUCH1"); err != model.ErrNotFound {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("close room", func(t *testing.T) {
		if err := repo.CloseRoom(ctx, "ROOM1", time.Now()); err != nil {
			t.Fatalf("CloseRoom failed: %v", err)
		}
	})
}

func TestHistoryRepository_Rounds(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.CreateRoom(ctx, "ROOM1", "Test Sprint"); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	avg := 6.5
	first := model.RoundResult{
		Votes:    map[string]string{"p1": "5", "p2": "8"},
		Average:  &avg,
		ClosedAt: time.Now(),
	}
	second := model.RoundResult{
		Votes:    map[string]string{"p1": "?"},
		ClosedAt: time.Now(),
	}

	if err := repo.RecordRound(ctx, "ROOM1", "task-1", "Feature: Auth", first); err != nil {
		t.Fatalf("RecordRound failed: %v", err)
	}
	if err := repo.RecordRound(ctx, "ROOM1", "task-2", "Feature: Billing", second); err != nil {
		t.Fatalf("RecordRound failed: %v", err)
	}

	rounds, err := repo.ListRounds(ctx, "ROOM1")
	if err != nil {
		t.Fatalf("ListRounds failed: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("Expected 2 rounds, got %d", len(rounds))
	}

	if rounds[0].TaskID != "task-1" || rounds[0].TaskTitle != "Feature: Auth" {
		t.Errorf("Unexpected first round: %+v", rounds[0])
	}
	if rounds[0].Average == nil || *rounds[0].Average != 6.5 {
		t.Errorf("Expected average 6.5, got %v", rounds[0].Average)
	}
	if rounds[0].Votes["p2"] != "8" {
		t.Errorf("Expected vote map to round-trip, got %v", rounds[0].Votes)
	}

	if rounds[1].Average != nil {
		t.Errorf("Expected nil average for a non-numeric round, got %v", *rounds[1].Average)
	}

	t.Run("unknown room lists empty", func(t *testing.T) {
		rounds, err := repo.ListRounds(ctx, "NOSUCH1")
		if err != nil {
			t.Fatalf("ListRounds failed: %v", err)
		}
		if len(rounds) != 0 {
			t.Errorf("Expected no rounds, got %d", len(rounds))
		}
	})
}

func TestRecorder(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.CreateRoom(ctx, "ROOM1", "Test Sprint"); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	rec := NewRecorder(repo)
	avg := 5.0
	rec.Publish(model.Delta{
		Type:    model.DeltaRoundClosed,
		RoomID:  "ROOM1",
		Version: 7,
		Payload: model.RoundClosedPayload{
			TaskID: "task-1",
			Title:  "Feature: Auth",
			Result: model.RoundResult{
				Votes:    map[string]string{"p1": "5"},
				Average:  &avg,
				ClosedAt: time.Now(),
			},
		},
	})
	// Deltas of other types are ignored.
	rec.Publish(model.Delta{Type: model.DeltaVoteRecorded, RoomID: "ROOM1", Version: 8})

	// The archive write runs asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rounds, err := repo.ListRounds(ctx, "ROOM1")
		if err != nil {
			t.Fatalf("ListRounds failed: %v", err)
		}
		if len(rounds) == 1 {
			if rounds[0].TaskTitle != "Feature: Auth" {
				t.Errorf("Unexpected archived round: %+v", rounds[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected 1 archived round, got %d", len(rounds))
		}
		time.Sleep(10 * time.Millisecond)
	}
}
