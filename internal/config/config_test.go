package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}
	if cfg.DBPath != "data/poker.db" {
		t.Errorf("Expected default db path, got %q", cfg.DBPath)
	}
	if cfg.UndoWindow != 10*time.Second {
		t.Errorf("Expected 10s undo window, got %v", cfg.UndoWindow)
	}
	if cfg.ReconnectGrace != 30*time.Second {
		t.Errorf("Expected 30s reconnect grace, got %v", cfg.ReconnectGrace)
	}
	if cfg.RoomIdleTimeout != 10*time.Minute {
		t.Errorf("Expected 10m idle timeout, got %v", cfg.RoomIdleTimeout)
	}
	if cfg.MaxParticipants != 20 {
		t.Errorf("Expected 20 max participants, got %d", cfg.MaxParticipants)
	}
	if cfg.ReplayCapacity != 256 {
		t.Errorf("Expected replay capacity 256, got %d", cfg.ReplayCapacity)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("UNDO_WINDOW", "5s")
	t.Setenv("MAX_PARTICIPANTS", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Port)
	}
	if cfg.UndoWindow != 5*time.Second {
		t.Errorf("Expected 5s undo window, got %v", cfg.UndoWindow)
	}
	if cfg.MaxParticipants != 8 {
		t.Errorf("Expected 8 max participants, got %d", cfg.MaxParticipants)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("Expected an error for a non-numeric port")
	}
}
