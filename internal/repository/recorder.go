package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourboymarti/poker-everest/internal/model"
)

// Recorder subscribes to room deltas and archives every closed round. It
// satisfies room.Publisher; the write happens on its own goroutine so no
// database I/O runs inside a room's command critical section.
type Recorder struct {
	repo    *HistoryRepository
	timeout time.Duration
}

// NewRecorder creates a Recorder writing through the given repository.
func NewRecorder(repo *HistoryRepository) *Recorder {
	return &Recorder{repo: repo, timeout: 5 * time.Second}
}

// Publish archives round-closed deltas and ignores everything else.
func (r *Recorder) Publish(d model.Delta) {
	if d.Type != model.DeltaRoundClosed {
		return
	}
	payload, ok := d.Payload.(model.RoundClosedPayload)
	if !ok {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.repo.RecordRound(ctx, d.RoomID, payload.TaskID, payload.Title, payload.Result); err != nil {
			slog.Error("failed to archive round", "room", d.RoomID, "task", payload.TaskID, "error", err)
		}
	}()
}
