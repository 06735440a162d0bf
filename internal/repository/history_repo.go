// Package repository provides data access for the room and round archive.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourboymarti/poker-everest/internal/model"
)

// HistoryRepository persists room records and the results of closed rounds.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// ArchivedRound is one closed round as stored in the archive.
type ArchivedRound struct {
	RoomID    string            `json:"roomId"`
	TaskID    string            `json:"taskId"`
	TaskTitle string            `json:"taskTitle"`
	Average   *float64          `json:"average,omitempty"`
	Votes     map[string]string `json:"votes"`
	ClosedAt  time.Time         `json:"closedAt"`
}

// CreateRoom inserts a room record.
func (r *HistoryRepository) CreateRoom(ctx context.Context, id, name string) error {
	query := `
		INSERT INTO rooms (id, name, created_at)
		VALUES (?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, id, name, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create room record: %w", err)
	}

	return nil
}

// CloseRoom stamps a room record as closed. Called on eviction.
func (r *HistoryRepository) CloseRoom(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE rooms SET closed_at = ? WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to close room record: %w", err)
	}

	return nil
}

// GetRoom retrieves a room record by id.
func (r *HistoryRepository) GetRoom(ctx context.Context, id string) (name string, createdAt time.Time, err error) {
	query := `
		SELECT name, created_at FROM rooms WHERE id = ?
	`

	err = r.db.QueryRowContext(ctx, query, id).Scan(&name, &createdAt)
	if err == sql.ErrNoRows {
		return "", time.Time{}, model.ErrNotFound
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to get room record: %w", err)
	}

	return name, createdAt, nil
}

// RecordRound appends a closed round to the archive.
func (r *HistoryRepository) RecordRound(ctx context.Context, roomID, taskID, taskTitle string, result model.RoundResult) error {
	votesJSON, err := json.Marshal(result.Votes)
	if err != nil {
		return fmt.Errorf("failed to serialize votes: %w", err)
	}

	query := `
		INSERT INTO round_history (room_id, task_id, task_title, average, votes, closed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		roomID,
		taskID,
		taskTitle,
		result.Average,
		string(votesJSON),
		result.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record round: %w", err)
	}

	return nil
}

// ListRounds retrieves the archived rounds of a room, oldest first.
func (r *HistoryRepository) ListRounds(ctx context.Context, roomID string) ([]*ArchivedRound, error) {
	query := `
		SELECT room_id, task_id, task_title, average, votes, closed_at
		FROM round_history
		WHERE room_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*ArchivedRound
	for rows.Next() {
		round := &ArchivedRound{}
		var average sql.NullFloat64
		var votesJSON string

		if err := rows.Scan(
			&round.RoomID,
			&round.TaskID,
			&round.TaskTitle,
			&average,
			&votesJSON,
			&round.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}

		if average.Valid {
			round.Average = &average.Float64
		}
		if err := json.Unmarshal([]byte(votesJSON), &round.Votes); err != nil {
			return nil, fmt.Errorf("failed to parse votes: %w", err)
		}

		rounds = append(rounds, round)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rounds: %w", err)
	}

	return rounds, nil
}
