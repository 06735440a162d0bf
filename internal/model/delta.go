package model

import "time"

// DeltaType identifies the room mutation a delta describes.
type DeltaType string

const (
	DeltaParticipantJoined       DeltaType = "participant-joined"
	DeltaParticipantDisconnected DeltaType = "participant-disconnected"
	DeltaParticipantResumed      DeltaType = "participant-resumed"
	DeltaParticipantGone         DeltaType = "participant-gone"
	DeltaHostChanged             DeltaType = "host-changed"
	DeltaTaskAdded               DeltaType = "task-added"
	DeltaTaskTombstoned          DeltaType = "task-tombstoned"
	DeltaTaskRestored            DeltaType = "task-restored"
	DeltaTaskPurged              DeltaType = "task-purged"
	DeltaRoundStarted            DeltaType = "round-started"
	DeltaVoteRecorded            DeltaType = "vote-recorded"
	DeltaRoundRevealed           DeltaType = "round-revealed"
	DeltaRoundClosed             DeltaType = "round-closed"
	DeltaQueueEmpty              DeltaType = "queue-empty"
)

// Delta is a versioned state-change message fanned out to every session bound
// to a room. Versions are strictly increasing per room; sessions discard any
// delta at or below the last version they applied.
type Delta struct {
	Type    DeltaType `json:"type"`
	RoomID  string    `json:"roomId"`
	Version uint64    `json:"version"`
	Payload any       `json:"payload,omitempty"`
}

// ParticipantPayload accompanies participant lifecycle deltas.
type ParticipantPayload struct {
	Participant Participant `json:"participant"`
}

// HostChangedPayload accompanies host-changed deltas.
type HostChangedPayload struct {
	HostID string `json:"hostId"`
}

// TaskPayload accompanies task-added and task-restored deltas.
type TaskPayload struct {
	Task     Task `json:"task"`
	Position int  `json:"position"`
}

// TaskRemovedPayload accompanies task-tombstoned and task-purged deltas.
type TaskRemovedPayload struct {
	TaskID   string `json:"taskId"`
	Position int    `json:"position"`
}

// RoundStartedPayload accompanies round-started deltas.
type RoundStartedPayload struct {
	TaskID string `json:"taskId"`
	Title  string `json:"title"`
	// EndsAt is set when the round runs a voting timer.
	EndsAt *time.Time `json:"endsAt,omitempty"`
}

// VoteRecordedPayload accompanies vote-recorded deltas. The vote value is
// withheld until reveal; only the voter's identity is visible.
type VoteRecordedPayload struct {
	ParticipantID string `json:"participantId"`
}

// RoundRevealedPayload accompanies round-revealed deltas and carries the full
// vote map. Average is nil when no numeric votes were cast.
type RoundRevealedPayload struct {
	TaskID  string            `json:"taskId"`
	Votes   map[string]string `json:"votes"`
	Average *float64          `json:"average,omitempty"`
}

// RoundClosedPayload accompanies round-closed deltas.
type RoundClosedPayload struct {
	TaskID string      `json:"taskId"`
	Title  string      `json:"title"`
	Result RoundResult `json:"result"`
}

// Snapshot is a full view of a room, sent to a session on join or when its
// replay gap can no longer be covered by buffered deltas. Votes of an
// unrevealed round are reduced to the set of participants who voted.
type Snapshot struct {
	RoomID       string        `json:"roomId"`
	Name         string        `json:"name"`
	Version      uint64        `json:"version"`
	HostID       string        `json:"hostId,omitempty"`
	Participants []Participant `json:"participants"`
	Tasks        []Task        `json:"tasks"`
	Deck         Deck          `json:"deck"`
	Round        *RoundView    `json:"round,omitempty"`
}

// RoundView is the snapshot form of an active round.
type RoundView struct {
	TaskID   string `json:"taskId"`
	Revealed bool   `json:"revealed"`
	// Voted lists who has voted; Votes and Average are only set once revealed.
	Voted   []string          `json:"voted,omitempty"`
	Votes   map[string]string `json:"votes,omitempty"`
	Average *float64          `json:"average,omitempty"`
	EndsAt  *time.Time        `json:"endsAt,omitempty"`
}
