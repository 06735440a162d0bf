package model

import "time"

// Role determines which room commands a participant may issue.
type Role string

const (
	RoleHost   Role = "host"
	RoleMember Role = "member"
)

// ConnectionStatus tracks a participant's transport liveness.
type ConnectionStatus string

const (
	// StatusConnected means a live transport is bound to the participant.
	StatusConnected ConnectionStatus = "connected"

	// StatusDisconnectedGrace means the transport dropped and the participant
	// may still resume with their session token.
	StatusDisconnectedGrace ConnectionStatus = "disconnected-grace"

	// StatusGone means the reconnect grace elapsed; the identity is dead and a
	// fresh join is required.
	StatusGone ConnectionStatus = "gone"
)

// Participant is a member of a room's roster.
type Participant struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Role     Role             `json:"role"`
	Status   ConnectionStatus `json:"status"`
	JoinedAt time.Time        `json:"joinedAt"`
}
