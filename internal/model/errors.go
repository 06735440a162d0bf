package model

import "errors"

var (
	// ErrPermissionDenied is returned when a non-host invokes a host-only command.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a room, task, or participant is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a command is invalid for the current room, round, or task phase.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidVote is returned when a vote value is outside the room's deck.
	ErrInvalidVote = errors.New("invalid vote")

	// ErrExpired is returned when an undo or resume arrives after its window has elapsed.
	ErrExpired = errors.New("expired")

	// ErrConflict is returned when a racing privileged claim loses, such as a
	// duplicate host-token redemption or a duplicate resume.
	ErrConflict = errors.New("conflict")

	// ErrRoomFull is returned when a join would exceed the room participant limit.
	ErrRoomFull = errors.New("room full")
)
