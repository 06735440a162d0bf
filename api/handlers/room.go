// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourboymarti/poker-everest/internal/model"
	"github.com/yourboymarti/poker-everest/internal/repository"
	"github.com/yourboymarti/poker-everest/internal/room"
)

// RoomHandler handles HTTP requests for room management.
type RoomHandler struct {
	registry *room.Registry
	repo     *repository.HistoryRepository
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(registry *room.Registry, repo *repository.HistoryRepository) *RoomHandler {
	return &RoomHandler{
		registry: registry,
		repo:     repo,
	}
}

// CreateRoomRequest represents the request body for creating a room.
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateRoomResponse carries the shareable room code and the one-time host
// token the creator redeems on first join.
type CreateRoomResponse struct {
	RoomID    string `json:"roomId"`
	HostToken string `json:"hostToken"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version uint64 `json:"version"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// Create handles POST /api/rooms - creates a new estimation room.
func (h *RoomHandler) Create(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Room name is required")
		return
	}

	roomID, hostToken := h.registry.CreateRoom(req.Name)

	if h.repo != nil {
		if err := h.repo.CreateRoom(c.Request.Context(), roomID, req.Name); err != nil {
			slog.Error("failed to archive room record", "room", roomID, "error", err)
		}
	}

	c.JSON(http.StatusCreated, CreateRoomResponse{
		RoomID:    roomID,
		HostToken: hostToken,
	})
}

// Get handles GET /api/rooms/:id - returns a live room summary.
func (h *RoomHandler) Get(c *gin.Context) {
	roomID := c.Param("id")

	rm, err := h.registry.Resolve(roomID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			sendError(c, http.StatusNotFound, "ROOM_NOT_FOUND", "Room "+roomID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve room: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, RoomResponse{
		ID:      rm.ID(),
		Name:    rm.Name(),
		Version: rm.Version(),
	})
}

// History handles GET /api/rooms/:id/history - returns the archived rounds of
// a room, including rooms that have since been evicted.
func (h *RoomHandler) History(c *gin.Context) {
	roomID := c.Param("id")

	if _, _, err := h.repo.GetRoom(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			sendError(c, http.StatusNotFound, "ROOM_NOT_FOUND", "Room "+roomID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load room: "+err.Error())
		return
	}

	rounds, err := h.repo.ListRounds(c.Request.Context(), roomID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load history: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"roomId":      roomID,
		"rounds":      rounds,
		"retrievedAt": time.Now().Format(time.RFC3339),
	})
}

// RegisterRoutes registers the room handler routes on a Gin router group.
func (h *RoomHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/rooms", h.Create)
	rg.GET("/rooms/:id", h.Get)
	rg.GET("/rooms/:id/history", h.History)
}
