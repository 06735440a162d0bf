package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourboymarti/poker-everest/internal/model"
	"github.com/yourboymarti/poker-everest/internal/room"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Time allowed for the join/resume handshake after the upgrade.
	handshakeWait = 15 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking in production
		return true
	},
}

// Handler handles WebSocket connections for estimation rooms.
type Handler struct {
	registry *room.Registry
	service  *Service
}

// NewHandler creates a new WebSocket handler.
func NewHandler(registry *room.Registry, service *Service) *Handler {
	return &Handler{
		registry: registry,
		service:  service,
	}
}

// HandleConnection upgrades the HTTP connection and runs the room session.
// The first client message must be a join or a resume; every later message is
// a room command issued under the identity the handshake bound.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request, roomID string) error {
	rm, err := h.registry.Resolve(roomID)
	if err != nil {
		http.Error(w, "Room not found", http.StatusNotFound)
		return nil
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client, err := h.handshake(conn, rm)
	if err != nil {
		conn.Close()
		return nil
	}

	go h.writePump(client)
	h.readPump(client, rm)
	return nil
}

// handshake reads the first message, binds the connection to a participant
// identity, and registers the client with the room's hub. Catch-up (snapshot
// or delta replay) is computed under the room's command lock so the client
// neither misses nor misapplies a delta around registration.
func (h *Handler) handshake(conn *websocket.Conn, rm *room.Room) (*Client, error) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(handshakeWait))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		writeEvent(conn, &Event{Type: EventError, Code: "bad-request", Error: "malformed handshake"})
		return nil, err
	}

	hub := h.service.HubManager().GetOrCreate(rm.ID())

	switch cmd.Type {
	case CommandJoin:
		participantID, sessionToken, err := rm.Join(cmd.Name, cmd.HostToken)
		if err != nil {
			writeEvent(conn, errorEvent(err))
			return nil, err
		}

		client := NewClient(hub, conn, rm.ID(), participantID)
		client.SendEvent(&Event{
			Type:          EventWelcome,
			ParticipantID: participantID,
			SessionToken:  sessionToken,
		})
		rm.Attach(func(version uint64, snapshot func() model.Snapshot) {
			snap := snapshot()
			client.SetLastVersion(snap.Version)
			client.SendEvent(&Event{Type: EventSnapshot, Snapshot: &snap})
			hub.Register(client)
		})
		return client, nil

	case CommandResume:
		if err := rm.Resume(cmd.ParticipantID, cmd.SessionToken); err != nil {
			writeEvent(conn, errorEvent(err))
			return nil, err
		}

		client := NewClient(hub, conn, rm.ID(), cmd.ParticipantID)
		client.SendEvent(&Event{Type: EventWelcome, ParticipantID: cmd.ParticipantID})
		rm.Attach(func(version uint64, snapshot func() model.Snapshot) {
			deltas, ok := h.service.Replay(rm.ID(), cmd.LastVersion)
			if ok {
				for _, d := range deltas {
					client.SendDelta(d)
				}
				client.SetLastVersion(version)
			} else {
				snap := snapshot()
				client.SetLastVersion(snap.Version)
				client.SendEvent(&Event{Type: EventSnapshot, Snapshot: &snap})
			}
			hub.Register(client)
		})
		return client, nil

	default:
		writeEvent(conn, &Event{Type: EventError, Code: "bad-request", Error: "first message must be join or resume"})
		return nil, errors.New("handshake: unexpected command " + string(cmd.Type))
	}
}

// handleCommand dispatches a post-handshake command against the room. Errors
// are returned only to the issuing client; the rest of the room is unaffected.
func (h *Handler) handleCommand(client *Client, rm *room.Room, cmd *Command) {
	var err error
	switch cmd.Type {
	case CommandAddTask:
		_, err = rm.AddTask(client.ParticipantID(), cmd.Title)
	case CommandDeleteTask:
		_, err = rm.DeleteTask(client.ParticipantID(), cmd.TaskID)
	case CommandUndoDelete:
		err = rm.UndoDelete(client.ParticipantID(), cmd.TaskID)
	case CommandStartRound:
		err = rm.StartRound(client.ParticipantID(), cmd.TaskID, time.Duration(cmd.TimerSeconds)*time.Second)
	case CommandVote:
		err = rm.SubmitVote(client.ParticipantID(), cmd.Value)
	case CommandReveal:
		err = rm.RevealRound(client.ParticipantID())
	case CommandEndRound:
		err = rm.EndRound(client.ParticipantID())
	case CommandClaimHost:
		err = rm.ClaimHost(client.ParticipantID())
	case CommandPing:
		client.SendEvent(&Event{Type: EventPong})
		return
	case CommandJoin, CommandResume:
		err = model.ErrInvalidState
	default:
		client.SendEvent(&Event{Type: EventError, Code: "bad-request", Error: "unknown command"})
		return
	}

	if err != nil {
		client.SendEvent(errorEvent(err))
	}
}

// readPump pumps commands from the WebSocket connection into the room.
func (h *Handler) readPump(client *Client, rm *room.Room) {
	hub := h.service.HubManager().Get(rm.ID())
	defer func() {
		rm.Disconnect(client.ParticipantID())
		if hub != nil {
			hub.Unregister(client)
		}
		client.Conn().Close()
	}()

	client.Conn().SetReadLimit(maxMessageSize)
	client.Conn().SetReadDeadline(time.Now().Add(pongWait))
	client.Conn().SetPongHandler(func(string) error {
		client.Conn().SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.Conn().ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read failed", "room", rm.ID(), "error", err)
			}
			break
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			client.SendEvent(&Event{Type: EventError, Code: "bad-request", Error: "malformed message"})
			continue
		}

		h.handleCommand(client, rm, &cmd)
	}
}

// writePump pumps queued events to the WebSocket connection.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn().Close()
	}()

	for {
		select {
		case message, ok := <-client.SendChan():
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				client.Conn().WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Send each event in a separate frame so clients can parse them
			// one at a time.
			if err := client.Conn().WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(client.SendChan())
			for i := 0; i < n; i++ {
				queued := <-client.SendChan()
				client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.Conn().WriteMessage(websocket.TextMessage, queued); err != nil {
					return
				}
			}
		case <-ticker.C:
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn().WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// errorEvent maps a room error to its wire form.
func errorEvent(err error) *Event {
	return &Event{Type: EventError, Code: errorCode(err), Error: err.Error()}
}

// errorCode maps the room error taxonomy to stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, model.ErrPermissionDenied):
		return "permission-denied"
	case errors.Is(err, model.ErrNotFound):
		return "not-found"
	case errors.Is(err, model.ErrInvalidState):
		return "invalid-state"
	case errors.Is(err, model.ErrInvalidVote):
		return "invalid-vote"
	case errors.Is(err, model.ErrExpired):
		return "expired"
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	case errors.Is(err, model.ErrRoomFull):
		return "room-full"
	default:
		return "internal"
	}
}

// writeEvent writes an event directly on a connection that has no pump yet.
func writeEvent(conn *websocket.Conn, ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, data)
}
