package room

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourboymarti/poker-everest/internal/model"
)

// roomCodeLen is the length of the shareable room code.
const roomCodeLen = 7

// Registry creates rooms, resolves ids to live rooms, and evicts rooms that
// sat idle with no connected or grace-period participants.
type Registry struct {
	cfg Config
	pub Publisher

	mu    sync.RWMutex
	rooms map[string]*Room

	onEvict func(roomID string)

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewRegistry creates a registry. The publisher receives the deltas of every
// room the registry creates.
func NewRegistry(cfg Config, pub Publisher) *Registry {
	return &Registry{
		cfg:   cfg.withDefaults(),
		pub:   pub,
		rooms: make(map[string]*Room),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// SetOnEvict registers a callback invoked after a room is evicted, outside
// any lock. Used to close broadcast hubs and finalize archives.
func (g *Registry) SetOnEvict(fn func(roomID string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onEvict = fn
}

// CreateRoom allocates an empty room and returns its shareable code along
// with the one-time host token the creator redeems on first join.
func (g *Registry) CreateRoom(name string) (roomID, hostToken string) {
	hostToken = uuid.New().String()

	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		roomID = newRoomCode()
		if _, taken := g.rooms[roomID]; !taken {
			break
		}
	}
	g.rooms[roomID] = newRoom(roomID, name, hostToken, g.cfg, g.pub)

	slog.Info("room created", "room", roomID, "name", name)
	return roomID, hostToken
}

// Resolve returns the live room for an id, or ErrNotFound once the room has
// been evicted or never existed.
func (g *Registry) Resolve(roomID string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.rooms[roomID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return r, nil
}

// Start launches the idle sweep loop. Stop shuts it down.
func (g *Registry) Start() {
	g.mu.Lock()
	g.started = true
	g.mu.Unlock()
	go func() {
		defer close(g.done)
		ticker := time.NewTicker(g.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.sweep(time.Now())
			case <-g.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop and closes every room.
func (g *Registry) Stop() {
	g.stopOnce.Do(func() {
		close(g.stop)
		g.mu.RLock()
		started := g.started
		g.mu.RUnlock()
		if started {
			<-g.done
		}

		g.mu.Lock()
		for id, r := range g.rooms {
			r.close()
			delete(g.rooms, id)
		}
		g.mu.Unlock()
	})
}

// sweep evicts every idle room. Eviction frees all room resources; commands
// against an evicted room fail with ErrNotFound.
func (g *Registry) sweep(now time.Time) {
	g.mu.Lock()
	var evicted []string
	for id, r := range g.rooms {
		if r.Idle(now) {
			r.close()
			delete(g.rooms, id)
			evicted = append(evicted, id)
		}
	}
	onEvict := g.onEvict
	g.mu.Unlock()

	for _, id := range evicted {
		slog.Info("room evicted", "room", id)
		if onEvict != nil {
			onEvict(id)
		}
	}
}

// RoomCount returns the number of live rooms.
func (g *Registry) RoomCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// newRoomCode derives a short uppercase shareable code from a fresh uuid.
func newRoomCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:roomCodeLen])
}
