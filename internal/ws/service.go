package ws

import (
	"sync"

	"github.com/yourboymarti/poker-everest/internal/model"
	"github.com/yourboymarti/poker-everest/internal/replay"
)

// Service wires room deltas into the broadcast hubs and the per-room replay
// buffers. It implements room.Publisher; Publish runs with the room lock held
// and only moves data through buffered channels and in-memory rings.
type Service struct {
	hubManager *HubManager
	replayCap  int

	mu      sync.RWMutex
	buffers map[string]*replay.Buffer
}

// NewService creates a broadcast service. replayCap bounds how many deltas
// are retained per room for resume catch-up.
func NewService(replayCap int) *Service {
	if replayCap <= 0 {
		replayCap = 256
	}
	return &Service{
		hubManager: NewHubManager(),
		replayCap:  replayCap,
		buffers:    make(map[string]*replay.Buffer),
	}
}

// HubManager returns the hub manager.
func (s *Service) HubManager() *HubManager {
	return s.hubManager
}

// Publish records the delta for replay and fans it out to every client bound
// to the room.
func (s *Service) Publish(d model.Delta) {
	s.buffer(d.RoomID).Append(d)
	if hub := s.hubManager.Get(d.RoomID); hub != nil {
		hub.BroadcastDelta(d)
	}
}

// buffer returns the replay buffer for a room, creating it on first use.
func (s *Service) buffer(roomID string) *replay.Buffer {
	s.mu.RLock()
	b, ok := s.buffers[roomID]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buffers[roomID]; ok {
		return b
	}
	b = replay.NewBuffer(s.replayCap)
	s.buffers[roomID] = b
	return b
}

// Replay returns the deltas a resuming client missed after lastVersion. The
// second return is false when the buffer no longer covers the gap and the
// caller must fall back to a full snapshot.
func (s *Service) Replay(roomID string, lastVersion uint64) ([]model.Delta, bool) {
	s.mu.RLock()
	b, ok := s.buffers[roomID]
	s.mu.RUnlock()
	if !ok {
		return nil, lastVersion == 0
	}
	return b.Since(lastVersion)
}

// RemoveRoom tears down the hub and replay buffer of an evicted room.
func (s *Service) RemoveRoom(roomID string) {
	s.hubManager.Remove(roomID)

	s.mu.Lock()
	delete(s.buffers, roomID)
	s.mu.Unlock()
}

// Close closes all hubs and drops all replay buffers.
func (s *Service) Close() {
	s.hubManager.Close()

	s.mu.Lock()
	s.buffers = make(map[string]*replay.Buffer)
	s.mu.Unlock()
}
