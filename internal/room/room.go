// Package room implements the authoritative room state machine and the
// registry that owns all live rooms.
//
// Every command against a room is serialized by a per-room mutex: a command
// either fully succeeds, bumps the state version, and publishes a delta, or
// fails leaving the room untouched. Timer firings (undo expiry, reconnect
// grace, vote timer) re-enter through the same mutex and are guarded by
// generation counters so a cancelled timer is a no-op.
package room

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourboymarti/poker-everest/internal/model"
)

// Publisher receives every delta a room commits, in version order. Publish is
// called with the room lock held and must not block; implementations fan out
// through buffered channels or hand off to a goroutine.
type Publisher interface {
	Publish(delta model.Delta)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(model.Delta)

// Publish calls f(delta).
func (f PublisherFunc) Publish(delta model.Delta) { f(delta) }

// Config holds the tunable windows and limits for rooms.
type Config struct {
	UndoWindow      time.Duration
	ReconnectGrace  time.Duration
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
	MaxParticipants int
	Deck            model.Deck
}

func (c Config) withDefaults() Config {
	if c.UndoWindow == 0 {
		c.UndoWindow = 10 * time.Second
	}
	if c.ReconnectGrace == 0 {
		c.ReconnectGrace = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 10 * time.Minute
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.MaxParticipants == 0 {
		c.MaxParticipants = 20
	}
	if c.Deck == nil {
		c.Deck = model.DaysDeck
	}
	return c
}

// participant is the room-side view of a roster member, including the
// credentials and timers that never leave the server.
type participant struct {
	model.Participant
	sessionToken string
	// bound is true while a live transport is attached. A resume against a
	// bound identity loses the race and fails with ErrConflict.
	bound      bool
	graceGen   int
	graceTimer *time.Timer
}

// activeRound is the voting sub-state-machine for the task being estimated.
type activeRound struct {
	taskID   string
	votes    map[string]string
	revealed bool
	average  *float64
	endsAt   *time.Time
	timer    *time.Timer
	seq      int
}

// Room is the single authoritative state for one estimation session.
type Room struct {
	id   string
	name string
	cfg  Config
	pub  Publisher

	mu           sync.Mutex
	hostToken    string
	hostID       string
	participants map[string]*participant
	// tasks is the ordered queue. Tombstoned tasks keep their position until
	// the undo window expires; purged tasks leave the slice for good.
	tasks      []*model.Task
	purged     map[string]struct{}
	tombPrev   map[string]model.TaskState
	tombGen    map[string]int
	tombTimers map[string]*time.Timer
	round      *activeRound
	roundSeq   int
	version    uint64
	lastActive time.Time
	closed     bool
}

func newRoom(id, name, hostToken string, cfg Config, pub Publisher) *Room {
	return &Room{
		id:           id,
		name:         name,
		cfg:          cfg,
		pub:          pub,
		hostToken:    hostToken,
		participants: make(map[string]*participant),
		purged:       make(map[string]struct{}),
		tombPrev:     make(map[string]model.TaskState),
		tombGen:      make(map[string]int),
		tombTimers:   make(map[string]*time.Timer),
		lastActive:   time.Now(),
	}
}

// ID returns the room's identifier.
func (r *Room) ID() string { return r.id }

// Name returns the room's display name.
func (r *Room) Name() string { return r.name }

// Version returns the current state version.
func (r *Room) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// emit bumps the state version and publishes a delta. Callers hold r.mu.
func (r *Room) emit(t model.DeltaType, payload any) {
	r.version++
	r.lastActive = time.Now()
	if r.pub != nil {
		r.pub.Publish(model.Delta{
			Type:    t,
			RoomID:  r.id,
			Version: r.version,
			Payload: payload,
		})
	}
}

// hostAlive reports whether a host exists and has not timed out for good.
// Callers hold r.mu.
func (r *Room) hostAlive() bool {
	if r.hostID == "" {
		return false
	}
	h, ok := r.participants[r.hostID]
	return ok && h.Status != model.StatusGone
}

// requireHost validates that the requester exists and holds the host role.
// Callers hold r.mu.
func (r *Room) requireHost(requesterID string) error {
	if r.closed {
		return model.ErrNotFound
	}
	p, ok := r.participants[requesterID]
	if !ok || p.Status == model.StatusGone {
		return model.ErrNotFound
	}
	if p.Role != model.RoleHost {
		return model.ErrPermissionDenied
	}
	return nil
}

func (r *Room) liveCount() int {
	n := 0
	for _, p := range r.participants {
		if p.Status != model.StatusGone {
			n++
		}
	}
	return n
}

// Join adds a participant to the roster. A caller presenting the room's
// creation token is granted the host role if no live host exists; presenting
// it while a host is alive fails with ErrConflict. Any other caller joins as
// a member.
func (r *Room) Join(displayName, hostToken string) (participantID, sessionToken string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", "", model.ErrNotFound
	}
	if r.liveCount() >= r.cfg.MaxParticipants {
		return "", "", model.ErrRoomFull
	}

	role := model.RoleMember
	if hostToken != "" && hostToken == r.hostToken {
		if r.hostAlive() {
			return "", "", model.ErrConflict
		}
		role = model.RoleHost
	}

	p := &participant{
		Participant: model.Participant{
			ID:       uuid.New().String(),
			Name:     displayName,
			Role:     role,
			Status:   model.StatusConnected,
			JoinedAt: time.Now(),
		},
		sessionToken: uuid.New().String(),
		bound:        true,
	}
	r.participants[p.ID] = p
	if role == model.RoleHost {
		r.hostID = p.ID
	}

	r.emit(model.DeltaParticipantJoined, model.ParticipantPayload{Participant: p.Participant})
	return p.ID, p.sessionToken, nil
}

// Resume rebinds a reconnecting transport to an existing identity. It
// succeeds only while the participant is within the reconnect grace and the
// token matches; a racing resume on an identity that already has a live
// binding fails with ErrConflict. After the grace elapses the identity is
// gone and resume fails with ErrExpired.
func (r *Room) Resume(participantID, sessionToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return model.ErrNotFound
	}
	p, ok := r.participants[participantID]
	if !ok {
		return model.ErrNotFound
	}
	if p.Status == model.StatusGone {
		return model.ErrExpired
	}
	if p.sessionToken != sessionToken {
		return model.ErrNotFound
	}
	if p.bound {
		return model.ErrConflict
	}

	p.graceGen++
	if p.graceTimer != nil {
		p.graceTimer.Stop()
		p.graceTimer = nil
	}
	p.Status = model.StatusConnected
	p.bound = true

	r.emit(model.DeltaParticipantResumed, model.ParticipantPayload{Participant: p.Participant})
	return nil
}

// Disconnect records a transport drop. The participant keeps their identity
// and role through the reconnect grace; once it elapses they are marked gone.
func (r *Room) Disconnect(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	p, ok := r.participants[participantID]
	if !ok || p.Status != model.StatusConnected {
		return
	}

	p.Status = model.StatusDisconnectedGrace
	p.bound = false
	p.graceGen++
	gen := p.graceGen
	p.graceTimer = time.AfterFunc(r.cfg.ReconnectGrace, func() {
		r.expireGrace(participantID, gen)
	})

	r.emit(model.DeltaParticipantDisconnected, model.ParticipantPayload{Participant: p.Participant})
}

// expireGrace finalizes a reconnect grace timeout. It runs as a serialized
// command so a resume racing the expiry sees exactly one outcome.
func (r *Room) expireGrace(participantID string, gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	p, ok := r.participants[participantID]
	if !ok || p.graceGen != gen || p.Status != model.StatusDisconnectedGrace {
		return
	}

	p.Status = model.StatusGone
	p.graceTimer = nil
	// A gone participant's unrevealed vote no longer counts.
	if r.round != nil && !r.round.revealed {
		delete(r.round.votes, participantID)
	}

	r.emit(model.DeltaParticipantGone, model.ParticipantPayload{Participant: p.Participant})
}

// ClaimHost transfers the host role to the requester. The role is sticky: the
// claim only succeeds once the current host is gone (or the room never had
// one); claiming against a live host fails with ErrConflict.
func (r *Room) ClaimHost(requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return model.ErrNotFound
	}
	p, ok := r.participants[requesterID]
	if !ok || p.Status == model.StatusGone {
		return model.ErrNotFound
	}
	if r.hostAlive() && r.hostID != requesterID {
		return model.ErrConflict
	}

	if old, ok := r.participants[r.hostID]; ok && r.hostID != requesterID {
		old.Role = model.RoleMember
	}
	r.hostID = requesterID
	p.Role = model.RoleHost

	r.emit(model.DeltaHostChanged, model.HostChangedPayload{HostID: requesterID})
	return nil
}

// taskIndex finds a live (non-purged) task by id. Callers hold r.mu.
func (r *Room) taskIndex(taskID string) (int, *model.Task) {
	for i, t := range r.tasks {
		if t.ID == taskID {
			return i, t
		}
	}
	return -1, nil
}

// AddTask appends a pending task at the tail of the queue. Host only.
func (r *Room) AddTask(requesterID, title string) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(requesterID); err != nil {
		return nil, err
	}

	t := &model.Task{
		ID:        uuid.New().String(),
		Title:     title,
		State:     model.TaskPending,
		CreatedAt: time.Now(),
	}
	r.tasks = append(r.tasks, t)

	added := *t
	r.emit(model.DeltaTaskAdded, model.TaskPayload{Task: added, Position: len(r.tasks) - 1})
	return &added, nil
}

// DeleteTask tombstones a pending or completed task and starts the undo
// window. The task keeps its queue position and full field set until the
// window expires. Host only. Returns the position the task was removed from.
func (r *Room) DeleteTask(requesterID, taskID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(requesterID); err != nil {
		return 0, err
	}
	i, t := r.taskIndex(taskID)
	if t == nil {
		return 0, model.ErrNotFound
	}
	if t.State != model.TaskPending && t.State != model.TaskCompleted {
		return 0, model.ErrInvalidState
	}

	r.tombPrev[taskID] = t.State
	t.State = model.TaskTombstoned
	r.tombGen[taskID]++
	gen := r.tombGen[taskID]
	r.tombTimers[taskID] = time.AfterFunc(r.cfg.UndoWindow, func() {
		r.expireTombstone(taskID, gen)
	})

	r.emit(model.DeltaTaskTombstoned, model.TaskRemovedPayload{TaskID: taskID, Position: i})
	return i, nil
}

// UndoDelete restores a tombstoned task to its exact prior lifecycle state
// and queue position. After the undo window has elapsed it fails with
// ErrExpired and the task stays purged. Host only.
func (r *Room) UndoDelete(requesterID, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(requesterID); err != nil {
		return err
	}
	if _, gone := r.purged[taskID]; gone {
		return model.ErrExpired
	}
	i, t := r.taskIndex(taskID)
	if t == nil || t.State != model.TaskTombstoned {
		return model.ErrNotFound
	}

	t.State = r.tombPrev[taskID]
	delete(r.tombPrev, taskID)
	r.tombGen[taskID]++
	if timer := r.tombTimers[taskID]; timer != nil {
		timer.Stop()
		delete(r.tombTimers, taskID)
	}

	restored := *t
	r.emit(model.DeltaTaskRestored, model.TaskPayload{Task: restored, Position: i})
	return nil
}

// expireTombstone purges a tombstoned task once the undo window elapses. The
// generation check makes a timer that lost the race to an undo a no-op.
func (r *Room) expireTombstone(taskID string, gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.tombGen[taskID] != gen {
		return
	}
	i, t := r.taskIndex(taskID)
	if t == nil || t.State != model.TaskTombstoned {
		return
	}

	t.State = model.TaskPurged
	r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
	r.purged[taskID] = struct{}{}
	delete(r.tombPrev, taskID)
	delete(r.tombTimers, taskID)

	r.emit(model.DeltaTaskPurged, model.TaskRemovedPayload{TaskID: taskID, Position: i})
}

// StartRound opens a voting round on a pending task. At most one round is
// active per room. A non-zero timer auto-reveals the round when it fires.
// Host only.
func (r *Room) StartRound(requesterID, taskID string, timer time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(requesterID); err != nil {
		return err
	}
	if r.round != nil {
		return model.ErrInvalidState
	}
	_, t := r.taskIndex(taskID)
	if t == nil {
		return model.ErrNotFound
	}
	if t.State != model.TaskPending {
		return model.ErrInvalidState
	}

	t.State = model.TaskActive
	r.roundSeq++
	rd := &activeRound{
		taskID: taskID,
		votes:  make(map[string]string),
		seq:    r.roundSeq,
	}
	if timer > 0 {
		endsAt := time.Now().Add(timer)
		rd.endsAt = &endsAt
		seq := rd.seq
		rd.timer = time.AfterFunc(timer, func() {
			r.autoReveal(seq)
		})
	}
	r.round = rd

	r.emit(model.DeltaRoundStarted, model.RoundStartedPayload{
		TaskID: taskID,
		Title:  t.Title,
		EndsAt: rd.endsAt,
	})
	return nil
}

// SubmitVote records or overwrites a participant's vote for the active round.
// Votes are hidden from other participants until reveal. A vote ordered after
// the reveal is rejected with ErrInvalidState, never silently merged.
func (r *Room) SubmitVote(participantID, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return model.ErrNotFound
	}
	p, ok := r.participants[participantID]
	if !ok || p.Status == model.StatusGone {
		return model.ErrNotFound
	}
	if r.round == nil || r.round.revealed {
		return model.ErrInvalidState
	}
	if !r.cfg.Deck.Contains(value) {
		return model.ErrInvalidVote
	}

	r.round.votes[participantID] = value

	r.emit(model.DeltaVoteRecorded, model.VoteRecordedPayload{ParticipantID: participantID})
	return nil
}

// RevealRound closes vote collection and computes the average over the
// numeric votes present at this instant. Host only.
func (r *Room) RevealRound(requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(requesterID); err != nil {
		return err
	}
	if r.round == nil || r.round.revealed {
		return model.ErrInvalidState
	}

	r.revealLocked()
	return nil
}

// autoReveal is the voting timer firing as a serialized command. The sequence
// check makes it a no-op when a manual reveal or a round end won the race.
func (r *Room) autoReveal(seq int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.round == nil || r.round.seq != seq || r.round.revealed {
		return
	}
	r.revealLocked()
}

// revealLocked flips the active round to revealed. Callers hold r.mu and have
// checked that a round is active and unrevealed.
func (r *Room) revealLocked() {
	rd := r.round
	if rd.timer != nil {
		rd.timer.Stop()
		rd.timer = nil
	}
	rd.endsAt = nil
	rd.revealed = true
	rd.average = model.Average(rd.votes)

	r.emit(model.DeltaRoundRevealed, model.RoundRevealedPayload{
		TaskID:  rd.taskID,
		Votes:   copyVotes(rd.votes),
		Average: rd.average,
	})
}

// EndRound folds a revealed round into its task's history and marks the task
// completed. When no pending task remains the room reports an empty queue.
// Host only.
func (r *Room) EndRound(requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(requesterID); err != nil {
		return err
	}
	if r.round == nil || !r.round.revealed {
		return model.ErrInvalidState
	}

	rd := r.round
	result := model.RoundResult{
		Votes:    copyVotes(rd.votes),
		Average:  rd.average,
		ClosedAt: time.Now(),
	}
	_, t := r.taskIndex(rd.taskID)
	title := ""
	if t != nil {
		t.History = append(t.History, result)
		t.State = model.TaskCompleted
		title = t.Title
	}
	r.round = nil

	r.emit(model.DeltaRoundClosed, model.RoundClosedPayload{TaskID: rd.taskID, Title: title, Result: result})

	pending := false
	for _, task := range r.tasks {
		if task.State == model.TaskPending {
			pending = true
			break
		}
	}
	if !pending {
		r.emit(model.DeltaQueueEmpty, nil)
	}
	return nil
}

// Attach serializes transport registration against command processing. fn
// receives the current version and a snapshot factory and runs under the
// command lock, so no delta can be committed between computing a session's
// catch-up and registering it for broadcasts.
func (r *Room) Attach(fn func(version uint64, snapshot func() model.Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.version, r.snapshotLocked)
}

// Snapshot builds a full view of the room for a session that just joined or
// whose replay gap cannot be covered. Unrevealed votes are reduced to the set
// of voters.
func (r *Room) Snapshot() model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() model.Snapshot {
	snap := model.Snapshot{
		RoomID:  r.id,
		Name:    r.name,
		Version: r.version,
		HostID:  r.hostID,
		Deck:    r.cfg.Deck,
	}
	for _, p := range r.participants {
		if p.Status == model.StatusGone {
			continue
		}
		snap.Participants = append(snap.Participants, p.Participant)
	}
	for _, t := range r.tasks {
		snap.Tasks = append(snap.Tasks, *t)
	}
	if r.round != nil {
		view := &model.RoundView{
			TaskID:   r.round.taskID,
			Revealed: r.round.revealed,
			EndsAt:   r.round.endsAt,
		}
		if r.round.revealed {
			view.Votes = copyVotes(r.round.votes)
			view.Average = r.round.average
		} else {
			for id := range r.round.votes {
				view.Voted = append(view.Voted, id)
			}
		}
		snap.Round = view
	}
	return snap
}

// Idle reports whether the room has no connected or grace-period participants
// and has been inactive past the idle timeout.
func (r *Room) Idle(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.participants {
		if p.Status != model.StatusGone {
			return false
		}
	}
	return now.Sub(r.lastActive) >= r.cfg.IdleTimeout
}

// close marks the room evicted and stops every outstanding timer. In-flight
// commands fail with ErrNotFound afterwards.
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for _, p := range r.participants {
		if p.graceTimer != nil {
			p.graceTimer.Stop()
			p.graceTimer = nil
		}
	}
	for id, timer := range r.tombTimers {
		timer.Stop()
		delete(r.tombTimers, id)
	}
	if r.round != nil && r.round.timer != nil {
		r.round.timer.Stop()
		r.round.timer = nil
	}
}

func copyVotes(votes map[string]string) map[string]string {
	out := make(map[string]string, len(votes))
	for k, v := range votes {
		out[k] = v
	}
	return out
}
