package signalling

import (
	"sort"
	"sync"
	"time"
)

// heartbeatState tracks liveness bookkeeping for one online user.
type heartbeatState struct {
	lastSeen time.Time
	missed   int
}

// Registry maps authenticated user ids to their live sessions and carries
// the heartbeat bookkeeping alongside. A single mutex guards both maps so
// a user is never observed with a session but no heartbeat record or vice
// versa.
type Registry struct {
	mu         sync.Mutex
	sessions   map[int64]Session
	heartbeats map[int64]*heartbeatState
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[int64]Session),
		heartbeats: make(map[int64]*heartbeatState),
	}
}

// Register binds a session to a user and seeds its heartbeat record. If the
// user already had a session, the previous one is returned so the caller can
// close it; the new session always wins.
func (r *Registry) Register(userID int64, s Session, now time.Time) (prev Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev = r.sessions[userID]
	r.sessions[userID] = s
	r.heartbeats[userID] = &heartbeatState{lastSeen: now}
	return prev
}

// Unregister removes the user's session and heartbeat record, but only if
// the registered session is still s. A connection torn down after being
// replaced by a duplicate login must not evict its replacement.
func (r *Registry) Unregister(userID int64, s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[userID] != s {
		return false
	}
	delete(r.sessions, userID)
	delete(r.heartbeats, userID)
	return true
}

// Get returns the user's live session, if any.
func (r *Registry) Get(userID int64) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// IsOffline reports whether the user has no registered session.
func (r *Registry) IsOffline(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[userID]
	return !ok
}

// Online returns the ids of all registered users in ascending order.
func (r *Registry) Online() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Count returns the number of registered users.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// RecordActivity resets the user's heartbeat state: any inbound message
// counts as proof of life, not just PONG. Unknown users are ignored.
func (r *Registry) RecordActivity(userID int64, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hb, ok := r.heartbeats[userID]
	if !ok {
		return
	}
	hb.lastSeen = now
	hb.missed = 0
}

// SweepAction is the heartbeat monitor's verdict for one user.
type SweepAction int

const (
	// SweepSkip means leave the user alone this round.
	SweepSkip SweepAction = iota
	// SweepPing means the user should be pinged.
	SweepPing
	// SweepEvict means the user exceeded the missed-ping budget and must be
	// disconnected.
	SweepEvict
)

// SweepUser advances the heartbeat bookkeeping for one user and reports
// what the monitor should do. A user without a record is seeded with now
// and skipped; the eviction countdown starts on the next round.
func (r *Registry) SweepUser(userID int64, now time.Time, idleTimeout time.Duration, maxMissed int) SweepAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[userID]; !ok {
		return SweepSkip
	}
	hb, ok := r.heartbeats[userID]
	if !ok {
		r.heartbeats[userID] = &heartbeatState{lastSeen: now}
		return SweepSkip
	}
	if now.Sub(hb.lastSeen) > idleTimeout {
		hb.missed++
		if hb.missed > maxMissed {
			return SweepEvict
		}
	}
	return SweepPing
}
