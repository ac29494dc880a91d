package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// WireConn is the write half of a websocket connection. An interface so
// registry and session tests run against stubs.
type WireConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// PresenceSink receives the online/offline transitions the registry derives
// from handle counts.
type PresenceSink interface {
	SetOnline(userID uuid.UUID, online bool) error
}

// Session is one live connection (one device) of one user. Outbound events
// go through a buffered channel drained by a single writer pump, which
// keeps per-connection delivery FIFO in server-generated order.
type Session struct {
	UserID   uuid.UUID
	Username string

	conn      WireConn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(userID uuid.UUID, username string, conn WireConn, depth int) *Session {
	return &Session{
		UserID:   userID,
		Username: username,
		conn:     conn,
		send:     make(chan []byte, depth),
		done:     make(chan struct{}),
	}
}

// Send queues an event for the writer pump. A full mailbox means the client
// stopped reading; the session is closed and the read pump's cleanup path
// unregisters it.
func (s *Session) Send(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		slog.Warn("mailbox overflow, dropping connection", "user_id", s.UserID.String())
		s.Close()
		return false
	}
}

// Close shuts the session down exactly once. Safe from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Outbound() <-chan []byte { return s.send }

// Registry maps each user to their live sessions. It is the only shared
// mutable state between connection handlers; every mutation holds the lock.
// Presence writes happen outside the lock, serialized per user, and always
// persist the registry's current state rather than the transition that
// triggered them, so a stale write cannot overwrite a newer one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]map[*Session]struct{}
	presence PresenceSink

	presenceMu    sync.Mutex
	presenceLocks map[uuid.UUID]*sync.Mutex
}

func NewRegistry(presence PresenceSink) *Registry {
	return &Registry{
		sessions:      make(map[uuid.UUID]map[*Session]struct{}),
		presence:      presence,
		presenceLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (r *Registry) presenceLock(userID uuid.UUID) *sync.Mutex {
	r.presenceMu.Lock()
	defer r.presenceMu.Unlock()
	lock, ok := r.presenceLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.presenceLocks[userID] = lock
	}
	return lock
}

// syncPresence persists the user's current online state. The per-user lock
// keeps concurrent first-register and last-unregister writes in order; the
// state is re-read under the lock so the last write always wins with fresh
// data.
func (r *Registry) syncPresence(userID uuid.UUID) {
	lock := r.presenceLock(userID)
	lock.Lock()
	defer lock.Unlock()
	if err := r.presence.SetOnline(userID, r.Online(userID)); err != nil {
		slog.Error("presence update failed", "user_id", userID.String(), "error", err)
	}
}

// Register adds a session. The first handle for a user marks them online
// and stamps last-seen; additional devices do not re-trigger it.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	set, ok := r.sessions[s.UserID]
	if !ok {
		set = make(map[*Session]struct{})
		r.sessions[s.UserID] = set
	}
	set[s] = struct{}{}
	first := len(set) == 1
	r.mu.Unlock()

	if first {
		r.syncPresence(s.UserID)
	}
}

// Unregister removes a session. Removing the last handle marks the user
// offline and stamps last-seen. Called exactly once per connection from the
// read pump's deferred cleanup.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	last := false
	if set, ok := r.sessions[s.UserID]; ok {
		if _, present := set[s]; present {
			delete(set, s)
			if len(set) == 0 {
				delete(r.sessions, s.UserID)
				last = true
			}
		}
	}
	r.mu.Unlock()

	s.Close()
	if last {
		r.syncPresence(s.UserID)
	}
}

// Publish queues the event on every live session of the user and reports
// how many accepted it. Zero live sessions is a no-op; the caller decides
// whether to fall back to push notification.
func (r *Registry) Publish(userID uuid.UUID, payload []byte) int {
	r.mu.RLock()
	set := r.sessions[userID]
	targets := make([]*Session, 0, len(set))
	for s := range set {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if s.Send(payload) {
			delivered++
		}
	}
	return delivered
}

// Online reports whether the user has at least one live session.
func (r *Registry) Online(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}
