// Package conversation holds per-session chat history in memory for the
// lifetime of the process. Sessions are created lazily, capped to a fixed
// number of exchanges, and swept away after a period of inactivity.
package conversation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shillcollin/parley/internal/core"
)

// Exchange is one user-message/bot-response pair stored as a single
// history unit. Entries are immutable once appended; only FIFO truncation
// and explicit clears remove them.
type Exchange struct {
	ID          string      `json:"id"`
	UserMessage string      `json:"userMessage"`
	BotResponse string      `json:"botResponse"`
	Reasoning   string      `json:"reasoning,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Usage       *core.Usage `json:"usage,omitempty"`
}

type session struct {
	exchanges    []Exchange
	createdAt    time.Time
	lastActivity time.Time
}

// Stats summarizes the store contents at a point in time.
type Stats struct {
	TotalSessions  int `json:"totalSessions"`
	TotalMessages  int `json:"totalMessages"`
	ActiveSessions int `json:"activeSessions"`
}

// Options configures a Store.
type Options struct {
	// MaxHistory bounds the number of exchanges kept per session.
	MaxHistory int
	// SessionTimeout is the inactivity window after which a session is
	// eligible for removal by the cleanup sweep.
	SessionTimeout time.Duration
	// CleanupInterval is the cadence of the background sweep.
	CleanupInterval time.Duration
	Logger          *slog.Logger
}

// Store owns all session data. It is safe for concurrent use; each method
// acquires the store mutex so the history cap and lastActivity ordering
// hold after every call.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	maxHistory      int
	sessionTimeout  time.Duration
	cleanupInterval time.Duration
	log             *slog.Logger

	// now is replaceable in tests to backdate activity.
	now func() time.Time

	stop chan struct{}
	done chan struct{}
}

// NewStore builds a Store. Call Start to launch the expiry sweep and Stop
// to terminate it.
func NewStore(opts Options) *Store {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 10
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = 24 * time.Hour
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		sessions:        make(map[string]*session),
		maxHistory:      opts.MaxHistory,
		sessionTimeout:  opts.SessionTimeout,
		cleanupInterval: opts.CleanupInterval,
		log:             opts.Logger,
		now:             time.Now,
	}
}

// AddMessage appends entry to the session log, creating the session when
// absent. The stored entry gets a generated ID, and a timestamp of now if
// none was set. When the log would exceed the cap, the oldest entries are
// dropped. Returns the entry as stored.
func (s *Store) AddMessage(sessionID string, entry Exchange) Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{createdAt: now}
		s.sessions[sessionID] = sess
	}

	entry.ID = uuid.NewString()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}

	sess.exchanges = append(sess.exchanges, entry)
	if len(sess.exchanges) > s.maxHistory {
		// Keep only the most recent entries. Copy into a fresh slice so
		// truncation releases the evicted backing array elements.
		trimmed := make([]Exchange, s.maxHistory)
		copy(trimmed, sess.exchanges[len(sess.exchanges)-s.maxHistory:])
		sess.exchanges = trimmed
	}
	sess.lastActivity = now

	s.log.Debug("message added",
		"session_id", sessionID,
		"total_messages", len(sess.exchanges),
	)
	return entry
}

// GetHistory returns the session's exchanges in chronological order, the
// last limit entries when limit > 0. Unknown sessions yield an empty
// slice. Reading a known session refreshes its lastActivity: an
// active-but-read-only session stays alive.
func (s *Store) GetHistory(sessionID string, limit int) []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []Exchange{}
	}
	sess.lastActivity = s.now()

	exchanges := sess.exchanges
	if limit > 0 && len(exchanges) > limit {
		exchanges = exchanges[len(exchanges)-limit:]
	}
	out := make([]Exchange, len(exchanges))
	copy(out, exchanges)
	return out
}

// DeleteConversation removes the session entirely, reporting whether it
// existed.
func (s *Store) DeleteConversation(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.log.Info("conversation deleted", "session_id", sessionID, "existed", ok)
	return ok
}

// ClearHistory empties the session's log in place. The session itself
// survives with refreshed activity, so a subsequent GetHistory returns
// empty rather than "not found".
func (s *Store) ClearHistory(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	sess.exchanges = nil
	sess.lastActivity = s.now()
	s.log.Info("history cleared", "session_id", sessionID)
	return true
}

// SessionIDs returns the identifiers of every stored session.
func (s *Store) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Stats reports totals across the store. Read-only.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{TotalSessions: len(s.sessions)}
	now := s.now()
	for _, sess := range s.sessions {
		stats.TotalMessages += len(sess.exchanges)
		if s.isActive(sess, now) {
			stats.ActiveSessions++
		}
	}
	return stats
}

// CleanupExpiredSessions removes every session whose inactivity exceeds
// the session timeout and returns the number removed.
func (s *Store) CleanupExpiredSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cleaned := 0
	for id, sess := range s.sessions {
		if !s.isActive(sess, now) {
			delete(s.sessions, id)
			cleaned++
		}
	}
	if cleaned > 0 {
		s.log.Info("expired sessions cleaned", "count", cleaned)
	}
	return cleaned
}

func (s *Store) isActive(sess *session, now time.Time) bool {
	return now.Sub(sess.lastActivity) < s.sessionTimeout
}

// Start launches the background expiry sweep. It runs until Stop is
// called and never blocks request-serving goroutines.
func (s *Store) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.CleanupExpiredSessions()
			case <-stop:
				return
			}
		}
	}(s.stop, s.done)

	s.log.Info("conversation cleanup sweep started", "interval", s.cleanupInterval)
}

// Stop terminates the expiry sweep and waits for it to exit. Safe to call
// when Start was never called.
func (s *Store) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
