package session

import (
	"sync"
	"time"

	"github.com/querymind/backend/internal/logger"
)

// Role of a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// DefaultMaxTurns is how many turns a session retains. Older turns are
	// dropped oldest-first once the cap is exceeded.
	DefaultMaxTurns = 20

	// DefaultExpiry is how long a session survives without activity.
	DefaultExpiry = time.Hour

	// DefaultSweepInterval is how often the background sweep runs.
	DefaultSweepInterval = 10 * time.Minute
)

// Turn is one role-tagged message within a session. Immutable once appended.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is a named, expiring container of conversation turns.
type Session struct {
	ID           string    `json:"id"`
	Turns        []Turn    `json:"turns"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// Stats is a diagnostic snapshot of the store.
type Stats struct {
	SessionCount   int `json:"sessionCount"`
	TotalTurnCount int `json:"totalTurnCount"`
}

// Store maintains short-lived multi-turn conversation context, bounded in
// size and lifetime. All operations are safe for concurrent use; a single
// mutex guards the whole table, which is fine at this contention level.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	maxTurns int
	expiry   time.Duration
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects a clock, used by tests to advance time without waiting.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMaxTurns overrides the per-session turn cap.
func WithMaxTurns(n int) Option {
	return func(s *Store) { s.maxTurns = n }
}

// WithExpiry overrides the session expiry window.
func WithExpiry(d time.Duration) Option {
	return func(s *Store) { s.expiry = d }
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		maxTurns: DefaultMaxTurns,
		expiry:   DefaultExpiry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the session for id, creating an empty one if absent.
// Always succeeds; refreshes LastActiveAt.
func (s *Store) GetOrCreate(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(id).snapshot()
}

func (s *Store) getOrCreateLocked(id string) *Session {
	sess, ok := s.sessions[id]
	if !ok {
		now := s.now()
		sess = &Session{
			ID:           id,
			CreatedAt:    now,
			LastActiveAt: now,
		}
		s.sessions[id] = sess
	}
	sess.LastActiveAt = s.now()
	return sess
}

// Append pushes a new turn onto the session, creating it if absent, then
// truncates to the most recent cap if exceeded.
func (s *Store) Append(id, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(id)
	sess.Turns = append(sess.Turns, Turn{
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	})
	if len(sess.Turns) > s.maxTurns {
		sess.Turns = sess.Turns[len(sess.Turns)-s.maxTurns:]
	}
}

// History returns the current turns for id, or an empty slice if the session
// does not exist. A pure read: it must not create a session entry, otherwise
// mere lookups would leak empty sessions into the table.
func (s *Store) History(id string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return []Turn{}
	}
	turns := make([]Turn, len(sess.Turns))
	copy(turns, sess.Turns)
	return turns
}

// Clear empties the turns of an existing session; no-op if absent. The
// session itself stays in the table until it expires or is deleted.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.Turns = nil
	}
}

// Delete removes the session entirely.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// SweepExpired removes all sessions whose LastActiveAt is older than the
// expiry window and returns the count removed.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActiveAt) > s.expiry {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// GetStats returns a diagnostic snapshot.
func (s *Store) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, sess := range s.sessions {
		total += len(sess.Turns)
	}
	return Stats{
		SessionCount:   len(s.sessions),
		TotalTurnCount: total,
	}
}

// Run sweeps expired sessions on a fixed interval until stop is closed.
// Started by the composition root alongside the HTTP server.
func (s *Store) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.SweepExpired(); removed > 0 {
				logger.Info("Swept expired sessions", map[string]interface{}{
					"removed": removed,
				})
			}
		case <-stop:
			return
		}
	}
}

func (sess *Session) snapshot() Session {
	cp := *sess
	cp.Turns = make([]Turn, len(sess.Turns))
	copy(cp.Turns, sess.Turns)
	return cp
}
