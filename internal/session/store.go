package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mealsnap/food-diary/internal/domain"
	"github.com/mealsnap/food-diary/internal/logger"
)

// Store keeps sessions in memory. Sessions idle for longer than the TTL are
// closed and forgotten the next time the store is used.
type Store struct {
	gateway domain.NutritionGateway
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates a store whose sessions share one gateway. A zero TTL
// keeps sessions until they are deleted.
func NewStore(gateway domain.NutritionGateway, ttl time.Duration) *Store {
	return &Store{
		gateway:  gateway,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with a random id.
func (st *Store) Create() *Session {
	return st.GetOrCreate(uuid.NewString())
}

// Get returns a live session. Looking a session up counts as activity.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweep()
	s, ok := st.sessions[id]
	if ok {
		s.markActive()
	}
	return s, ok
}

// GetOrCreate returns the session with the given id, creating it if needed.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweep()
	if s, ok := st.sessions[id]; ok {
		s.markActive()
		return s
	}
	s := New(id, st.gateway)
	s.now = st.now
	s.lastActive = st.now()
	st.sessions[id] = s
	logger.Debug("Session created", "session_id", id)
	return s
}

// Delete closes and removes a session.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return false
	}
	s.Close()
	delete(st.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweep()
	return len(st.sessions)
}

func (st *Store) sweep() {
	if st.ttl <= 0 {
		return
	}
	cutoff := st.now().Add(-st.ttl)
	for id, s := range st.sessions {
		if s.LastActive().Before(cutoff) {
			s.Close()
			delete(st.sessions, id)
			logger.Debug("Session expired", "session_id", id)
		}
	}
}
