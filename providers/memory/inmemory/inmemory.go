package inmemory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/leofalp/devchat/providers/memory"
	"github.com/leofalp/devchat/providers/observability"
)

// Store is a process-wide session registry keyed by container id, with a
// secondary index by session id. Eviction is off unless WithMaxSessions or
// WithIdleTTL is given. A session with a running turn is never evicted.
type Store struct {
	mu       sync.Mutex
	sessions *simplelru.LRU[string, *entry] // container id -> entry, oldest first
	byID     map[string]*entry

	maxSessions int
	idleTTL     time.Duration
	now         func() time.Time
}

type entry struct {
	session  *memory.Session
	lastUsed time.Time
}

// lastActive is the later of the last store access and the last completed
// turn.
func (e *entry) lastActive() time.Time {
	if updated := e.session.UpdatedAt(); updated.After(e.lastUsed) {
		return updated
	}
	return e.lastUsed
}

// Option configures a Store.
type Option func(*Store)

// WithMaxSessions bounds the registry; creating a session beyond n evicts
// the least recently used idle one. n <= 0 means unbounded.
func WithMaxSessions(n int) Option {
	return func(s *Store) {
		s.maxSessions = n
	}
}

// WithIdleTTL evicts sessions without activity for d. Expired sessions are
// dropped on the next store access or by Sweep. d <= 0 disables expiry.
func WithIdleTTL(d time.Duration) Option {
	return func(s *Store) {
		s.idleTTL = d
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		byID: make(map[string]*entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// The LRU only orders sessions; the capacity is enforced by the store so
	// that sessions with a running turn can be skipped. NewLRU fails only
	// for a non-positive size.
	s.sessions, _ = simplelru.NewLRU[string, *entry](math.MaxInt, func(_ string, e *entry) {
		delete(s.byID, e.session.ID)
	})
	return s
}

var _ memory.Store = (*Store)(nil)

// Create registers a fresh session for containerID. A session already
// registered for the container is replaced and dropped from the id index.
func (s *Store) Create(ctx context.Context, containerID string) *memory.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(ctx, now)

	// The id is chosen before the old session is dropped so the two never share one.
	id := s.nextIDLocked(containerID, now)
	s.sessions.Remove(containerID)
	return s.insertLocked(ctx, id, containerID, now)
}

// Get returns the session with the given id and marks it as used.
func (s *Store) Get(ctx context.Context, sessionID string) (*memory.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(ctx, now)

	e, ok := s.byID[sessionID]
	if !ok {
		return nil, false
	}
	return s.useLocked(e.session.ContainerID, now)
}

// Lookup returns the container's session, if any, and marks it as used.
func (s *Store) Lookup(ctx context.Context, containerID string) (*memory.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(ctx, now)
	return s.useLocked(containerID, now)
}

// GetOrCreate returns the container's session, creating one if needed. The
// lookup and the creation happen under the same lock.
func (s *Store) GetOrCreate(ctx context.Context, containerID string) *memory.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(ctx, now)

	if session, ok := s.useLocked(containerID, now); ok {
		return session
	}
	return s.insertLocked(ctx, s.nextIDLocked(containerID, now), containerID, now)
}

// Delete drops the container's session.
func (s *Store) Delete(_ context.Context, containerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Remove(containerID)
}

// Len returns the number of live sessions, after dropping expired ones.
func (s *Store) Len(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(ctx, s.now())
	return s.sessions.Len()
}

// Sweep evicts every idle session now and returns how many were removed.
func (s *Store) Sweep(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expireLocked(ctx, s.now())
}

func (s *Store) insertLocked(ctx context.Context, id, containerID string, now time.Time) *memory.Session {
	e := &entry{session: memory.NewSession(id, containerID, now), lastUsed: now}
	s.sessions.Add(containerID, e)
	s.byID[id] = e

	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventSessionCreated,
			observability.String(observability.AttrSessionID, id),
			observability.String(observability.AttrContainerID, containerID),
		)
	}

	s.enforceCapacityLocked(ctx, containerID)
	return e.session
}

// nextIDLocked returns "<containerID>-<unixMillis>", moving forward one
// millisecond at a time while the id is taken.
func (s *Store) nextIDLocked(containerID string, now time.Time) string {
	millis := now.UnixMilli()
	for {
		id := fmt.Sprintf("%s-%d", containerID, millis)
		if _, taken := s.byID[id]; !taken {
			return id
		}
		millis++
	}
}

// useLocked promotes the container's session to most recently used.
func (s *Store) useLocked(containerID string, now time.Time) (*memory.Session, bool) {
	e, ok := s.sessions.Get(containerID)
	if !ok {
		return nil, false
	}
	e.lastUsed = now
	return e.session, true
}

// enforceCapacityLocked evicts least recently used sessions until the cap
// holds, skipping keep and sessions with a running turn. When every other
// session is busy the registry stays over the cap until one finishes.
func (s *Store) enforceCapacityLocked(ctx context.Context, keep string) {
	if s.maxSessions <= 0 {
		return
	}
	for _, containerID := range s.sessions.Keys() {
		if s.sessions.Len() <= s.maxSessions {
			return
		}
		e, _ := s.sessions.Peek(containerID)
		if containerID == keep || e.session.InTurn() {
			continue
		}
		s.evictLocked(ctx, containerID, e, "capacity")
	}

	if observer := observability.ObserverFromContext(ctx); observer != nil && s.sessions.Len() > s.maxSessions {
		observer.Warn(ctx, "Session registry over capacity, all sessions busy",
			observability.Int("sessions", s.sessions.Len()),
			observability.Int("max_sessions", s.maxSessions),
		)
	}
}

func (s *Store) evictLocked(ctx context.Context, containerID string, e *entry, reason string) {
	s.sessions.Remove(containerID)

	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventSessionEvicted,
			observability.String(observability.AttrSessionID, e.session.ID),
			observability.String("reason", reason),
		)
	}
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Debug(ctx, "Session evicted",
			observability.String(observability.AttrSessionID, e.session.ID),
			observability.String(observability.AttrContainerID, containerID),
			observability.String("reason", reason),
		)
	}
}

// expireLocked evicts every session idle for at least the TTL. Activity
// counts both store access and completed turns.
func (s *Store) expireLocked(ctx context.Context, now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}

	evicted := 0
	for _, containerID := range s.sessions.Keys() {
		e, _ := s.sessions.Peek(containerID)
		if e.session.InTurn() || now.Sub(e.lastActive()) < s.idleTTL {
			continue
		}
		s.evictLocked(ctx, containerID, e, "idle")
		evicted++
	}
	return evicted
}
