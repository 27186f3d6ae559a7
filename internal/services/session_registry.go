package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
)

const (
	defaultSessionIdleTTL = 30 * time.Minute
	defaultMaxSessions    = 5000
)

var (
	// ErrSessionFactoryMissing indicates the registry cannot build view models.
	ErrSessionFactoryMissing = errors.New("session registry: view model factory is required")
	// ErrSessionNotFound indicates the session does not exist or has expired.
	ErrSessionNotFound = errors.New("session registry: session not found")
	// ErrSessionLimitReached indicates the registry is at capacity.
	ErrSessionLimitReached = errors.New("session registry: session limit reached")
)

// ViewModelFactory builds the view model owned by a new session.
type ViewModelFactory func(sessionID string) (*CatalogViewModel, error)

// SessionRegistryDeps bundles collaborators for the session registry.
type SessionRegistryDeps struct {
	Factory     ViewModelFactory
	IdleTTL     time.Duration
	MaxSessions int
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// SessionRegistry owns the catalog view models of active viewers and evicts
// them after a period without activity. Sessions holding an open stream are
// never evicted.
type SessionRegistry struct {
	factory ViewModelFactory
	idleTTL time.Duration
	max     int
	clock   func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	view     *CatalogViewModel
	lastSeen time.Time
	holds    int
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry(deps SessionRegistryDeps) (*SessionRegistry, error) {
	if deps.Factory == nil {
		return nil, ErrSessionFactoryMissing
	}
	ttl := deps.IdleTTL
	if ttl <= 0 {
		ttl = defaultSessionIdleTTL
	}
	limit := deps.MaxSessions
	if limit <= 0 {
		limit = defaultMaxSessions
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &SessionRegistry{
		factory:  deps.Factory,
		idleTTL:  ttl,
		max:      limit,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
		logger:   logger,
		sessions: make(map[string]*sessionEntry),
	}, nil
}

// Create registers a new session with an idle view model.
func (r *SessionRegistry) Create(ctx context.Context) (*CatalogViewModel, error) {
	r.mu.Lock()
	if len(r.sessions) >= r.max {
		r.mu.Unlock()
		return nil, ErrSessionLimitReached
	}
	r.mu.Unlock()

	id := r.newID()
	view, err := r.factory(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if len(r.sessions) >= r.max {
		r.mu.Unlock()
		view.Close()
		return nil, ErrSessionLimitReached
	}
	r.sessions[id] = &sessionEntry{view: view, lastSeen: r.clock()}
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger(ctx, "session.created", map[string]any{"sessionId": id, "active": count})
	return view, nil
}

// Get returns the session's view model and marks it active.
func (r *SessionRegistry) Get(sessionID string) (*CatalogViewModel, error) {
	sessionID = strings.TrimSpace(sessionID)
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	entry.lastSeen = r.clock()
	return entry.view, nil
}

// Hold returns the session's view model and pins it against eviction until
// release is called.
func (r *SessionRegistry) Hold(sessionID string) (*CatalogViewModel, func(), error) {
	sessionID = strings.TrimSpace(sessionID)
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	entry.holds++
	entry.lastSeen = r.clock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if current, ok := r.sessions[sessionID]; ok && current == entry {
				entry.holds--
				entry.lastSeen = r.clock()
			}
		})
	}
	return entry.view, release, nil
}

// Close removes the session and stops its view model.
func (r *SessionRegistry) Close(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	r.mu.Lock()
	entry, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	entry.view.Close()
	r.logger(ctx, "session.closed", map[string]any{"sessionId": sessionID})
	return nil
}

// Sweep evicts sessions idle for longer than the configured TTL and returns
// their identifiers in sorted order.
func (r *SessionRegistry) Sweep(ctx context.Context) []string {
	now := r.clock()
	var evicted []*sessionEntry
	var ids []string

	r.mu.Lock()
	for id, entry := range r.sessions {
		if entry.holds > 0 || now.Sub(entry.lastSeen) < r.idleTTL {
			continue
		}
		delete(r.sessions, id)
		evicted = append(evicted, entry)
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, entry := range evicted {
		entry.view.Close()
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		r.logger(ctx, "session.swept", map[string]any{"evicted": len(ids)})
	}
	return ids
}

// Len reports the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Activity reports how many sessions are live, how many hold an open stream
// and where each one is in its reveal.
func (r *SessionRegistry) Activity() domain.SessionActivity {
	r.mu.Lock()
	activity := domain.SessionActivity{
		Active:   len(r.sessions),
		Capacity: r.max,
		Reveals:  make(map[domain.RevealState]int),
	}
	views := make([]*CatalogViewModel, 0, len(r.sessions))
	for _, entry := range r.sessions {
		if entry.holds > 0 {
			activity.Streaming++
		}
		views = append(views, entry.view)
	}
	r.mu.Unlock()

	for _, view := range views {
		activity.Reveals[view.scheduler.Snapshot().State]++
	}
	return activity
}

// CloseAll stops every session, typically during shutdown.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for id, entry := range r.sessions {
		entries = append(entries, entry)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, entry := range entries {
		entry.view.Close()
	}
}
