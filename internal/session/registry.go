package session

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-arena/internal/obslog"
	"go.uber.org/zap"
)

// Registry maps session ids to live sessions and remembers creation order for the lobby.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string

	rules      Rules
	emitter    Emitter
	onChange   func()
	inviteBase string
	newID      func() string
	newInst    func() string
	randIntn   func(n int) int
	now        func() time.Time
}

type Option func(*Registry)

// WithEmitter sets the sink for session events.
func WithEmitter(e Emitter) Option {
	return func(r *Registry) { r.emitter = e }
}

// WithOnChange registers a hook fired whenever the open lobby set may have changed.
// It runs with a session lock held and must not block.
func WithOnChange(fn func()) Option {
	return func(r *Registry) { r.onChange = fn }
}

func WithInviteBase(base string) Option {
	return func(r *Registry) { r.inviteBase = strings.TrimSpace(base) }
}

func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// WithRandom replaces the seat picker used for random role requests.
func WithRandom(fn func(n int) int) Option {
	return func(r *Registry) { r.randIntn = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(r *Registry) { r.now = fn }
}

func NewRegistry(rules Rules, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		rules:    rules,
		emitter:  discard{},
		onChange: func() {},
		newID:    uuid.NewString,
		newInst:  uuid.NewString,
		randIntn: cryptoIntn,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateOrGet returns the live session for id, creating it when absent. An empty id mints a
// fresh one. created reports whether a new session was made.
func (r *Registry) CreateOrGet(id string) (*Session, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = r.newID()
	}

	r.mu.Lock()
	if s, ok := r.sessions[id]; ok && !s.Closed() {
		r.mu.Unlock()
		return s, false
	} else if ok {
		r.dropLocked(id)
	}
	s := r.newSession(id)
	r.sessions[id] = s
	r.order = append(r.order, id)
	r.mu.Unlock()

	obslog.L().Info("session_create", zap.String("session_id", id))
	r.onChange()
	return s, true
}

// Get returns the live session for id or ErrNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[strings.TrimSpace(id)]
	r.mu.RUnlock()
	if !ok || s.Closed() {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove deletes id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) bool {
	id = strings.TrimSpace(id)
	r.mu.Lock()
	_, ok := r.sessions[id]
	if ok {
		r.dropLocked(id)
	}
	r.mu.Unlock()
	if ok {
		obslog.L().Info("session_remove", zap.String("session_id", id))
		r.onChange()
	}
	return ok
}

// RemoveSession deletes s only while it is still the entry registered under its id.
// A closed session that was already replaced by CreateOrGet leaves the replacement alone.
func (r *Registry) RemoveSession(s *Session) bool {
	if s == nil {
		return false
	}
	r.mu.Lock()
	cur, ok := r.sessions[s.id]
	ok = ok && cur == s
	if ok {
		r.dropLocked(s.id)
	}
	r.mu.Unlock()
	if ok {
		obslog.L().Info("session_remove", zap.String("session_id", s.id))
		r.onChange()
	}
	return ok
}

// ListOpen returns the sessions still waiting for a second player, oldest first.
func (r *Registry) ListOpen() []Summary {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.sessions[id])
	}
	r.mu.RUnlock()

	// session locks are taken only after the registry lock is released
	out := make([]Summary, 0, len(list))
	for _, s := range list {
		if sum, ok := s.Summary(); ok {
			out = append(out, sum)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) dropLocked(id string) {
	delete(r.sessions, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) newSession(id string) *Session {
	return &Session{
		id:          id,
		instance:    r.newInst(),
		inviteToken: InviteToken(r.inviteBase, id),
		createdAt:   r.now(),
		rules:       r.rules,
		emitter:     r.emitter,
		onLobby:     r.onChange,
		randIntn:    r.randIntn,
		now:         r.now,
		position:    r.rules.Start(),
		phase:       PhaseAwaiting,
		game:        1,
	}
}

// InviteToken builds the shareable join link for a session id.
func InviteToken(base, id string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "session=" + url.QueryEscape(id)
}
