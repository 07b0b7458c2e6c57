package session

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/mindfulmovement/service-session-go/internal/localstate"
)

// Role is the closed set of roles the platform understands.
type Role string

const (
	RoleUser    Role = "user"
	RolePartner Role = "partner"
	RoleAdmin   Role = "admin"
)

// NormalizeRole coerces any unrecognized value to RoleUser.
func NormalizeRole(raw string) Role {
	switch Role(raw) {
	case RolePartner:
		return RolePartner
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Record is the denormalized snapshot of the signed-in identity. Readers
// always receive copies, never a live reference.
type Record struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name"`
	UID   string `json:"uid,omitempty"`
}

const currentUserKey = "mm_current_user"

// Mirror owns the locally persisted copy of "who is logged in" so callers can
// read session info synchronously. Mutations broadcast to subscribed
// observers; a failing observer never blocks the mutation itself.
type Mirror struct {
	state  localstate.Store
	logger *zap.SugaredLogger

	mu        sync.Mutex
	nextID    int
	observers map[int]func(*Record)
}

func NewMirror(state localstate.Store, logger *zap.SugaredLogger) *Mirror {
	return &Mirror{
		state:     state,
		logger:    logger,
		observers: make(map[int]func(*Record)),
	}
}

// SetCurrent normalizes and persists the record, notifies observers, and
// returns the normalized form. Storage failures are logged and swallowed: the
// mirror is a best-effort cache.
func (m *Mirror) SetCurrent(rec Record) Record {
	rec.Role = NormalizeRole(string(rec.Role))
	b, err := json.Marshal(rec)
	if err != nil {
		m.logger.Warnw("encode session record", "err", err)
		return rec
	}
	if err := m.state.Set(currentUserKey, string(b)); err != nil {
		m.logger.Warnw("persist session record", "err", err)
	}
	m.notify(&rec)
	return rec
}

// Current returns a copy of the persisted record, or nil when no session is
// stored or the stored value does not parse. Corrupt data means "no session".
func (m *Mirror) Current() *Record {
	raw, ok := m.state.Get(currentUserKey)
	if !ok {
		return nil
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil
	}
	rec.Role = NormalizeRole(string(rec.Role))
	return &rec
}

// ClearCurrent removes the persisted record and notifies observers with nil.
func (m *Mirror) ClearCurrent() {
	if err := m.state.Delete(currentUserKey); err != nil {
		m.logger.Warnw("clear session record", "err", err)
	}
	m.notify(nil)
}

// Subscription is a handle to an observer registration.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// Subscribe registers an observer for session changes. The observer receives
// a copy of the new record, or nil when the session was cleared. Callers must
// Close the returned subscription on teardown.
func (m *Mirror) Subscribe(fn func(*Record)) *Subscription {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	m.mu.Unlock()

	return &Subscription{cancel: func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}}
}

func (m *Mirror) notify(rec *Record) {
	m.mu.Lock()
	fns := make([]func(*Record), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		m.invoke(fn, rec)
	}
}

func (m *Mirror) invoke(fn func(*Record), rec *Record) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warnw("session observer panicked", "panic", r)
		}
	}()
	if rec == nil {
		fn(nil)
		return
	}
	copied := *rec
	fn(&copied)
}
