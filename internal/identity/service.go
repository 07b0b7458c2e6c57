package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mindfulmovement/service-session-go/internal/identity/entity"
	"github.com/mindfulmovement/service-session-go/internal/identity/repo"
	"github.com/mindfulmovement/service-session-go/internal/localstate"
	"github.com/mindfulmovement/service-session-go/pkg/utilities"
)

// Fixed error vocabulary surfaced by the provider.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUserNotFound      = errors.New("user not found")
	ErrWrongPassword     = errors.New("wrong password")
	ErrTooManyRequests   = errors.New("too many requests")
	ErrUserDisabled      = errors.New("user disabled")
	ErrEmailInUse        = errors.New("email already in use")
	ErrWeakPassword      = errors.New("weak password")
)

const minPasswordLength = 8

// Persistence selects whether the identity session survives a process
// restart (durable) or lives only for the current process (session-scoped).
type Persistence int

const (
	PersistenceDurable Persistence = iota
	PersistenceSession
)

const sessionTokenKey = "mm_session_token"

// Service is the platform's identity provider: account creation, credential
// verification, and the current-session state other components observe.
type Service struct {
	repo   *repo.AccountRepo
	tokens *TokenIssuer
	state  localstate.Store
	logger *zap.SugaredLogger

	MaxFailed   int
	LockMinutes int

	mu          sync.Mutex
	persistence Persistence
	current     *entity.AccountView
	nextID      int
	observers   map[int]func(*entity.AccountView)
}

func NewService(db *sqlx.DB, tokens *TokenIssuer, state localstate.Store, logger *zap.SugaredLogger) *Service {
	return &Service{
		repo:        repo.NewAccountRepo(db),
		tokens:      tokens,
		state:       state,
		logger:      logger,
		MaxFailed:   6,
		LockMinutes: 15,
		persistence: PersistenceDurable,
		observers:   make(map[int]func(*entity.AccountView)),
	}
}

// EnsureSchema creates backing tables.
func (s *Service) EnsureSchema(ctx context.Context) error {
	return s.repo.EnsureTable(ctx)
}

// SetPersistence selects durable or session-scoped persistence for sessions
// established by subsequent SignIn calls.
func (s *Service) SetPersistence(p Persistence) {
	s.mu.Lock()
	s.persistence = p
	s.mu.Unlock()
}

// CreateAccount registers a new identity. The email is the natural key,
// compared case-insensitively via lowercase normalization.
func (s *Service) CreateAccount(ctx context.Context, email, password string) (entity.AccountView, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return entity.AccountView{}, ErrInvalidCredential
	}
	if len(password) < minPasswordLength {
		return entity.AccountView{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return entity.AccountView{}, err
	}
	acct := &entity.Account{
		ID:           utilities.NewKSUID(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, acct); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return entity.AccountView{}, ErrEmailInUse
		}
		return entity.AccountView{}, err
	}
	view := entity.AccountView{UID: acct.ID, Email: acct.Email}
	s.setCurrent(&view)
	return view, nil
}

// SignIn authenticates credentials and establishes the current session.
func (s *Service) SignIn(ctx context.Context, email, password string) (entity.AccountView, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.AccountView{}, ErrUserNotFound
		}
		return entity.AccountView{}, err
	}

	if u.Disabled {
		return entity.AccountView{}, ErrUserDisabled
	}
	if u.LockedUntil != nil {
		if u.LockedUntil.After(time.Now()) {
			return entity.AccountView{}, ErrTooManyRequests
		}
		if unlocked, _ := s.repo.UnlockIfExpired(ctx, u.ID); unlocked {
			u.LockedUntil = nil
			u.LoginFailedAttempts = 0
		}
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		if _, incErr := s.repo.IncrementFailedLogin(ctx, u.ID); incErr == nil {
			_, _ = s.repo.LockIfThreshold(ctx, u.ID, s.MaxFailed, s.LockMinutes)
		}
		return entity.AccountView{}, ErrWrongPassword
	}

	if err := s.repo.ResetLoginSuccess(ctx, u.ID); err != nil {
		return entity.AccountView{}, err
	}

	view, err := s.repo.GetView(ctx, u.ID)
	if err != nil {
		return entity.AccountView{}, err
	}

	s.persistSession(view.UID)
	s.setCurrent(view)
	return *view, nil
}

// SignOut terminates the current session. It never fails for a missing
// session; clearing an already-clear session is a no-op.
func (s *Service) SignOut(ctx context.Context) error {
	if err := s.state.Delete(sessionTokenKey); err != nil {
		s.logger.Warnw("delete session token", "err", err)
	}
	s.setCurrent(nil)
	return nil
}

// UpdateDisplayName updates the display name on the identity record.
func (s *Service) UpdateDisplayName(ctx context.Context, uid, name string) error {
	return s.repo.UpdateDisplayName(ctx, uid, name)
}

// CurrentAccount returns a copy of the active session's account, or nil.
func (s *Service) CurrentAccount() *entity.AccountView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	copied := *s.current
	return &copied
}

// ResumeSession restores the session from a durably persisted token, if one
// exists and still validates. A missing or stale token resolves to no
// session without error.
func (s *Service) ResumeSession(ctx context.Context) (*entity.AccountView, error) {
	raw, ok := s.state.Get(sessionTokenKey)
	if !ok {
		s.setCurrent(nil)
		return nil, nil
	}
	uid, err := s.tokens.Parse(raw)
	if err != nil {
		s.logger.Debugw("stale session token", "err", err)
		_ = s.state.Delete(sessionTokenKey)
		s.setCurrent(nil)
		return nil, nil
	}
	view, err := s.repo.GetView(ctx, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = s.state.Delete(sessionTokenKey)
			s.setCurrent(nil)
			return nil, nil
		}
		return nil, err
	}
	s.setCurrent(view)
	return view, nil
}

// StateSubscription is a handle to a session-state observer registration.
type StateSubscription struct {
	once   sync.Once
	cancel func()
}

func (s *StateSubscription) Close() {
	s.once.Do(s.cancel)
}

// SubscribeSessionState registers an observer notified with the account on
// sign-in or resume and with nil on sign-out.
func (s *Service) SubscribeSessionState(fn func(*entity.AccountView)) *StateSubscription {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return &StateSubscription{cancel: func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}}
}

func (s *Service) persistSession(uid string) {
	s.mu.Lock()
	durable := s.persistence == PersistenceDurable
	s.mu.Unlock()

	if !durable {
		if err := s.state.Delete(sessionTokenKey); err != nil {
			s.logger.Warnw("delete session token", "err", err)
		}
		return
	}
	token, err := s.tokens.Issue(uid)
	if err != nil {
		s.logger.Warnw("issue session token", "err", err)
		return
	}
	if err := s.state.Set(sessionTokenKey, token); err != nil {
		s.logger.Warnw("persist session token", "err", err)
	}
}

func (s *Service) setCurrent(view *entity.AccountView) {
	s.mu.Lock()
	if view == nil {
		s.current = nil
	} else {
		copied := *view
		s.current = &copied
	}
	fns := make([]func(*entity.AccountView), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		if view == nil {
			fn(nil)
			continue
		}
		copied := *view
		fn(&copied)
	}
}
