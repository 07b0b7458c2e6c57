package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mindfulmovement/service-session-go/internal/docstore"
	"github.com/mindfulmovement/service-session-go/internal/identity"
	"github.com/mindfulmovement/service-session-go/internal/identity/entity"
	"github.com/mindfulmovement/service-session-go/internal/session"
)

// Stable user-facing failure categories. Provider errors outside the known
// vocabulary collapse to ErrNetwork.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account has been disabled")
	ErrRateLimited        = errors.New("too many attempts, please try again later")
	ErrNetwork            = errors.New("request failed, please check your connection")
)

// ValidationError reports a missing required input. It never reaches the
// identity provider.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing required field: " + e.Field
}

// IdentityProvider is the slice of the identity service the auth operations
// consume.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string) (entity.AccountView, error)
	SignIn(ctx context.Context, email, password string) (entity.AccountView, error)
	SignOut(ctx context.Context) error
	UpdateDisplayName(ctx context.Context, uid, name string) error
	SetPersistence(p identity.Persistence)
}

const profileCollection = "users"

// Service wires register/login/logout against the identity provider and the
// profile store, updating the session mirror as a side effect. The profile
// document is the single source of record for role.
type Service struct {
	ids    IdentityProvider
	docs   docstore.Store
	mirror *session.Mirror
	logger *zap.SugaredLogger

	nowFunc func() time.Time
}

func NewService(ids IdentityProvider, docs docstore.Store, mirror *session.Mirror, logger *zap.SugaredLogger) *Service {
	return &Service{ids: ids, docs: docs, mirror: mirror, logger: logger, nowFunc: time.Now}
}

// RegisterParams carries registration input. Gender, Suburb, and Reason are
// optional free text and are HTML-escaped before persistence.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Role     string
	Gender   string
	Suburb   string
	Reason   string
}

// Register creates an identity account, merge-writes the profile document,
// and updates the session mirror. Provider errors surface to the caller
// untranslated.
func (s *Service) Register(ctx context.Context, p RegisterParams) (session.Record, error) {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return session.Record{}, &ValidationError{Field: "name"}
	case strings.TrimSpace(p.Email) == "":
		return session.Record{}, &ValidationError{Field: "email"}
	case p.Password == "":
		return session.Record{}, &ValidationError{Field: "password"}
	}

	acct, err := s.ids.CreateAccount(ctx, p.Email, p.Password)
	if err != nil {
		return session.Record{}, err
	}
	if err := s.ids.UpdateDisplayName(ctx, acct.UID, p.Name); err != nil {
		s.logger.Warnw("update display name", "uid", acct.UID, "err", err)
	}

	role := session.NormalizeRole(p.Role)
	profile := map[string]any{
		"uid":       acct.UID,
		"name":      html.EscapeString(p.Name),
		"email":     strings.ToLower(acct.Email),
		"role":      string(role),
		"gender":    html.EscapeString(p.Gender),
		"suburb":    html.EscapeString(p.Suburb),
		"reason":    html.EscapeString(p.Reason),
		"createdAt": s.nowFunc().UTC().Format(time.RFC3339),
	}
	if err := s.docs.Set(ctx, profileCollection, acct.UID, profile, true); err != nil {
		return session.Record{}, fmt.Errorf("write profile: %w", err)
	}

	rec := s.mirror.SetCurrent(session.Record{
		Email: strings.ToLower(acct.Email),
		Role:  role,
		Name:  html.EscapeString(p.Name),
		UID:   acct.UID,
	})
	return rec, nil
}

// Login authenticates against the identity provider, recovers role and name
// from the profile document, and updates the session mirror. The remember
// flag selects durable vs session-scoped persistence.
func (s *Service) Login(ctx context.Context, email, password string, remember bool) (session.Record, error) {
	switch {
	case strings.TrimSpace(email) == "":
		return session.Record{}, &ValidationError{Field: "email"}
	case password == "":
		return session.Record{}, &ValidationError{Field: "password"}
	}

	if remember {
		s.ids.SetPersistence(identity.PersistenceDurable)
	} else {
		s.ids.SetPersistence(identity.PersistenceSession)
	}

	acct, err := s.ids.SignIn(ctx, email, password)
	if err != nil {
		return session.Record{}, translateProviderError(err)
	}

	rec := s.recordFor(ctx, &acct)
	return s.mirror.SetCurrent(rec), nil
}

// Logout signs out best-effort and unconditionally clears the mirror.
func (s *Service) Logout(ctx context.Context) {
	if err := s.ids.SignOut(ctx); err != nil {
		s.logger.Warnw("identity sign-out", "err", err)
	}
	s.mirror.ClearCurrent()
}

// HandleSessionState applies an observed identity session change to the
// mirror. Wired to the provider's session-state subscription at bootstrap so
// a resumed session repopulates the mirror before any navigation happens.
func (s *Service) HandleSessionState(ctx context.Context, acct *entity.AccountView) {
	if acct == nil {
		s.mirror.ClearCurrent()
		return
	}
	s.mirror.SetCurrent(s.recordFor(ctx, acct))
}

// recordFor builds the mirror record for an authenticated account, preferring
// the profile document for role and name. A missing profile or failed read
// is non-fatal and silently defaults to role=user and the identity-provided
// display name.
func (s *Service) recordFor(ctx context.Context, acct *entity.AccountView) session.Record {
	role := session.RoleUser
	name := acct.DisplayName
	if name == "" {
		name = acct.Email
	}

	profile, err := s.docs.Get(ctx, profileCollection, acct.UID)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			s.logger.Debugw("read profile", "uid", acct.UID, "err", err)
		}
	} else {
		if v, ok := profile["role"].(string); ok && v != "" {
			role = session.NormalizeRole(v)
		}
		if v, ok := profile["name"].(string); ok && v != "" {
			name = v
		}
	}

	return session.Record{
		Email: strings.ToLower(acct.Email),
		Role:  role,
		Name:  name,
		UID:   acct.UID,
	}
}

func translateProviderError(err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidCredential),
		errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, identity.ErrWrongPassword):
		return ErrInvalidCredentials
	case errors.Is(err, identity.ErrTooManyRequests):
		return ErrRateLimited
	case errors.Is(err, identity.ErrUserDisabled):
		return ErrAccountDisabled
	default:
		return ErrNetwork
	}
}
