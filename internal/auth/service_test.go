package auth

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mindfulmovement/service-session-go/internal/docstore"
	"github.com/mindfulmovement/service-session-go/internal/identity"
	"github.com/mindfulmovement/service-session-go/internal/identity/entity"
	"github.com/mindfulmovement/service-session-go/internal/localstate"
	"github.com/mindfulmovement/service-session-go/internal/session"
)

// fakeProvider implements IdentityProvider against an in-memory account map.
type fakeProvider struct {
	accounts    map[string]fakeAccount // keyed by lowercased email
	nextUID     int
	persistence identity.Persistence
	signInErr   error
	signOutErr  error
}

type fakeAccount struct {
	uid      string
	password string
	name     string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{accounts: make(map[string]fakeAccount)}
}

func (p *fakeProvider) CreateAccount(ctx context.Context, email, password string) (entity.AccountView, error) {
	if _, ok := p.accounts[email]; ok {
		return entity.AccountView{}, identity.ErrEmailInUse
	}
	p.nextUID++
	uid := "u-" + string(rune('0'+p.nextUID))
	p.accounts[email] = fakeAccount{uid: uid, password: password}
	return entity.AccountView{UID: uid, Email: email}, nil
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (entity.AccountView, error) {
	if p.signInErr != nil {
		return entity.AccountView{}, p.signInErr
	}
	a, ok := p.accounts[email]
	if !ok {
		return entity.AccountView{}, identity.ErrUserNotFound
	}
	if a.password != password {
		return entity.AccountView{}, identity.ErrWrongPassword
	}
	return entity.AccountView{UID: a.uid, Email: email, DisplayName: a.name}, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error { return p.signOutErr }

func (p *fakeProvider) UpdateDisplayName(ctx context.Context, uid, name string) error {
	for email, a := range p.accounts {
		if a.uid == uid {
			a.name = name
			p.accounts[email] = a
		}
	}
	return nil
}

func (p *fakeProvider) SetPersistence(mode identity.Persistence) { p.persistence = mode }

func newTestService(p *fakeProvider) (*Service, *session.Mirror, *docstore.MemoryStore) {
	logger := zap.NewNop().Sugar()
	mirror := session.NewMirror(localstate.NewMemoryStore(), logger)
	docs := docstore.NewMemoryStore()
	return NewService(p, docs, mirror, logger), mirror, docs
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(newFakeProvider())

	cases := []struct {
		name   string
		params RegisterParams
		field  string
	}{
		{"missing name", RegisterParams{Email: "a@b.co", Password: "pw"}, "name"},
		{"missing email", RegisterParams{Name: "Ana", Password: "pw"}, "email"},
		{"missing password", RegisterParams{Name: "Ana", Email: "a@b.co"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.params)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, vErr.Field)
			}
		})
	}
}

func TestRegisterWritesEscapedProfile(t *testing.T) {
	svc, mirror, docs := newTestService(newFakeProvider())

	rec, err := svc.Register(context.Background(), RegisterParams{
		Name:     "Ana <script>",
		Email:    "Ana@Example.COM",
		Password: "longenough",
		Role:     "partner",
		Reason:   `"quotes" & more`,
	})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if rec.Role != session.RolePartner {
		t.Fatalf("expected role partner, got %q", rec.Role)
	}
	if rec.Email != "ana@example.com" {
		t.Fatalf("expected lowercased email, got %q", rec.Email)
	}

	profile, err := docs.Get(context.Background(), "users", rec.UID)
	if err != nil {
		t.Fatalf("profile missing: %v", err)
	}
	if profile["name"] != "Ana &lt;script&gt;" {
		t.Fatalf("name not escaped: %q", profile["name"])
	}
	if profile["reason"] != "&#34;quotes&#34; &amp; more" {
		t.Fatalf("reason not escaped: %q", profile["reason"])
	}
	if profile["role"] != "partner" {
		t.Fatalf("unexpected role: %q", profile["role"])
	}

	if got := mirror.Current(); got == nil || got.UID != rec.UID {
		t.Fatalf("mirror not updated: %+v", got)
	}
}

func TestRegisterNormalizesUnknownRole(t *testing.T) {
	svc, _, _ := newTestService(newFakeProvider())
	rec, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ana", Email: "a@b.co", Password: "longenough", Role: "owner",
	})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if rec.Role != session.RoleUser {
		t.Fatalf("expected role user, got %q", rec.Role)
	}
}

func TestRegisterThenLoginRecoversProfileRole(t *testing.T) {
	p := newFakeProvider()
	svc, mirror, _ := newTestService(p)

	if _, err := svc.Register(context.Background(), RegisterParams{
		Name: "Pat", Email: "pat@b.co", Password: "longenough", Role: "partner",
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	mirror.ClearCurrent()

	rec, err := svc.Login(context.Background(), "pat@b.co", "longenough", true)
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if rec.Role != session.RolePartner {
		t.Fatalf("login role = %q, want partner from profile", rec.Role)
	}
	if got := mirror.Current(); got == nil || got.Role != session.RolePartner {
		t.Fatalf("mirror role = %+v, want partner", got)
	}
}

func TestLoginValidation(t *testing.T) {
	svc, _, _ := newTestService(newFakeProvider())
	var vErr *ValidationError
	if _, err := svc.Login(context.Background(), "", "pw", true); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "a@b.co", "", true); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLoginTranslatesProviderErrors(t *testing.T) {
	cases := []struct {
		provider error
		want     error
	}{
		{identity.ErrInvalidCredential, ErrInvalidCredentials},
		{identity.ErrUserNotFound, ErrInvalidCredentials},
		{identity.ErrWrongPassword, ErrInvalidCredentials},
		{identity.ErrTooManyRequests, ErrRateLimited},
		{identity.ErrUserDisabled, ErrAccountDisabled},
		{errors.New("connection reset"), ErrNetwork},
	}
	for _, tc := range cases {
		p := newFakeProvider()
		p.signInErr = tc.provider
		svc, _, _ := newTestService(p)
		_, err := svc.Login(context.Background(), "a@b.co", "pw", true)
		if !errors.Is(err, tc.want) {
			t.Fatalf("provider error %v translated to %v, want %v", tc.provider, err, tc.want)
		}
	}
}

func TestLoginMissingProfileDefaults(t *testing.T) {
	p := newFakeProvider()
	p.accounts["solo@b.co"] = fakeAccount{uid: "u-9", password: "pw", name: "Solo"}
	svc, _, _ := newTestService(p)

	rec, err := svc.Login(context.Background(), "solo@b.co", "pw", true)
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if rec.Role != session.RoleUser {
		t.Fatalf("expected default role user, got %q", rec.Role)
	}
	if rec.Name != "Solo" {
		t.Fatalf("expected identity display name, got %q", rec.Name)
	}
}

func TestLoginRememberSelectsPersistence(t *testing.T) {
	p := newFakeProvider()
	p.accounts["a@b.co"] = fakeAccount{uid: "u-1", password: "pw"}
	svc, _, _ := newTestService(p)

	if _, err := svc.Login(context.Background(), "a@b.co", "pw", true); err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if p.persistence != identity.PersistenceDurable {
		t.Fatalf("expected durable persistence, got %v", p.persistence)
	}

	if _, err := svc.Login(context.Background(), "a@b.co", "pw", false); err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if p.persistence != identity.PersistenceSession {
		t.Fatalf("expected session persistence, got %v", p.persistence)
	}
}

func TestLogoutAlwaysClearsMirror(t *testing.T) {
	p := newFakeProvider()
	p.signOutErr = errors.New("provider offline")
	svc, mirror, _ := newTestService(p)

	mirror.SetCurrent(session.Record{Email: "a@b.co", Role: session.RoleAdmin, Name: "Ana"})
	svc.Logout(context.Background())
	if got := mirror.Current(); got != nil {
		t.Fatalf("mirror not cleared after failing sign-out: %+v", got)
	}
}

func TestHandleSessionState(t *testing.T) {
	p := newFakeProvider()
	svc, mirror, docs := newTestService(p)

	profile := map[string]any{"role": "admin", "name": "Root"}
	if err := docs.Set(context.Background(), "users", "u-7", profile, false); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	svc.HandleSessionState(context.Background(), &entity.AccountView{UID: "u-7", Email: "Root@B.co"})
	got := mirror.Current()
	if got == nil || got.Role != session.RoleAdmin || got.Name != "Root" || got.Email != "root@b.co" {
		t.Fatalf("mirror after session state = %+v", got)
	}

	svc.HandleSessionState(context.Background(), nil)
	if got := mirror.Current(); got != nil {
		t.Fatalf("mirror not cleared on nil session state: %+v", got)
	}
}
