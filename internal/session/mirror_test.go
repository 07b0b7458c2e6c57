package session

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mindfulmovement/service-session-go/internal/localstate"
)

func newTestMirror() (*Mirror, *localstate.MemoryStore) {
	state := localstate.NewMemoryStore()
	return NewMirror(state, zap.NewNop().Sugar()), state
}

func TestNormalizeRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
	}{
		{"user", RoleUser},
		{"partner", RolePartner},
		{"admin", RoleAdmin},
		{"", RoleUser},
		{"superuser", RoleUser},
		{"Admin", RoleUser},
		{"PARTNER", RoleUser},
	}
	for _, tc := range cases {
		if got := NormalizeRole(tc.in); got != tc.want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSetCurrentRoundTrip(t *testing.T) {
	m, _ := newTestMirror()

	set := m.SetCurrent(Record{Email: "a@b.co", Role: "partner", Name: "Ana", UID: "u-1"})
	if set.Role != RolePartner {
		t.Fatalf("expected role partner, got %q", set.Role)
	}

	got := m.Current()
	if got == nil {
		t.Fatal("expected a record, got nil")
	}
	if *got != set {
		t.Fatalf("Current() = %+v, want %+v", *got, set)
	}
}

func TestSetCurrentCoercesUnknownRole(t *testing.T) {
	m, _ := newTestMirror()

	set := m.SetCurrent(Record{Email: "a@b.co", Role: "overlord", Name: "Ana"})
	if set.Role != RoleUser {
		t.Fatalf("expected role user, got %q", set.Role)
	}
	if got := m.Current(); got == nil || got.Role != RoleUser {
		t.Fatalf("expected persisted role user, got %+v", got)
	}
}

func TestCurrentMissingOrCorrupt(t *testing.T) {
	m, state := newTestMirror()

	if got := m.Current(); got != nil {
		t.Fatalf("expected nil for missing record, got %+v", got)
	}

	if err := state.Set("mm_current_user", "{not json"); err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}
	if got := m.Current(); got != nil {
		t.Fatalf("expected nil for corrupt record, got %+v", got)
	}
}

func TestClearCurrent(t *testing.T) {
	m, _ := newTestMirror()
	m.SetCurrent(Record{Email: "a@b.co", Role: "user", Name: "Ana"})
	m.ClearCurrent()
	if got := m.Current(); got != nil {
		t.Fatalf("expected nil after clear, got %+v", got)
	}
}

func TestObserversReceiveCopies(t *testing.T) {
	m, _ := newTestMirror()

	var seen []*Record
	sub := m.Subscribe(func(r *Record) {
		seen = append(seen, r)
	})
	defer sub.Close()

	m.SetCurrent(Record{Email: "a@b.co", Role: "admin", Name: "Ana"})
	m.ClearCurrent()

	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if seen[0] == nil || seen[0].Role != RoleAdmin {
		t.Fatalf("first notification = %+v, want admin record", seen[0])
	}
	if seen[1] != nil {
		t.Fatalf("second notification = %+v, want nil", seen[1])
	}

	// mutating the delivered copy must not affect the mirror
	seen[0].Role = RoleUser
	m.SetCurrent(Record{Email: "a@b.co", Role: "admin", Name: "Ana"})
	if got := m.Current(); got.Role != RoleAdmin {
		t.Fatalf("mirror mutated through observer copy: %+v", got)
	}
}

func TestClosedSubscriptionStopsNotifying(t *testing.T) {
	m, _ := newTestMirror()

	calls := 0
	sub := m.Subscribe(func(*Record) { calls++ })
	m.SetCurrent(Record{Email: "a@b.co", Name: "Ana"})
	sub.Close()
	sub.Close()
	m.ClearCurrent()

	if calls != 1 {
		t.Fatalf("expected 1 notification, got %d", calls)
	}
}

func TestPanickingObserverDoesNotBlockMutation(t *testing.T) {
	m, _ := newTestMirror()

	sub := m.Subscribe(func(*Record) { panic("boom") })
	defer sub.Close()

	set := m.SetCurrent(Record{Email: "a@b.co", Role: "partner", Name: "Ana"})
	if got := m.Current(); got == nil || *got != set {
		t.Fatalf("mutation lost after observer panic: %+v", got)
	}
}

type failingStore struct{}

func (failingStore) Get(string) (string, bool) { return "", false }
func (failingStore) Set(string, string) error  { return errors.New("disk full") }
func (failingStore) Delete(string) error       { return errors.New("disk full") }

func TestStorageFailuresAreSwallowed(t *testing.T) {
	m := NewMirror(failingStore{}, zap.NewNop().Sugar())

	set := m.SetCurrent(Record{Email: "a@b.co", Role: "admin", Name: "Ana"})
	if set.Role != RoleAdmin {
		t.Fatalf("expected normalized record back, got %+v", set)
	}
	m.ClearCurrent()
}
