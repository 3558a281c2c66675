package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"user-service/internal/domain"
	"user-service/internal/repository"
	"user-service/internal/telemetry"
	"user-service/internal/trace"
)

type mockUserRepo struct {
	usersByID       map[int64]domain.User
	usersByUsername map[string]int64
	nextID          int64
	saveErr         error
	findErr         error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:       make(map[int64]domain.User),
		usersByUsername: make(map[string]int64),
		nextID:          1,
	}
}

func (m *mockUserRepo) Save(_ context.Context, user domain.User) (domain.User, error) {
	if m.saveErr != nil {
		return domain.User{}, m.saveErr
	}
	if user.ID == 0 {
		if _, ok := m.usersByUsername[user.Username]; ok {
			return domain.User{}, repository.ErrConflict
		}
		user.ID = m.nextID
		m.nextID++
	}
	m.usersByID[user.ID] = user
	m.usersByUsername[user.Username] = user.ID
	return user, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id int64) (domain.User, error) {
	if m.findErr != nil {
		return domain.User{}, m.findErr
	}
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	if m.findErr != nil {
		return domain.User{}, m.findErr
	}
	id, ok := m.usersByUsername[username]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return m.FindByID(ctx, id)
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range m.usersByID {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (m *mockUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	_, ok := m.usersByUsername[username]
	return ok, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *mockUserRepo) FindAll(_ context.Context) ([]domain.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	out := make([]domain.User, 0, len(m.usersByID))
	for id := int64(1); id < m.nextID; id++ {
		if u, ok := m.usersByID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(m.usersByID)), nil
}

type captureReporter struct {
	events []telemetry.Event
}

func (c *captureReporter) Report(evt telemetry.Event) {
	c.events = append(c.events, evt)
}

func newTestUserService(t *testing.T, repo repository.UserRepository, reporter telemetry.Reporter) *UserService {
	t.Helper()
	tokens, err := NewJWTService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("new jwt service: %v", err)
	}
	tracer := trace.NewTracer(reporter, "user-service", zap.NewNop())
	return NewUserService(zap.NewNop(), repo, NewBcryptHasher(bcrypt.MinCost), tokens, tracer)
}

func TestUserService_RegisterAuthenticateScenario(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(t, repo, nil)
	ctx := context.Background()

	alice, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@x.io", Password: "pw1"})
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if alice.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}
	if alice.PasswordHash == "" || alice.PasswordHash == "pw1" {
		t.Fatalf("expected stored password to be hashed")
	}

	token, err := svc.Authenticate(ctx, "alice", "pw1")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !svc.ValidateToken(ctx, token) {
		t.Fatalf("expected issued token to validate")
	}

	if _, err := svc.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "bob", "pw1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserService_TokenCarriesIdentity(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(t, repo, nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Username: "carol", Email: "c@x.io", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := svc.Authenticate(ctx, "carol", "pw")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	claims, ok := svc.tokens.Validate(token, now)
	if !ok {
		t.Fatalf("expected valid token")
	}
	if claims.Subject != "carol" || claims.UserID != user.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}

	now = now.Add(2 * time.Hour)
	if svc.ValidateToken(ctx, token) {
		t.Fatalf("expected token to be expired")
	}
}

func TestUserService_RegisterStoreFailure(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(t, repo, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@x.io", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "other@x.io", Password: "pw"})
	if !errors.Is(err, ErrStore) || !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrStore wrapping ErrConflict, got %v", err)
	}

	cause := errors.New("connection reset")
	repo.saveErr = cause
	_, err = svc.Register(ctx, RegisterInput{Username: "dave", Email: "d@x.io", Password: "pw"})
	if !errors.Is(err, ErrStore) || !errors.Is(err, cause) {
		t.Fatalf("expected ErrStore wrapping cause, got %v", err)
	}
}

func TestUserService_GetAndList(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(t, repo, nil)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob"} {
		if _, err := svc.Register(ctx, RegisterInput{Username: name, Email: name + "@x.io", Password: "pw"}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	user, err := svc.GetByID(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if user.Username != "bob" {
		t.Fatalf("expected bob, got %s", user.Username)
	}
	if _, err := svc.GetByID(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	users, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	repo.findErr = errors.New("db down")
	if _, err := svc.List(ctx); !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if _, err := svc.GetByID(ctx, 1); !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}

func TestUserService_UpdateKeepsIdentity(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(t, repo, nil)
	ctx := context.Background()

	original, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@x.io", Password: "pw", FirstName: "Alice"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	updated, err := svc.Update(ctx, original.ID, domain.UserUpdate{
		FirstName:   "Alicia",
		LastName:    "Smith",
		Email:       "alicia@x.io",
		Address:     "1 Main St",
		PhoneNumber: "555-0100",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != original.ID || updated.Username != "alice" || updated.PasswordHash != original.PasswordHash {
		t.Fatalf("identity fields changed: %+v", updated)
	}
	if updated.FirstName != "Alicia" || updated.Email != "alicia@x.io" || updated.PhoneNumber != "555-0100" {
		t.Fatalf("profile fields not applied: %+v", updated)
	}
	if _, err := svc.Authenticate(ctx, "alice", "pw"); err != nil {
		t.Fatalf("expected password to survive update: %v", err)
	}

	if _, err := svc.Update(ctx, 404, domain.UserUpdate{FirstName: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserService_ValidateTokenFailsClosed(t *testing.T) {
	svc := newTestUserService(t, newMockUserRepo(), nil)
	ctx := context.Background()
	for _, token := range []string{"", "  ", "not.a.jwt", "garbage"} {
		if svc.ValidateToken(ctx, token) {
			t.Fatalf("expected %q to be invalid", token)
		}
	}
}

func TestUserService_LogEventsNeverLeakPasswords(t *testing.T) {
	reporter := &captureReporter{}
	repo := newMockUserRepo()
	svc := newTestUserService(t, repo, reporter)
	tracer := trace.NewTracer(reporter, "user-service", zap.NewNop())

	ctx, _ := tracer.Start(context.Background(), "register_user", "POST", "/api/users/register", "")
	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@x.io", Password: "s3cr3t-pass"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "alice", "s3cr3t-pass"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	var logs int
	for _, evt := range reporter.events {
		if evt.EventType == telemetry.EventTypeLog {
			logs++
			if evt.TraceID != trace.TraceID(ctx) {
				t.Fatalf("log event not tagged with current trace: %+v", evt)
			}
		}
		if strings.Contains(evt.Message, "s3cr3t-pass") {
			t.Fatalf("password leaked in event: %+v", evt)
		}
	}
	if logs == 0 {
		t.Fatalf("expected log events to be reported")
	}
}
