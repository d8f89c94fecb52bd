package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"auth-gate/internal/domain"
	"auth-gate/internal/email"
	"auth-gate/internal/repository"
)

type mockUserRepo struct {
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	updates      int
	lookups      int
	err          error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	if m.err != nil {
		return domain.User{}, m.err
	}
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.lookups++
	if m.err != nil {
		return domain.User{}, m.err
	}
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) Update(_ context.Context, user domain.User) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.usersByID[user.ID]; !ok {
		return repository.ErrNotFound
	}
	m.updates++
	m.usersByID[user.ID] = user
	return nil
}

type mockEmailSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (m *mockEmailSender) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *mockEmailSender) last() (email.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return email.Message{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// sequenceCodes devuelve los códigos en orden y repite el último.
type sequenceCodes struct {
	codes []string
	next  int
}

func (s *sequenceCodes) Generate() (string, error) {
	code := s.codes[s.next]
	if s.next < len(s.codes)-1 {
		s.next++
	}
	return code, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestHasher(t *testing.T) Hasher {
	t.Helper()
	h, err := NewHasher(HasherBcrypt, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return h
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	return v
}
