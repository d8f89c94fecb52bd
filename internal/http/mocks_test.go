package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"auth-gate/internal/captcha"
	"auth-gate/internal/domain"
	"auth-gate/internal/email"
	"auth-gate/internal/repository"
	"auth-gate/internal/service"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	lookups      int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, emailAddr string) (domain.User, error) {
	m.mu.Lock()
	m.lookups++
	id, ok := m.usersByEmail[emailAddr]
	m.mu.Unlock()
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) Update(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.usersByID[user.ID]; !ok {
		return repository.ErrNotFound
	}
	m.usersByID[user.ID] = user
	return nil
}

type mockEmailSender struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *mockEmailSender) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type fixedCodes string

func (f fixedCodes) Generate() (string, error) { return string(f), nil }

type testClock struct {
	mu  sync.Mutex
	now time.Time
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

type stubVerifier struct {
	err error
}

func (s stubVerifier) Verify(context.Context, string, string) error { return s.err }

type testApp struct {
	router *gin.Engine
	repo   *mockUserRepo
	sender *mockEmailSender
	clock  *testClock
	cookie *http.Cookie
}

const testCode = "424242"

func newTestApp(t *testing.T, verifier captcha.Verifier) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	hasher, err := service.NewHasher(service.HasherBcrypt, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	validator, err := service.NewValidator()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	sessions := service.NewMemorySessionStore(clock)
	state := service.NewAccountState(repo, fixedCodes(testCode), hasher, clock, 10*time.Minute, 10*time.Minute)
	flow := service.NewAuthFlow(
		zap.NewNop(),
		repo,
		state,
		service.NewPendingVerification(sessions, 10*time.Minute),
		sessions,
		hasher,
		sender,
		validator,
		service.AuthFlowOptions{TwoFactorEmail: true, PrincipalTTL: time.Hour},
	)
	tokens := service.NewSessionTokenService("test-secret", 2*time.Hour, clock)
	handler := NewAuthHandler(zap.NewNop(), flow, tokens, false, NewFlash(sessions, 10*time.Minute), verifier, clock)

	return &testApp{
		router: NewRouter(zap.NewNop(), handler),
		repo:   repo,
		sender: sender,
		clock:  clock,
	}
}

// do envía la petición con la cookie de sesión actual y guarda la nueva si llega.
func (a *testApp) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookieName {
			a.cookie = ck
		}
	}
	return rec
}

func (a *testApp) user(t *testing.T, emailAddr string) domain.User {
	t.Helper()
	user, err := a.repo.GetByEmail(context.Background(), emailAddr)
	if err != nil {
		t.Fatalf("load user %s: %v", emailAddr, err)
	}
	return user
}

func registerForm(emailAddr string) url.Values {
	return url.Values{
		"name":                  {"Alice"},
		"email":                 {emailAddr},
		"password":              {"Str0ng!Pass1"},
		"password_confirmation": {"Str0ng!Pass1"},
	}
}
