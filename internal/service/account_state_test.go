package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"auth-gate/internal/domain"
)

func newTestAccountState(t *testing.T, repo *mockUserRepo, clock *testClock, codes ...string) *AccountState {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{"123456"}
	}
	return NewAccountState(repo, &sequenceCodes{codes: codes}, newTestHasher(t), clock, 10*time.Minute, 10*time.Minute)
}

func seedUser(t *testing.T, repo *mockUserRepo, user domain.User) domain.User {
	t.Helper()
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestAccountStateVerifyCode(t *testing.T) {
	clock := newTestClock()
	state := newTestAccountState(t, newMockUserRepo(), clock)
	hash, err := state.hasher.Hash("123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	future := clock.Now().Add(5 * time.Minute)
	past := clock.Now().Add(-time.Second)

	if !state.VerifyCode("123456", hash, &future) {
		t.Fatalf("expected valid unexpired code to verify")
	}
	if state.VerifyCode("123456", hash, &past) {
		t.Fatalf("expected expired code to fail even when correct")
	}
	if state.VerifyCode("654321", hash, &future) {
		t.Fatalf("expected wrong code to fail")
	}
	if !state.VerifyCode("123456", hash, nil) {
		t.Fatalf("expected code without expiry to be checked against the hash only")
	}
	if state.VerifyCode("123456", "", &future) {
		t.Fatalf("expected missing hash to fail")
	}
}

func TestAccountStateCheckCode_Reasons(t *testing.T) {
	clock := newTestClock()
	state := newTestAccountState(t, newMockUserRepo(), clock)
	hash, _ := state.hasher.Hash("123456")
	future := clock.Now().Add(time.Minute)
	past := clock.Now().Add(-time.Minute)

	if err := state.CheckCode("123456", hash, &past); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
	if err := state.CheckCode("000000", hash, &past); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected expiry to dominate a wrong code, got %v", err)
	}
	if err := state.CheckCode("000000", hash, &future); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
	if err := state.CheckCode("000000", "", nil); !errors.Is(err, ErrCodeNotIssued) {
		t.Fatalf("expected ErrCodeNotIssued, got %v", err)
	}
}

func TestAccountStateIssueVerificationCode_ResetsVerification(t *testing.T) {
	repo := newMockUserRepo()
	clock := newTestClock()
	state := newTestAccountState(t, repo, clock, "000042")
	verifiedAt := clock.Now().Add(-time.Hour)
	user := seedUser(t, repo, domain.User{ID: "u1", Email: "a@x.com", EmailVerifiedAt: &verifiedAt})

	code, err := state.IssueVerificationCode(context.Background(), &user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if code != "000042" {
		t.Fatalf("expected generated code, got %q", code)
	}
	stored := repo.usersByID["u1"]
	if stored.EmailVerifiedAt != nil || user.EmailVerifiedAt != nil {
		t.Fatalf("expected email_verified_at cleared")
	}
	if stored.VerificationCodeHash == "" || stored.VerificationCodeHash == code {
		t.Fatalf("expected hashed code stored, got %q", stored.VerificationCodeHash)
	}
	if stored.VerificationCodeExpiresAt == nil || !stored.VerificationCodeExpiresAt.Equal(clock.Now().Add(10*time.Minute)) {
		t.Fatalf("expected 10 minute expiry, got %v", stored.VerificationCodeExpiresAt)
	}
	if !state.VerifyCode(code, stored.VerificationCodeHash, stored.VerificationCodeExpiresAt) {
		t.Fatalf("expected issued code to verify")
	}
}

func TestAccountStateConfirmEmailVerified(t *testing.T) {
	repo := newMockUserRepo()
	clock := newTestClock()
	state := newTestAccountState(t, repo, clock)
	user := seedUser(t, repo, domain.User{ID: "u1", Email: "a@x.com"})
	if _, err := state.IssueVerificationCode(context.Background(), &user); err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := state.ConfirmEmailVerified(context.Background(), &user); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	stored := repo.usersByID["u1"]
	if stored.EmailVerifiedAt == nil || !stored.EmailVerifiedAt.Equal(clock.Now()) {
		t.Fatalf("expected email verified now, got %v", stored.EmailVerifiedAt)
	}
	if stored.HasPendingVerificationCode() || stored.VerificationCodeHash != "" || stored.VerificationCodeExpiresAt != nil {
		t.Fatalf("expected verification code and expiry cleared together")
	}
}

func TestAccountStateTwoFactorLifecycle(t *testing.T) {
	repo := newMockUserRepo()
	clock := newTestClock()
	state := newTestAccountState(t, repo, clock, "777777")
	user := seedUser(t, repo, domain.User{ID: "u1", Email: "a@x.com"})

	code, err := state.IssueTwoFactorCode(context.Background(), &user)
	if err != nil {
		t.Fatalf("issue 2fa: %v", err)
	}
	stored := repo.usersByID["u1"]
	if !stored.HasPendingTwoFactorCode() {
		t.Fatalf("expected 2fa code and expiry set together")
	}
	if stored.TwoFactorSessionExpiresAt == nil || !stored.TwoFactorSessionExpiresAt.Equal(clock.Now().Add(10*time.Minute)) {
		t.Fatalf("expected session window bounded from issuance, got %v", stored.TwoFactorSessionExpiresAt)
	}
	if stored.TwoFactorVerified {
		t.Fatalf("issuing a code must not verify 2fa")
	}
	if !state.VerifyCode(code, stored.TwoFactorCodeHash, stored.TwoFactorCodeExpiresAt) {
		t.Fatalf("expected 2fa code to verify")
	}

	clock.Advance(3 * time.Minute)
	if err := state.CompleteTwoFactor(context.Background(), &user); err != nil {
		t.Fatalf("complete: %v", err)
	}
	stored = repo.usersByID["u1"]
	if !stored.TwoFactorVerified || stored.TwoFactorCodeHash != "" || stored.TwoFactorCodeExpiresAt != nil {
		t.Fatalf("expected 2fa verified with code cleared, got %+v", stored)
	}
	if !stored.TwoFactorSessionExpiresAt.Equal(clock.Now().Add(10 * time.Minute)) {
		t.Fatalf("expected session window refreshed on completion, got %v", stored.TwoFactorSessionExpiresAt)
	}

	if _, err := state.IssueTwoFactorCode(context.Background(), &user); err != nil {
		t.Fatalf("reissue: %v", err)
	}
	if err := state.RevokeTwoFactor(context.Background(), &user); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	stored = repo.usersByID["u1"]
	if stored.TwoFactorVerified || stored.TwoFactorSessionExpiresAt != nil || stored.TwoFactorCodeHash != "" || stored.TwoFactorCodeExpiresAt != nil {
		t.Fatalf("expected all 2fa state cleared, got %+v", stored)
	}
}

func TestAccountState_PersistFailureLeavesUserUntouched(t *testing.T) {
	repo := newMockUserRepo()
	state := newTestAccountState(t, repo, newTestClock())
	user := domain.User{ID: "ghost", Email: "ghost@x.com"}

	if _, err := state.IssueVerificationCode(context.Background(), &user); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if user.VerificationCodeHash != "" || user.VerificationCodeExpiresAt != nil {
		t.Fatalf("expected in-memory user unchanged on persist failure")
	}

	seedUser(t, repo, domain.User{ID: "u1", Email: "a@x.com"})
	repo.err = errors.New("db down")
	existing := domain.User{ID: "u1", Email: "a@x.com"}
	if err := state.CompleteTwoFactor(context.Background(), &existing); err == nil || errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
	if existing.TwoFactorVerified {
		t.Fatalf("expected in-memory user unchanged on storage error")
	}
}
