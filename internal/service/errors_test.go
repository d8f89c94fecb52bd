package service

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{&ValidationError{Fields: map[string]string{"email": "required"}}, KindValidation},
		{fmt.Errorf("register: %w", ErrEmailTaken), KindValidation},
		{ErrInvalidCodeFormat, KindValidation},
		{fmt.Errorf("%w: %w", ErrInvalidCode, ErrCodeExpired), KindExpiry},
		{fmt.Errorf("%w: %w", ErrInvalidCode, ErrCodeMismatch), KindCredential},
		{ErrInvalidCredentials, KindCredential},
		{ErrPendingSessionMissing, KindLookup},
		{ErrNotAuthenticated, KindLookup},
		{fmt.Errorf("%w: smtp down", ErrEmailSendFailure), KindDownstream},
		{errors.New("connection refused"), KindDownstream},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"password": "x", "email": "y"}}
	if got := err.Error(); got != "validation failed: email, password" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := (&ValidationError{}).Error(); got != "validation failed" {
		t.Fatalf("unexpected message %q", got)
	}
}
