package service

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_SaltedAndVerifiable(t *testing.T) {
	for _, alg := range []string{HasherBcrypt, HasherArgon2id} {
		t.Run(alg, func(t *testing.T) {
			h, err := NewHasher(alg, bcrypt.MinCost)
			if err != nil {
				t.Fatalf("new hasher: %v", err)
			}
			a, err := h.Hash("123456")
			if err != nil {
				t.Fatalf("hash: %v", err)
			}
			b, err := h.Hash("123456")
			if err != nil {
				t.Fatalf("hash: %v", err)
			}
			if a == b {
				t.Fatalf("expected salted hashes to differ")
			}
			if strings.Contains(a, "123456") {
				t.Fatalf("hash must not contain the plaintext")
			}
			if !h.Verify("123456", a) || !h.Verify("123456", b) {
				t.Fatalf("expected both hashes to verify")
			}
			if h.Verify("654321", a) {
				t.Fatalf("expected wrong plaintext to fail")
			}
		})
	}
}

func TestHasher_VerifiesAcrossAlgorithms(t *testing.T) {
	bc, err := NewHasher(HasherBcrypt, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("new bcrypt hasher: %v", err)
	}
	ar, err := NewHasher(HasherArgon2id, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("new argon2 hasher: %v", err)
	}
	bHash, _ := bc.Hash("Str0ng!Pass1")
	aHash, _ := ar.Hash("Str0ng!Pass1")
	if !strings.HasPrefix(aHash, "$argon2id$") {
		t.Fatalf("expected argon2id encoding, got %q", aHash)
	}
	if !ar.Verify("Str0ng!Pass1", bHash) || !bc.Verify("Str0ng!Pass1", aHash) {
		t.Fatalf("expected hashes to verify regardless of primary algorithm")
	}
}

func TestHasher_RejectsUnknownAndEmpty(t *testing.T) {
	if _, err := NewHasher("md5", 0); err == nil {
		t.Fatalf("expected error for unknown algorithm")
	}
	h := newTestHasher(t)
	if h.Verify("x", "") || h.Verify("x", "plaintext") {
		t.Fatalf("expected empty or unknown hash format to fail")
	}
}
