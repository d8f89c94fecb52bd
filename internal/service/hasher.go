package service

import (
	"fmt"
	"strings"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

// Hasher es el almacén de credenciales: hash lento con sal y comparación.
// Se usa igual para contraseñas, códigos de verificación y códigos 2FA.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// NewHasher construye el hasher configurado. Verify reconoce ambos formatos,
// así los hashes existentes siguen validando si cambia el algoritmo.
func NewHasher(algorithm string, bcryptCost int) (Hasher, error) {
	bc := &bcryptHasher{cost: bcryptCost}
	if bc.cost == 0 {
		bc.cost = bcrypt.DefaultCost
	}
	ar := &argon2Hasher{cfg: argon2.DefaultConfig()}

	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", HasherBcrypt:
		return &multiHasher{primary: bc, bcrypt: bc, argon: ar}, nil
	case HasherArgon2id:
		return &multiHasher{primary: ar, bcrypt: bc, argon: ar}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", algorithm)
	}
}

type multiHasher struct {
	primary Hasher
	bcrypt  Hasher
	argon   Hasher
}

func (h *multiHasher) Hash(plain string) (string, error) {
	return h.primary.Hash(plain)
}

func (h *multiHasher) Verify(plain, hash string) bool {
	switch {
	case strings.HasPrefix(hash, "$argon2"):
		return h.argon.Verify(plain, hash)
	case strings.HasPrefix(hash, "$2"):
		return h.bcrypt.Verify(plain, hash)
	default:
		return false
	}
}

type bcryptHasher struct {
	cost int
}

func (h *bcryptHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(b), nil
}

func (h *bcryptHasher) Verify(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

type argon2Hasher struct {
	cfg argon2.Config
}

func (h *argon2Hasher) Hash(plain string) (string, error) {
	encoded, err := h.cfg.HashEncoded([]byte(plain))
	if err != nil {
		return "", fmt.Errorf("argon2 hash: %w", err)
	}
	return string(encoded), nil
}

func (h *argon2Hasher) Verify(plain, hash string) bool {
	if hash == "" {
		return false
	}
	ok, err := argon2.VerifyEncoded([]byte(plain), []byte(hash))
	return err == nil && ok
}
