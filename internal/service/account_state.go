package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auth-gate/internal/domain"
	"auth-gate/internal/repository"
)

const (
	defaultCodeTTL         = 10 * time.Minute
	defaultTwoFactorWindow = 10 * time.Minute
)

// AccountState gestiona el ciclo de vida código/expiración de cada usuario.
// Todas las operaciones que mutan el usuario lo persisten antes de devolver.
type AccountState struct {
	users           repository.UserRepository
	codes           CodeGenerator
	hasher          Hasher
	clock           Clock
	codeTTL         time.Duration
	twoFactorWindow time.Duration
}

func NewAccountState(users repository.UserRepository, codes CodeGenerator, hasher Hasher, clock Clock, codeTTL, twoFactorWindow time.Duration) *AccountState {
	if codes == nil {
		codes = NewCodeGenerator()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if codeTTL <= 0 {
		codeTTL = defaultCodeTTL
	}
	if twoFactorWindow <= 0 {
		twoFactorWindow = defaultTwoFactorWindow
	}
	return &AccountState{
		users:           users,
		codes:           codes,
		hasher:          hasher,
		clock:           clock,
		codeTTL:         codeTTL,
		twoFactorWindow: twoFactorWindow,
	}
}

// PrepareVerificationCode genera un código nuevo y deja su hash y expiración en
// user sin persistir. El alta lo usa para crear el usuario ya con su código.
func (a *AccountState) PrepareVerificationCode(user *domain.User) (string, error) {
	code, hash, err := a.newCode()
	if err != nil {
		return "", err
	}
	now := a.clock.Now()
	expiresAt := now.Add(a.codeTTL)
	user.VerificationCodeHash = hash
	user.VerificationCodeExpiresAt = &expiresAt
	user.EmailVerifiedAt = nil
	user.UpdatedAt = now
	return code, nil
}

// IssueVerificationCode reemplaza el código de verificación y obliga a
// verificar de nuevo el email. Devuelve el código en claro para el envío.
func (a *AccountState) IssueVerificationCode(ctx context.Context, user *domain.User) (string, error) {
	updated := *user
	code, err := a.PrepareVerificationCode(&updated)
	if err != nil {
		return "", err
	}
	if err := a.save(ctx, user, updated); err != nil {
		return "", err
	}
	return code, nil
}

func (a *AccountState) ConfirmEmailVerified(ctx context.Context, user *domain.User) error {
	updated := *user
	now := a.clock.Now()
	updated.EmailVerifiedAt = &now
	updated.VerificationCodeHash = ""
	updated.VerificationCodeExpiresAt = nil
	updated.UpdatedAt = now
	return a.save(ctx, user, updated)
}

// IssueTwoFactorCode guarda un código 2FA nuevo. También acota desde ahora la
// ventana de sesión 2FA que se abrirá al completarlo.
func (a *AccountState) IssueTwoFactorCode(ctx context.Context, user *domain.User) (string, error) {
	code, hash, err := a.newCode()
	if err != nil {
		return "", err
	}
	updated := *user
	now := a.clock.Now()
	codeExpiresAt := now.Add(a.codeTTL)
	sessionExpiresAt := now.Add(a.twoFactorWindow)
	updated.TwoFactorCodeHash = hash
	updated.TwoFactorCodeExpiresAt = &codeExpiresAt
	updated.TwoFactorSessionExpiresAt = &sessionExpiresAt
	updated.UpdatedAt = now
	if err := a.save(ctx, user, updated); err != nil {
		return "", err
	}
	return code, nil
}

func (a *AccountState) CompleteTwoFactor(ctx context.Context, user *domain.User) error {
	updated := *user
	now := a.clock.Now()
	sessionExpiresAt := now.Add(a.twoFactorWindow)
	updated.TwoFactorCodeHash = ""
	updated.TwoFactorCodeExpiresAt = nil
	updated.TwoFactorVerified = true
	updated.TwoFactorSessionExpiresAt = &sessionExpiresAt
	updated.UpdatedAt = now
	return a.save(ctx, user, updated)
}

// RevokeTwoFactor limpia todo el estado 2FA de una vez (logout o expiración).
func (a *AccountState) RevokeTwoFactor(ctx context.Context, user *domain.User) error {
	updated := *user
	updated.TwoFactorVerified = false
	updated.TwoFactorSessionExpiresAt = nil
	updated.TwoFactorCodeHash = ""
	updated.TwoFactorCodeExpiresAt = nil
	updated.UpdatedAt = a.clock.Now()
	return a.save(ctx, user, updated)
}

// VerifyCode indica si submitted corresponde a storedHash y sigue vigente.
// La expiración se evalúa primero: un código correcto pero vencido falla.
func (a *AccountState) VerifyCode(submitted, storedHash string, storedExpiry *time.Time) bool {
	return a.CheckCode(submitted, storedHash, storedExpiry) == nil
}

// CheckCode es VerifyCode con el motivo del rechazo, solo para uso interno.
func (a *AccountState) CheckCode(submitted, storedHash string, storedExpiry *time.Time) error {
	if storedExpiry != nil && a.clock.Now().After(*storedExpiry) {
		return ErrCodeExpired
	}
	if storedHash == "" {
		return ErrCodeNotIssued
	}
	if !a.hasher.Verify(submitted, storedHash) {
		return ErrCodeMismatch
	}
	return nil
}

func (a *AccountState) newCode() (string, string, error) {
	if a.hasher == nil {
		return "", "", ErrServiceNotConfigured
	}
	code, err := a.codes.Generate()
	if err != nil {
		return "", "", err
	}
	hash, err := a.hasher.Hash(code)
	if err != nil {
		return "", "", err
	}
	return code, hash, nil
}

// save persiste updated y, solo si tuvo éxito, lo copia sobre user.
func (a *AccountState) save(ctx context.Context, user *domain.User, updated domain.User) error {
	if a.users == nil {
		return ErrServiceNotConfigured
	}
	if err := a.users.Update(ctx, updated); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("persist user %s: %w", updated.ID, err)
	}
	*user = updated
	return nil
}
