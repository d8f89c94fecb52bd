package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auth-gate/internal/domain"
	"auth-gate/internal/email"
	"auth-gate/internal/repository"
)

const principalKey = "auth:user_id"

// AuthFlowOptions ajusta el comportamiento del flujo.
type AuthFlowOptions struct {
	// TwoFactorEmail envía el código 2FA por correo al emitirlo.
	TwoFactorEmail bool
	// PrincipalTTL es la vida máxima de la sesión autenticada.
	PrincipalTTL time.Duration
}

// AuthFlow coordina alta, verificación de email, login, 2FA y logout.
// No conoce HTTP: cada operación recibe el id de la sesión del navegador.
type AuthFlow struct {
	logger    *zap.Logger
	users     repository.UserRepository
	state     *AccountState
	pending   *PendingVerification
	sessions  SessionStore
	hasher    Hasher
	sender    email.Sender
	validator *Validator
	opts      AuthFlowOptions

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthFlow(
	logger *zap.Logger,
	users repository.UserRepository,
	state *AccountState,
	pending *PendingVerification,
	sessions SessionStore,
	hasher Hasher,
	sender email.Sender,
	validator *Validator,
	opts AuthFlowOptions,
) *AuthFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PrincipalTTL <= 0 {
		opts.PrincipalTTL = 2 * time.Hour
	}
	return &AuthFlow{
		logger:    logger,
		users:     users,
		state:     state,
		pending:   pending,
		sessions:  sessions,
		hasher:    hasher,
		sender:    sender,
		validator: validator,
		opts:      opts,
	}
}

func (f *AuthFlow) configured() bool {
	return f != nil && f.users != nil && f.state != nil && f.pending != nil &&
		f.sessions != nil && f.hasher != nil && f.validator != nil
}

// Register crea la cuenta sin verificar, emite el código de verificación y
// deja el email en la ranura de registro. No inicia sesión.
func (f *AuthFlow) Register(ctx context.Context, sessionID string, in RegisterInput) (domain.User, error) {
	if !f.configured() {
		return domain.User{}, ErrServiceNotConfigured
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := f.validator.Struct(in); err != nil {
		return domain.User{}, err
	}

	if _, err := f.users.GetByEmail(ctx, in.Email); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, fmt.Errorf("lookup email: %w", err)
	}

	passwordHash, err := f.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	now := f.state.clock.Now()
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	code, err := f.state.PrepareVerificationCode(&user)
	if err != nil {
		return domain.User{}, err
	}
	if err := f.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	if err := f.pending.Set(ctx, sessionID, FlowRegistrationVerify, user.Email); err != nil {
		return domain.User{}, err
	}

	f.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, f.dispatch(ctx, verificationMessage(user, code))
}

// ValidateCode confirma el email del usuario pendiente en esta sesión.
func (f *AuthFlow) ValidateCode(ctx context.Context, sessionID, code string) (domain.User, error) {
	if !f.configured() {
		return domain.User{}, ErrServiceNotConfigured
	}
	code = normalizeCode(code)
	if err := f.validator.Struct(CodeInput{Code: code}); err != nil {
		return domain.User{}, err
	}
	user, err := f.pendingUser(ctx, sessionID, FlowRegistrationVerify)
	if err != nil {
		return domain.User{}, err
	}
	if err := f.state.CheckCode(code, user.VerificationCodeHash, user.VerificationCodeExpiresAt); err != nil {
		f.logger.Info("verification code rejected", zap.String("user_id", user.ID), zap.String("reason", err.Error()))
		return domain.User{}, fmt.Errorf("%w: %w", ErrInvalidCode, err)
	}
	if err := f.state.ConfirmEmailVerified(ctx, &user); err != nil {
		return domain.User{}, err
	}
	if err := f.pending.Clear(ctx, sessionID, FlowRegistrationVerify); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// ResendCode emite y envía un código de verificación nuevo.
func (f *AuthFlow) ResendCode(ctx context.Context, sessionID string) error {
	if !f.configured() {
		return ErrServiceNotConfigured
	}
	user, err := f.pendingUser(ctx, sessionID, FlowRegistrationVerify)
	if err != nil {
		return err
	}
	code, err := f.state.IssueVerificationCode(ctx, &user)
	if err != nil {
		return err
	}
	if err := f.pending.Set(ctx, sessionID, FlowRegistrationVerify, user.Email); err != nil {
		return err
	}
	return f.dispatch(ctx, verificationMessage(user, code))
}

// Login comprueba las credenciales y emite el código 2FA. La sesión no queda
// autenticada hasta ValidateTwoFactorCode. Email desconocido y contraseña
// incorrecta devuelven el mismo ErrInvalidCredentials.
func (f *AuthFlow) Login(ctx context.Context, sessionID string, in LoginInput) (domain.User, error) {
	if !f.configured() {
		return domain.User{}, ErrServiceNotConfigured
	}
	in.Email = normalizeEmail(in.Email)
	if err := f.validator.Struct(in); err != nil {
		return domain.User{}, err
	}

	user, err := f.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			f.hasher.Verify(in.Password, f.dummyPasswordHash())
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("lookup email: %w", err)
	}
	if !f.hasher.Verify(in.Password, user.PasswordHash) {
		return domain.User{}, ErrInvalidCredentials
	}

	if !user.IsEmailVerified() {
		if err := f.pending.Set(ctx, sessionID, FlowRegistrationVerify, user.Email); err != nil {
			return domain.User{}, err
		}
		return domain.User{}, ErrEmailNotVerified
	}

	code, err := f.state.IssueTwoFactorCode(ctx, &user)
	if err != nil {
		return domain.User{}, err
	}
	if err := f.pending.Set(ctx, sessionID, FlowTwoFactor, user.Email); err != nil {
		return domain.User{}, err
	}
	if !f.opts.TwoFactorEmail {
		return user, nil
	}
	return user, f.dispatch(ctx, twoFactorMessage(user, code))
}

// ValidateTwoFactorCode completa el 2FA y autentica al usuario en una sesión
// nueva. Devuelve el id de esa sesión; la anterior se destruye, así un id
// conocido antes del login nunca queda autenticado.
func (f *AuthFlow) ValidateTwoFactorCode(ctx context.Context, sessionID, code string) (domain.User, string, error) {
	if !f.configured() {
		return domain.User{}, "", ErrServiceNotConfigured
	}
	code = normalizeCode(code)
	if err := f.validator.Struct(CodeInput{Code: code}); err != nil {
		return domain.User{}, "", err
	}
	user, err := f.pendingUser(ctx, sessionID, FlowTwoFactor)
	if err != nil {
		return domain.User{}, "", err
	}
	if err := f.state.CheckCode(code, user.TwoFactorCodeHash, user.TwoFactorCodeExpiresAt); err != nil {
		f.logger.Info("two factor code rejected", zap.String("user_id", user.ID), zap.String("reason", err.Error()))
		return domain.User{}, "", fmt.Errorf("%w: %w", ErrInvalidCode, err)
	}
	if err := f.state.CompleteTwoFactor(ctx, &user); err != nil {
		return domain.User{}, "", err
	}
	newSessionID := uuid.NewString()
	if err := f.sessions.Set(ctx, newSessionID, principalKey, user.ID, f.opts.PrincipalTTL); err != nil {
		return domain.User{}, "", err
	}
	if err := f.sessions.Destroy(ctx, sessionID); err != nil {
		return domain.User{}, "", err
	}
	f.logger.Info("user authenticated", zap.String("user_id", user.ID))
	return user, newSessionID, nil
}

// ResendTwoFactorCode emite un código 2FA nuevo para el login en curso.
func (f *AuthFlow) ResendTwoFactorCode(ctx context.Context, sessionID string) error {
	if !f.configured() {
		return ErrServiceNotConfigured
	}
	user, err := f.pendingUser(ctx, sessionID, FlowTwoFactor)
	if err != nil {
		return err
	}
	code, err := f.state.IssueTwoFactorCode(ctx, &user)
	if err != nil {
		return err
	}
	if err := f.pending.Set(ctx, sessionID, FlowTwoFactor, user.Email); err != nil {
		return err
	}
	if !f.opts.TwoFactorEmail {
		return nil
	}
	return f.dispatch(ctx, twoFactorMessage(user, code))
}

// Logout revoca el 2FA del usuario actual y destruye la sesión.
func (f *AuthFlow) Logout(ctx context.Context, sessionID string) error {
	if !f.configured() {
		return ErrServiceNotConfigured
	}
	user, ok, err := f.CurrentUser(ctx, sessionID)
	if err != nil {
		return err
	}
	if ok {
		return f.ForceLogout(ctx, sessionID, &user)
	}
	return f.sessions.Destroy(ctx, sessionID)
}

// ForceLogout revoca el 2FA de user y destruye la sesión.
func (f *AuthFlow) ForceLogout(ctx context.Context, sessionID string, user *domain.User) error {
	if !f.configured() {
		return ErrServiceNotConfigured
	}
	if err := f.state.RevokeTwoFactor(ctx, user); err != nil && !errors.Is(err, ErrUserNotFound) {
		return err
	}
	return f.sessions.Destroy(ctx, sessionID)
}

// CurrentUser devuelve el usuario autenticado en la sesión, si lo hay.
func (f *AuthFlow) CurrentUser(ctx context.Context, sessionID string) (domain.User, bool, error) {
	if !f.configured() {
		return domain.User{}, false, ErrServiceNotConfigured
	}
	if strings.TrimSpace(sessionID) == "" {
		return domain.User{}, false, nil
	}
	userID, ok, err := f.sessions.Get(ctx, sessionID, principalKey)
	if err != nil || !ok || userID == "" {
		return domain.User{}, false, err
	}
	user, err := f.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, false, f.sessions.Delete(ctx, sessionID, principalKey)
		}
		return domain.User{}, false, fmt.Errorf("lookup principal: %w", err)
	}
	return user, true, nil
}

// PendingEmail devuelve el email en espera para flow en esta sesión.
func (f *AuthFlow) PendingEmail(ctx context.Context, sessionID string, flow Flow) (string, error) {
	if !f.configured() {
		return "", ErrServiceNotConfigured
	}
	return f.pending.Get(ctx, sessionID, flow)
}

// pendingUser resuelve la ranura de flow y busca al usuario. Sin ranura no se
// intenta ninguna búsqueda.
func (f *AuthFlow) pendingUser(ctx context.Context, sessionID string, flow Flow) (domain.User, error) {
	emailAddr, err := f.pending.Get(ctx, sessionID, flow)
	if err != nil {
		return domain.User{}, err
	}
	user, err := f.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("lookup pending user: %w", err)
	}
	return user, nil
}

// dispatch envía msg. Un fallo no deshace el estado ya persistido.
func (f *AuthFlow) dispatch(ctx context.Context, msg email.Message) error {
	if f.sender == nil {
		f.logger.Warn("email sender not configured", zap.String("to", msg.To))
		return ErrEmailSendFailure
	}
	if err := f.sender.Send(ctx, msg); err != nil {
		f.logger.Warn("send email failed", zap.Error(err), zap.String("to", msg.To), zap.String("subject", msg.Subject))
		return fmt.Errorf("%w: %w", ErrEmailSendFailure, err)
	}
	return nil
}

func (f *AuthFlow) dummyPasswordHash() string {
	f.dummyOnce.Do(func() {
		hash, err := f.hasher.Hash(uuid.NewString())
		if err != nil {
			f.logger.Warn("dummy hash failed", zap.Error(err))
			return
		}
		f.dummyHash = hash
	})
	return f.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
