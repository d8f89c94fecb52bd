package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-gate/internal/captcha"
	"auth-gate/internal/domain"
	"auth-gate/internal/service"
)

const (
	msgTryLater        = "Something went wrong, please try again later."
	msgInvalidInput    = "Please correct the highlighted fields."
	msgBadCredentials  = "The credentials are not correct."
	msgInvalidCode     = "The code is not valid."
	msgEmailTaken      = "The email has already been taken."
	msgEmailSendFailed = "We could not send the email. Please request a new code."
	msgCaptchaFailed   = "Please complete the captcha."
	msgSessionExpired  = "Your session has expired, please sign in again."
)

// AuthHandler traduce peticiones HTTP a operaciones de service.AuthFlow.
type AuthHandler struct {
	logger       *zap.Logger
	flow         *service.AuthFlow
	tokens       *service.SessionTokenService
	secureCookie bool
	flash        *Flash
	captcha      captcha.Verifier
	clock        service.Clock
}

func NewAuthHandler(
	logger *zap.Logger,
	flow *service.AuthFlow,
	tokens *service.SessionTokenService,
	secureCookie bool,
	flash *Flash,
	verifier captcha.Verifier,
	clock service.Clock,
) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = service.SystemClock()
	}
	return &AuthHandler{
		logger:       logger,
		flow:         flow,
		tokens:       tokens,
		secureCookie: secureCookie,
		flash:        flash,
		captcha:      verifier,
		clock:        clock,
	}
}

type userView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// pageState reemplaza a la vista renderizada: página, mensajes e input previo.
type pageState struct {
	Page   string            `json:"page"`
	Status string            `json:"status,omitempty"`
	Error  string            `json:"error,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
	Old    map[string]string `json:"old,omitempty"`
	Email  string            `json:"email,omitempty"`
	User   *userView         `json:"user,omitempty"`
}

// Root maneja GET /.
func (h *AuthHandler) Root(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/login")
}

// ShowLogin maneja GET /login.
func (h *AuthHandler) ShowLogin(c *gin.Context) {
	h.page(c, pageState{Page: "login"})
}

// ShowRegister maneja GET /register.
func (h *AuthHandler) ShowRegister(c *gin.Context) {
	h.page(c, pageState{Page: "register"})
}

// ShowVerifyCode maneja GET /code/verify.
func (h *AuthHandler) ShowVerifyCode(c *gin.Context) {
	emailAddr, err := h.flow.PendingEmail(c.Request.Context(), SessionID(c), service.FlowRegistrationVerify)
	if err != nil {
		if errors.Is(err, service.ErrPendingSessionMissing) {
			h.redirect(c, "/register", FlashMessages{Error: "No email was found to verify."}, nil)
			return
		}
		h.logger.Error("load pending email failed", zap.Error(err))
		h.page(c, pageState{Page: "verify_code", Error: msgTryLater})
		return
	}
	h.page(c, pageState{Page: "verify_code", Email: emailAddr})
}

// ShowInactive maneja GET /code/inactive.
func (h *AuthHandler) ShowInactive(c *gin.Context) {
	emailAddr, err := h.flow.PendingEmail(c.Request.Context(), SessionID(c), service.FlowRegistrationVerify)
	if err != nil {
		if errors.Is(err, service.ErrPendingSessionMissing) {
			h.redirect(c, "/login", FlashMessages{Error: "No email was found to verify."}, nil)
			return
		}
		h.logger.Error("load pending email failed", zap.Error(err))
		h.page(c, pageState{Page: "inactive_account", Error: msgTryLater})
		return
	}
	h.page(c, pageState{Page: "inactive_account", Email: emailAddr})
}

// ShowTwoFactor maneja GET /two-factor/code.
func (h *AuthHandler) ShowTwoFactor(c *gin.Context) {
	emailAddr, err := h.flow.PendingEmail(c.Request.Context(), SessionID(c), service.FlowTwoFactor)
	if err != nil {
		if errors.Is(err, service.ErrPendingSessionMissing) {
			h.redirect(c, "/login", FlashMessages{Error: msgSessionExpired}, nil)
			return
		}
		h.logger.Error("load pending email failed", zap.Error(err))
		h.page(c, pageState{Page: "two_factor_code", Error: msgTryLater})
		return
	}
	h.page(c, pageState{Page: "two_factor_code", Email: emailAddr})
}

// Home maneja GET /home.
func (h *AuthHandler) Home(c *gin.Context) {
	user, _ := CurrentUser(c)
	h.page(c, pageState{Page: "home", User: newUserView(user)})
}

// Register maneja POST /register.
func (h *AuthHandler) Register(c *gin.Context) {
	var in service.RegisterInput
	if err := c.ShouldBind(&in); err != nil {
		h.logger.Warn("invalid register form", zap.Error(err))
	}
	old := oldInput(c)

	_, err := h.flow.Register(c.Request.Context(), SessionID(c), in)
	switch {
	case err == nil:
		h.redirect(c, "/code/verify", FlashMessages{Status: "A verification code was sent to your email."}, nil)
	case errors.Is(err, service.ErrEmailSendFailure):
		h.logger.Warn("verification email not sent", zap.Error(err))
		h.redirect(c, "/code/verify", FlashMessages{Error: msgEmailSendFailed}, nil)
	case errors.Is(err, service.ErrEmailTaken):
		h.redirect(c, "/register", FlashMessages{Error: msgInvalidInput, Errors: map[string]string{"email": msgEmailTaken}}, old)
	default:
		h.fail(c, "/register", err, old)
	}
}

// Login maneja POST /login.
func (h *AuthHandler) Login(c *gin.Context) {
	var in service.LoginInput
	if err := c.ShouldBind(&in); err != nil {
		h.logger.Warn("invalid login form", zap.Error(err))
	}
	old := oldInput(c)

	_, err := h.flow.Login(c.Request.Context(), SessionID(c), in)
	switch {
	case err == nil:
		h.redirect(c, "/two-factor/code", FlashMessages{Status: "A sign-in code was sent to your email."}, nil)
	case errors.Is(err, service.ErrEmailSendFailure):
		h.logger.Warn("two factor email not sent", zap.Error(err))
		h.redirect(c, "/two-factor/code", FlashMessages{Error: msgEmailSendFailed}, nil)
	case errors.Is(err, service.ErrEmailNotVerified):
		h.redirect(c, "/code/inactive", FlashMessages{Error: "Your account is not verified yet."}, nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		h.redirect(c, "/login", FlashMessages{Error: msgBadCredentials}, old)
	default:
		h.fail(c, "/login", err, old)
	}
}

// ValidateCode maneja POST /code.
func (h *AuthHandler) ValidateCode(c *gin.Context) {
	var in service.CodeInput
	if err := c.ShouldBind(&in); err != nil {
		h.logger.Warn("invalid code form", zap.Error(err))
	}

	_, err := h.flow.ValidateCode(c.Request.Context(), SessionID(c), in.Code)
	switch {
	case err == nil:
		h.redirect(c, "/login", FlashMessages{Status: "Your account is verified. You can sign in now."}, nil)
	case errors.Is(err, service.ErrPendingSessionMissing), errors.Is(err, service.ErrUserNotFound):
		h.redirect(c, "/register", FlashMessages{Error: "No email was found to verify."}, nil)
	case errors.Is(err, service.ErrInvalidCode):
		h.redirect(c, "/code/verify", FlashMessages{Error: msgInvalidCode}, nil)
	default:
		h.fail(c, "/code/verify", err, nil)
	}
}

// ResendCode maneja POST /resend/verification/code.
func (h *AuthHandler) ResendCode(c *gin.Context) {
	err := h.flow.ResendCode(c.Request.Context(), SessionID(c))
	switch {
	case err == nil:
		h.redirect(c, "/code/verify", FlashMessages{Status: "A new verification code was sent to your email."}, nil)
	case errors.Is(err, service.ErrEmailSendFailure):
		h.logger.Warn("verification email not sent", zap.Error(err))
		h.redirect(c, "/code/verify", FlashMessages{Error: msgEmailSendFailed}, nil)
	case errors.Is(err, service.ErrPendingSessionMissing), errors.Is(err, service.ErrUserNotFound):
		h.redirect(c, "/register", FlashMessages{Error: "No email was found to verify."}, nil)
	default:
		h.fail(c, "/code/verify", err, nil)
	}
}

// ValidateTwoFactorCode maneja POST /two-factor/verify/code.
func (h *AuthHandler) ValidateTwoFactorCode(c *gin.Context) {
	var in service.CodeInput
	if err := c.ShouldBind(&in); err != nil {
		h.logger.Warn("invalid two factor form", zap.Error(err))
	}

	_, sessionID, err := h.flow.ValidateTwoFactorCode(c.Request.Context(), SessionID(c), in.Code)
	switch {
	case err == nil:
		if err := h.startSession(c, sessionID); err != nil {
			h.logger.Error("issue authenticated session failed", zap.Error(err))
			h.redirect(c, "/login", FlashMessages{Error: msgTryLater}, nil)
			return
		}
		h.redirect(c, "/home", FlashMessages{Status: "Signed in successfully."}, nil)
	case errors.Is(err, service.ErrPendingSessionMissing), errors.Is(err, service.ErrUserNotFound):
		h.redirect(c, "/login", FlashMessages{Error: msgSessionExpired}, nil)
	case errors.Is(err, service.ErrInvalidCode):
		h.redirect(c, "/two-factor/code", FlashMessages{Error: msgInvalidCode}, nil)
	default:
		h.fail(c, "/two-factor/code", err, nil)
	}
}

// ResendTwoFactorCode maneja POST /resend/two-factor/verify/code.
func (h *AuthHandler) ResendTwoFactorCode(c *gin.Context) {
	err := h.flow.ResendTwoFactorCode(c.Request.Context(), SessionID(c))
	switch {
	case err == nil:
		h.redirect(c, "/two-factor/code", FlashMessages{Status: "A new sign-in code was sent to your email."}, nil)
	case errors.Is(err, service.ErrEmailSendFailure):
		h.logger.Warn("two factor email not sent", zap.Error(err))
		h.redirect(c, "/two-factor/code", FlashMessages{Error: msgEmailSendFailed}, nil)
	case errors.Is(err, service.ErrPendingSessionMissing), errors.Is(err, service.ErrUserNotFound):
		h.redirect(c, "/login", FlashMessages{Error: msgSessionExpired}, nil)
	default:
		h.fail(c, "/two-factor/code", err, nil)
	}
}

// Logout maneja POST /logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.flow.Logout(c.Request.Context(), SessionID(c)); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		h.redirect(c, "/home", FlashMessages{Error: msgTryLater}, nil)
		return
	}
	h.rotateSession(c)
	h.redirect(c, "/login", FlashMessages{Status: "You have been signed out."}, nil)
}

// startSession emite la cookie para sessionID y la usa en el resto de la petición.
func (h *AuthHandler) startSession(c *gin.Context, sessionID string) error {
	if h.tokens == nil {
		return service.ErrServiceNotConfigured
	}
	token, err := h.tokens.Sign(sessionID)
	if err != nil {
		return err
	}
	setSessionCookie(c, token, h.tokens.TTL(), h.secureCookie)
	c.Set(sessionIDKey, sessionID)
	return nil
}

// rotateSession cambia a una sesión anónima nueva tras destruir la anterior.
func (h *AuthHandler) rotateSession(c *gin.Context) {
	if h.tokens == nil {
		return
	}
	sessionID, token, err := h.tokens.NewSession()
	if err != nil {
		h.logger.Warn("rotate session failed", zap.Error(err))
		return
	}
	setSessionCookie(c, token, h.tokens.TTL(), h.secureCookie)
	c.Set(sessionIDKey, sessionID)
}

// fail resuelve los errores que no tienen una redirección propia.
func (h *AuthHandler) fail(c *gin.Context, back string, err error, old map[string]string) {
	msg := FlashMessages{Error: msgTryLater}
	switch service.KindOf(err) {
	case service.KindValidation:
		msg.Error = msgInvalidInput
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			msg.Errors = verr.Fields
		}
	case service.KindCredential, service.KindExpiry:
		msg.Error = msgInvalidCode
	default:
		h.logger.Error("request failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
	}
	h.redirect(c, back, msg, old)
}

// redirect guarda el flash y el input previo en la sesión y responde 303.
func (h *AuthHandler) redirect(c *gin.Context, to string, msg FlashMessages, old map[string]string) {
	ctx := c.Request.Context()
	sid := SessionID(c)
	if h.flash != nil {
		if err := h.flash.Put(ctx, sid, msg); err != nil {
			h.logger.Warn("store flash failed", zap.Error(err))
		}
		if err := h.flash.PutOld(ctx, sid, old); err != nil {
			h.logger.Warn("store old input failed", zap.Error(err))
		}
	}
	c.Redirect(http.StatusSeeOther, to)
}

func (h *AuthHandler) page(c *gin.Context, state pageState) {
	if h.flash != nil {
		ctx := c.Request.Context()
		sid := SessionID(c)
		msg, err := h.flash.Pull(ctx, sid)
		if err != nil {
			h.logger.Warn("load flash failed", zap.Error(err))
		}
		if state.Error == "" {
			state.Error = msg.Error
		}
		state.Status = msg.Status
		state.Errors = msg.Errors
		if state.Old, err = h.flash.PullOld(ctx, sid); err != nil {
			h.logger.Warn("load old input failed", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, state)
}

// oldInput conserva los campos que se devuelven al formulario. Las
// contraseñas y códigos no se guardan.
func oldInput(c *gin.Context) map[string]string {
	old := make(map[string]string)
	for _, field := range []string{"name", "email"} {
		if v := c.PostForm(field); v != "" {
			old[field] = v
		}
	}
	return old
}

func newUserView(user domain.User) *userView {
	if user.ID == "" {
		return nil
	}
	return &userView{ID: user.ID, Name: user.Name, Email: user.Email}
}
