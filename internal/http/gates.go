package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-gate/internal/captcha"
	"auth-gate/internal/domain"
)

const currentUserKey = "current_user"

// RedirectIfAuthenticated manda a /home a quien ya tiene sesión con el email
// verificado o el 2FA completado. Protege las páginas de invitado.
func (h *AuthHandler) RedirectIfAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok, err := h.flow.CurrentUser(c.Request.Context(), SessionID(c))
		if err != nil {
			h.logger.Error("guest gate lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": msgTryLater})
			return
		}
		if ok && (user.IsEmailVerified() || user.TwoFactorVerified) {
			c.Redirect(http.StatusSeeOther, "/home")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireTwoFactor cierra la sesión si el 2FA no está completo o su ventana
// expiró. Sin usuario autenticado deja pasar: RequireAuth decide después.
func (h *AuthHandler) RequireTwoFactor() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sid := SessionID(c)
		user, ok, err := h.flow.CurrentUser(ctx, sid)
		if err != nil {
			h.logger.Error("two factor gate lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": msgTryLater})
			return
		}
		if !ok {
			c.Next()
			return
		}
		if !user.TwoFactorSessionActive(h.clock.Now()) {
			if err := h.flow.ForceLogout(ctx, sid, &user); err != nil {
				h.logger.Error("force logout failed", zap.Error(err), zap.String("user_id", user.ID))
			}
			h.logger.Info("two factor session expired", zap.String("user_id", user.ID))
			h.rotateSession(c)
			h.redirect(c, "/login", FlashMessages{Error: msgSessionExpired}, nil)
			c.Abort()
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RequireAuth exige un usuario autenticado en la sesión.
func (h *AuthHandler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); ok {
			c.Next()
			return
		}
		user, ok, err := h.flow.CurrentUser(c.Request.Context(), SessionID(c))
		if err != nil {
			h.logger.Error("auth gate lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": msgTryLater})
			return
		}
		if !ok {
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RequireCaptcha valida el token del formulario y, si falla, vuelve a back.
func (h *AuthHandler) RequireCaptcha(back string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.captcha == nil {
			c.Next()
			return
		}
		token := c.PostForm("g-recaptcha-response")
		if token == "" {
			token = c.PostForm("cf-turnstile-response")
		}
		err := h.captcha.Verify(c.Request.Context(), token, c.ClientIP())
		if err == nil {
			c.Next()
			return
		}
		msg := msgCaptchaFailed
		if !errors.Is(err, captcha.ErrCaptchaFailed) {
			h.logger.Error("captcha verify failed", zap.Error(err))
			msg = msgTryLater
		}
		h.redirect(c, back, FlashMessages{Error: msg}, oldInput(c))
		c.Abort()
	}
}

// CurrentUser obtiene el usuario que dejaron los gates en el contexto.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}
