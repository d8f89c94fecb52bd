package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-gate/internal/service"
)

const (
	sessionCookieName = "auth_session"
	sessionIDKey      = "session_id"

	flashKey    = "flash"
	oldInputKey = "old_input"
)

// SessionMiddleware lee la cookie de sesión firmada o emite una nueva, y deja
// el id de sesión en el contexto.
func SessionMiddleware(logger *zap.Logger, tokens *service.SessionTokenService, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sessions not configured"})
			return
		}

		var sessionID string
		if raw, err := c.Cookie(sessionCookieName); err == nil && raw != "" {
			if sid, err := tokens.Parse(raw); err == nil {
				sessionID = sid
			}
		}
		if sessionID == "" {
			sid, token, err := tokens.NewSession()
			if err != nil {
				logger.Error("issue session failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
				return
			}
			sessionID = sid
			setSessionCookie(c, token, tokens.TTL(), secure)
		}

		c.Set(sessionIDKey, sessionID)
		c.Next()
	}
}

func setSessionCookie(c *gin.Context, token string, ttl time.Duration, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, token, int(ttl.Seconds()), "/", "", secure, true)
}

// SessionID obtiene el id de sesión del contexto.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// FlashMessages son los mensajes de un solo uso que lee la siguiente página.
type FlashMessages struct {
	Status string            `json:"status,omitempty"`
	Error  string            `json:"error,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (m FlashMessages) empty() bool {
	return m.Status == "" && m.Error == "" && len(m.Errors) == 0
}

// Flash guarda mensajes y el input previo del formulario en la sesión.
type Flash struct {
	store service.SessionStore
	ttl   time.Duration
}

func NewFlash(store service.SessionStore, ttl time.Duration) *Flash {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Flash{store: store, ttl: ttl}
}

func (f *Flash) Put(ctx context.Context, sessionID string, msg FlashMessages) error {
	if msg.empty() {
		return nil
	}
	return f.putJSON(ctx, sessionID, flashKey, msg)
}

// Pull devuelve los mensajes pendientes y los borra.
func (f *Flash) Pull(ctx context.Context, sessionID string) (FlashMessages, error) {
	var msg FlashMessages
	err := f.pullJSON(ctx, sessionID, flashKey, &msg)
	return msg, err
}

// PutOld guarda el input previo. Nunca debe recibir contraseñas.
func (f *Flash) PutOld(ctx context.Context, sessionID string, old map[string]string) error {
	if len(old) == 0 {
		return nil
	}
	return f.putJSON(ctx, sessionID, oldInputKey, old)
}

func (f *Flash) PullOld(ctx context.Context, sessionID string) (map[string]string, error) {
	var old map[string]string
	err := f.pullJSON(ctx, sessionID, oldInputKey, &old)
	return old, err
}

func (f *Flash) putJSON(ctx context.Context, sessionID, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.store.Set(ctx, sessionID, key, string(raw), f.ttl)
}

func (f *Flash) pullJSON(ctx context.Context, sessionID, key string, dst any) error {
	raw, ok, err := f.store.Get(ctx, sessionID, key)
	if err != nil || !ok {
		return err
	}
	if err := f.store.Delete(ctx, sessionID, key); err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), dst)
}
