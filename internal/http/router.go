package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas de autenticación.
func NewRouter(logger *zap.Logger, authH *AuthHandler) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging y recovery.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	web := r.Group("/", SessionMiddleware(logger, authH.tokens, authH.secureCookie))

	// Gate A: solo invitados.
	guest := web.Group("/", authH.RedirectIfAuthenticated())
	guest.GET("", authH.Root)
	guest.GET("/login", authH.ShowLogin)
	guest.GET("/register", authH.ShowRegister)
	guest.POST("/register", authH.RequireCaptcha("/register"), authH.Register)
	guest.POST("/login", authH.RequireCaptcha("/login"), authH.Login)

	guest.GET("/code/verify", authH.ShowVerifyCode)
	guest.GET("/code/inactive", authH.ShowInactive)
	guest.GET("/two-factor/code", authH.ShowTwoFactor)
	guest.POST("/code", authH.RequireCaptcha("/code/verify"), authH.ValidateCode)
	guest.POST("/resend/verification/code", authH.RequireCaptcha("/code/verify"), authH.ResendCode)
	guest.POST("/two-factor/verify/code", authH.RequireCaptcha("/two-factor/code"), authH.ValidateTwoFactorCode)
	guest.POST("/resend/two-factor/verify/code", authH.RequireCaptcha("/two-factor/code"), authH.ResendTwoFactorCode)

	// Gate B y autenticación.
	private := web.Group("/", authH.RequireTwoFactor(), authH.RequireAuth())
	private.GET("/home", authH.Home)
	private.POST("/logout", authH.Logout)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
