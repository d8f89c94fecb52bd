package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"auth"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SessionSecret        string `env:"SESSION_SECRET,required,notEmpty"`
	SessionCookieSecure  bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	SessionTTLMinutes    int    `env:"SESSION_TTL_MINUTES" envDefault:"120"`
	CodeTTLMinutes       int    `env:"CODE_TTL_MINUTES" envDefault:"10"`
	TwoFactorSessionMins int    `env:"TWO_FACTOR_SESSION_MINUTES" envDefault:"10"`
	TwoFactorEmail       bool   `env:"TWO_FACTOR_EMAIL_ENABLED" envDefault:"true"`
	PasswordHasher       string `env:"PASSWORD_HASHER" envDefault:"bcrypt"`

	CaptchaSecret    string `env:"CAPTCHA_SECRET"`
	CaptchaVerifyURL string `env:"CAPTCHA_VERIFY_URL" envDefault:"https://www.google.com/recaptcha/api/siteverify"`

	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser       string `env:"SMTP_USER"`
	SMTPPass       string `env:"SMTP_PASS"`
	SMTPFrom       string `env:"SMTP_FROM"`
	SMTPFromName   string `env:"SMTP_FROM_NAME"`
	EmailQueueSize int    `env:"EMAIL_QUEUE_SIZE" envDefault:"64"`
	EmailRetries   int    `env:"EMAIL_MAX_RETRIES" envDefault:"3"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) SessionTTL() time.Duration {
	return minutesOr(c.SessionTTLMinutes, 120)
}

func (c *Config) CodeTTL() time.Duration {
	return minutesOr(c.CodeTTLMinutes, 10)
}

func (c *Config) TwoFactorSessionTTL() time.Duration {
	return minutesOr(c.TwoFactorSessionMins, 10)
}

func minutesOr(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Minute
}
