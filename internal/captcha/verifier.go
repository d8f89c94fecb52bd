package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

var (
	// ErrCaptchaFailed indica que el proveedor rechazó el token (o no hubo token).
	ErrCaptchaFailed = errors.New("captcha verification failed")
)

// Verifier comprueba el token de captcha enviado con un formulario.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

type noopVerifier struct{}

// NewNoopVerifier acepta cualquier token. Se usa cuando no hay secreto configurado.
func NewNoopVerifier() Verifier {
	return noopVerifier{}
}

func (noopVerifier) Verify(context.Context, string, string) error {
	return nil
}

// HTTPVerifier habla el protocolo siteverify de reCAPTCHA, que también
// implementan Turnstile y hCaptcha.
type HTTPVerifier struct {
	verifyURL string
	secret    string
	client    *http.Client
	logger    *zap.Logger
}

func NewHTTPVerifier(verifyURL, secret string, logger *zap.Logger) *HTTPVerifier {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPVerifier{
		verifyURL: verifyURL,
		secret:    secret,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// New devuelve el verificador HTTP si hay secreto y el no-op si no.
func New(verifyURL, secret string, logger *zap.Logger) Verifier {
	if strings.TrimSpace(secret) == "" {
		return NewNoopVerifier()
	}
	return NewHTTPVerifier(verifyURL, secret, logger)
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrCaptchaFailed
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		v.logger.Warn("captcha verify error status", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("captcha http error: status=%d", resp.StatusCode)
	}

	var out siteverifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if !out.Success {
		v.logger.Info("captcha rejected", zap.Strings("error_codes", out.ErrorCodes))
		return ErrCaptchaFailed
	}
	return nil
}
