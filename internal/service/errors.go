package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrServiceNotConfigured  = errors.New("auth service not configured")
	ErrPendingSessionMissing = errors.New("pending verification session missing")
	ErrUserNotFound          = errors.New("user not found")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrEmailTaken            = errors.New("email already registered")
	ErrEmailNotVerified      = errors.New("email not verified")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidCodeFormat     = errors.New("invalid code format")
	ErrInvalidCode           = errors.New("invalid code")
	ErrEmailSendFailure      = errors.New("email send failed")

	// Motivos internos de un código rechazado. Nunca se muestran al usuario:
	// se envuelven siempre en ErrInvalidCode.
	ErrCodeNotIssued = errors.New("code not issued")
	ErrCodeExpired   = errors.New("code expired")
	ErrCodeMismatch  = errors.New("code mismatch")
)

// ValidationError agrupa los mensajes de validación por campo.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

// Kind clasifica errores para decidir la respuesta en la frontera HTTP.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindLookup
	KindCredential
	KindExpiry
	KindDownstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindLookup:
		return "lookup"
	case KindCredential:
		return "credential"
	case KindExpiry:
		return "expiry"
	case KindDownstream:
		return "downstream"
	default:
		return "unknown"
	}
}

// KindOf devuelve la categoría de err. Cualquier error no reconocido se trata
// como fallo de una dependencia (almacenamiento, correo, captcha).
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var verr *ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrInvalidCodeFormat):
		return KindValidation
	case errors.Is(err, ErrCodeExpired):
		return KindExpiry
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrCodeMismatch),
		errors.Is(err, ErrCodeNotIssued):
		return KindCredential
	case errors.Is(err, ErrPendingSessionMissing),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrNotAuthenticated),
		errors.Is(err, ErrEmailNotVerified):
		return KindLookup
	default:
		return KindDownstream
	}
}
