package service

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Flow identifica cada ranura de correlación pendiente de una sesión.
type Flow string

const (
	FlowRegistrationVerify Flow = "registration_verify"
	FlowTwoFactor          Flow = "two_factor"
)

func (f Flow) key() (string, error) {
	switch f {
	case FlowRegistrationVerify, FlowTwoFactor:
		return "pending:" + string(f), nil
	default:
		return "", fmt.Errorf("unknown pending flow %q", string(f))
	}
}

// PendingVerification relaciona la sesión anónima del visitante con el email
// del usuario mientras verifica el registro o completa el 2FA. Cada flujo usa
// una clave propia, así un flujo nunca autentica al usuario del otro.
type PendingVerification struct {
	store SessionStore
	ttl   time.Duration
}

func NewPendingVerification(store SessionStore, ttl time.Duration) *PendingVerification {
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	return &PendingVerification{store: store, ttl: ttl}
}

func (p *PendingVerification) Set(ctx context.Context, sessionID string, flow Flow, email string) error {
	key, err := flow.key()
	if err != nil {
		return err
	}
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("pending %s: email is required", flow)
	}
	return p.store.Set(ctx, sessionID, key, email, p.ttl)
}

// Get devuelve ErrPendingSessionMissing si no hay email para el flujo.
func (p *PendingVerification) Get(ctx context.Context, sessionID string, flow Flow) (string, error) {
	key, err := flow.key()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrPendingSessionMissing
	}
	email, ok, err := p.store.Get(ctx, sessionID, key)
	if err != nil {
		return "", err
	}
	email = normalizeEmail(email)
	if !ok || email == "" {
		return "", ErrPendingSessionMissing
	}
	return email, nil
}

func (p *PendingVerification) Clear(ctx context.Context, sessionID string, flow Flow) error {
	key, err := flow.key()
	if err != nil {
		return err
	}
	return p.store.Delete(ctx, sessionID, key)
}
