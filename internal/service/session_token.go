package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrSessionTokenInvalid = errors.New("session token invalid")
	ErrSessionTokenExpired = errors.New("session token expired")
)

// SessionTokenService firma el identificador de sesión que viaja en la cookie,
// así un visitante no puede fabricar o adivinar el id de otra sesión.
type SessionTokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  Clock
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

func NewSessionTokenService(secret string, ttl time.Duration, clock Clock) *SessionTokenService {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &SessionTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "auth-gate",
		clock:  clock,
	}
}

func (s *SessionTokenService) TTL() time.Duration {
	return s.ttl
}

// NewSession genera un id de sesión nuevo y su token firmado.
func (s *SessionTokenService) NewSession() (string, string, error) {
	sessionID := uuid.NewString()
	token, err := s.Sign(sessionID)
	if err != nil {
		return "", "", err
	}
	return sessionID, token, nil
}

func (s *SessionTokenService) Sign(sessionID string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(sessionID) == "" {
		return "", ErrSessionTokenInvalid
	}
	now := s.clock.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse valida el token y devuelve el id de sesión que contiene.
func (s *SessionTokenService) Parse(tokenString string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return "", ErrSessionTokenInvalid
	}
	var claims sessionClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrSessionTokenExpired
		}
		return "", ErrSessionTokenInvalid
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return "", ErrSessionTokenInvalid
	}
	return claims.ID, nil
}
