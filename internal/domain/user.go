package domain

import "time"

// User es la cuenta persistida con su estado de verificación y 2FA.
type User struct {
	ID                        string     `json:"id" bson:"_id"`
	Name                      string     `json:"name" bson:"name"`
	Email                     string     `json:"email" bson:"email"`
	PasswordHash              string     `json:"-" bson:"password_hash"`
	EmailVerifiedAt           *time.Time `json:"email_verified_at,omitempty" bson:"email_verified_at,omitempty"`
	VerificationCodeHash      string     `json:"-" bson:"verification_code_hash,omitempty"`
	VerificationCodeExpiresAt *time.Time `json:"-" bson:"verification_code_expires_at,omitempty"`
	TwoFactorCodeHash         string     `json:"-" bson:"two_factor_code_hash,omitempty"`
	TwoFactorCodeExpiresAt    *time.Time `json:"-" bson:"two_factor_code_expires_at,omitempty"`
	TwoFactorVerified         bool       `json:"two_factor_verified" bson:"two_factor_verified"`
	TwoFactorSessionExpiresAt *time.Time `json:"two_factor_session_expires_at,omitempty" bson:"two_factor_session_expires_at,omitempty"`
	CreatedAt                 time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at" bson:"updated_at"`
}

func (u User) IsEmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

func (u User) HasPendingVerificationCode() bool {
	return u.VerificationCodeHash != "" && u.VerificationCodeExpiresAt != nil
}

func (u User) HasPendingTwoFactorCode() bool {
	return u.TwoFactorCodeHash != "" && u.TwoFactorCodeExpiresAt != nil
}

// TwoFactorSessionActive indica si el 2FA completado sigue vigente en now.
// Sin fecha de expiración la sesión se considera vencida.
func (u User) TwoFactorSessionActive(now time.Time) bool {
	if !u.TwoFactorVerified || u.TwoFactorSessionExpiresAt == nil {
		return false
	}
	return !now.After(*u.TwoFactorSessionExpiresAt)
}
