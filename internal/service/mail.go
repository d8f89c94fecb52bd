package service

import (
	"fmt"
	"time"

	"auth-gate/internal/domain"
	"auth-gate/internal/email"
)

func verificationMessage(user domain.User, code string) email.Message {
	return email.Message{
		To:      user.Email,
		Subject: "Confirm your account",
		Body:    codeBody("Your account verification code is", code, user.VerificationCodeExpiresAt),
	}
}

func twoFactorMessage(user domain.User, code string) email.Message {
	return email.Message{
		To:      user.Email,
		Subject: "Your sign-in code",
		Body:    codeBody("Your sign-in verification code is", code, user.TwoFactorCodeExpiresAt),
	}
}

func codeBody(lead, code string, expiresAt *time.Time) string {
	body := fmt.Sprintf("%s %s.\n", lead, code)
	if expiresAt != nil {
		body += fmt.Sprintf("It expires at %s UTC.\n", expiresAt.UTC().Format(time.RFC3339))
	}
	return body + "If you did not request this code, you can ignore this email.\n"
}
