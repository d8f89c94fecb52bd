package service

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

const (
	strongPasswordTag = "strong_password"
	// maxBytesTag limita la longitud en bytes; bcrypt no acepta más de 72.
	maxBytesTag = "max_bytes"
)

// RegisterInput son los datos del formulario de alta.
type RegisterInput struct {
	Name                 string `form:"name" validate:"required,max=255"`
	Email                string `form:"email" validate:"required,email,max=255"`
	Password             string `form:"password" validate:"required,min=10,max=72,max_bytes=72,strong_password"`
	PasswordConfirmation string `form:"password_confirmation" validate:"required,eqfield=Password"`
}

// LoginInput son las credenciales del formulario de login.
type LoginInput struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// CodeInput es el formulario de verificación y de 2FA.
type CodeInput struct {
	Code string `form:"code" validate:"required,len=6,numeric"`
}

// Validator valida formularios y traduce los errores a mensajes por campo.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewValidator() (*Validator, error) {
	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("register translations: %w", err)
	}
	if err := v.RegisterValidation(strongPasswordTag, validateStrongPassword); err != nil {
		return nil, fmt.Errorf("register %s: %w", strongPasswordTag, err)
	}
	if err := v.RegisterValidation(maxBytesTag, validateMaxBytes); err != nil {
		return nil, fmt.Errorf("register %s: %w", maxBytesTag, err)
	}
	err := v.RegisterTranslation(maxBytesTag, trans,
		func(t ut.Translator) error {
			return t.Add(maxBytesTag, "{0} must be at most {1} bytes long", true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(maxBytesTag, fe.Field(), fe.Param())
			return msg
		},
	)
	if err != nil {
		return nil, fmt.Errorf("register %s translation: %w", maxBytesTag, err)
	}
	err = v.RegisterTranslation(strongPasswordTag, trans,
		func(t ut.Translator) error {
			return t.Add(strongPasswordTag, "{0} must contain upper and lower case letters, a number and a symbol", true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(strongPasswordTag, fe.Field())
			return msg
		},
	)
	if err != nil {
		return nil, fmt.Errorf("register %s translation: %w", strongPasswordTag, err)
	}
	return &Validator{validate: v, trans: trans}, nil
}

// Struct valida s y devuelve *ValidationError con un mensaje por campo.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = fe.Translate(v.trans)
	}
	return &ValidationError{Fields: fields}
}

func validateStrongPassword(fl validator.FieldLevel) bool {
	var upper, lower, digit, symbol bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

func validateMaxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}
