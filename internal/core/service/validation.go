package service

import (
	"errors"
	"strconv"
	"unicode/utf16"

	"github.com/go-playground/validator/v10"

	"github.com/aicmo/auth-service/internal/core/domain"
)

// signupCredentials declares the signup input rules. Field order matters:
// the username rule is reported before the password rule.
type signupCredentials struct {
	Username string `validate:"required,minunits=3"`
	Password string `validate:"required,minunits=6"`
}

// newValidator returns a validator with the minunits rule: a string length
// counted in UTF-16 code units, the unit browser clients measure in.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("minunits", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(utf16.Encode([]rune(fl.Field().String()))) >= limit
	})
	return v
}

type loginCredentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// credentialError converts validator output into the contract errors.
// A missing field always wins over a length violation on the other field.
func credentialError(err error) error {
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	for _, fe := range ve {
		if fe.Tag() == "required" {
			return domain.ErrCredentialsRequired
		}
	}
	for _, fe := range ve {
		switch fe.Field() {
		case "Username":
			return domain.ErrUsernameTooShort
		case "Password":
			return domain.ErrPasswordTooShort
		}
	}
	return err
}
