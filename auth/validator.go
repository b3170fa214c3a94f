package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	apperrors "secure-chat/errors"

	"github.com/go-playground/validator/v10"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 32
	MinPasswordLength = 4
	MaxPasswordLength = 128
)

var validate = newValidator()

// Credentials are the trimmed values received during the handshake.
type Credentials struct {
	Username string
	Password string
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Usernames end up in comma-joined presence lists and "name: text" lines.
	_ = v.RegisterValidation("chatname", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsControl(r) || r == ',' || r == '|' || r == ':'
		})
	})
	return v
}

// NormalizeCredentials trims both values and validates them.
func NormalizeCredentials(username, password string) (Credentials, error) {
	creds := Credentials{
		Username: strings.TrimSpace(username),
		Password: strings.TrimSpace(password),
	}
	if err := ValidateUsername(creds.Username); err != nil {
		return Credentials{}, err
	}
	if err := ValidatePassword(creds.Password); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// ValidateUsername checks an already trimmed username.
func ValidateUsername(username string) error {
	if err := validate.Var(username, "required,min=3,max=32,chatname"); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidUsername, describe(err, "username", MinUsernameLength, MaxUsernameLength))
	}
	return nil
}

// ValidatePassword checks an already trimmed password.
func ValidatePassword(password string) error {
	if err := validate.Var(password, "required,min=4,max=128"); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidPassword, describe(err, "password", MinPasswordLength, MaxPasswordLength))
	}
	return nil
}

// describe turns a validator failure into a message safe to send to the client.
// It never echoes the rejected value.
func describe(err error, field string, minLen, maxLen int) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return field + " is invalid"
	}
	switch errs[0].Tag() {
	case "required", "min":
		return fmt.Sprintf("%s must be at least %d characters", field, minLen)
	case "max":
		return fmt.Sprintf("%s must be at most %d characters", field, maxLen)
	case "chatname":
		return field + " must not contain spaces, ',', '|' or ':'"
	default:
		return field + " is invalid"
	}
}
