// Package validation holds the local, pre-network form rules shared by the
// login, registration and todo forms.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Form rule limits.
const (
	MinTitleLength    = 3
	MinPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Error is a field-level validation failure. It never reaches the network.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors collects every failing field of a form, in field order.
type Errors []*Error

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Field returns the message for the named field, or "".
func (es Errors) Field(name string) string {
	for _, e := range es {
		if e.Field == name {
			return e.Message
		}
	}
	return ""
}

// Err returns nil when no field failed so callers can return it directly.
func (es Errors) Err() error {
	if len(es) == 0 {
		return nil
	}
	return es
}

// IsValidationError reports whether err (or any error in its chain) is a
// local validation failure.
func IsValidationError(err error) bool {
	var fieldErr *Error
	if errors.As(err, &fieldErr) {
		return true
	}
	var formErr Errors
	return errors.As(err, &formErr)
}

// Title checks a todo title: required, at least MinTitleLength characters
// after trimming.
func Title(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return &Error{Field: "title", Message: "Title is required"}
	}
	if len([]rune(trimmed)) < MinTitleLength {
		return &Error{
			Field:   "title",
			Message: fmt.Sprintf("Title must be at least %d characters", MinTitleLength),
		}
	}
	return nil
}

// Email checks that the address is present and looks like an email.
func Email(email string) error {
	if strings.TrimSpace(email) == "" {
		return &Error{Field: "email", Message: "Email is required"}
	}
	if !emailPattern.MatchString(email) {
		return &Error{Field: "email", Message: "Enter a valid email"}
	}
	return nil
}

// Password checks a login password, which only has to be present.
func Password(password string) error {
	if password == "" {
		return &Error{Field: "password", Message: "Password is required"}
	}
	return nil
}

// NewPassword checks a password chosen at registration.
func NewPassword(password string) error {
	if err := Password(password); err != nil {
		return err
	}
	if len(password) < MinPasswordLength {
		return &Error{
			Field:   "password",
			Message: fmt.Sprintf("Use at least %d characters", MinPasswordLength),
		}
	}
	return nil
}

// Name checks the full name given at registration.
func Name(name string) error {
	if strings.TrimSpace(name) == "" {
		return &Error{Field: "name", Message: "Full name is required"}
	}
	return nil
}

// Confirmation checks that the repeated password matches.
func Confirmation(password, confirm string) error {
	if confirm == "" {
		return &Error{Field: "confirm", Message: "Confirm your password"}
	}
	if confirm != password {
		return &Error{Field: "confirm", Message: "Passwords do not match"}
	}
	return nil
}

// Login validates the login form.
func Login(email, password string) error {
	return collect(Email(email), Password(password))
}

// Registration validates the registration form fields sent to the server.
// The confirmation field is checked separately by the form.
func Registration(name, email, password string) error {
	return collect(Name(name), Email(email), NewPassword(password))
}

func collect(errs ...error) error {
	var out Errors
	for _, err := range errs {
		var fieldErr *Error
		if errors.As(err, &fieldErr) {
			out = append(out, fieldErr)
		}
	}
	return out.Err()
}
