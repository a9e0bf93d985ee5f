package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		wantErr bool
	}{
		{"empty", "", true},
		{"whitespace only", "   \t", true},
		{"one char", "a", true},
		{"two chars padded", "  ab  ", true},
		{"exactly three", "abc", false},
		{"three after trim", "  abc ", false},
		{"long", "Buy Milk", false},
		{"multibyte", "日本語", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Title(tt.title)
			trimmed := strings.TrimSpace(tt.title)
			rule := trimmed == "" || len([]rune(trimmed)) < MinTitleLength
			if (err != nil) != rule {
				t.Fatalf("Title(%q) error = %v, rule says reject=%v", tt.title, err, rule)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("Title(%q) error = %v, wantErr %v", tt.title, err, tt.wantErr)
			}
			if err != nil && !IsValidationError(err) {
				t.Errorf("expected validation error, got %T", err)
			}
		})
	}
}

func TestEmail(t *testing.T) {
	valid := []string{"a@b.com", "first.last@example.co.uk"}
	invalid := []string{"", "  ", "plain", "a@b", "a b@c.com", "@b.com"}

	for _, e := range valid {
		if err := Email(e); err != nil {
			t.Errorf("Email(%q): unexpected error %v", e, err)
		}
	}
	for _, e := range invalid {
		if err := Email(e); err == nil {
			t.Errorf("Email(%q): expected error", e)
		}
	}
}

func TestRegistration(t *testing.T) {
	err := Registration("", "bad", "123")
	if err == nil {
		t.Fatal("expected error")
	}

	var formErr Errors
	if !errors.As(err, &formErr) {
		t.Fatalf("expected Errors, got %T", err)
	}
	if len(formErr) != 3 {
		t.Fatalf("expected 3 field errors, got %d: %v", len(formErr), formErr)
	}
	if got := formErr.Field("password"); got != "Use at least 6 characters" {
		t.Errorf("password message: got %q", got)
	}
	if got := formErr.Field("name"); got != "Full name is required" {
		t.Errorf("name message: got %q", got)
	}

	if err := Registration("Ada", "ada@example.com", "secret1"); err != nil {
		t.Errorf("valid registration: unexpected error %v", err)
	}
}

func TestLogin(t *testing.T) {
	if err := Login("a@b.com", "x"); err != nil {
		t.Errorf("Login: unexpected error %v", err)
	}
	err := Login("a@b.com", "")
	if !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConfirmation(t *testing.T) {
	if err := Confirmation("secret1", ""); err == nil {
		t.Error("empty confirm: expected error")
	}
	if err := Confirmation("secret1", "secret2"); err == nil {
		t.Error("mismatch: expected error")
	}
	if err := Confirmation("secret1", "secret1"); err != nil {
		t.Errorf("match: unexpected error %v", err)
	}
}
