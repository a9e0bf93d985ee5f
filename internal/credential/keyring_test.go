package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestVaultRoundTrip(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring(nil))

	if _, err := v.Get("session-token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get before Set: got %v, want ErrNotFound", err)
	}

	if err := v.Set("session-token", "T1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := v.Get("session-token")
	if err != nil || got != "T1" {
		t.Fatalf("Get: got %q, %v", got, err)
	}

	if err := v.Delete("session-token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := v.Delete("session-token"); err != nil {
		t.Errorf("second Delete: got %v, want nil", err)
	}
}
