package user

import "testing"

func TestLabel(t *testing.T) {
	u := &User{Username: "alice", DisplayName: "  Alice Smith "}
	if got := u.Label(); got != "Alice Smith" {
		t.Fatalf("expected display name, got %q", got)
	}
	u.DisplayName = "   "
	if got := u.Label(); got != "alice" {
		t.Fatalf("expected username fallback, got %q", got)
	}
}

func TestIsActive(t *testing.T) {
	if !(&User{Status: StatusActive}).IsActive() {
		t.Fatalf("expected active user")
	}
	if (&User{Status: StatusDisabled}).IsActive() {
		t.Fatalf("expected disabled user to be inactive")
	}
}
