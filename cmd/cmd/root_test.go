package cmd

import (
	"context"
	"testing"

	"dailybrief/internal/core"
	"dailybrief/internal/store"
)

func newCmdTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestResolveUser(t *testing.T) {
	s := newCmdTestStore(t)
	ctx := context.Background()

	user := core.User{Email: "known@example.com", Tier: core.TierPaid}
	if err := s.CreateUser(ctx, &user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	got, err := resolveUser(ctx, s, "known@example.com")
	if err != nil {
		t.Fatalf("resolveUser failed: %v", err)
	}
	if got.ID != user.ID || got.Tier != core.TierPaid {
		t.Errorf("unexpected user: %+v", got)
	}
}

func TestResolveUserUnknownEmail(t *testing.T) {
	s := newCmdTestStore(t)

	got, err := resolveUser(context.Background(), s, "missing@example.com")
	if err == nil {
		t.Fatal("expected error for unknown email")
	}
	if got != nil {
		t.Errorf("expected nil user, got %+v", got)
	}
}

func TestResolveUserEmptyEmail(t *testing.T) {
	s := newCmdTestStore(t)

	if _, err := resolveUser(context.Background(), s, ""); err == nil {
		t.Error("expected error for empty email")
	}
}
