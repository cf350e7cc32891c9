package store

import (
	"context"
	"errors"
	"testing"
)

func TestUserCreateAndLookup(t *testing.T) {
	db := openTestDB(t)
	users := NewUserStore(db)
	ctx := context.Background()

	user, err := users.Create(ctx, "Alice@Example.com", "Alice", "hash")
	if err != nil {
		t.Fatal(err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email not lowercased: %q", user.Email)
	}
	if user.ID == "" {
		t.Fatal("expected a generated id")
	}

	byEmail, err := users.ByEmail(ctx, " ALICE@example.COM ")
	if err != nil {
		t.Fatal(err)
	}
	if byEmail.ID != user.ID {
		t.Errorf("lookup returned wrong user: %s", byEmail.ID)
	}

	byID, err := users.ByID(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if byID.Email != user.Email {
		t.Errorf("lookup by id returned wrong user: %s", byID.Email)
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db := openTestDB(t)
	users := NewUserStore(db)
	ctx := context.Background()

	if _, err := users.Create(ctx, "bob@example.com", "Bob", "hash"); err != nil {
		t.Fatal(err)
	}
	if _, err := users.Create(ctx, "BOB@example.com", "Bobby", "hash2"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserLookupMisses(t *testing.T) {
	db := openTestDB(t)
	users := NewUserStore(db)
	ctx := context.Background()

	if _, err := users.ByEmail(ctx, "ghost@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("ByEmail: expected ErrUserNotFound, got %v", err)
	}
	if _, err := users.ByID(ctx, newOwner()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("ByID: expected ErrUserNotFound, got %v", err)
	}
}

func TestEnsureTelegramUser(t *testing.T) {
	db := openTestDB(t)
	users := NewUserStore(db)
	ctx := context.Background()

	first, err := users.EnsureTelegramUser(ctx, 12345, "Carol")
	if err != nil {
		t.Fatal(err)
	}
	if first.TelegramID != 12345 {
		t.Errorf("telegram id not stored: %d", first.TelegramID)
	}
	if first.PasswordHash != "" {
		t.Error("telegram user has a password hash")
	}

	again, err := users.EnsureTelegramUser(ctx, 12345, "Carol Renamed")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Errorf("repeat lookup created a new account: %s vs %s", again.ID, first.ID)
	}
}
