package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/user/taskpilot/internal/model"
)

func TestConversationGetOrCreate(t *testing.T) {
	db := openTestDB(t)
	convs := NewConversationStore(db)
	ctx := context.Background()
	owner := newOwner()

	created, err := convs.GetOrCreate(ctx, owner, nil)
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 {
		t.Fatal("expected a persisted conversation id")
	}

	got, err := convs.GetOrCreate(ctx, owner, &created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != created.ID {
		t.Errorf("expected conversation %d, got %d", created.ID, got.ID)
	}

	// Another owner cannot resume it.
	if _, err := convs.GetOrCreate(ctx, newOwner(), &created.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}

	missing := created.ID + 100
	if _, err := convs.GetOrCreate(ctx, owner, &missing); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound for missing id, got %v", err)
	}
}

func TestAppendMessageValidatesRole(t *testing.T) {
	db := openTestDB(t)
	convs := NewConversationStore(db)
	ctx := context.Background()
	owner := newOwner()

	conv, err := convs.GetOrCreate(ctx, owner, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := convs.AppendMessage(ctx, conv.ID, owner, "system", "nope"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := convs.AppendMessage(ctx, conv.ID, owner, model.RoleUser, "hello"); err != nil {
		t.Errorf("user role rejected: %v", err)
	}
	if _, err := convs.AppendMessage(ctx, conv.ID, owner, model.RoleAssistant, "hi there"); err != nil {
		t.Errorf("assistant role rejected: %v", err)
	}
}

func TestAppendMessageRejectsOversizedContent(t *testing.T) {
	db := openTestDB(t)
	convs := NewConversationStore(db)
	ctx := context.Background()
	owner := newOwner()

	conv, err := convs.GetOrCreate(ctx, owner, nil)
	if err != nil {
		t.Fatal(err)
	}

	atLimit := strings.Repeat("a", model.MaxMessageLen)
	if _, err := convs.AppendMessage(ctx, conv.ID, owner, model.RoleAssistant, atLimit); err != nil {
		t.Errorf("content at the limit rejected: %v", err)
	}
	if _, err := convs.AppendMessage(ctx, conv.ID, owner, model.RoleAssistant, atLimit+"a"); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestAppendMessageBumpsUpdatedAt(t *testing.T) {
	db := openTestDB(t)
	convs := NewConversationStore(db)
	ctx := context.Background()
	owner := newOwner()

	conv, err := convs.GetOrCreate(ctx, owner, nil)
	if err != nil {
		t.Fatal(err)
	}
	before := conv.UpdatedAt

	time.Sleep(10 * time.Millisecond)
	if _, err := convs.AppendMessage(ctx, conv.ID, owner, model.RoleUser, "ping"); err != nil {
		t.Fatal(err)
	}

	after, err := convs.GetOrCreate(ctx, owner, &conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !after.UpdatedAt.After(before) {
		t.Errorf("updated_at did not advance: %v -> %v", before, after.UpdatedAt)
	}
}

func TestRecentMessagesKeepsNewestInOrder(t *testing.T) {
	db := openTestDB(t)
	convs := NewConversationStore(db)
	ctx := context.Background()
	owner := newOwner()

	conv, err := convs.GetOrCreate(ctx, owner, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 6; i++ {
		if _, err := convs.AppendMessage(ctx, conv.ID, owner, model.RoleUser, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := convs.RecentMessages(ctx, conv.ID, owner, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	// Oldest of the kept window first, newest last.
	for i, want := range []string{"message 3", "message 4", "message 5", "message 6"} {
		if msgs[i].Content != want {
			t.Errorf("position %d: expected %q, got %q", i, want, msgs[i].Content)
		}
	}

	count, err := convs.CountMessages(ctx, conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 6 {
		t.Errorf("expected count 6, got %d", count)
	}
}

func TestConversationDelete(t *testing.T) {
	db := openTestDB(t)
	convs := NewConversationStore(db)
	ctx := context.Background()
	owner := newOwner()

	conv, err := convs.GetOrCreate(ctx, owner, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := convs.AppendMessage(ctx, conv.ID, owner, model.RoleUser, "bye"); err != nil {
		t.Fatal(err)
	}

	// Wrong owner cannot delete.
	deleted, err := convs.Delete(ctx, conv.ID, newOwner())
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Fatal("cross-owner delete succeeded")
	}

	deleted, err = convs.Delete(ctx, conv.ID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("expected delete to report success")
	}

	// Messages are gone with the conversation.
	count, err := convs.CountMessages(ctx, conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected 0 messages after delete, got %d", count)
	}

	// Repeating is a no-op, not an error.
	deleted, err = convs.Delete(ctx, conv.ID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Error("second delete reported success")
	}
}

func TestDeleteStale(t *testing.T) {
	db := openTestDB(t)
	convs := NewConversationStore(db)
	ctx := context.Background()
	owner := newOwner()

	old, err := convs.GetOrCreate(ctx, owner, nil)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(20 * time.Millisecond)
	fresh, err := convs.GetOrCreate(ctx, owner, nil)
	if err != nil {
		t.Fatal(err)
	}

	removed, err := convs.DeleteStale(ctx, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := convs.GetOrCreate(ctx, owner, &old.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("stale conversation survived: %v", err)
	}
	if _, err := convs.GetOrCreate(ctx, owner, &fresh.ID); err != nil {
		t.Errorf("fresh conversation removed: %v", err)
	}
}
