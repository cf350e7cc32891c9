package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/user/taskpilot/internal/model"
)

// ErrConversationNotFound covers both "no such conversation" and
// "conversation belongs to another user".
var ErrConversationNotFound = errors.New("conversation not found")

// ErrInvalidRole is returned when a message role is outside user/assistant.
var ErrInvalidRole = errors.New("invalid message role")

// ErrMessageTooLong is returned when message content exceeds the limit.
// SQLite does not enforce the column size, so the store has to.
var ErrMessageTooLong = errors.New("message content too long")

// ConversationStore is the durable home for chat threads and their history.
type ConversationStore struct {
	db *gorm.DB
}

func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// GetOrCreate returns the identified conversation if it exists and belongs
// to the owner, or creates a fresh one when no id is given.
func (s *ConversationStore) GetOrCreate(ctx context.Context, ownerID string, conversationID *uint) (*model.Conversation, error) {
	if conversationID != nil {
		return s.get(ctx, ownerID, *conversationID)
	}
	conv := &model.Conversation{UserID: ownerID}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *ConversationStore) get(ctx context.Context, ownerID string, conversationID uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", ownerID, conversationID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

// AppendMessage stores one message and bumps the conversation's UpdatedAt.
func (s *ConversationStore) AppendMessage(ctx context.Context, conversationID uint, ownerID, role, content string) (*model.Message, error) {
	if role != model.RoleUser && role != model.RoleAssistant {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if len(content) > model.MaxMessageLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(content))
	}
	if _, err := s.get(ctx, ownerID, conversationID); err != nil {
		return nil, err
	}
	msg := &model.Message{
		ConversationID: conversationID,
		UserID:         ownerID,
		Role:           role,
		Content:        content,
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now().UTC()).Error; err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	return msg, nil
}

// RecentMessages returns the newest limit messages in chronological order.
// It selects newest-first then reverses, so it stays correct however long
// the history grows.
func (s *ConversationStore) RecentMessages(ctx context.Context, conversationID uint, ownerID string, limit int) ([]model.Message, error) {
	if _, err := s.get(ctx, ownerID, conversationID); err != nil {
		return nil, err
	}
	var msgs []model.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CountMessages returns how many messages a conversation holds.
func (s *ConversationStore) CountMessages(ctx context.Context, conversationID uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// ListForOwner returns the owner's conversations, most recently active first.
func (s *ConversationStore) ListForOwner(ctx context.Context, ownerID string, limit int) ([]model.Conversation, error) {
	var convs []model.Conversation
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// Delete removes a conversation and all its messages. Returns false when
// nothing matched, so a repeated delete is a no-op rather than an error.
func (s *ConversationStore) Delete(ctx context.Context, conversationID uint, ownerID string) (bool, error) {
	_, err := s.get(ctx, ownerID, conversationID)
	if errors.Is(err, ErrConversationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&model.Message{}).Error; err != nil {
		return false, fmt.Errorf("delete messages: %w", err)
	}
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", ownerID, conversationID).
		Delete(&model.Conversation{}).Error; err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	return true, nil
}

// DeleteStale removes conversations (and their messages) whose last activity
// is older than the cutoff. Used by the retention sweeper.
func (s *ConversationStore) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var stale []model.Conversation
	if err := s.db.WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Find(&stale).Error; err != nil {
		return 0, fmt.Errorf("find stale conversations: %w", err)
	}
	var removed int64
	for _, conv := range stale {
		ok, err := s.Delete(ctx, conv.ID, conv.UserID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
