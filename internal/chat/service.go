// Package chat implements the chat-turn boundary: one inbound user message
// becomes exactly one stored user/assistant message pair plus a reply, with
// the agent loop (or its fallback) in between.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/user/taskpilot/internal/agent"
	"github.com/user/taskpilot/internal/model"
	"github.com/user/taskpilot/internal/store"
	"github.com/user/taskpilot/pkg/llm"
)

// DefaultHistoryLimit is how many stored messages feed each turn before
// token trimming.
const DefaultHistoryLimit = 50

// fallbackNotice is appended to replies served without the reasoning engine.
const fallbackNotice = "\n\n_Note: the assistant is in offline mode right now, so I kept this simple._"

// TurnInput is one inbound chat message.
type TurnInput struct {
	OwnerID        string
	Message        string
	ConversationID *uint
}

// TurnOutput is the reply for one chat turn.
type TurnOutput struct {
	ConversationID uint
	Message        string
	ToolCalls      []agent.ToolCallRecord
	BudgetExceeded bool
	UsedFallback   bool
}

// Service wires the conversation store, the agent runner, and the fallback
// responder into the turn boundary consumed by the HTTP and Telegram layers.
type Service struct {
	db           *gorm.DB
	registry     *agent.Registry
	runner       *agent.Runner
	fallback     *agent.Responder
	trimmer      *agent.HistoryTrimmer
	historyLimit int
}

// NewService builds the chat service. trimmer may be nil to disable token
// budgeting; historyLimit <= 0 uses DefaultHistoryLimit.
func NewService(db *gorm.DB, registry *agent.Registry, runner *agent.Runner, fallback *agent.Responder, trimmer *agent.HistoryTrimmer, historyLimit int) *Service {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Service{
		db:           db,
		registry:     registry,
		runner:       runner,
		fallback:     fallback,
		trimmer:      trimmer,
		historyLimit: historyLimit,
	}
}

// Turn processes one user message. The whole turn runs inside a single
// transaction: if anything fails after tools have mutated storage, the
// transaction rolls back and no partial message pair is persisted.
//
// Capacity-class reasoning failures divert to the fallback responder and are
// never surfaced to the user as errors. Conversation lookup failures return
// store.ErrConversationNotFound for the boundary layer to map to a bad
// request.
func (s *Service) Turn(ctx context.Context, in TurnInput) (*TurnOutput, error) {
	var out *TurnOutput
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conversations := store.NewConversationStore(tx)
		reg := s.registry.Bind(store.NewTaskStore(tx))

		conv, err := conversations.GetOrCreate(ctx, in.OwnerID, in.ConversationID)
		if err != nil {
			return err
		}

		history, err := conversations.RecentMessages(ctx, conv.ID, in.OwnerID, s.historyLimit)
		if err != nil {
			return err
		}

		transcript := make([]llm.Message, 0, len(history)+1)
		for _, m := range history {
			transcript = append(transcript, llm.Message{Role: m.Role, Content: m.Content})
		}
		transcript = append(transcript, llm.Message{Role: model.RoleUser, Content: in.Message})
		if s.trimmer != nil {
			transcript = s.trimmer.Trim(transcript)
		}

		result, err := s.runner.Run(ctx, reg, in.OwnerID, transcript)
		usedFallback := false
		if err != nil {
			if !agent.IsCapacityError(err) {
				return fmt.Errorf("agent run: %w", err)
			}
			slog.Warn("reasoning engine over capacity, using fallback responder", "error", err)
			result = s.fallback.Respond(ctx, reg, in.OwnerID, transcript)
			result.Message += fallbackNotice
			usedFallback = true
		}
		// The store rejects oversized content, and the engine has no
		// length cap, so clip before persisting.
		result.Message = clip(result.Message, model.MaxMessageLen)

		if _, err := conversations.AppendMessage(ctx, conv.ID, in.OwnerID, model.RoleUser, in.Message); err != nil {
			return err
		}
		if _, err := conversations.AppendMessage(ctx, conv.ID, in.OwnerID, model.RoleAssistant, result.Message); err != nil {
			return err
		}

		out = &TurnOutput{
			ConversationID: conv.ID,
			Message:        result.Message,
			ToolCalls:      result.ToolCalls,
			BudgetExceeded: result.BudgetExceeded,
			UsedFallback:   usedFallback,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// clip truncates s to at most max bytes without splitting a rune.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ConversationSummary is one entry in a conversation listing.
type ConversationSummary struct {
	ID           uint   `json:"id"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int64  `json:"message_count"`
}

// ListConversations returns the owner's conversations, most recently active
// first, with message counts.
func (s *Service) ListConversations(ctx context.Context, ownerID string, limit int) ([]ConversationSummary, error) {
	conversations := store.NewConversationStore(s.db)
	convs, err := conversations.ListForOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		count, err := conversations.CountMessages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ConversationSummary{
			ID:           c.ID,
			CreatedAt:    c.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:    c.UpdatedAt.UTC().Format(time.RFC3339),
			MessageCount: count,
		})
	}
	return out, nil
}

// DeleteConversation removes a conversation and its messages. Returns false
// when nothing matched.
func (s *Service) DeleteConversation(ctx context.Context, ownerID string, conversationID uint) (bool, error) {
	return store.NewConversationStore(s.db).Delete(ctx, conversationID, ownerID)
}
