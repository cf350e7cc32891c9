// Package telegram bridges Telegram chats onto the chat-turn boundary.
// First contact from a Telegram user auto-provisions an account; after that
// their messages run through the same agent loop as the HTTP API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/taskpilot/internal/chat"
	"github.com/user/taskpilot/internal/store"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram to the chat service.
type Adapter struct {
	bot   *tgbotapi.BotAPI
	chat  *chat.Service
	users *store.UserStore

	// Active conversation per Telegram chat. Reset by /new.
	mu            sync.Mutex
	conversations map[int64]uint
}

// New creates a Telegram adapter.
func New(token string, chatSvc *chat.Service, users *store.UserStore) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:           bot,
		chat:          chatSvc,
		users:         users,
		conversations: make(map[int64]uint),
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(msg)
		return
	}

	user, err := a.users.EnsureTelegramUser(ctx, msg.From.ID, displayName(msg))
	if err != nil {
		slog.Error("telegram user provisioning failed", "error", err)
		a.sendResponse(msg.Chat.ID, "Sorry, I encountered an error processing your message.")
		return
	}

	a.mu.Lock()
	convID, haveConv := a.conversations[msg.Chat.ID]
	a.mu.Unlock()

	in := chat.TurnInput{OwnerID: user.ID, Message: msg.Text}
	if haveConv {
		in.ConversationID = &convID
	}

	out, err := a.chat.Turn(ctx, in)
	if err != nil {
		slog.Error("telegram chat turn failed", "error", err)
		a.sendResponse(msg.Chat.ID, "Sorry, I encountered an error processing your message.")
		return
	}

	a.mu.Lock()
	a.conversations[msg.Chat.ID] = out.ConversationID
	a.mu.Unlock()

	a.sendResponse(msg.Chat.ID, out.Message)
}

func (a *Adapter) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		a.sendResponse(msg.Chat.ID, "Hello! I'm your task assistant. Tell me what to add, list, complete, delete, or update.")
	case "new":
		a.mu.Lock()
		delete(a.conversations, msg.Chat.ID)
		a.mu.Unlock()
		a.sendResponse(msg.Chat.ID, "Starting a fresh conversation. Your tasks are untouched.")
	default:
		a.sendResponse(msg.Chat.ID, "Unknown command. Just send me a message about your tasks.")
	}
}

// sendResponse sends text to a chat, splitting messages that exceed the
// Telegram length limit.
func (a *Adapter) sendResponse(chatID int64, text string) {
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxTelegramMessage {
			chunk = chunk[:maxTelegramMessage]
		}
		text = text[len(chunk):]

		if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			slog.Error("telegram send failed", "error", err)
			return
		}
	}
}

func displayName(msg *tgbotapi.Message) string {
	name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	if name == "" {
		name = msg.From.UserName
	}
	if name == "" {
		name = fmt.Sprintf("telegram-%d", msg.From.ID)
	}
	return name
}
