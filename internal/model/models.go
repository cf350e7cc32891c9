package model

import "time"

// Limits enforced on task and message content. The tool schemas and the REST
// validators both reference these so the two entry points cannot drift.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 1000
	MaxMessageLen     = 5000
)

// User is an account that owns tasks and conversations. IDs are UUIDs so
// they are not guessable from the URL path.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:255"`
	Name         string `gorm:"size:100"`
	PasswordHash string `gorm:"size:255"`
	TelegramID   int64  `gorm:"index"`
	CreatedAt    time.Time
}

// Task is a single todo item. Owned by exactly one user; every query
// against tasks filters by UserID.
type Task struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      string `gorm:"index;size:36"`
	Title       string `gorm:"size:200"`
	Description string `gorm:"size:1000"`
	Completed   bool   `gorm:"default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Conversation groups an ordered message history for one user. UpdatedAt is
// bumped on every appended message so listings surface the most recently
// active thread first.
type Conversation struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"index;size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Messages []Message `gorm:"constraint:OnDelete:CASCADE"`
}

// Message roles. The store rejects anything else.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn half. UserID duplicates the conversation's owner
// so authorization checks never need a join.
type Message struct {
	ID             uint      `gorm:"primaryKey"`
	ConversationID uint      `gorm:"index"`
	UserID         string    `gorm:"index;size:36"`
	Role           string    `gorm:"size:20"`
	Content        string    `gorm:"size:5000"`
	CreatedAt      time.Time `gorm:"index"`
}
