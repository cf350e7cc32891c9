package agent

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/taskpilot/pkg/llm"
)

// HistoryTrimmer keeps a conversation transcript within the model's input
// token budget by dropping the oldest messages first.
type HistoryTrimmer struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// NewHistoryTrimmer creates a trimmer for the given model. maxTokens is the
// model's context window; reserve is held back for the response and system
// prompt.
func NewHistoryTrimmer(model string, maxTokens, reserve int) (*HistoryTrimmer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &HistoryTrimmer{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

func (t *HistoryTrimmer) countTokens(text string) int {
	return len(t.tokenizer.Encode(text, nil, nil))
}

// Trim returns the newest suffix of messages that fits the input budget.
// The newest message is always kept even if it alone exceeds the budget,
// so a turn is never silently dropped.
func (t *HistoryTrimmer) Trim(messages []llm.Message) []llm.Message {
	budget := t.maxTokens - t.reserve
	if budget <= 0 || len(messages) == 0 {
		return messages
	}

	used := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		cost := t.countTokens(messages[i].Content)
		if used+cost > budget && start < len(messages) {
			break
		}
		used += cost
		start = i
	}
	return messages[start:]
}
