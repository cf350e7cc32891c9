package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/taskpilot/pkg/llm"
)

// DefaultMaxIterations bounds the reasoning-call/tool-execution cycle.
const DefaultMaxIterations = 5

// ToolCallRecord is the audit entry for one executed tool call. These are
// returned to the caller for the turn's audit trail; they are never persisted.
type ToolCallRecord struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
	Result    json.RawMessage `json:"result"`
}

// TurnResult is the outcome of one orchestrated turn: exactly one assistant
// reply plus the trail of tool calls that produced it.
type TurnResult struct {
	Message        string           `json:"message"`
	ToolCalls      []ToolCallRecord `json:"tool_calls"`
	Iterations     int              `json:"iterations"`
	BudgetExceeded bool             `json:"budget_exceeded,omitempty"`
}

// Runner drives the bounded reasoning/tool loop for one user turn.
type Runner struct {
	provider      llm.Provider
	maxIterations int
}

// NewRunner creates a Runner over the given provider. maxIterations <= 0
// falls back to DefaultMaxIterations.
func NewRunner(provider llm.Provider, maxIterations int) *Runner {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Runner{provider: provider, maxIterations: maxIterations}
}

// Run turns the conversation history plus the registry's tool catalog into
// one assistant reply. Each iteration makes one reasoning call; if the
// engine requests tool calls they are all executed in order, with results
// appended to the transcript before the next reasoning call. The owner is
// injected at dispatch and never taken from the engine's output.
//
// Reasoning-engine failures propagate as errors for the caller to classify
// (see IsCapacityError). Tool failures do not: they are payloads the engine
// is expected to interpret.
func (r *Runner) Run(ctx context.Context, reg *Registry, ownerID string, history []llm.Message) (*TurnResult, error) {
	transcript := make([]llm.Message, 0, len(history)+1)
	transcript = append(transcript, llm.Message{Role: "system", Content: systemPrompt})
	transcript = append(transcript, history...)

	var audit []ToolCallRecord
	catalog := reg.Catalog()

	for iteration := 1; iteration <= r.maxIterations; iteration++ {
		resp, err := r.provider.Complete(ctx, transcript, catalog)
		if err != nil {
			return nil, fmt.Errorf("reasoning call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			return &TurnResult{
				Message:    resp.Content,
				ToolCalls:  audit,
				Iterations: iteration,
			}, nil
		}

		transcript = append(transcript, llm.Message{
			Role:    "assistant",
			Content: resp.Content,
			Tools:   resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			result, err := reg.Dispatch(ctx, ownerID, tc.Function.Name, tc.Function.Arguments)
			if errors.Is(err, ErrUnknownTool) {
				// The engine invented a name outside the catalog. Feed the
				// failure back like any other result so it can recover.
				result = errPayload(ErrorValidation, err.Error())
			} else if err != nil {
				return nil, fmt.Errorf("dispatch %s: %w", tc.Function.Name, err)
			}

			audit = append(audit, ToolCallRecord{
				Tool:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
				Result:    result,
			})

			transcript = append(transcript, llm.Message{
				Role:    "tool",
				Content: string(result),
				Tools:   []llm.ToolCall{{ID: tc.ID}},
			})
		}
	}

	slog.Warn("agent run hit iteration budget", "max_iterations", r.maxIterations, "tool_calls", len(audit))
	return &TurnResult{
		Message:        budgetExceededReply,
		ToolCalls:      audit,
		Iterations:     r.maxIterations,
		BudgetExceeded: true,
	}, nil
}
