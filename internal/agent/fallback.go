package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/user/taskpilot/pkg/llm"
)

// Responder is the deterministic fallback used when the reasoning engine is
// unavailable. It classifies the latest user message into one intent bucket,
// makes at most one tool call, and phrases a reply from the result. It never
// loops and never re-invokes itself.
type Responder struct{}

// NewResponder creates the fallback responder.
func NewResponder() *Responder {
	return &Responder{}
}

// Intent buckets checked in fixed priority order.
var (
	addKeywords      = []string{"add", "create", "new task", "make a task", "todo"}
	listKeywords     = []string{"list", "show", "my tasks", "all tasks", "view"}
	completeKeywords = []string{"complete", "finish", "done", "finished"}
	deleteKeywords   = []string{"delete", "remove", "cancel"}
	updateKeywords   = []string{"update", "change", "modify", "edit", "rename"}
	helpKeywords     = []string{"help", "what can you do", "commands"}
)

// Argument extraction patterns, tried in order; first match wins.
var (
	addToForPattern  = regexp.MustCompile(`(?i)(?:add|create)\s+(?:a\s+|an\s+|the\s+)?(?:task\s+)?(?:to|for)\s+(.+)`)
	addPlainPattern  = regexp.MustCompile(`(?i)(?:add|create|new task|todo)\s*:?\s+(.+)`)
	addFillerPattern = regexp.MustCompile(`(?i)^(?:a|an|the|to|task|for)\s+`)
	taskIDPattern    = regexp.MustCompile(`(?:task\s+)?(\d+)`)
	newTitlePattern  = regexp.MustCompile(`(?i)\b(?:to|into|as)\s+(.+)`)
)

// Respond produces one reply for the latest user message in the transcript,
// executing at most one tool call through the registry.
func (f *Responder) Respond(ctx context.Context, reg *Registry, ownerID string, messages []llm.Message) *TurnResult {
	var userMessage string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			userMessage = messages[i].Content
			break
		}
	}
	if strings.TrimSpace(userMessage) == "" {
		return &TurnResult{
			Message: "Hello! I'm your task assistant. I can help you manage your tasks. Try asking me to add a task, list your tasks, or mark one as complete!",
		}
	}

	lower := strings.ToLower(userMessage)
	switch {
	case containsAny(lower, addKeywords):
		return f.handleAdd(ctx, reg, ownerID, lower)
	case containsAny(lower, listKeywords):
		return f.handleList(ctx, reg, ownerID)
	case containsAny(lower, completeKeywords):
		return f.handleComplete(ctx, reg, ownerID, lower)
	case containsAny(lower, deleteKeywords):
		return f.handleDelete(ctx, reg, ownerID, lower)
	case containsAny(lower, updateKeywords):
		return f.handleUpdate(ctx, reg, ownerID, lower)
	case containsAny(lower, helpKeywords):
		return &TurnResult{Message: helpReply}
	}
	return &TurnResult{Message: defaultReply(userMessage)}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// extractTitle pulls the task text out of an add-style message.
func extractTitle(lower string) string {
	if m := addToForPattern.FindStringSubmatch(lower); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := addPlainPattern.FindStringSubmatch(lower); m != nil {
		title := strings.TrimSpace(m[1])
		return strings.TrimSpace(addFillerPattern.ReplaceAllString(title, ""))
	}
	return ""
}

// extractTaskID pulls the first small integer out of a message.
func extractTaskID(lower string) (uint, bool) {
	m := taskIDPattern.FindStringSubmatch(lower)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (f *Responder) handleAdd(ctx context.Context, reg *Registry, ownerID, lower string) *TurnResult {
	title := extractTitle(lower)
	if len(title) < 3 {
		return &TurnResult{
			Message: "I'd be happy to add a task! Could you tell me what you'd like to add? For example, 'Add a task to buy groceries'.",
		}
	}

	args := mustJSON(map[string]string{"title": title})
	result, err := reg.Dispatch(ctx, ownerID, string(KindAddTask), args)
	if err != nil {
		return &TurnResult{Message: somethingWentWrong}
	}
	record := []ToolCallRecord{{Tool: string(KindAddTask), Arguments: args, Result: result}}

	if te, ok := AsToolError(result); ok {
		return &TurnResult{
			Message:   fmt.Sprintf("I tried to add the task, but ran into a problem: %s. Please try again.", te.Message),
			ToolCalls: record,
		}
	}
	var created TaskResult
	if err := json.Unmarshal(result, &created); err != nil {
		return &TurnResult{Message: somethingWentWrong, ToolCalls: record}
	}
	return &TurnResult{
		Message:   fmt.Sprintf("I've added the task: %q (task %d). Would you like to add another task or see your task list?", created.Title, created.TaskID),
		ToolCalls: record,
	}
}

func (f *Responder) handleList(ctx context.Context, reg *Registry, ownerID string) *TurnResult {
	args := json.RawMessage(`{"status":"all"}`)
	result, err := reg.Dispatch(ctx, ownerID, string(KindListTasks), args)
	if err != nil {
		return &TurnResult{Message: somethingWentWrong}
	}
	record := []ToolCallRecord{{Tool: string(KindListTasks), Arguments: args, Result: result}}

	if te, ok := AsToolError(result); ok {
		return &TurnResult{
			Message:   fmt.Sprintf("I couldn't retrieve your tasks: %s", te.Message),
			ToolCalls: record,
		}
	}
	var items []TaskItem
	if err := json.Unmarshal(result, &items); err != nil {
		return &TurnResult{Message: somethingWentWrong, ToolCalls: record}
	}
	if len(items) == 0 {
		return &TurnResult{
			Message:   "You don't have any tasks yet. Would you like to add one?",
			ToolCalls: record,
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are your tasks (%d total):\n", len(items))
	var completed int
	for _, item := range items {
		if item.Completed {
			completed++
			continue
		}
		fmt.Fprintf(&b, "  %d. %s\n", item.ID, item.Title)
	}
	if completed > 0 {
		fmt.Fprintf(&b, "Completed: %d\n", completed)
	}
	b.WriteString("Need help with any of these tasks?")
	return &TurnResult{Message: b.String(), ToolCalls: record}
}

func (f *Responder) handleComplete(ctx context.Context, reg *Registry, ownerID, lower string) *TurnResult {
	taskID, ok := extractTaskID(lower)
	if !ok {
		return &TurnResult{
			Message: "Which task would you like to mark as complete? Please provide the task number (e.g., 'Complete task 1').",
		}
	}

	args := mustJSON(map[string]uint{"task_id": taskID})
	result, err := reg.Dispatch(ctx, ownerID, string(KindCompleteTask), args)
	if err != nil {
		return &TurnResult{Message: somethingWentWrong}
	}
	record := []ToolCallRecord{{Tool: string(KindCompleteTask), Arguments: args, Result: result}}

	if te, ok := AsToolError(result); ok {
		if te.Kind == ErrorNotFound {
			return &TurnResult{
				Message:   fmt.Sprintf("I couldn't find task %d. Would you like to see your task list?", taskID),
				ToolCalls: record,
			}
		}
		return &TurnResult{
			Message:   fmt.Sprintf("I couldn't complete that task: %s", te.Message),
			ToolCalls: record,
		}
	}
	return &TurnResult{
		Message:   fmt.Sprintf("Great job! I've marked task %d as complete. Would you like to see your remaining tasks?", taskID),
		ToolCalls: record,
	}
}

func (f *Responder) handleDelete(ctx context.Context, reg *Registry, ownerID, lower string) *TurnResult {
	taskID, ok := extractTaskID(lower)
	if !ok {
		return &TurnResult{
			Message: "Which task would you like to delete? Please provide the task number (e.g., 'Delete task 1').",
		}
	}

	args := mustJSON(map[string]uint{"task_id": taskID})
	result, err := reg.Dispatch(ctx, ownerID, string(KindDeleteTask), args)
	if err != nil {
		return &TurnResult{Message: somethingWentWrong}
	}
	record := []ToolCallRecord{{Tool: string(KindDeleteTask), Arguments: args, Result: result}}

	if te, ok := AsToolError(result); ok {
		if te.Kind == ErrorNotFound {
			return &TurnResult{
				Message:   fmt.Sprintf("I couldn't find task %d. Would you like to see your task list?", taskID),
				ToolCalls: record,
			}
		}
		return &TurnResult{
			Message:   fmt.Sprintf("I couldn't delete that task: %s", te.Message),
			ToolCalls: record,
		}
	}
	return &TurnResult{
		Message:   fmt.Sprintf("I've deleted task %d. Is there anything else I can help you with?", taskID),
		ToolCalls: record,
	}
}

func (f *Responder) handleUpdate(ctx context.Context, reg *Registry, ownerID, lower string) *TurnResult {
	taskID, ok := extractTaskID(lower)
	if !ok {
		return &TurnResult{
			Message: "Which task would you like to update? Please provide the task number and new text (e.g., 'Update task 1 to buy milk and bread').",
		}
	}

	title := ""
	if m := newTitlePattern.FindStringSubmatch(lower); m != nil {
		title = strings.TrimSpace(m[1])
	}
	if len(title) < 3 {
		return &TurnResult{
			Message: fmt.Sprintf("What would you like to change task %d to?", taskID),
		}
	}

	args := mustJSON(map[string]any{"task_id": taskID, "title": title})
	result, err := reg.Dispatch(ctx, ownerID, string(KindUpdateTask), args)
	if err != nil {
		return &TurnResult{Message: somethingWentWrong}
	}
	record := []ToolCallRecord{{Tool: string(KindUpdateTask), Arguments: args, Result: result}}

	if te, ok := AsToolError(result); ok {
		if te.Kind == ErrorNotFound {
			return &TurnResult{
				Message:   fmt.Sprintf("I couldn't find task %d. Would you like to see your task list?", taskID),
				ToolCalls: record,
			}
		}
		return &TurnResult{
			Message:   fmt.Sprintf("I couldn't update that task: %s", te.Message),
			ToolCalls: record,
		}
	}
	return &TurnResult{
		Message:   fmt.Sprintf("I've updated task %d to: %q. Anything else you'd like to change?", taskID, title),
		ToolCalls: record,
	}
}

const somethingWentWrong = "Oops, something went wrong on my end. Can you try again?"

const helpReply = `I can help you manage your tasks! Here's what I understand:

Add tasks: "Add a task to buy groceries", "New task: call mom"
View tasks: "Show my tasks", "List all tasks"
Complete tasks: "Complete task 1", "Mark task 2 as done"
Delete tasks: "Delete task 1", "Remove task 2"
Update tasks: "Update task 1 to buy milk and bread"

Just ask naturally, and I'll do my best!`

var defaultReplies = []string{
	"I'm here to help you manage your tasks! You can ask me to add, list, complete, delete, or update tasks. What would you like to do?",
	"I'm not quite sure what you'd like me to do. I can help with adding tasks, viewing your task list, marking tasks as complete, or deleting tasks. What do you need?",
	"I'm your task management assistant! Try asking me to 'list my tasks' or 'add a task to [something]'. How can I help?",
}

// defaultReply rotates through canned replies so repeated unrecognized
// messages do not always get the same answer.
func defaultReply(message string) string {
	return defaultReplies[len(message)%len(defaultReplies)]
}
