package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/user/taskpilot/internal/store"
	"github.com/user/taskpilot/pkg/llm"
)

// Kind identifies one of the task-management tools. The set is closed:
// dispatch switches over these values and anything else is ErrUnknownTool.
type Kind string

const (
	KindAddTask      Kind = "add_task"
	KindListTasks    Kind = "list_tasks"
	KindCompleteTask Kind = "complete_task"
	KindDeleteTask   Kind = "delete_task"
	KindUpdateTask   Kind = "update_task"
)

// ErrUnknownTool is returned for names outside the closed tool set. This is
// a caller programming error, not a user-facing tool outcome.
var ErrUnknownTool = errors.New("unknown tool")

// Tool error kinds. These travel inside result payloads, never as Go errors:
// the registry is the error-normalization boundary between storage and the
// orchestration loop.
const (
	ErrorValidation = "validation_error"
	ErrorNotFound   = "not_found"
	ErrorInternal   = "internal_error"
)

// TaskResult is the success payload for the mutating tools.
type TaskResult struct {
	TaskID uint   `json:"task_id"`
	Status string `json:"status"`
	Title  string `json:"title"`
}

// TaskItem is one entry in a list_tasks result.
type TaskItem struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// ToolError is the failure payload shared by all tools.
type ToolError struct {
	Kind    string `json:"error"`
	Message string `json:"message"`
}

// AsToolError reports whether a result payload carries a tool error.
func AsToolError(payload json.RawMessage) (*ToolError, bool) {
	var te ToolError
	if err := json.Unmarshal(payload, &te); err != nil || te.Kind == "" {
		return nil, false
	}
	return &te, true
}

// toolSpec pairs a tool kind with what the reasoning engine sees: a
// description and a JSON Schema for its arguments. Owner identity is not
// part of any schema; it is injected by the caller at dispatch time so the
// engine can never act as another user.
type toolSpec struct {
	kind        Kind
	description string
	schema      string
}

var toolSpecs = []toolSpec{
	{
		kind:        KindAddTask,
		description: "Create a new task for the user",
		schema: `{
			"type": "object",
			"properties": {
				"title": {"type": "string", "minLength": 1, "maxLength": 200, "description": "Task title (1-200 characters)"},
				"description": {"type": "string", "maxLength": 1000, "description": "Optional task description (max 1000 characters)"}
			},
			"required": ["title"],
			"additionalProperties": false
		}`,
	},
	{
		kind:        KindListTasks,
		description: "List all tasks for the user, optionally filtered by status",
		schema: `{
			"type": "object",
			"properties": {
				"status": {"type": "string", "enum": ["all", "pending", "completed"], "default": "all", "description": "Filter tasks by status"}
			},
			"additionalProperties": false
		}`,
	},
	{
		kind:        KindCompleteTask,
		description: "Mark a task as completed",
		schema: `{
			"type": "object",
			"properties": {
				"task_id": {"type": "integer", "minimum": 1, "description": "ID of the task to complete"}
			},
			"required": ["task_id"],
			"additionalProperties": false
		}`,
	},
	{
		kind:        KindDeleteTask,
		description: "Delete a task",
		schema: `{
			"type": "object",
			"properties": {
				"task_id": {"type": "integer", "minimum": 1, "description": "ID of the task to delete"}
			},
			"required": ["task_id"],
			"additionalProperties": false
		}`,
	},
	{
		kind:        KindUpdateTask,
		description: "Update a task's title and/or description",
		schema: `{
			"type": "object",
			"properties": {
				"task_id": {"type": "integer", "minimum": 1, "description": "ID of the task to update"},
				"title": {"type": "string", "minLength": 1, "maxLength": 200, "description": "New task title (optional)"},
				"description": {"type": "string", "maxLength": 1000, "description": "New task description (optional)"}
			},
			"required": ["task_id"],
			"additionalProperties": false
		}`,
	},
}

// Registry dispatches tool calls against the task store after validating
// arguments against the declared schemas. Construct one at process start
// and Bind it to a transaction-scoped store per request.
type Registry struct {
	tasks   *store.TaskStore
	schemas map[Kind]*jsonschema.Schema
}

// NewRegistry compiles the tool schemas and binds the registry to a store.
func NewRegistry(tasks *store.TaskStore) (*Registry, error) {
	compiler := jsonschema.NewCompiler()
	for _, spec := range toolSpecs {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(spec.schema))
		if err != nil {
			return nil, fmt.Errorf("parse schema for %s: %w", spec.kind, err)
		}
		name := string(spec.kind) + ".json"
		if err := compiler.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("add schema for %s: %w", spec.kind, err)
		}
	}
	schemas := make(map[Kind]*jsonschema.Schema, len(toolSpecs))
	for _, spec := range toolSpecs {
		schema, err := compiler.Compile(string(spec.kind) + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", spec.kind, err)
		}
		schemas[spec.kind] = schema
	}
	return &Registry{tasks: tasks, schemas: schemas}, nil
}

// Bind returns a registry sharing the compiled schemas but executing against
// a different store, typically one scoped to the current transaction.
func (r *Registry) Bind(tasks *store.TaskStore) *Registry {
	return &Registry{tasks: tasks, schemas: r.schemas}
}

// Catalog exports every tool in the form the reasoning engine consumes.
func (r *Registry) Catalog() []llm.Tool {
	out := make([]llm.Tool, 0, len(toolSpecs))
	for _, spec := range toolSpecs {
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        string(spec.kind),
				Description: spec.description,
				Parameters:  json.RawMessage(spec.schema),
			},
		})
	}
	return out
}

// parseKind maps a tool name onto the closed kind set.
func parseKind(name string) (Kind, bool) {
	switch Kind(name) {
	case KindAddTask, KindListTasks, KindCompleteTask, KindDeleteTask, KindUpdateTask:
		return Kind(name), true
	}
	return "", false
}

// Dispatch validates and executes one tool call for the given owner. Tool
// failures (bad arguments, missing tasks, storage trouble) come back as
// error payloads in the result; the only Go error is ErrUnknownTool for a
// name outside the catalog.
func (r *Registry) Dispatch(ctx context.Context, ownerID, name string, args json.RawMessage) (json.RawMessage, error) {
	kind, ok := parseKind(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	if _, err := uuid.Parse(ownerID); err != nil {
		return errPayload(ErrorValidation, fmt.Sprintf("Invalid owner id format: %s", ownerID)), nil
	}

	scrubbed, verr := r.validateArgs(kind, args)
	if verr != nil {
		return errPayload(ErrorValidation, verr.Error()), nil
	}

	switch kind {
	case KindAddTask:
		return r.addTask(ctx, ownerID, scrubbed), nil
	case KindListTasks:
		return r.listTasks(ctx, ownerID, scrubbed), nil
	case KindCompleteTask:
		return r.completeTask(ctx, ownerID, scrubbed), nil
	case KindDeleteTask:
		return r.deleteTask(ctx, ownerID, scrubbed), nil
	case KindUpdateTask:
		return r.updateTask(ctx, ownerID, scrubbed), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

// validateArgs strips owner identifiers the engine must not control, then
// checks the remaining arguments against the tool's schema. Returns the
// scrubbed arguments re-encoded for typed decoding.
func (r *Registry) validateArgs(kind Kind, args json.RawMessage) (json.RawMessage, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(args)))
	if err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %v", err)
	}
	if obj, ok := doc.(map[string]any); ok {
		delete(obj, "user_id")
		delete(obj, "owner")
		doc = obj
	}
	if err := r.schemas[kind].Validate(doc); err != nil {
		return nil, fmt.Errorf("arguments failed validation: %v", err)
	}
	scrubbed, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-encode arguments: %v", err)
	}
	return scrubbed, nil
}

type addTaskArgs struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

type listTasksArgs struct {
	Status string `json:"status"`
}

type taskIDArgs struct {
	TaskID uint `json:"task_id"`
}

type updateTaskArgs struct {
	TaskID      uint    `json:"task_id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (r *Registry) addTask(ctx context.Context, ownerID string, args json.RawMessage) json.RawMessage {
	var a addTaskArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return errPayload(ErrorValidation, err.Error())
	}
	title := strings.TrimSpace(a.Title)
	if title == "" {
		return errPayload(ErrorValidation, "Title must not be empty")
	}
	desc := ""
	if a.Description != nil {
		desc = *a.Description
	}
	task, err := r.tasks.Create(ctx, ownerID, title, desc)
	if err != nil {
		return errPayload(ErrorInternal, err.Error())
	}
	return mustJSON(TaskResult{TaskID: task.ID, Status: "created", Title: task.Title})
}

func (r *Registry) listTasks(ctx context.Context, ownerID string, args json.RawMessage) json.RawMessage {
	var a listTasksArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return errPayload(ErrorValidation, err.Error())
	}
	if a.Status == "" {
		a.Status = string(store.StatusAll)
	}
	tasks, err := r.tasks.List(ctx, ownerID, store.StatusFilter(a.Status))
	if err != nil {
		return errPayload(ErrorInternal, err.Error())
	}
	items := make([]TaskItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, TaskItem{ID: t.ID, Title: t.Title, Completed: t.Completed})
	}
	return mustJSON(items)
}

func (r *Registry) completeTask(ctx context.Context, ownerID string, args json.RawMessage) json.RawMessage {
	var a taskIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return errPayload(ErrorValidation, err.Error())
	}
	task, err := r.tasks.Complete(ctx, ownerID, a.TaskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		return errPayload(ErrorNotFound, fmt.Sprintf("Task %d not found", a.TaskID))
	}
	if err != nil {
		return errPayload(ErrorInternal, err.Error())
	}
	return mustJSON(TaskResult{TaskID: task.ID, Status: "completed", Title: task.Title})
}

func (r *Registry) deleteTask(ctx context.Context, ownerID string, args json.RawMessage) json.RawMessage {
	var a taskIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return errPayload(ErrorValidation, err.Error())
	}
	task, err := r.tasks.Delete(ctx, ownerID, a.TaskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		return errPayload(ErrorNotFound, fmt.Sprintf("Task %d not found", a.TaskID))
	}
	if err != nil {
		return errPayload(ErrorInternal, err.Error())
	}
	return mustJSON(TaskResult{TaskID: task.ID, Status: "deleted", Title: task.Title})
}

func (r *Registry) updateTask(ctx context.Context, ownerID string, args json.RawMessage) json.RawMessage {
	var a updateTaskArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return errPayload(ErrorValidation, err.Error())
	}
	if a.Title == nil && a.Description == nil {
		return errPayload(ErrorValidation, "At least one of title or description must be provided")
	}
	if a.Title != nil {
		trimmed := strings.TrimSpace(*a.Title)
		if trimmed == "" {
			return errPayload(ErrorValidation, "Title must not be empty")
		}
		a.Title = &trimmed
	}
	task, err := r.tasks.Update(ctx, ownerID, a.TaskID, store.TaskUpdate{
		Title:       a.Title,
		Description: a.Description,
	})
	if errors.Is(err, store.ErrTaskNotFound) {
		return errPayload(ErrorNotFound, fmt.Sprintf("Task %d not found", a.TaskID))
	}
	if err != nil {
		return errPayload(ErrorInternal, err.Error())
	}
	return mustJSON(TaskResult{TaskID: task.ID, Status: "updated", Title: task.Title})
}

func errPayload(kind, message string) json.RawMessage {
	return mustJSON(ToolError{Kind: kind, Message: message})
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// All payload types marshal cleanly; reaching this is a bug.
		panic(err)
	}
	return data
}
