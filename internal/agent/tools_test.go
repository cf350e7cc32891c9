package agent

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/user/taskpilot/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.TaskStore) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	tasks := store.NewTaskStore(db)
	reg, err := NewRegistry(tasks)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg, tasks
}

func dispatch(t *testing.T, reg *Registry, owner, tool, args string) json.RawMessage {
	t.Helper()
	result, err := reg.Dispatch(context.Background(), owner, tool, json.RawMessage(args))
	if err != nil {
		t.Fatalf("dispatch %s: %v", tool, err)
	}
	return result
}

func wantToolError(t *testing.T, result json.RawMessage, kind string) *ToolError {
	t.Helper()
	te, ok := AsToolError(result)
	if !ok {
		t.Fatalf("expected a tool error, got %s", result)
	}
	if te.Kind != kind {
		t.Fatalf("expected error kind %q, got %q (%s)", kind, te.Kind, te.Message)
	}
	return te
}

func TestDispatchUnknownTool(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Dispatch(context.Background(), uuid.NewString(), "drop_tables", json.RawMessage(`{}`))
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestDispatchRejectsBadOwnerID(t *testing.T) {
	reg, _ := newTestRegistry(t)

	result := dispatch(t, reg, "not-a-uuid", string(KindAddTask), `{"title":"x"}`)
	wantToolError(t, result, ErrorValidation)
}

func TestAddTask(t *testing.T) {
	reg, _ := newTestRegistry(t)
	owner := uuid.NewString()

	result := dispatch(t, reg, owner, string(KindAddTask), `{"title":"Buy groceries","description":"milk and eggs"}`)
	var created TaskResult
	if err := json.Unmarshal(result, &created); err != nil {
		t.Fatal(err)
	}
	if created.Status != "created" || created.Title != "Buy groceries" || created.TaskID == 0 {
		t.Errorf("unexpected result: %+v", created)
	}
}

func TestAddTaskValidation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	owner := uuid.NewString()

	cases := []struct {
		name string
		args string
	}{
		{"missing title", `{}`},
		{"empty title", `{"title":""}`},
		{"whitespace-only title", `{"title":"   "}`},
		{"unknown field", `{"title":"ok","priority":"high"}`},
		{"not json", `"title"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := dispatch(t, reg, owner, string(KindAddTask), tc.args)
			wantToolError(t, result, ErrorValidation)
		})
	}
}

func TestAddTaskTrimsTitle(t *testing.T) {
	reg, tasks := newTestRegistry(t)
	owner := uuid.NewString()

	result := dispatch(t, reg, owner, string(KindAddTask), `{"title":"  water plants  "}`)
	var created TaskResult
	if err := json.Unmarshal(result, &created); err != nil {
		t.Fatalf("expected success, got %s", result)
	}
	if created.Title != "water plants" {
		t.Errorf("title not trimmed: %q", created.Title)
	}

	// No task may ever land with an empty title.
	list, err := tasks.List(context.Background(), owner, store.StatusAll)
	if err != nil {
		t.Fatal(err)
	}
	for _, task := range list {
		if strings.TrimSpace(task.Title) == "" {
			t.Errorf("stored task %d has a blank title", task.ID)
		}
	}
}

func TestDispatchScrubsOwnerFromArguments(t *testing.T) {
	reg, tasks := newTestRegistry(t)
	owner := uuid.NewString()
	other := uuid.NewString()

	// An engine-supplied user_id must be ignored, not validated against the
	// schema and not honored.
	result := dispatch(t, reg, owner, string(KindAddTask), `{"title":"mine","user_id":"`+other+`"}`)
	var created TaskResult
	if err := json.Unmarshal(result, &created); err != nil {
		t.Fatalf("expected success, got %s", result)
	}

	task, err := tasks.Get(context.Background(), owner, created.TaskID)
	if err != nil {
		t.Fatalf("task not owned by caller: %v", err)
	}
	if task.Title != "mine" {
		t.Errorf("unexpected title %q", task.Title)
	}
	if _, err := tasks.Get(context.Background(), other, created.TaskID); !errors.Is(err, store.ErrTaskNotFound) {
		t.Error("task visible to the injected owner")
	}
}

func TestListTasksStatusFilter(t *testing.T) {
	reg, _ := newTestRegistry(t)
	owner := uuid.NewString()

	dispatch(t, reg, owner, string(KindAddTask), `{"title":"first"}`)
	result := dispatch(t, reg, owner, string(KindAddTask), `{"title":"second"}`)
	var second TaskResult
	if err := json.Unmarshal(result, &second); err != nil {
		t.Fatal(err)
	}
	dispatch(t, reg, owner, string(KindCompleteTask), mustArgs(t, map[string]uint{"task_id": second.TaskID}))

	var items []TaskItem
	if err := json.Unmarshal(dispatch(t, reg, owner, string(KindListTasks), `{"status":"pending"}`), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "first" {
		t.Errorf("pending filter: got %+v", items)
	}

	if err := json.Unmarshal(dispatch(t, reg, owner, string(KindListTasks), `{}`), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("default listing: expected 2 items, got %d", len(items))
	}

	wantToolError(t, dispatch(t, reg, owner, string(KindListTasks), `{"status":"bogus"}`), ErrorValidation)
}

func TestCompleteAndDeleteNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	owner := uuid.NewString()

	wantToolError(t, dispatch(t, reg, owner, string(KindCompleteTask), `{"task_id":99}`), ErrorNotFound)
	wantToolError(t, dispatch(t, reg, owner, string(KindDeleteTask), `{"task_id":99}`), ErrorNotFound)
}

func TestCrossOwnerTaskReportsNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	owner := uuid.NewString()
	other := uuid.NewString()

	result := dispatch(t, reg, owner, string(KindAddTask), `{"title":"secret"}`)
	var created TaskResult
	if err := json.Unmarshal(result, &created); err != nil {
		t.Fatal(err)
	}

	args := mustArgs(t, map[string]uint{"task_id": created.TaskID})
	wantToolError(t, dispatch(t, reg, other, string(KindCompleteTask), args), ErrorNotFound)
	wantToolError(t, dispatch(t, reg, other, string(KindDeleteTask), args), ErrorNotFound)
}

func TestDeleteTaskTwice(t *testing.T) {
	reg, _ := newTestRegistry(t)
	owner := uuid.NewString()

	result := dispatch(t, reg, owner, string(KindAddTask), `{"title":"short lived"}`)
	var created TaskResult
	if err := json.Unmarshal(result, &created); err != nil {
		t.Fatal(err)
	}

	args := mustArgs(t, map[string]uint{"task_id": created.TaskID})
	var deleted TaskResult
	if err := json.Unmarshal(dispatch(t, reg, owner, string(KindDeleteTask), args), &deleted); err != nil {
		t.Fatal(err)
	}
	if deleted.Status != "deleted" || deleted.Title != "short lived" {
		t.Errorf("unexpected delete result: %+v", deleted)
	}

	wantToolError(t, dispatch(t, reg, owner, string(KindDeleteTask), args), ErrorNotFound)
}

func TestUpdateTask(t *testing.T) {
	reg, tasks := newTestRegistry(t)
	owner := uuid.NewString()

	result := dispatch(t, reg, owner, string(KindAddTask), `{"title":"draft"}`)
	var created TaskResult
	if err := json.Unmarshal(result, &created); err != nil {
		t.Fatal(err)
	}

	// Neither field set is rejected before touching storage.
	wantToolError(t, dispatch(t, reg, owner, string(KindUpdateTask), mustArgs(t, map[string]uint{"task_id": created.TaskID})), ErrorValidation)

	// A title that trims to nothing is rejected too.
	wantToolError(t, dispatch(t, reg, owner, string(KindUpdateTask), mustArgs(t, map[string]any{"task_id": created.TaskID, "title": "   "})), ErrorValidation)

	args := mustArgs(t, map[string]any{"task_id": created.TaskID, "title": "  final  "})
	var updated TaskResult
	if err := json.Unmarshal(dispatch(t, reg, owner, string(KindUpdateTask), args), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Status != "updated" || updated.Title != "final" {
		t.Errorf("unexpected update result: %+v", updated)
	}

	task, err := tasks.Get(context.Background(), owner, created.TaskID)
	if err != nil {
		t.Fatal(err)
	}
	if task.Title != "final" {
		t.Errorf("update not persisted: %q", task.Title)
	}
}

func TestCatalogCoversAllTools(t *testing.T) {
	reg, _ := newTestRegistry(t)

	catalog := reg.Catalog()
	if len(catalog) != 5 {
		t.Fatalf("expected 5 tools, got %d", len(catalog))
	}
	for _, tool := range catalog {
		if tool.Type != "function" {
			t.Errorf("%s: expected type function, got %q", tool.Function.Name, tool.Type)
		}
		if _, ok := parseKind(tool.Function.Name); !ok {
			t.Errorf("catalog names tool outside the closed set: %q", tool.Function.Name)
		}
		// Owner identity must never be part of what the engine sees.
		var schema map[string]any
		if err := json.Unmarshal(tool.Function.Parameters, &schema); err != nil {
			t.Fatalf("%s: bad schema: %v", tool.Function.Name, err)
		}
		props, _ := schema["properties"].(map[string]any)
		if _, ok := props["user_id"]; ok {
			t.Errorf("%s: schema exposes user_id", tool.Function.Name)
		}
	}
}

func mustArgs(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
