package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/user/taskpilot/pkg/llm"
)

func newTestClient(url string) *Client {
	return New(&llm.Config{
		BaseURL: url,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
	})
}

func TestCompleteParsesResponse(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "All set!"}},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Complete(context.Background(), []llm.Message{
		{Role: "user", Content: "add a task"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "All set!" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("unexpected model: %q", gotReq.Model)
	}
}

func TestCompleteMapsToolMessages(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "done"}},
			},
		})
	}))
	defer srv.Close()

	call := llm.ToolCall{
		ID:   "call_abc",
		Type: "function",
		Function: llm.FunctionCall{
			Name:      "add_task",
			Arguments: json.RawMessage(`{"title":"x"}`),
		},
	}
	_, err := newTestClient(srv.URL).Complete(context.Background(), []llm.Message{
		{Role: "user", Content: "add x"},
		{Role: "assistant", Tools: []llm.ToolCall{call}},
		{Role: "tool", Content: `{"task_id":1}`, Tools: []llm.ToolCall{{ID: "call_abc"}}},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(gotReq.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(gotReq.Messages))
	}
	if len(gotReq.Messages[1].ToolCalls) != 1 || gotReq.Messages[1].ToolCalls[0].ID != "call_abc" {
		t.Errorf("assistant tool calls lost: %+v", gotReq.Messages[1])
	}
	if gotReq.Messages[2].ToolCallID != "call_abc" {
		t.Errorf("tool message missing tool_call_id: %+v", gotReq.Messages[2])
	}
	if len(gotReq.Messages[2].ToolCalls) != 0 {
		t.Errorf("tool message should not carry tool_calls: %+v", gotReq.Messages[2])
	}
}

func TestCompleteSurfacesStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "Rate limit reached"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), []llm.Message{
		{Role: "user", Content: "hi"},
	}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 429") {
		t.Errorf("status code missing from error: %v", err)
	}
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), []llm.Message{
		{Role: "user", Content: "hi"},
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Errorf("expected no-choices error, got %v", err)
	}
}
