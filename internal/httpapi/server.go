// Package httpapi exposes the REST and chat surface over net/http.
package httpapi

import (
	"encoding/json"
	"net/http"

	"golang.org/x/sync/semaphore"

	"github.com/user/taskpilot/internal/auth"
	"github.com/user/taskpilot/internal/chat"
	"github.com/user/taskpilot/internal/store"
)

// Server is the HTTP handler for the taskpilot API.
type Server struct {
	users  *store.UserStore
	tasks  *store.TaskStore
	chat   *chat.Service
	tokens *auth.TokenIssuer
	// turns bounds how many chat turns run concurrently across all users.
	turns *semaphore.Weighted
	mux   *http.ServeMux
}

// NewServer creates the API server. maxConcurrentTurns <= 0 means no bound.
func NewServer(users *store.UserStore, tasks *store.TaskStore, chatSvc *chat.Service, tokens *auth.TokenIssuer, maxConcurrentTurns int64) *Server {
	s := &Server{
		users:  users,
		tasks:  tasks,
		chat:   chatSvc,
		tokens: tokens,
		mux:    http.NewServeMux(),
	}
	if maxConcurrentTurns > 0 {
		s.turns = semaphore.NewWeighted(maxConcurrentTurns)
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("POST /api/auth/signin", s.handleSignin)

	s.mux.HandleFunc("GET /api/{user_id}/tasks", s.withAuth(s.handleListTasks))
	s.mux.HandleFunc("POST /api/{user_id}/tasks", s.withAuth(s.handleCreateTask))
	s.mux.HandleFunc("GET /api/{user_id}/tasks/{task_id}", s.withAuth(s.handleGetTask))
	s.mux.HandleFunc("PUT /api/{user_id}/tasks/{task_id}", s.withAuth(s.handleUpdateTask))
	s.mux.HandleFunc("DELETE /api/{user_id}/tasks/{task_id}", s.withAuth(s.handleDeleteTask))

	s.mux.HandleFunc("POST /api/{user_id}/chat", s.withAuth(s.handleChat))
	s.mux.HandleFunc("GET /api/{user_id}/chat/conversations", s.withAuth(s.handleListConversations))
	s.mux.HandleFunc("DELETE /api/{user_id}/chat/conversations/{conversation_id}", s.withAuth(s.handleDeleteConversation))

	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
