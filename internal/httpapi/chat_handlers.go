package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/user/taskpilot/internal/agent"
	"github.com/user/taskpilot/internal/chat"
	"github.com/user/taskpilot/internal/model"
	"github.com/user/taskpilot/internal/store"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID *uint  `json:"conversation_id"`
}

type chatResponse struct {
	ConversationID uint                   `json:"conversation_id"`
	Message        string                 `json:"message"`
	ToolCalls      []agent.ToolCallRecord `json:"tool_calls"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message must not be empty")
		return
	}
	if len(req.Message) > model.MaxMessageLen {
		writeError(w, http.StatusBadRequest, "Message must be at most 5000 characters")
		return
	}

	if s.turns != nil {
		if err := s.turns.Acquire(r.Context(), 1); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Server is busy, try again shortly")
			return
		}
		defer s.turns.Release(1)
	}

	out, err := s.chat.Turn(r.Context(), chat.TurnInput{
		OwnerID:        ownerID,
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if errors.Is(err, store.ErrConversationNotFound) {
		writeError(w, http.StatusBadRequest, "Conversation not found or doesn't belong to user")
		return
	}
	if err != nil {
		slog.Error("chat turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "An error occurred while processing your request")
		return
	}

	if out.ToolCalls == nil {
		out.ToolCalls = []agent.ToolCallRecord{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: out.ConversationID,
		Message:        out.Message,
		ToolCalls:      out.ToolCalls,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, ownerID string) {
	convs, err := s.chat.ListConversations(r.Context(), ownerID, 20)
	if err != nil {
		slog.Error("list conversations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request, ownerID string) {
	id, err := strconv.ParseUint(r.PathValue("conversation_id"), 10, 32)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "Invalid conversation id")
		return
	}

	deleted, err := s.chat.DeleteConversation(r.Context(), ownerID, uint(id))
	if err != nil {
		slog.Error("delete conversation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted successfully"})
}
