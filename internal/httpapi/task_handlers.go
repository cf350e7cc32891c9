package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/user/taskpilot/internal/model"
	"github.com/user/taskpilot/internal/store"
)

type taskResponse struct {
	ID          uint   `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request, ownerID string) {
	status := store.StatusFilter(r.URL.Query().Get("status"))
	switch status {
	case "", store.StatusAll:
		status = store.StatusAll
	case store.StatusPending, store.StatusCompleted:
	default:
		writeError(w, http.StatusBadRequest, "status must be one of all, pending, completed")
		return
	}

	tasks, err := s.tasks.List(r.Context(), ownerID, status)
	if err != nil {
		slog.Error("list tasks failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > model.MaxTitleLen {
		writeError(w, http.StatusBadRequest, "Title must be 1-200 characters")
		return
	}
	if len(req.Description) > model.MaxDescriptionLen {
		writeError(w, http.StatusBadRequest, "Description must be at most 1000 characters")
		return
	}

	task, err := s.tasks.Create(r.Context(), ownerID, req.Title, req.Description)
	if err != nil {
		slog.Error("create task failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request, ownerID string) {
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}
	task, err := s.tasks.Get(r.Context(), ownerID, taskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		slog.Error("get task failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, ownerID string) {
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Title == nil && req.Description == nil && req.Completed == nil {
		writeError(w, http.StatusBadRequest, "At least one field must be provided")
		return
	}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" || len(trimmed) > model.MaxTitleLen {
			writeError(w, http.StatusBadRequest, "Title must be 1-200 characters")
			return
		}
		req.Title = &trimmed
	}
	if req.Description != nil && len(*req.Description) > model.MaxDescriptionLen {
		writeError(w, http.StatusBadRequest, "Description must be at most 1000 characters")
		return
	}

	task, err := s.tasks.Update(r.Context(), ownerID, taskID, store.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if errors.Is(err, store.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		slog.Error("update task failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request, ownerID string) {
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}
	if _, err := s.tasks.Delete(r.Context(), ownerID, taskID); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		slog.Error("delete task failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}

func parseTaskID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("task_id"), 10, 32)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "Invalid task id")
		return 0, false
	}
	return uint(id), true
}
