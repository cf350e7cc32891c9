package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/user/taskpilot/internal/model"
)

// ErrTaskNotFound is returned when a task does not exist for the given owner.
// A task owned by somebody else reports the same error, so callers cannot
// tell "absent" from "not yours".
var ErrTaskNotFound = errors.New("task not found")

// StatusFilter selects which tasks List returns.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusPending   StatusFilter = "pending"
	StatusCompleted StatusFilter = "completed"
)

// TaskUpdate carries the optional fields for Update. Nil means "leave as is".
type TaskUpdate struct {
	Title       *string
	Description *string
	Completed   *bool
}

// TaskStore handles CRUD for tasks, always scoped to an owner.
type TaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) Create(ctx context.Context, ownerID, title, description string) (*model.Task, error) {
	task := &model.Task{
		UserID:      ownerID,
		Title:       title,
		Description: description,
	}
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// List returns the owner's tasks newest-created first. An owner with no
// tasks gets an empty slice, not an error.
func (s *TaskStore) List(ctx context.Context, ownerID string, status StatusFilter) ([]model.Task, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", ownerID)
	switch status {
	case StatusPending:
		q = q.Where("completed = ?", false)
	case StatusCompleted:
		q = q.Where("completed = ?", true)
	}
	var tasks []model.Task
	if err := q.Order("created_at DESC, id DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskStore) Get(ctx context.Context, ownerID string, taskID uint) (*model.Task, error) {
	var task model.Task
	err := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", ownerID, taskID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

// Update mutates only the supplied fields and refreshes UpdatedAt.
func (s *TaskStore) Update(ctx context.Context, ownerID string, taskID uint, upd TaskUpdate) (*model.Task, error) {
	task, err := s.Get(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil {
		task.Title = *upd.Title
	}
	if upd.Description != nil {
		task.Description = *upd.Description
	}
	if upd.Completed != nil {
		task.Completed = *upd.Completed
	}
	if err := s.db.WithContext(ctx).Save(task).Error; err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

// Complete marks a task done. Completing an already-completed task succeeds.
func (s *TaskStore) Complete(ctx context.Context, ownerID string, taskID uint) (*model.Task, error) {
	done := true
	return s.Update(ctx, ownerID, taskID, TaskUpdate{Completed: &done})
}

// Delete removes a task permanently and returns it as it was before
// deletion. A second delete of the same id reports ErrTaskNotFound.
func (s *TaskStore) Delete(ctx context.Context, ownerID string, taskID uint) (*model.Task, error) {
	task, err := s.Get(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", ownerID, taskID).
		Delete(&model.Task{}).Error; err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}
	return task, nil
}
