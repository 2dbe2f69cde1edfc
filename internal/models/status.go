package models

import (
	"errors"
	"time"
)

// TaskStatus is the workflow state of a task
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusReview     TaskStatus = "review"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is a known status
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no helper moves a task out of s
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Next returns the status that follows s in the todo → in-progress → review →
// completed flow. Terminal statuses return themselves.
func (s TaskStatus) Next() TaskStatus {
	switch s {
	case StatusTodo:
		return StatusInProgress
	case StatusInProgress:
		return StatusReview
	case StatusReview:
		return StatusCompleted
	}
	return s
}

// CanTransition reports whether the status helpers allow moving from s to to.
// Terminal states are final; every other move is allowed.
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	if !to.Valid() {
		return false
	}
	if s == to {
		return true
	}
	return !s.Terminal()
}

var (
	ErrProgressRange    = errors.New("progress must be between 0 and 100")
	ErrInvalidStatus    = errors.New("invalid task status")
	ErrCompletionClash  = errors.New("progress 100 requires status completed")
	ErrEmptyCompletion  = errors.New("status or progress is required")
	ErrTerminalStatus   = errors.New("task is already closed")
	ErrProjectNameEmpty = errors.New("project name is required")
	ErrTaskTitleEmpty   = errors.New("task title is required")
)

// Completion is a requested change to a task's status and/or progress
type Completion struct {
	Status   *TaskStatus
	Progress *int
}

// Patch turns c into the task update that keeps
// progress == 100 ⟺ status == completed.
func (c Completion) Patch(now time.Time) (TaskUpdate, error) {
	var u TaskUpdate
	if c.Status == nil && c.Progress == nil {
		return u, ErrEmptyCompletion
	}
	if c.Status != nil && !c.Status.Valid() {
		return u, ErrInvalidStatus
	}
	if c.Progress != nil && (*c.Progress < 0 || *c.Progress > 100) {
		return u, ErrProgressRange
	}

	completing := (c.Status != nil && *c.Status == StatusCompleted) ||
		(c.Progress != nil && *c.Progress == 100)
	if completing && c.Status != nil && *c.Status != StatusCompleted {
		return u, ErrCompletionClash
	}

	if completing {
		status := StatusCompleted
		progress := 100
		at := now
		u.Status = &status
		u.Progress = &progress
		u.CompletedAt = &at
		return u, nil
	}

	if c.Status != nil {
		status := *c.Status
		u.Status = &status
	}
	if c.Progress != nil {
		progress := *c.Progress
		u.Progress = &progress
	}
	return u, nil
}

// ApplyCompletion returns t with c applied
func ApplyCompletion(t Task, c Completion, now time.Time) (Task, error) {
	u, err := c.Patch(now)
	if err != nil {
		return t, err
	}
	return u.Apply(t), nil
}

// Apply merges the non-nil fields of u into t
func (u TaskUpdate) Apply(t Task) Task {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.ProjectID != nil {
		t.ProjectID = *u.ProjectID
	}
	if u.AssigneeID != nil {
		id := *u.AssigneeID
		t.AssigneeID = &id
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.DueDate != nil {
		d := *u.DueDate
		t.DueDate = &d
	}
	if u.CompletedAt != nil {
		d := *u.CompletedAt
		t.CompletedAt = &d
	}
	if u.Progress != nil {
		t.Progress = *u.Progress
	}
	if u.EstimatedHours != nil {
		h := *u.EstimatedHours
		t.EstimatedHours = &h
	}
	if u.ActualHours != nil {
		h := *u.ActualHours
		t.ActualHours = &h
	}
	if u.Tags != nil {
		t.Tags = append([]string(nil), u.Tags...)
	}
	if u.Dependencies != nil {
		t.Dependencies = append([]string(nil), u.Dependencies...)
	}
	return t
}
