package gateway

import (
	"context"
	"time"
)

// TaskRow is a row of the tasks table. Comments and attachments are only
// present when selected through a join.
type TaskRow struct {
	ID              string          `json:"id,omitempty"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	ProjectID       string          `json:"project_id"`
	AssigneeID      *string         `json:"assignee_id,omitempty"`
	AssignedByID    string          `json:"assigned_by_id"`
	Status          string          `json:"status"`
	Priority        string          `json:"priority"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Progress        int             `json:"progress"`
	EstimatedHours  *float64        `json:"estimated_hours,omitempty"`
	ActualHours     *float64        `json:"actual_hours,omitempty"`
	Tags            []string        `json:"tags"`
	Dependencies    []string        `json:"dependencies"`
	CreatedAt       time.Time       `json:"created_at,omitzero"`
	UpdatedAt       time.Time       `json:"updated_at,omitzero"`
	TaskComments    []CommentRow    `json:"task_comments,omitempty"`
	TaskAttachments []AttachmentRow `json:"task_attachments,omitempty"`
}

const tasksTable = "tasks"

// taskDetailColumns hydrates comments with their authors and attachments
const taskDetailColumns = "*, task_comments(*, user:users(*)), task_attachments(*)"

// CreateTask inserts a task row
func (c *Client) CreateTask(ctx context.Context, row TaskRow) (*TaskRow, error) {
	var out TaskRow
	if err := c.Insert(ctx, tasksTable, row, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks returns tasks newest first, optionally narrowed to a project
// and/or an assignee
func (c *Client) ListTasks(ctx context.Context, projectID, assigneeID string) ([]TaskRow, error) {
	q := From("*").Order("created_at", false)
	if projectID != "" {
		q.Eq("project_id", projectID)
	}
	if assigneeID != "" {
		q.Eq("assignee_id", assigneeID)
	}
	var rows []TaskRow
	if err := c.Select(ctx, tasksTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetTask returns a task with its comments and attachments
func (c *Client) GetTask(ctx context.Context, id string) (*TaskRow, error) {
	var out TaskRow
	if err := c.SelectOne(ctx, tasksTable, From(taskDetailColumns).Eq("id", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasksByStatus returns tasks in status, optionally within one project
func (c *Client) ListTasksByStatus(ctx context.Context, status, projectID string) ([]TaskRow, error) {
	q := From("*").Eq("status", status)
	if projectID != "" {
		q.Eq("project_id", projectID)
	}
	var rows []TaskRow
	if err := c.Select(ctx, tasksTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListOverdueTasks returns open tasks due before now, optionally assigned to
// userID
func (c *Client) ListOverdueTasks(ctx context.Context, userID string, now time.Time) ([]TaskRow, error) {
	q := From("*").
		Lt("due_date", now.UTC().Format(time.RFC3339)).
		Neq("status", "completed").
		Neq("status", "cancelled")
	if userID != "" {
		q.Eq("assignee_id", userID)
	}
	var rows []TaskRow
	if err := c.Select(ctx, tasksTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateTask patches a task and returns the stored row
func (c *Client) UpdateTask(ctx context.Context, id string, patch Patch) (*TaskRow, error) {
	var out TaskRow
	if err := c.Update(ctx, tasksTable, Where().Eq("id", id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTask removes a task
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.Delete(ctx, tasksTable, Where().Eq("id", id))
}
