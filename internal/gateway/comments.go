package gateway

import (
	"context"
	"time"
)

// CommentRow is a row of task_comments joined with its author
type CommentRow struct {
	ID        string     `json:"id,omitempty"`
	TaskID    string     `json:"task_id"`
	UserID    string     `json:"user_id"`
	Content   string     `json:"content"`
	Mentions  []string   `json:"mentions,omitempty"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitzero"`
	UpdatedAt time.Time  `json:"updated_at,omitzero"`
	User      *UserRow   `json:"user,omitempty"`
}

const commentsTable = "task_comments"

const commentColumns = "*, user:users(*)"

// CreateComment inserts a comment and returns it with its author
func (c *Client) CreateComment(ctx context.Context, row CommentRow) (*CommentRow, error) {
	var out CommentRow
	if err := c.InsertSelect(ctx, commentsTable, commentColumns, row, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListComments returns a task's comments, oldest first
func (c *Client) ListComments(ctx context.Context, taskID string) ([]CommentRow, error) {
	var rows []CommentRow
	q := From(commentColumns).Eq("task_id", taskID).Order("created_at", true)
	if err := c.Select(ctx, commentsTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateComment replaces a comment's content
func (c *Client) UpdateComment(ctx context.Context, id, content string, now time.Time) (*CommentRow, error) {
	var out CommentRow
	patch := Patch{"content": content, "updated_at": now, "edited_at": now}
	if err := c.Update(ctx, commentsTable, From(commentColumns).Eq("id", id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComment removes a comment
func (c *Client) DeleteComment(ctx context.Context, id string) error {
	return c.Delete(ctx, commentsTable, Where().Eq("id", id))
}
