package gateway

import (
	"context"
	"time"
)

// AttachmentRow is a row of task_attachments
type AttachmentRow struct {
	ID            string    `json:"id,omitempty"`
	TaskID        string    `json:"task_id"`
	FileName      string    `json:"file_name"`
	FileType      string    `json:"file_type"`
	FileSize      int64     `json:"file_size"`
	FilePath      string    `json:"file_path"`
	ThumbnailPath *string   `json:"thumbnail_path,omitempty"`
	UploadedBy    string    `json:"uploaded_by"`
	UploadedAt    time.Time `json:"uploaded_at,omitzero"`
}

const attachmentsTable = "task_attachments"

// CreateAttachment inserts attachment metadata
func (c *Client) CreateAttachment(ctx context.Context, row AttachmentRow) (*AttachmentRow, error) {
	var out AttachmentRow
	if err := c.Insert(ctx, attachmentsTable, row, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAttachments returns a task's attachments, newest first
func (c *Client) ListAttachments(ctx context.Context, taskID string) ([]AttachmentRow, error) {
	var rows []AttachmentRow
	q := From("*").Eq("task_id", taskID).Order("uploaded_at", false)
	if err := c.Select(ctx, attachmentsTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteAttachment removes attachment metadata. The stored object is left to
// the caller.
func (c *Client) DeleteAttachment(ctx context.Context, id string) error {
	return c.Delete(ctx, attachmentsTable, Where().Eq("id", id))
}
