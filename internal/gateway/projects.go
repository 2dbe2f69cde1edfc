package gateway

import (
	"context"
	"time"
)

// UserRow is a row of the public users table
type UserRow struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Avatar    *string   `json:"avatar"`
	Role      string    `json:"role"`
	IsActive  *bool     `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectRow is a row of the projects table
type ProjectRow struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Color       string     `json:"color"`
	Icon        string     `json:"icon"`
	OwnerID     string     `json:"owner_id"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Progress    int        `json:"progress"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Budget      *float64   `json:"budget,omitempty"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"created_at,omitzero"`
	UpdatedAt   time.Time  `json:"updated_at,omitzero"`
}

// Patch is a partial row keyed by column name
type Patch map[string]any

const projectsTable = "projects"

// CreateProject inserts a project row
func (c *Client) CreateProject(ctx context.Context, row ProjectRow) (*ProjectRow, error) {
	var out ProjectRow
	if err := c.Insert(ctx, projectsTable, row, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProjects returns the projects owned by ownerID, newest first
func (c *Client) ListProjects(ctx context.Context, ownerID string) ([]ProjectRow, error) {
	var rows []ProjectRow
	q := From("*").Eq("owner_id", ownerID).Order("created_at", false)
	if err := c.Select(ctx, projectsTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetProject returns a single project
func (c *Client) GetProject(ctx context.Context, id string) (*ProjectRow, error) {
	var out ProjectRow
	if err := c.SelectOne(ctx, projectsTable, From("*").Eq("id", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProject patches a project and returns the stored row
func (c *Client) UpdateProject(ctx context.Context, id string, patch Patch) (*ProjectRow, error) {
	var out ProjectRow
	if err := c.Update(ctx, projectsTable, Where().Eq("id", id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProject removes a project
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.Delete(ctx, projectsTable, Where().Eq("id", id))
}
