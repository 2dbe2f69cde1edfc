package gateway

import (
	"context"
	"time"
)

// MemberRow is a row of project_members, optionally joined with its user
type MemberRow struct {
	ID        string    `json:"id,omitempty"`
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at,omitzero"`
	Users     *UserRow  `json:"users,omitempty"`
}

const membersTable = "project_members"

// ListProjectMembers returns a project's members with their user records
func (c *Client) ListProjectMembers(ctx context.Context, projectID string) ([]MemberRow, error) {
	var rows []MemberRow
	q := From("*, users(*)").Eq("project_id", projectID).Order("joined_at", true)
	if err := c.Select(ctx, membersTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AddProjectMember inserts a membership
func (c *Client) AddProjectMember(ctx context.Context, projectID, userID, role string) (*MemberRow, error) {
	var out MemberRow
	row := MemberRow{ProjectID: projectID, UserID: userID, Role: role}
	if err := c.InsertSelect(ctx, membersTable, "*, users(*)", row, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveProjectMember deletes the membership of userID in projectID
func (c *Client) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	return c.Delete(ctx, membersTable, Where().Eq("project_id", projectID).Eq("user_id", userID))
}

// UpdateProjectMemberRole changes the role of userID in projectID
func (c *Client) UpdateProjectMemberRole(ctx context.Context, projectID, userID, role string) (*MemberRow, error) {
	var out MemberRow
	q := Where().Eq("project_id", projectID).Eq("user_id", userID)
	if err := c.Update(ctx, membersTable, q, Patch{"role": role}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
