package store

import (
	"slices"

	"github.com/tgienger/taskies/internal/gateway"
	"github.com/tgienger/taskies/internal/models"
)

// userFromAuth projects an auth API user onto the client user. Profile
// fields live in the user metadata.
func userFromAuth(u *gateway.AuthUser) models.User {
	user := models.User{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.MetaString("firstName"),
		LastName:  u.MetaString("lastName"),
		Role:      models.UserRole(u.MetaString("role")),
		IsActive:  true,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.CreatedAt,
	}
	if avatar := u.MetaString("avatar"); avatar != "" {
		user.Avatar = &avatar
	}
	if user.Role == "" {
		user.Role = models.RoleMember
	}
	if u.UpdatedAt != nil {
		user.UpdatedAt = *u.UpdatedAt
	}
	return user
}

func userFromRow(r *gateway.UserRow) *models.User {
	if r == nil {
		return nil
	}
	u := &models.User{
		ID:        r.ID,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Avatar:    r.Avatar,
		Role:      models.UserRole(r.Role),
		IsActive:  r.IsActive == nil || *r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	return u
}

func projectFromRow(r gateway.ProjectRow) models.Project {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.Project{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
		Icon:        r.Icon,
		OwnerID:     r.OwnerID,
		Members:     []models.ProjectMember{},
		Status:      models.ProjectStatus(r.Status),
		Priority:    models.Priority(r.Priority),
		Progress:    r.Progress,
		Deadline:    r.Deadline,
		Budget:      r.Budget,
		Tags:        tags,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func memberFromRow(r gateway.MemberRow) models.ProjectMember {
	return models.ProjectMember{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		UserID:    r.UserID,
		Role:      models.MemberRole(r.Role),
		JoinedAt:  r.JoinedAt,
		User:      userFromRow(r.Users),
	}
}

// projectPatch renders the set fields of u as a column patch
func projectPatch(u models.ProjectUpdate) gateway.Patch {
	p := gateway.Patch{}
	if u.Name != nil {
		p["name"] = *u.Name
	}
	if u.Description != nil {
		p["description"] = *u.Description
	}
	if u.Color != nil {
		p["color"] = *u.Color
	}
	if u.Icon != nil {
		p["icon"] = *u.Icon
	}
	if u.OwnerID != nil {
		p["owner_id"] = *u.OwnerID
	}
	if u.Status != nil {
		p["status"] = string(*u.Status)
	}
	if u.Priority != nil {
		p["priority"] = string(*u.Priority)
	}
	if u.Progress != nil {
		p["progress"] = *u.Progress
	}
	if u.Deadline != nil {
		p["deadline"] = *u.Deadline
	}
	if u.Budget != nil {
		p["budget"] = *u.Budget
	}
	if u.Tags != nil {
		p["tags"] = u.Tags
	}
	return p
}

func taskFromRow(r gateway.TaskRow) models.Task {
	t := models.Task{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		ProjectID:      r.ProjectID,
		AssigneeID:     r.AssigneeID,
		AssignedByID:   r.AssignedByID,
		Status:         models.TaskStatus(r.Status),
		Priority:       models.Priority(r.Priority),
		DueDate:        r.DueDate,
		CompletedAt:    r.CompletedAt,
		Progress:       r.Progress,
		EstimatedHours: r.EstimatedHours,
		ActualHours:    r.ActualHours,
		Tags:           r.Tags,
		Dependencies:   r.Dependencies,
		Comments:       make([]models.TaskComment, 0, len(r.TaskComments)),
		Attachments:    make([]models.TaskAttachment, 0, len(r.TaskAttachments)),
		Subtasks:       []models.SubTask{},
		Labels:         []models.TaskLabel{},
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Dependencies == nil {
		t.Dependencies = []string{}
	}
	for _, c := range r.TaskComments {
		if c.TaskID == "" {
			c.TaskID = r.ID
		}
		t.Comments = append(t.Comments, commentFromRow(c))
	}
	for _, a := range r.TaskAttachments {
		t.Attachments = append(t.Attachments, attachmentFromRow(a))
	}
	return t
}

func commentFromRow(r gateway.CommentRow) models.TaskComment {
	mentions := r.Mentions
	if mentions == nil {
		mentions = []string{}
	}
	return models.TaskComment{
		ID:        r.ID,
		TaskID:    r.TaskID,
		UserID:    r.UserID,
		Content:   r.Content,
		Mentions:  mentions,
		EditedAt:  r.EditedAt,
		User:      userFromRow(r.User),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func attachmentFromRow(r gateway.AttachmentRow) models.TaskAttachment {
	return models.TaskAttachment{
		ID:            r.ID,
		TaskID:        r.TaskID,
		FileName:      r.FileName,
		FileType:      r.FileType,
		FileSize:      r.FileSize,
		FilePath:      r.FilePath,
		ThumbnailPath: r.ThumbnailPath,
		UploadedBy:    r.UploadedBy,
		UploadedAt:    r.UploadedAt,
	}
}

// taskPatch renders the set fields of u as a column patch
func taskPatch(u models.TaskUpdate) gateway.Patch {
	p := gateway.Patch{}
	if u.Title != nil {
		p["title"] = *u.Title
	}
	if u.Description != nil {
		p["description"] = *u.Description
	}
	if u.ProjectID != nil {
		p["project_id"] = *u.ProjectID
	}
	if u.AssigneeID != nil {
		p["assignee_id"] = *u.AssigneeID
	}
	if u.Status != nil {
		p["status"] = string(*u.Status)
	}
	if u.Priority != nil {
		p["priority"] = string(*u.Priority)
	}
	if u.DueDate != nil {
		p["due_date"] = *u.DueDate
	}
	if u.CompletedAt != nil {
		p["completed_at"] = *u.CompletedAt
	}
	if u.Progress != nil {
		p["progress"] = *u.Progress
	}
	if u.EstimatedHours != nil {
		p["estimated_hours"] = *u.EstimatedHours
	}
	if u.ActualHours != nil {
		p["actual_hours"] = *u.ActualHours
	}
	if u.Tags != nil {
		p["tags"] = u.Tags
	}
	if u.Dependencies != nil {
		p["dependencies"] = u.Dependencies
	}
	return p
}

// clonePtr returns a fresh copy of *p, or nil
func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	c.Avatar = clonePtr(u.Avatar)
	return &c
}

// cloneProject deep-copies p so callers cannot alias store state
func cloneProject(p models.Project) models.Project {
	p.Members = slices.Clone(p.Members)
	for i := range p.Members {
		p.Members[i].User = cloneUser(p.Members[i].User)
	}
	p.Tags = slices.Clone(p.Tags)
	p.Deadline = clonePtr(p.Deadline)
	p.Budget = clonePtr(p.Budget)
	return p
}

func cloneProjects(ps []models.Project) []models.Project {
	out := make([]models.Project, len(ps))
	for i, p := range ps {
		out[i] = cloneProject(p)
	}
	return out
}

// cloneTask deep-copies t so callers cannot alias store state
func cloneTask(t models.Task) models.Task {
	t.AssigneeID = clonePtr(t.AssigneeID)
	t.DueDate = clonePtr(t.DueDate)
	t.CompletedAt = clonePtr(t.CompletedAt)
	t.EstimatedHours = clonePtr(t.EstimatedHours)
	t.ActualHours = clonePtr(t.ActualHours)
	t.Tags = slices.Clone(t.Tags)
	t.Dependencies = slices.Clone(t.Dependencies)
	t.Comments = slices.Clone(t.Comments)
	for i := range t.Comments {
		c := &t.Comments[i]
		c.Mentions = slices.Clone(c.Mentions)
		c.EditedAt = clonePtr(c.EditedAt)
		c.User = cloneUser(c.User)
	}
	t.Attachments = slices.Clone(t.Attachments)
	for i := range t.Attachments {
		t.Attachments[i].ThumbnailPath = clonePtr(t.Attachments[i].ThumbnailPath)
	}
	t.Subtasks = slices.Clone(t.Subtasks)
	t.Labels = slices.Clone(t.Labels)
	return t
}

func cloneTasks(ts []models.Task) []models.Task {
	out := make([]models.Task, len(ts))
	for i, t := range ts {
		out[i] = cloneTask(t)
	}
	return out
}
