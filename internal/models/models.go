package models

import (
	"slices"
	"time"
)

// UserRole is the account-wide role of a user
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleMember  UserRole = "member"
)

// User represents the signed-in identity as seen by the client
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Avatar    *string   `json:"avatar,omitempty"`
	Role      UserRole  `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName joins first and last name
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Session pairs a user with an access token
type Session struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// ProjectStatus is the lifecycle state of a project
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on-hold"
	ProjectCancelled ProjectStatus = "cancelled"
)

// Priority is shared by projects and tasks
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// MemberRole is the role a user holds inside one project
type MemberRole string

const (
	MemberOwner  MemberRole = "owner"
	MemberAdmin  MemberRole = "admin"
	MemberMember MemberRole = "member"
)

// Valid reports whether r is a known member role
func (r MemberRole) Valid() bool {
	switch r {
	case MemberOwner, MemberAdmin, MemberMember:
		return true
	}
	return false
}

// Project represents a project and its denormalized membership
type Project struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Color       string          `json:"color"`
	Icon        string          `json:"icon"`
	OwnerID     string          `json:"ownerId"`
	Members     []ProjectMember `json:"members"`
	Status      ProjectStatus   `json:"status"`
	Priority    Priority        `json:"priority"`
	Progress    int             `json:"progress"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
	Budget      *float64        `json:"budget,omitempty"`
	Tags        []string        `json:"tags"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// HasMember reports whether userID owns or belongs to the project
func (p Project) HasMember(userID string) bool {
	if p.OwnerID == userID {
		return true
	}
	for _, m := range p.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// ProjectMember links a user to a project
type ProjectMember struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"projectId"`
	UserID    string     `json:"userId"`
	Role      MemberRole `json:"role"`
	JoinedAt  time.Time  `json:"joinedAt"`
	User      *User      `json:"user,omitempty"`
}

// NewProject holds the caller-supplied fields of a project to create
type NewProject struct {
	Name        string
	Description string
	Color       string
	Icon        string
	OwnerID     string
	Status      ProjectStatus // empty means active
	Priority    Priority      // empty means medium
	Deadline    *time.Time
	Budget      *float64
	Tags        []string
}

// ProjectUpdate is a partial project; nil fields are left unchanged
type ProjectUpdate struct {
	Name        *string
	Description *string
	Color       *string
	Icon        *string
	OwnerID     *string
	Status      *ProjectStatus
	Priority    *Priority
	Progress    *int
	Deadline    *time.Time
	Budget      *float64
	Tags        []string
}

// Task represents a single task
type Task struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	ProjectID      string           `json:"projectId"`
	AssigneeID     *string          `json:"assigneeId,omitempty"`
	AssignedByID   string           `json:"assignedById"`
	Status         TaskStatus       `json:"status"`
	Priority       Priority         `json:"priority"`
	DueDate        *time.Time       `json:"dueDate,omitempty"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
	Progress       int              `json:"progress"`
	EstimatedHours *float64         `json:"estimatedHours,omitempty"`
	ActualHours    *float64         `json:"actualHours,omitempty"`
	Tags           []string         `json:"tags"`
	Dependencies   []string         `json:"dependencies"`
	Comments       []TaskComment    `json:"comments"`
	Attachments    []TaskAttachment `json:"attachments"`
	Subtasks       []SubTask        `json:"subtasks"`
	Labels         []TaskLabel      `json:"labels"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// NewTask holds the caller-supplied fields of a task to create
type NewTask struct {
	Title          string
	Description    string
	ProjectID      string
	AssigneeID     *string
	AssignedByID   string
	Priority       Priority // empty means medium
	DueDate        *time.Time
	EstimatedHours *float64
	Tags           []string
	Dependencies   []string
}

// TaskUpdate is a partial task; nil fields are left unchanged
type TaskUpdate struct {
	Title          *string
	Description    *string
	ProjectID      *string
	AssigneeID     *string
	Status         *TaskStatus
	Priority       *Priority
	DueDate        *time.Time
	CompletedAt    *time.Time
	Progress       *int
	EstimatedHours *float64
	ActualHours    *float64
	Tags           []string
	Dependencies   []string
}

// TaskComment represents a comment on a task
type TaskComment struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"taskId"`
	UserID    string     `json:"userId"`
	Content   string     `json:"content"`
	Mentions  []string   `json:"mentions"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	User      *User      `json:"user,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// TaskAttachment is file metadata; the bytes live in object storage
type TaskAttachment struct {
	ID            string    `json:"id"`
	TaskID        string    `json:"taskId"`
	FileName      string    `json:"fileName"`
	FileType      string    `json:"fileType"`
	FileSize      int64     `json:"fileSize"`
	FilePath      string    `json:"filePath"`
	ThumbnailPath *string   `json:"thumbnailPath,omitempty"`
	UploadedBy    string    `json:"uploadedBy"`
	UploadedAt    time.Time `json:"uploadedAt"`
}

// SubTask is a checklist item of a task
type SubTask struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TaskLabel is a coloured label
type TaskLabel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TaskFilters narrows the task list. Empty fields match everything.
type TaskFilters struct {
	Status   []TaskStatus `json:"status,omitempty"`
	Priority []Priority   `json:"priority,omitempty"`
	Assignee []string     `json:"assignee,omitempty"`
	Project  []string     `json:"project,omitempty"`
	DueFrom  *time.Time   `json:"dueFrom,omitempty"`
	DueTo    *time.Time   `json:"dueTo,omitempty"`
	Search   string       `json:"search,omitempty"`
}

// Equal reports whether f and o select the same tasks
func (f TaskFilters) Equal(o TaskFilters) bool {
	return slices.Equal(f.Status, o.Status) && slices.Equal(f.Priority, o.Priority) &&
		slices.Equal(f.Assignee, o.Assignee) && slices.Equal(f.Project, o.Project) &&
		sameInstant(f.DueFrom, o.DueFrom) && sameInstant(f.DueTo, o.DueTo) && f.Search == o.Search
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// IsZero reports whether no filter is set
func (f TaskFilters) IsZero() bool {
	return len(f.Status) == 0 && len(f.Priority) == 0 && len(f.Assignee) == 0 &&
		len(f.Project) == 0 && f.DueFrom == nil && f.DueTo == nil && f.Search == ""
}

// DashboardStats summarizes the cached projects and tasks
type DashboardStats struct {
	TotalProjects   int
	ActiveProjects  int
	TotalTasks      int
	CompletedTasks  int
	OverdueTasks    int
	TasksInProgress int
	WeeklyProgress  int
	MonthlyProgress int
}
