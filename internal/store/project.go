package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tgienger/taskies/internal/gateway"
	"github.com/tgienger/taskies/internal/models"
)

// ProjectGateway is the part of the gateway the project store uses
type ProjectGateway interface {
	CreateProject(ctx context.Context, row gateway.ProjectRow) (*gateway.ProjectRow, error)
	ListProjects(ctx context.Context, ownerID string) ([]gateway.ProjectRow, error)
	GetProject(ctx context.Context, id string) (*gateway.ProjectRow, error)
	UpdateProject(ctx context.Context, id string, patch gateway.Patch) (*gateway.ProjectRow, error)
	DeleteProject(ctx context.Context, id string) error
	ListProjectMembers(ctx context.Context, projectID string) ([]gateway.MemberRow, error)
	AddProjectMember(ctx context.Context, projectID, userID, role string) (*gateway.MemberRow, error)
	RemoveProjectMember(ctx context.Context, projectID, userID string) error
	UpdateProjectMemberRole(ctx context.Context, projectID, userID, role string) (*gateway.MemberRow, error)
}

// Defaults applied to new projects
const (
	DefaultProjectColor = "#3B82F6"
	DefaultProjectIcon  = "folder"
)

type projectSlice struct {
	Projects       []models.Project `json:"projects"`
	CurrentProject *models.Project  `json:"currentProject"`
}

// ProjectStore owns the cached project list and project memberships
type ProjectStore struct {
	gw    ProjectGateway
	cache Cache
	log   logrus.FieldLogger
	now   func() time.Time

	pending Pending

	mu       sync.RWMutex
	projects []models.Project
	current  *models.Project
	lastErr  error
}

// NewProjectStore restores the persisted project slice
func NewProjectStore(gw ProjectGateway, cache Cache, opts ...Option) *ProjectStore {
	o := newOptions(opts)
	s := &ProjectStore{gw: gw, cache: cache, log: o.log, now: o.now}

	var slice projectSlice
	if load(cache, s.log, ProjectsKey, &slice) {
		s.projects = slice.Projects
		s.current = slice.CurrentProject
	}
	return s
}

func (s *ProjectStore) persist() {
	s.mu.RLock()
	slice := projectSlice{Projects: cloneProjects(s.projects)}
	if s.current != nil {
		p := cloneProject(*s.current)
		slice.CurrentProject = &p
	}
	s.mu.RUnlock()
	if slice.Projects == nil {
		slice.Projects = []models.Project{}
	}
	save(s.cache, s.log, ProjectsKey, slice)
}

// begin marks op as in flight and clears the mirrored error
func (s *ProjectStore) begin(op, id string) func() {
	s.setErr(nil)
	return s.pending.Begin(op, id)
}

func (s *ProjectStore) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *ProjectStore) fail(op string, err error) *gateway.Error {
	gerr := fail(s.log, op, err)
	s.setErr(gerr)
	return gerr
}

// Err returns the error of the last failed action, nil after a success
func (s *ProjectStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// IsLoading reports whether any project action is in flight
func (s *ProjectStore) IsLoading() bool { return s.pending.Any() }

// IsPending reports whether op on id is in flight
func (s *ProjectStore) IsPending(op, id string) bool { return s.pending.IsPending(op, id) }

// Projects returns the cached project list
func (s *ProjectStore) Projects() []models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProjects(s.projects)
}

// Current returns the selected project, nil when none is selected
func (s *ProjectStore) Current() *models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	p := cloneProject(*s.current)
	return &p
}

// SetCurrent selects the cached project with id. An empty or unknown id
// clears the selection.
func (s *ProjectStore) SetCurrent(id string) {
	s.mu.Lock()
	s.current = nil
	if i := s.indexOf(id); i >= 0 {
		p := cloneProject(s.projects[i])
		s.current = &p
	}
	s.mu.Unlock()
	s.persist()
}

// Clear drops every cached project
func (s *ProjectStore) Clear() {
	s.mu.Lock()
	s.projects = nil
	s.current = nil
	s.mu.Unlock()
	s.persist()
}

// indexOf must be called with s.mu held
func (s *ProjectStore) indexOf(id string) int {
	return slices.IndexFunc(s.projects, func(p models.Project) bool { return p.ID == id })
}

// upsert replaces the cached project with p's id, or appends p. The member
// list of the cached copy is kept when p carries none.
func (s *ProjectStore) upsert(p models.Project, appendMissing bool) models.Project {
	s.mu.Lock()
	if i := s.indexOf(p.ID); i >= 0 {
		if len(p.Members) == 0 {
			p.Members = s.projects[i].Members
		}
		s.projects[i] = p
	} else if appendMissing {
		s.projects = append(s.projects, p)
	}
	if s.current != nil && s.current.ID == p.ID {
		if len(p.Members) == 0 {
			p.Members = s.current.Members
		}
		cur := cloneProject(p)
		s.current = &cur
	}
	s.mu.Unlock()
	s.persist()
	return cloneProject(p)
}

func (s *ProjectStore) remove(id string) {
	s.mu.Lock()
	s.projects = slices.DeleteFunc(s.projects, func(p models.Project) bool { return p.ID == id })
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	s.mu.Unlock()
	s.persist()
}

// CreateProject stores a new project. Unset fields get the defaults: status
// active, priority medium, progress 0.
func (s *ProjectStore) CreateProject(ctx context.Context, in models.NewProject) (*models.Project, error) {
	defer s.begin("createProject", "")()

	if strings.TrimSpace(in.Name) == "" {
		return nil, s.fail("create_project", gateway.Validation(models.ErrProjectNameEmpty))
	}
	now := s.now()
	row := gateway.ProjectRow{
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		Icon:        in.Icon,
		OwnerID:     in.OwnerID,
		Status:      string(in.Status),
		Priority:    string(in.Priority),
		Progress:    0,
		Deadline:    in.Deadline,
		Budget:      in.Budget,
		Tags:        in.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if row.Status == "" {
		row.Status = string(models.ProjectActive)
	}
	if row.Priority == "" {
		row.Priority = string(models.PriorityMedium)
	}
	if row.Color == "" {
		row.Color = DefaultProjectColor
	}
	if row.Icon == "" {
		row.Icon = DefaultProjectIcon
	}
	if row.Tags == nil {
		row.Tags = []string{}
	}

	created, err := s.gw.CreateProject(ctx, row)
	if err != nil {
		return nil, s.fail("create_project", err)
	}
	p := s.upsert(projectFromRow(*created), true)
	s.log.Infof("Event ID: PROJECT_CREATED, Description: project %s created", p.ID)
	return &p, nil
}

// UpdateProject patches the set fields of u and replaces the cached copy
func (s *ProjectStore) UpdateProject(ctx context.Context, id string, u models.ProjectUpdate) (*models.Project, error) {
	defer s.begin("updateProject", id)()

	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, s.fail("update_project", gateway.Validation(models.ErrProjectNameEmpty))
	}
	if u.Progress != nil && (*u.Progress < 0 || *u.Progress > 100) {
		return nil, s.fail("update_project", gateway.Validation(models.ErrProgressRange))
	}
	patch := projectPatch(u)
	patch["updated_at"] = s.now()

	updated, err := s.gw.UpdateProject(ctx, id, patch)
	if err != nil {
		return nil, s.fail("update_project", err)
	}
	p := s.upsert(projectFromRow(*updated), false)
	return &p, nil
}

// DeleteProject removes the project. Its tasks are left to the task store.
func (s *ProjectStore) DeleteProject(ctx context.Context, id string) error {
	defer s.begin("deleteProject", id)()

	if err := s.gw.DeleteProject(ctx, id); err != nil {
		return s.fail("delete_project", err)
	}
	s.remove(id)
	s.log.Infof("Event ID: PROJECT_DELETED, Description: project %s deleted", id)
	return nil
}

// FetchProjects replaces the cached list with the projects owned by userID
func (s *ProjectStore) FetchProjects(ctx context.Context, userID string) ([]models.Project, error) {
	defer s.begin("fetchProjects", userID)()

	rows, err := s.gw.ListProjects(ctx, userID)
	if err != nil {
		return nil, s.fail("fetch_projects", err)
	}

	s.mu.Lock()
	known := make(map[string][]models.ProjectMember, len(s.projects))
	for _, p := range s.projects {
		known[p.ID] = p.Members
	}
	projects := make([]models.Project, 0, len(rows))
	for _, r := range rows {
		p := projectFromRow(r)
		if members, ok := known[p.ID]; ok && members != nil {
			p.Members = members
		}
		projects = append(projects, p)
	}
	s.projects = projects
	out := cloneProjects(projects)
	s.mu.Unlock()
	s.persist()
	return out, nil
}

// FetchProjectByID loads a project with its members and makes it current
func (s *ProjectStore) FetchProjectByID(ctx context.Context, id string) (*models.Project, error) {
	defer s.begin("fetchProjectById", id)()

	row, err := s.gw.GetProject(ctx, id)
	if err != nil {
		return nil, s.fail("fetch_project", err)
	}
	rows, err := s.gw.ListProjectMembers(ctx, id)
	if err != nil {
		return nil, s.fail("fetch_project", err)
	}

	p := projectFromRow(*row)
	for _, m := range rows {
		p.Members = append(p.Members, memberFromRow(m))
	}

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.projects[i] = cloneProject(p)
	}
	cur := cloneProject(p)
	s.current = &cur
	s.mu.Unlock()
	s.persist()
	return &p, nil
}

// spliceMembers applies fn to the member list of the cached and current
// copies of projectID
func (s *ProjectStore) spliceMembers(projectID string, fn func([]models.ProjectMember) []models.ProjectMember) {
	s.mu.Lock()
	if i := s.indexOf(projectID); i >= 0 {
		s.projects[i].Members = fn(slices.Clone(s.projects[i].Members))
	}
	if s.current != nil && s.current.ID == projectID {
		cur := cloneProject(*s.current)
		cur.Members = fn(cur.Members)
		s.current = &cur
	}
	s.mu.Unlock()
	s.persist()
}

// AddProjectMember adds userID to the project. A previous membership of the
// same user is replaced.
func (s *ProjectStore) AddProjectMember(ctx context.Context, projectID, userID string, role models.MemberRole) (*models.ProjectMember, error) {
	defer s.begin("addProjectMember", projectID+"/"+userID)()

	if !role.Valid() {
		return nil, s.fail("add_project_member", validation("invalid member role %q", role))
	}
	row, err := s.gw.AddProjectMember(ctx, projectID, userID, string(role))
	if err != nil {
		return nil, s.fail("add_project_member", err)
	}
	m := memberFromRow(*row)
	s.spliceMembers(projectID, func(ms []models.ProjectMember) []models.ProjectMember {
		ms = slices.DeleteFunc(ms, func(x models.ProjectMember) bool { return x.UserID == m.UserID })
		return append(ms, m)
	})
	return &m, nil
}

// RemoveProjectMember removes userID from the project
func (s *ProjectStore) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	defer s.begin("removeProjectMember", projectID+"/"+userID)()

	if err := s.gw.RemoveProjectMember(ctx, projectID, userID); err != nil {
		return s.fail("remove_project_member", err)
	}
	s.spliceMembers(projectID, func(ms []models.ProjectMember) []models.ProjectMember {
		return slices.DeleteFunc(ms, func(x models.ProjectMember) bool { return x.UserID == userID })
	})
	return nil
}

// UpdateProjectMemberRole changes the role userID holds in the project
func (s *ProjectStore) UpdateProjectMemberRole(ctx context.Context, projectID, userID string, role models.MemberRole) (*models.ProjectMember, error) {
	defer s.begin("updateProjectMemberRole", projectID+"/"+userID)()

	if !role.Valid() {
		return nil, s.fail("update_project_member_role", validation("invalid member role %q", role))
	}
	row, err := s.gw.UpdateProjectMemberRole(ctx, projectID, userID, string(role))
	if err != nil {
		return nil, s.fail("update_project_member_role", err)
	}
	m := memberFromRow(*row)
	s.spliceMembers(projectID, func(ms []models.ProjectMember) []models.ProjectMember {
		for i := range ms {
			if ms[i].UserID == userID {
				ms[i].Role = role
				if m.User == nil {
					m.User = ms[i].User
				}
			}
		}
		return ms
	})
	return &m, nil
}

// ApplyChange splices a realtime change of the projects table into the
// cache. Changes of other tables are ignored.
func (s *ProjectStore) ApplyChange(ch gateway.Change) error {
	if ch.Table != "projects" {
		return nil
	}
	var row gateway.ProjectRow
	if err := ch.Decode(&row); err != nil {
		return err
	}
	switch ch.Type {
	case gateway.ChangeInsert:
		s.upsert(projectFromRow(row), true)
	case gateway.ChangeUpdate:
		s.upsert(projectFromRow(row), false)
	case gateway.ChangeDelete:
		s.remove(row.ID)
	}
	return nil
}

// ProjectByID returns the cached project with id
func (s *ProjectStore) ProjectByID(id string) (models.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return cloneProject(s.projects[i]), true
	}
	return models.Project{}, false
}

func (s *ProjectStore) filter(keep func(models.Project) bool) []models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Project
	for _, p := range s.projects {
		if keep(p) {
			out = append(out, cloneProject(p))
		}
	}
	return out
}

// UserProjects returns the projects userID owns or belongs to
func (s *ProjectStore) UserProjects(userID string) []models.Project {
	return s.filter(func(p models.Project) bool { return p.HasMember(userID) })
}

// ProjectsByStatus returns the projects in status
func (s *ProjectStore) ProjectsByStatus(status models.ProjectStatus) []models.Project {
	return s.filter(func(p models.Project) bool { return p.Status == status })
}

// ProjectsByPriority returns the projects with priority
func (s *ProjectStore) ProjectsByPriority(priority models.Priority) []models.Project {
	return s.filter(func(p models.Project) bool { return p.Priority == priority })
}

// SearchProjects matches query case-insensitively against name, description
// and tags
func (s *ProjectStore) SearchProjects(query string) []models.Project {
	q := strings.ToLower(query)
	return s.filter(func(p models.Project) bool {
		return containsFold(q, p.Name, p.Description) || containsFold(q, p.Tags...)
	})
}

// containsFold reports whether any of fields contains the lower-cased q
func containsFold(q string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
