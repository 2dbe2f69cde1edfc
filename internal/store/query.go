package store

import (
	"slices"
	"strings"
	"time"

	"github.com/tgienger/taskies/internal/models"
)

// TaskByID returns the cached task with id
func (s *TaskStore) TaskByID(id string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return cloneTask(s.tasks[i]), true
	}
	return models.Task{}, false
}

func (s *TaskStore) filter(keep func(models.Task) bool) []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Task
	for _, t := range s.tasks {
		if keep(t) {
			out = append(out, cloneTask(t))
		}
	}
	return out
}

// TasksByProject returns the cached tasks of projectID
func (s *TaskStore) TasksByProject(projectID string) []models.Task {
	return s.filter(func(t models.Task) bool { return t.ProjectID == projectID })
}

// TasksByAssignee returns the cached tasks assigned to assigneeID
func (s *TaskStore) TasksByAssignee(assigneeID string) []models.Task {
	return s.filter(func(t models.Task) bool { return t.AssigneeID != nil && *t.AssigneeID == assigneeID })
}

// TasksByStatus returns the cached tasks in status
func (s *TaskStore) TasksByStatus(status models.TaskStatus) []models.Task {
	return s.filter(func(t models.Task) bool { return t.Status == status })
}

// TasksByPriority returns the cached tasks with priority
func (s *TaskStore) TasksByPriority(priority models.Priority) []models.Task {
	return s.filter(func(t models.Task) bool { return t.Priority == priority })
}

// OverdueTasks returns the open tasks due before now
func (s *TaskStore) OverdueTasks() []models.Task {
	now := s.now()
	return s.filter(func(t models.Task) bool { return Overdue(t, now) })
}

// TodayTasks returns the tasks due within the current calendar day
func (s *TaskStore) TodayTasks() []models.Task {
	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)
	return s.filter(func(t models.Task) bool {
		return t.DueDate != nil && !t.DueDate.Before(start) && t.DueDate.Before(end)
	})
}

// UpcomingTasks returns the open tasks due within the next seven days
func (s *TaskStore) UpcomingTasks() []models.Task {
	now := s.now()
	end := now.AddDate(0, 0, 7)
	return s.filter(func(t models.Task) bool {
		return t.DueDate != nil && !t.DueDate.Before(now) && !t.DueDate.After(end) && !t.Status.Terminal()
	})
}

// SearchTasks matches query case-insensitively against title, description
// and tags
func (s *TaskStore) SearchTasks(query string) []models.Task {
	q := strings.ToLower(query)
	return s.filter(func(t models.Task) bool { return matchesSearch(t, q) })
}

// FilteredTasks applies the active filters to the cached list
func (s *TaskStore) FilteredTasks() []models.Task {
	s.mu.RLock()
	f := s.filters
	s.mu.RUnlock()
	return s.filter(func(t models.Task) bool { return MatchTask(t, f) })
}

// Overdue reports whether t is open and due before now
func Overdue(t models.Task, now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Status.Terminal()
}

func matchesSearch(t models.Task, lowerQuery string) bool {
	return containsFold(lowerQuery, t.Title, t.Description) || containsFold(lowerQuery, t.Tags...)
}

// MatchTask reports whether t passes every set field of f. The due date
// range is inclusive, and a task without a due date passes it.
func MatchTask(t models.Task, f models.TaskFilters) bool {
	if len(f.Status) > 0 && !slices.Contains(f.Status, t.Status) {
		return false
	}
	if len(f.Priority) > 0 && !slices.Contains(f.Priority, t.Priority) {
		return false
	}
	if len(f.Assignee) > 0 && (t.AssigneeID == nil || !slices.Contains(f.Assignee, *t.AssigneeID)) {
		return false
	}
	if len(f.Project) > 0 && !slices.Contains(f.Project, t.ProjectID) {
		return false
	}
	if f.Search != "" && !matchesSearch(t, strings.ToLower(f.Search)) {
		return false
	}
	if t.DueDate != nil {
		if f.DueFrom != nil && t.DueDate.Before(*f.DueFrom) {
			return false
		}
		if f.DueTo != nil && t.DueDate.After(*f.DueTo) {
			return false
		}
	}
	return true
}

// FilterTasks returns the tasks of ts that pass f, in order
func FilterTasks(ts []models.Task, f models.TaskFilters) []models.Task {
	if f.IsZero() {
		return ts
	}
	var out []models.Task
	for _, t := range ts {
		if MatchTask(t, f) {
			out = append(out, t)
		}
	}
	return out
}
