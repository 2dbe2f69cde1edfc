package store

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"

	"github.com/tgienger/taskies/internal/gateway"
	"github.com/tgienger/taskies/internal/models"
)

// TaskGateway is the part of the gateway the task store uses
type TaskGateway interface {
	CreateTask(ctx context.Context, row gateway.TaskRow) (*gateway.TaskRow, error)
	ListTasks(ctx context.Context, projectID, assigneeID string) ([]gateway.TaskRow, error)
	GetTask(ctx context.Context, id string) (*gateway.TaskRow, error)
	ListTasksByStatus(ctx context.Context, status, projectID string) ([]gateway.TaskRow, error)
	ListOverdueTasks(ctx context.Context, userID string, now time.Time) ([]gateway.TaskRow, error)
	UpdateTask(ctx context.Context, id string, patch gateway.Patch) (*gateway.TaskRow, error)
	DeleteTask(ctx context.Context, id string) error

	CreateComment(ctx context.Context, row gateway.CommentRow) (*gateway.CommentRow, error)
	UpdateComment(ctx context.Context, id, content string, now time.Time) (*gateway.CommentRow, error)
	DeleteComment(ctx context.Context, id string) error

	CreateAttachment(ctx context.Context, row gateway.AttachmentRow) (*gateway.AttachmentRow, error)
	DeleteAttachment(ctx context.Context, id string) error
	Upload(ctx context.Context, bucket, path, contentType string, r io.Reader) error
	Download(ctx context.Context, bucket, path string) ([]byte, error)
	Remove(ctx context.Context, bucket string, paths ...string) error
}

// AttachmentBucket is the storage bucket holding attachment bytes
const AttachmentBucket = "attachments"

type taskSlice struct {
	Tasks       []models.Task      `json:"tasks"`
	CurrentTask *models.Task       `json:"currentTask"`
	Filters     models.TaskFilters `json:"filters"`
}

// TaskStore owns the cached task list, the current task and the active
// filters
type TaskStore struct {
	gw    TaskGateway
	cache Cache
	log   logrus.FieldLogger
	now   func() time.Time

	pending Pending

	mu      sync.RWMutex
	tasks   []models.Task
	current *models.Task
	filters models.TaskFilters
	lastErr error
}

// NewTaskStore restores the persisted task slice
func NewTaskStore(gw TaskGateway, cache Cache, opts ...Option) *TaskStore {
	o := newOptions(opts)
	s := &TaskStore{gw: gw, cache: cache, log: o.log, now: o.now}

	var slice taskSlice
	if load(cache, s.log, TasksKey, &slice) {
		s.tasks = slice.Tasks
		s.current = slice.CurrentTask
		s.filters = slice.Filters
	}
	return s
}

func (s *TaskStore) persist() {
	s.mu.RLock()
	slice := taskSlice{Tasks: cloneTasks(s.tasks), Filters: s.filters}
	if s.current != nil {
		t := cloneTask(*s.current)
		slice.CurrentTask = &t
	}
	s.mu.RUnlock()
	if slice.Tasks == nil {
		slice.Tasks = []models.Task{}
	}
	save(s.cache, s.log, TasksKey, slice)
}

func (s *TaskStore) begin(op, id string) func() {
	s.setErr(nil)
	return s.pending.Begin(op, id)
}

func (s *TaskStore) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *TaskStore) fail(op string, err error) *gateway.Error {
	gerr := fail(s.log, op, err)
	s.setErr(gerr)
	return gerr
}

// Err returns the error of the last failed action, nil after a success
func (s *TaskStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// IsLoading reports whether any task action is in flight
func (s *TaskStore) IsLoading() bool { return s.pending.Any() }

// IsPending reports whether op on id is in flight
func (s *TaskStore) IsPending(op, id string) bool { return s.pending.IsPending(op, id) }

// Tasks returns the cached task list
func (s *TaskStore) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.tasks)
}

// Current returns the task opened for detail, nil when none is
func (s *TaskStore) Current() *models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	t := cloneTask(*s.current)
	return &t
}

// SetCurrent selects the cached task with id. An empty or unknown id clears
// the selection.
func (s *TaskStore) SetCurrent(id string) {
	s.mu.Lock()
	s.current = nil
	if i := s.indexOf(id); i >= 0 {
		t := cloneTask(s.tasks[i])
		s.current = &t
	}
	s.mu.Unlock()
	s.persist()
}

// Filters returns the active filters
func (s *TaskStore) Filters() models.TaskFilters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// SetFilters replaces the active filters. The cache is only written when
// they change.
func (s *TaskStore) SetFilters(f models.TaskFilters) {
	s.mu.Lock()
	if s.filters.Equal(f) {
		s.mu.Unlock()
		return
	}
	s.filters = f
	s.mu.Unlock()
	s.persist()
}

// Clear drops every cached task and the filters
func (s *TaskStore) Clear() {
	s.mu.Lock()
	s.tasks = nil
	s.current = nil
	s.filters = models.TaskFilters{}
	s.mu.Unlock()
	s.persist()
}

// indexOf must be called with s.mu held
func (s *TaskStore) indexOf(id string) int {
	return slices.IndexFunc(s.tasks, func(t models.Task) bool { return t.ID == id })
}

// keepChildren carries the hydrated comments and attachments of old over to
// t when t was loaded without them
func keepChildren(t *models.Task, old models.Task) {
	if len(t.Comments) == 0 {
		t.Comments = old.Comments
	}
	if len(t.Attachments) == 0 {
		t.Attachments = old.Attachments
	}
	if len(t.Subtasks) == 0 {
		t.Subtasks = old.Subtasks
	}
	if len(t.Labels) == 0 {
		t.Labels = old.Labels
	}
}

// upsert replaces the cached task with t's id, or appends t
func (s *TaskStore) upsert(t models.Task, appendMissing bool) models.Task {
	s.mu.Lock()
	if i := s.indexOf(t.ID); i >= 0 {
		keepChildren(&t, s.tasks[i])
		s.tasks[i] = t
	} else if appendMissing {
		s.tasks = append(s.tasks, t)
	}
	if s.current != nil && s.current.ID == t.ID {
		keepChildren(&t, *s.current)
		cur := cloneTask(t)
		s.current = &cur
	}
	s.mu.Unlock()
	s.persist()
	return cloneTask(t)
}

func (s *TaskStore) remove(id string) {
	s.mu.Lock()
	s.tasks = slices.DeleteFunc(s.tasks, func(t models.Task) bool { return t.ID == id })
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	s.mu.Unlock()
	s.persist()
}

// splice applies fn to every cached copy of the task for which match is true,
// the current task included
func (s *TaskStore) splice(match func(models.Task) bool, fn func(*models.Task)) {
	s.mu.Lock()
	for i := range s.tasks {
		if match(s.tasks[i]) {
			t := cloneTask(s.tasks[i])
			fn(&t)
			s.tasks[i] = t
		}
	}
	if s.current != nil && match(*s.current) {
		t := cloneTask(*s.current)
		fn(&t)
		s.current = &t
	}
	s.mu.Unlock()
	s.persist()
}

func byID(id string) func(models.Task) bool {
	return func(t models.Task) bool { return t.ID == id }
}

// cached returns the cached copy of task id, falling back to the current task
func (s *TaskStore) cached(id string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i], true
	}
	if s.current != nil && s.current.ID == id {
		return *s.current, true
	}
	return models.Task{}, false
}

// CreateTask stores a new task in status todo with progress 0
func (s *TaskStore) CreateTask(ctx context.Context, in models.NewTask) (*models.Task, error) {
	defer s.begin("createTask", "")()

	if strings.TrimSpace(in.Title) == "" {
		return nil, s.fail("create_task", gateway.Validation(models.ErrTaskTitleEmpty))
	}
	now := s.now()
	row := gateway.TaskRow{
		Title:          in.Title,
		Description:    in.Description,
		ProjectID:      in.ProjectID,
		AssigneeID:     in.AssigneeID,
		AssignedByID:   in.AssignedByID,
		Status:         string(models.StatusTodo),
		Priority:       string(in.Priority),
		DueDate:        in.DueDate,
		Progress:       0,
		EstimatedHours: in.EstimatedHours,
		Tags:           in.Tags,
		Dependencies:   in.Dependencies,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if row.Priority == "" {
		row.Priority = string(models.PriorityMedium)
	}
	if row.Tags == nil {
		row.Tags = []string{}
	}
	if row.Dependencies == nil {
		row.Dependencies = []string{}
	}

	created, err := s.gw.CreateTask(ctx, row)
	if err != nil {
		return nil, s.fail("create_task", err)
	}
	t := s.upsert(taskFromRow(*created), true)
	s.log.Infof("Event ID: TASK_CREATED, Description: task %s created in project %s", t.ID, t.ProjectID)
	return &t, nil
}

// UpdateTask patches the set fields of u. The status flow is not enforced
// here; UpdateTaskStatus does that.
func (s *TaskStore) UpdateTask(ctx context.Context, id string, u models.TaskUpdate) (*models.Task, error) {
	defer s.begin("updateTask", id)()
	return s.update(ctx, "update_task", id, u)
}

func (s *TaskStore) update(ctx context.Context, op, id string, u models.TaskUpdate) (*models.Task, error) {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return nil, s.fail(op, gateway.Validation(models.ErrTaskTitleEmpty))
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, s.fail(op, gateway.Validation(models.ErrInvalidStatus))
	}
	if u.Progress != nil && (*u.Progress < 0 || *u.Progress > 100) {
		return nil, s.fail(op, gateway.Validation(models.ErrProgressRange))
	}
	patch := taskPatch(u)
	patch["updated_at"] = s.now()

	row, err := s.gw.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, s.fail(op, err)
	}
	t := s.upsert(taskFromRow(*row), false)
	return &t, nil
}

// DeleteTask removes the task
func (s *TaskStore) DeleteTask(ctx context.Context, id string) error {
	defer s.begin("deleteTask", id)()

	if err := s.gw.DeleteTask(ctx, id); err != nil {
		return s.fail("delete_task", err)
	}
	s.remove(id)
	s.log.Infof("Event ID: TASK_DELETED, Description: task %s deleted", id)
	return nil
}

// FetchTasks replaces the cached list with the tasks of projectID and/or
// assigneeID. Empty arguments do not filter.
func (s *TaskStore) FetchTasks(ctx context.Context, projectID, assigneeID string) ([]models.Task, error) {
	defer s.begin("fetchTasks", projectID+"/"+assigneeID)()

	rows, err := s.gw.ListTasks(ctx, projectID, assigneeID)
	if err != nil {
		return nil, s.fail("fetch_tasks", err)
	}

	s.mu.Lock()
	known := make(map[string]models.Task, len(s.tasks))
	for _, t := range s.tasks {
		known[t.ID] = t
	}
	tasks := make([]models.Task, 0, len(rows))
	for _, r := range rows {
		t := taskFromRow(r)
		if old, ok := known[t.ID]; ok {
			keepChildren(&t, old)
		}
		tasks = append(tasks, t)
	}
	s.tasks = tasks
	out := cloneTasks(tasks)
	s.mu.Unlock()
	s.persist()
	return out, nil
}

// FetchTaskByID loads a task with its comments and attachments and makes it
// current
func (s *TaskStore) FetchTaskByID(ctx context.Context, id string) (*models.Task, error) {
	defer s.begin("fetchTaskById", id)()

	row, err := s.gw.GetTask(ctx, id)
	if err != nil {
		return nil, s.fail("fetch_task", err)
	}
	t := taskFromRow(*row)

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.tasks[i] = cloneTask(t)
	}
	cur := cloneTask(t)
	s.current = &cur
	s.mu.Unlock()
	s.persist()
	return &t, nil
}

// FetchTasksByStatus returns the tasks in status, optionally within one
// project. The cached list is not changed.
func (s *TaskStore) FetchTasksByStatus(ctx context.Context, status models.TaskStatus, projectID string) ([]models.Task, error) {
	defer s.begin("fetchTasksByStatus", string(status)+"/"+projectID)()

	if !status.Valid() {
		return nil, s.fail("fetch_tasks_by_status", gateway.Validation(models.ErrInvalidStatus))
	}
	rows, err := s.gw.ListTasksByStatus(ctx, string(status), projectID)
	if err != nil {
		return nil, s.fail("fetch_tasks_by_status", err)
	}
	return tasksFromRows(rows), nil
}

// FetchOverdueTasks returns the open tasks due before now, optionally
// assigned to userID. The cached list is not changed.
func (s *TaskStore) FetchOverdueTasks(ctx context.Context, userID string) ([]models.Task, error) {
	defer s.begin("fetchOverdueTasks", userID)()

	rows, err := s.gw.ListOverdueTasks(ctx, userID, s.now())
	if err != nil {
		return nil, s.fail("fetch_overdue_tasks", err)
	}
	return tasksFromRows(rows), nil
}

func tasksFromRows(rows []gateway.TaskRow) []models.Task {
	out := make([]models.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, taskFromRow(r))
	}
	return out
}

// AssignTask sets the task's assignee
func (s *TaskStore) AssignTask(ctx context.Context, taskID, assigneeID string) (*models.Task, error) {
	defer s.begin("assignTask", taskID)()
	return s.update(ctx, "assign_task", taskID, models.TaskUpdate{AssigneeID: &assigneeID})
}

// UpdateTaskStatus moves the task to status. Completing it also sets progress
// to 100 and stamps the completion time. Closed tasks are not reopened.
func (s *TaskStore) UpdateTaskStatus(ctx context.Context, taskID string, status models.TaskStatus) (*models.Task, error) {
	defer s.begin("updateTaskStatus", taskID)()

	u, err := models.Completion{Status: &status}.Patch(s.now())
	if err != nil {
		return nil, s.fail("update_task_status", gateway.Validation(err))
	}
	if t, ok := s.cached(taskID); ok && !t.Status.CanTransition(status) {
		return nil, s.fail("update_task_status", gateway.Validation(models.ErrTerminalStatus))
	}
	return s.update(ctx, "update_task_status", taskID, u)
}

// UpdateTaskProgress sets the task's progress. Reaching 100 also completes
// the task. Closed tasks are not reopened.
func (s *TaskStore) UpdateTaskProgress(ctx context.Context, taskID string, progress int) (*models.Task, error) {
	defer s.begin("updateTaskProgress", taskID)()

	u, err := models.Completion{Progress: &progress}.Patch(s.now())
	if err != nil {
		return nil, s.fail("update_task_progress", gateway.Validation(err))
	}
	if t, ok := s.cached(taskID); ok && t.Status.Terminal() {
		// a closed task only accepts the completion it already has
		if t.Status != models.StatusCompleted || progress < 100 {
			return nil, s.fail("update_task_progress", gateway.Validation(models.ErrTerminalStatus))
		}
	}
	return s.update(ctx, "update_task_progress", taskID, u)
}

// AddComment posts a comment and splices it into the cached task
func (s *TaskStore) AddComment(ctx context.Context, taskID, userID, content string) (*models.TaskComment, error) {
	defer s.begin("addComment", taskID)()

	if strings.TrimSpace(content) == "" {
		return nil, s.fail("add_comment", validation("comment cannot be empty"))
	}
	now := s.now()
	row, err := s.gw.CreateComment(ctx, gateway.CommentRow{
		TaskID:    taskID,
		UserID:    userID,
		Content:   content,
		Mentions:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, s.fail("add_comment", err)
	}
	c := commentFromRow(*row)
	if c.TaskID == "" {
		c.TaskID = taskID
	}
	s.splice(byID(c.TaskID), func(t *models.Task) {
		t.Comments = append(t.Comments, c)
	})
	return &c, nil
}

// UpdateComment replaces a comment's content and splices the result into
// the cached task
func (s *TaskStore) UpdateComment(ctx context.Context, commentID, content string) (*models.TaskComment, error) {
	defer s.begin("updateComment", commentID)()

	if strings.TrimSpace(content) == "" {
		return nil, s.fail("update_comment", validation("comment cannot be empty"))
	}
	row, err := s.gw.UpdateComment(ctx, commentID, content, s.now())
	if err != nil {
		return nil, s.fail("update_comment", err)
	}
	c := commentFromRow(*row)
	s.splice(hasComment(commentID), func(t *models.Task) {
		for i := range t.Comments {
			if t.Comments[i].ID == commentID {
				if c.User == nil {
					c.User = t.Comments[i].User
				}
				t.Comments[i] = c
			}
		}
	})
	return &c, nil
}

// DeleteComment removes a comment from the gateway and the cached task
func (s *TaskStore) DeleteComment(ctx context.Context, commentID string) error {
	defer s.begin("deleteComment", commentID)()

	if err := s.gw.DeleteComment(ctx, commentID); err != nil {
		return s.fail("delete_comment", err)
	}
	s.splice(hasComment(commentID), func(t *models.Task) {
		t.Comments = slices.DeleteFunc(t.Comments, func(c models.TaskComment) bool { return c.ID == commentID })
	})
	return nil
}

func hasComment(id string) func(models.Task) bool {
	return func(t models.Task) bool {
		return slices.ContainsFunc(t.Comments, func(c models.TaskComment) bool { return c.ID == id })
	}
}

func hasAttachment(id string) func(models.Task) bool {
	return func(t models.Task) bool {
		return slices.ContainsFunc(t.Attachments, func(a models.TaskAttachment) bool { return a.ID == id })
	}
}

// AddAttachment records attachment metadata whose bytes are already stored
// and splices it into the cached task
func (s *TaskStore) AddAttachment(ctx context.Context, taskID string, a models.TaskAttachment) (*models.TaskAttachment, error) {
	defer s.begin("addAttachment", taskID)()
	return s.addAttachment(ctx, taskID, a)
}

func (s *TaskStore) addAttachment(ctx context.Context, taskID string, a models.TaskAttachment) (*models.TaskAttachment, error) {
	row, err := s.gw.CreateAttachment(ctx, gateway.AttachmentRow{
		TaskID:        taskID,
		FileName:      a.FileName,
		FileType:      a.FileType,
		FileSize:      a.FileSize,
		FilePath:      a.FilePath,
		ThumbnailPath: a.ThumbnailPath,
		UploadedBy:    a.UploadedBy,
		UploadedAt:    s.now(),
	})
	if err != nil {
		return nil, s.fail("add_attachment", err)
	}
	out := attachmentFromRow(*row)
	if out.TaskID == "" {
		out.TaskID = taskID
	}
	s.splice(byID(out.TaskID), func(t *models.Task) {
		t.Attachments = append(t.Attachments, out)
	})
	return &out, nil
}

// Upload is a file to attach to a task
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	UploadedBy  string
	Body        io.Reader
}

// UploadAttachment stores the bytes of up under <taskID>/<uuid>-<name> in the
// attachment bucket, then records the attachment. The object is removed again
// when recording fails.
func (s *TaskStore) UploadAttachment(ctx context.Context, taskID string, up Upload) (*models.TaskAttachment, error) {
	defer s.begin("uploadAttachment", taskID)()

	name := strings.TrimSpace(up.FileName)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, s.fail("upload_attachment", validation("invalid file name %q", up.FileName))
	}
	path := taskID + "/" + uuid.NewString() + "-" + name
	if err := s.gw.Upload(ctx, AttachmentBucket, path, up.ContentType, up.Body); err != nil {
		return nil, s.fail("upload_attachment", err)
	}

	a, err := s.addAttachment(ctx, taskID, models.TaskAttachment{
		FileName:   name,
		FileType:   up.ContentType,
		FileSize:   up.Size,
		FilePath:   path,
		UploadedBy: up.UploadedBy,
	})
	if err != nil {
		if rmErr := s.gw.Remove(context.WithoutCancel(ctx), AttachmentBucket, path); rmErr != nil {
			s.log.Warnf("Event ID: ATTACHMENT_ORPHANED, Description: %s/%s: %v", AttachmentBucket, path, rmErr)
		}
		return nil, err
	}
	return a, nil
}

// DownloadAttachment fetches the stored bytes of a and writes them into dir
// under the attachment's file name. The written path is returned.
func (s *TaskStore) DownloadAttachment(ctx context.Context, a models.TaskAttachment, dir string) (string, error) {
	defer s.begin("downloadAttachment", a.ID)()

	name := filepath.Base(strings.TrimSpace(a.FileName))
	if a.FilePath == "" || name == "." || name == string(filepath.Separator) {
		return "", s.fail("download_attachment", validation("attachment %s has no stored file", a.ID))
	}
	data, err := s.gw.Download(ctx, AttachmentBucket, a.FilePath)
	if err != nil {
		return "", s.fail("download_attachment", err)
	}

	dest := filepath.Join(dir, name)
	if err := atomic.WriteFile(dest, bytes.NewReader(data)); err != nil {
		return "", s.fail("download_attachment", err)
	}
	s.log.Infof("Event ID: ATTACHMENT_DOWNLOADED, Description: %s saved to %s", a.ID, dest)
	return dest, nil
}

// DeleteAttachment removes attachment metadata and splices it out of the
// cached task. The stored object is removed when its path is known.
func (s *TaskStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	defer s.begin("deleteAttachment", attachmentID)()

	var path string
	s.mu.RLock()
	tasks := s.tasks
	if s.current != nil {
		tasks = append(slices.Clip(tasks), *s.current)
	}
	for _, t := range tasks {
		for _, a := range t.Attachments {
			if a.ID == attachmentID {
				path = a.FilePath
			}
		}
	}
	s.mu.RUnlock()

	if err := s.gw.DeleteAttachment(ctx, attachmentID); err != nil {
		return s.fail("delete_attachment", err)
	}
	s.splice(hasAttachment(attachmentID), func(t *models.Task) {
		t.Attachments = slices.DeleteFunc(t.Attachments, func(a models.TaskAttachment) bool { return a.ID == attachmentID })
	})
	if path != "" {
		if err := s.gw.Remove(ctx, AttachmentBucket, path); err != nil {
			s.log.Warnf("Event ID: ATTACHMENT_ORPHANED, Description: %s/%s: %v", AttachmentBucket, path, err)
		}
	}
	return nil
}

// ApplyChange splices a realtime change of the tasks or task_comments table
// into the cache
func (s *TaskStore) ApplyChange(ch gateway.Change) error {
	switch ch.Table {
	case "tasks":
		var row gateway.TaskRow
		if err := ch.Decode(&row); err != nil {
			return err
		}
		switch ch.Type {
		case gateway.ChangeInsert:
			s.upsert(taskFromRow(row), true)
		case gateway.ChangeUpdate:
			s.upsert(taskFromRow(row), false)
		case gateway.ChangeDelete:
			s.remove(row.ID)
		}
	case "task_comments":
		var row gateway.CommentRow
		if err := ch.Decode(&row); err != nil {
			return err
		}
		c := commentFromRow(row)
		switch ch.Type {
		case gateway.ChangeInsert:
			s.splice(byID(c.TaskID), func(t *models.Task) {
				if !slices.ContainsFunc(t.Comments, func(x models.TaskComment) bool { return x.ID == c.ID }) {
					t.Comments = append(t.Comments, c)
				}
			})
		case gateway.ChangeUpdate:
			s.splice(hasComment(c.ID), func(t *models.Task) {
				for i := range t.Comments {
					if t.Comments[i].ID == c.ID {
						if c.User == nil {
							c.User = t.Comments[i].User
						}
						t.Comments[i] = c
					}
				}
			})
		case gateway.ChangeDelete:
			s.splice(hasComment(c.ID), func(t *models.Task) {
				t.Comments = slices.DeleteFunc(t.Comments, func(x models.TaskComment) bool { return x.ID == c.ID })
			})
		}
	}
	return nil
}
