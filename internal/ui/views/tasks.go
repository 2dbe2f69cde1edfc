package views

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskies/internal/app"
	"github.com/tgienger/taskies/internal/gateway"
	"github.com/tgienger/taskies/internal/models"
	"github.com/tgienger/taskies/internal/store"
	"github.com/tgienger/taskies/internal/ui/keys"
	"github.com/tgienger/taskies/internal/ui/styles"
)

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// FocusArea represents which part of the UI has focus
type FocusArea int

const (
	FocusBackButton FocusArea = iota
	FocusSearchInput
	FocusStatusDropdown
	FocusTaskList
)

const dateLayout = "2006-01-02"

// progressStep is how far +/- move a task's progress
const progressStep = 10

// refreshEvery re-reads the task cache so realtime changes show up
const refreshEvery = 2 * time.Second

var (
	openStatuses = []models.TaskStatus{models.StatusTodo, models.StatusInProgress, models.StatusReview}
	allStatuses  = []models.TaskStatus{models.StatusTodo, models.StatusInProgress, models.StatusReview, models.StatusCompleted, models.StatusCancelled}
	priorities   = []models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent}
)

// TaskListView shows tasks for a project
type TaskListView struct {
	ctx     context.Context
	app     *app.App
	project models.Project
	tasks   []models.Task
	styles  *styles.Styles
	keys    keys.KeyMap

	width  int
	height int

	// UI state
	focus        FocusArea
	cursor       int
	scrollY      int
	searchInput  textinput.Model
	statusFilter *models.TaskStatus // nil = open tasks

	// Status dropdown state
	statusDropdownOpen bool
	statusCursor       int

	// Task creation/editing
	editing      bool
	editingNew   bool
	editTaskID   string
	editTitle    textinput.Model
	editDesc     textarea.Model
	editPriority int // index into priorities
	editDue      textinput.Model
	editTags     textinput.Model
	editFocusIdx int // 0=title, 1=desc, 2=priority, 3=due, 4=tags, 5=save

	// Task view mode (detail view of the store's current task)
	viewingTask         bool
	commentInput        textarea.Model
	commentInputFocused bool
	uploadInput         textinput.Model
	uploadInputFocused  bool
	attachmentCursor    int
	downloadDir         string // where "o" saves attachments

	// Delete confirmation
	confirmingDelete bool
	deleteTargetID   string
	deleteTargetName string

	// Show completed tasks mode
	showingCompleted bool
	preCompleted     *models.TaskStatus

	err    string
	notice string

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

// NewTaskListView creates a new task list view
func NewTaskListView(ctx context.Context, a *app.App, project models.Project) *TaskListView {
	s := styles.NewStyles()

	search := textinput.New()
	search.Placeholder = "Search tasks..."
	search.CharLimit = 100

	editTitle := textinput.New()
	editTitle.Placeholder = "Task title"
	editTitle.CharLimit = 200

	editDesc := textarea.New()
	editDesc.Placeholder = "Description"
	editDesc.CharLimit = 2000
	editDesc.SetWidth(50)
	editDesc.SetHeight(4)
	editDesc.ShowLineNumbers = false

	editDue := textinput.New()
	editDue.Placeholder = dateLayout
	editDue.CharLimit = len(dateLayout)

	editTags := textinput.New()
	editTags.Placeholder = "comma, separated"
	editTags.CharLimit = 200

	commentInput := textarea.New()
	commentInput.Placeholder = "Add a comment..."
	commentInput.CharLimit = 2000
	commentInput.SetWidth(50)
	commentInput.SetHeight(3)
	commentInput.ShowLineNumbers = false

	upload := textinput.New()
	upload.Placeholder = "Path of the file to attach"
	upload.CharLimit = 500

	v := &TaskListView{
		ctx:          ctx,
		app:          a,
		project:      project,
		styles:       s,
		keys:         keys.DefaultKeyMap(),
		focus:        FocusTaskList,
		searchInput:  search,
		editTitle:    editTitle,
		editDesc:     editDesc,
		editDue:      editDue,
		editTags:     editTags,
		commentInput: commentInput,
		uploadInput:  upload,
		downloadDir:  ".",
	}
	v.applyFilters()
	return v
}

// Init fetches the project's tasks and starts following its changes
func (v *TaskListView) Init() tea.Cmd {
	return tea.Batch(v.loadTasks, v.watch, v.tick())
}

type tasksLoadedMsg struct {
	err error
}

type taskLoadedMsg struct {
	err error
}

type taskChangedMsg struct{}

type attachmentSavedMsg struct {
	path string
}

// cacheTickMsg belongs to one view instance; ticks of a closed view die out
type cacheTickMsg struct {
	owner *TaskListView
}

func (v *TaskListView) loadTasks() tea.Msg {
	_, err := v.app.Tasks.FetchTasks(v.ctx, v.project.ID, "")
	return tasksLoadedMsg{err: err}
}

func (v *TaskListView) watch() tea.Msg {
	if err := v.app.WatchProject(v.ctx, v.project.ID); err != nil {
		return errMsg{op: "Live updates", err: err}
	}
	return nil
}

func (v *TaskListView) tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(time.Time) tea.Msg { return cacheTickMsg{owner: v} })
}

func (v *TaskListView) userID() string {
	if u := v.app.Auth.User(); u != nil {
		return u.ID
	}
	return ""
}

// applyFilters pushes the view's search and status filter into the task
// store and re-reads the filtered list
func (v *TaskListView) applyFilters() {
	f := models.TaskFilters{
		Project: []string{v.project.ID},
		Search:  strings.TrimSpace(v.searchInput.Value()),
	}
	switch {
	case v.showingCompleted:
		f.Status = []models.TaskStatus{models.StatusCompleted}
	case v.statusFilter != nil:
		f.Status = []models.TaskStatus{*v.statusFilter}
	default:
		f.Status = openStatuses
	}
	v.app.Tasks.SetFilters(f)
	v.tasks = v.app.Tasks.FilteredTasks()
	if v.cursor >= len(v.tasks) {
		v.cursor = max(0, len(v.tasks)-1)
	}
	if v.scrollY > v.cursor {
		v.scrollY = v.cursor
	}
}

func (v *TaskListView) selected() (models.Task, bool) {
	if len(v.tasks) == 0 || v.cursor >= len(v.tasks) {
		return models.Task{}, false
	}
	return v.tasks[v.cursor], true
}

// run executes a store call off the UI loop and reports its outcome
func (v *TaskListView) run(op string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return errMsg{op: op, err: err}
		}
		return taskChangedMsg{}
	}
}

// Update handles messages
func (v *TaskListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		// Update textarea widths dynamically based on content width
		contentWidth := styles.ContentWidth(v.width)
		inputWidth := clamp(contentWidth-10, 20, 50)
		v.editDesc.SetWidth(inputWidth)
		v.commentInput.SetWidth(inputWidth)
		return v, nil

	case tasksLoadedMsg:
		v.err = ""
		if msg.err != nil {
			v.err = describeErr("Loading tasks", msg.err)
		}
		v.applyFilters()
		return v, nil

	case taskLoadedMsg:
		if msg.err != nil {
			v.err = describeErr("Loading task", msg.err)
		}
		return v, nil

	case taskChangedMsg:
		v.err = ""
		v.notice = ""
		v.applyFilters()
		return v, nil

	case attachmentSavedMsg:
		v.err = ""
		v.notice = "Saved " + msg.path
		return v, nil

	case cacheTickMsg:
		if msg.owner != v {
			return v, nil
		}
		if !v.editing {
			v.applyFilters()
		}
		return v, v.tick()

	case errMsg:
		v.err = describeErr(msg.op, msg.err)
		v.applyFilters()
		return v, nil

	case tea.KeyMsg:
		// Handle help popup first - any key closes it
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}

		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}

		if v.editing {
			return v.updateEditing(msg)
		}

		if v.viewingTask {
			return v.updateViewingTask(msg)
		}

		if v.statusDropdownOpen {
			return v.updateStatusDropdown(msg)
		}

		return v.updateNormal(msg)
	}

	return v, nil
}

func (v *TaskListView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle search input typing first - don't process hotkeys while typing
	if v.focus == FocusSearchInput {
		switch {
		case key.Matches(msg, v.keys.Back), key.Matches(msg, v.keys.Enter):
			v.searchInput.Blur()
			v.focus = FocusTaskList
			return v, nil
		default:
			var cmd tea.Cmd
			v.searchInput, cmd = v.searchInput.Update(msg)
			v.applyFilters()
			return v, cmd
		}
	}

	task, ok := v.selected()
	onTask := ok && v.focus == FocusTaskList

	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Back):
		return v, func() tea.Msg { return BackToProjects{} }

	case key.Matches(msg, v.keys.Tab):
		v.cycleFocus(1)
		return v, nil

	case msg.String() == "shift+tab":
		v.cycleFocus(-1)
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.focus == FocusTaskList && v.cursor > 0 {
			v.cursor--
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.focus == FocusTaskList && v.cursor < len(v.tasks)-1 {
			v.cursor++
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		switch v.focus {
		case FocusBackButton:
			return v, func() tea.Msg { return BackToProjects{} }
		case FocusStatusDropdown:
			v.statusDropdownOpen = true
			v.statusCursor = 0
			return v, nil
		case FocusTaskList:
			if ok {
				return v, v.openTask(task.ID)
			}
		}
		return v, nil

	case key.Matches(msg, v.keys.Edit):
		if onTask {
			v.startEditTask(task)
			return v, textinput.Blink
		}
		return v, nil

	case key.Matches(msg, v.keys.New):
		v.startNewTask()
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Delete):
		if onTask {
			v.confirmDelete(task)
		}
		return v, nil

	case key.Matches(msg, v.keys.Status):
		if onTask {
			return v, v.advanceStatus(task)
		}
		return v, nil

	case key.Matches(msg, v.keys.Progress):
		if onTask {
			return v, v.stepProgress(task, progressStep)
		}
		return v, nil

	case key.Matches(msg, v.keys.Regress):
		if onTask {
			return v, v.stepProgress(task, -progressStep)
		}
		return v, nil

	case key.Matches(msg, v.keys.Assign):
		if onTask {
			return v, v.assignToMe(task)
		}
		return v, nil

	case key.Matches(msg, v.keys.Refresh):
		return v, v.loadTasks

	case key.Matches(msg, v.keys.Search):
		v.focus = FocusSearchInput
		v.searchInput.Focus()
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Filter):
		v.focus = FocusStatusDropdown
		v.statusDropdownOpen = true
		v.statusCursor = 0
		return v, nil

	case key.Matches(msg, v.keys.Help):
		// Show help popup (useful at narrow widths)
		v.showHelpPopup = true
		return v, nil

	case key.Matches(msg, v.keys.ShowCompleted):
		if v.showingCompleted {
			// Going back to normal view - restore previous status filter
			v.showingCompleted = false
			v.statusFilter = v.preCompleted
			v.preCompleted = nil
		} else {
			v.preCompleted = v.statusFilter
			v.showingCompleted = true
			v.statusFilter = nil
		}
		v.cursor = 0
		v.scrollY = 0
		v.applyFilters()
		return v, nil
	}

	return v, nil
}

func (v *TaskListView) updateStatusDropdown(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.statusDropdownOpen = false
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.statusCursor > 0 {
			v.statusCursor--
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.statusCursor < len(allStatuses) { // +1 for "Open" option
			v.statusCursor++
		}
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if v.statusCursor == 0 {
			v.statusFilter = nil
		} else {
			status := allStatuses[v.statusCursor-1]
			v.statusFilter = &status
		}
		v.showingCompleted = false
		v.statusDropdownOpen = false
		v.cursor = 0
		v.scrollY = 0
		v.applyFilters()
		return v, nil
	}

	return v, nil
}

func (v *TaskListView) confirmDelete(task models.Task) {
	v.confirmingDelete = true
	v.deleteTargetID = task.ID
	v.deleteTargetName = task.Title
}

func (v *TaskListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		v.viewingTask = false
		id := v.deleteTargetID
		return v, v.run("Deleting task", func() error {
			return v.app.Tasks.DeleteTask(v.ctx, id)
		})
	case "n", "N", "esc":
		v.confirmingDelete = false
		return v, nil
	}
	return v, nil
}

func (v *TaskListView) advanceStatus(task models.Task) tea.Cmd {
	next := task.Status.Next()
	if next == task.Status {
		v.notice = fmt.Sprintf("%q is %s", task.Title, task.Status)
		return nil
	}
	return v.run("Updating status", func() error {
		_, err := v.app.Tasks.UpdateTaskStatus(v.ctx, task.ID, next)
		return err
	})
}

func (v *TaskListView) stepProgress(task models.Task, delta int) tea.Cmd {
	progress := clamp(task.Progress+delta, 0, 100)
	if progress == task.Progress {
		return nil
	}
	return v.run("Updating progress", func() error {
		_, err := v.app.Tasks.UpdateTaskProgress(v.ctx, task.ID, progress)
		return err
	})
}

func (v *TaskListView) assignToMe(task models.Task) tea.Cmd {
	me := v.userID()
	if me == "" {
		return nil
	}
	return v.run("Assigning task", func() error {
		_, err := v.app.Tasks.AssignTask(v.ctx, task.ID, me)
		return err
	})
}

// openTask loads the task with its comments and attachments into the detail
// view
func (v *TaskListView) openTask(id string) tea.Cmd {
	v.viewingTask = true
	v.attachmentCursor = 0
	v.app.Tasks.SetCurrent(id)
	return func() tea.Msg {
		_, err := v.app.Tasks.FetchTaskByID(v.ctx, id)
		return taskLoadedMsg{err: err}
	}
}

func (v *TaskListView) closeTask() {
	v.viewingTask = false
	v.commentInputFocused = false
	v.uploadInputFocused = false
	v.commentInput.Blur()
	v.uploadInput.Blur()
	v.app.Tasks.SetCurrent("")
}

func (v *TaskListView) updateViewingTask(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	task := v.app.Tasks.Current()
	if task == nil {
		// Deleted while open, locally or remotely
		v.closeTask()
		return v, nil
	}

	// Handle comment input mode
	if v.commentInputFocused {
		switch {
		case key.Matches(msg, v.keys.Back):
			v.commentInputFocused = false
			v.commentInput.Blur()
			return v, nil
		case msg.String() == "ctrl+s":
			return v, v.submitComment(task.ID)
		default:
			var cmd tea.Cmd
			v.commentInput, cmd = v.commentInput.Update(msg)
			return v, cmd
		}
	}

	if v.uploadInputFocused {
		switch {
		case key.Matches(msg, v.keys.Back):
			v.uploadInputFocused = false
			v.uploadInput.Blur()
			return v, nil
		case key.Matches(msg, v.keys.Enter):
			return v, v.submitUpload(task.ID)
		default:
			var cmd tea.Cmd
			v.uploadInput, cmd = v.uploadInput.Update(msg)
			return v, cmd
		}
	}

	switch {
	case key.Matches(msg, v.keys.Back):
		v.closeTask()
		return v, nil
	case key.Matches(msg, v.keys.Edit):
		v.closeTask()
		v.startEditTask(*task)
		return v, textinput.Blink
	case key.Matches(msg, v.keys.Delete):
		v.confirmDelete(*task)
		return v, nil
	case key.Matches(msg, v.keys.Status):
		return v, v.advanceStatus(*task)
	case key.Matches(msg, v.keys.Progress):
		return v, v.stepProgress(*task, progressStep)
	case key.Matches(msg, v.keys.Regress):
		return v, v.stepProgress(*task, -progressStep)
	case key.Matches(msg, v.keys.Up):
		if v.attachmentCursor > 0 {
			v.attachmentCursor--
		}
		return v, nil
	case key.Matches(msg, v.keys.Down):
		if v.attachmentCursor < len(task.Attachments)-1 {
			v.attachmentCursor++
		}
		return v, nil
	case msg.String() == "x":
		if v.attachmentCursor < len(task.Attachments) {
			id := task.Attachments[v.attachmentCursor].ID
			v.attachmentCursor = max(0, v.attachmentCursor-1)
			return v, v.run("Removing attachment", func() error {
				return v.app.Tasks.DeleteAttachment(v.ctx, id)
			})
		}
		return v, nil
	case msg.String() == "o":
		if v.attachmentCursor < len(task.Attachments) {
			return v, v.saveAttachment(task.Attachments[v.attachmentCursor])
		}
		return v, nil
	case msg.String() == "u":
		v.uploadInputFocused = true
		v.uploadInput.Reset()
		v.uploadInput.Focus()
		return v, textinput.Blink
	case msg.String() == "c":
		v.commentInputFocused = true
		v.commentInput.Focus()
		return v, textarea.Blink
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	}
	return v, nil
}

// submitComment adds a new comment to the task in the detail view
func (v *TaskListView) submitComment(taskID string) tea.Cmd {
	content := strings.TrimSpace(v.commentInput.Value())
	if content == "" {
		return nil
	}

	// Clear the input; the store splices the comment into the current task
	v.commentInput.Reset()
	v.commentInputFocused = false
	v.commentInput.Blur()

	userID := v.userID()
	return v.run("Adding comment", func() error {
		_, err := v.app.Tasks.AddComment(v.ctx, taskID, userID, content)
		return err
	})
}

// saveAttachment downloads a into the view's download directory
func (v *TaskListView) saveAttachment(a models.TaskAttachment) tea.Cmd {
	dir := v.downloadDir
	return func() tea.Msg {
		path, err := v.app.Tasks.DownloadAttachment(v.ctx, a, dir)
		if err != nil {
			return errMsg{op: "Saving attachment", err: err}
		}
		return attachmentSavedMsg{path: path}
	}
}

// submitUpload attaches the file named in the upload input
func (v *TaskListView) submitUpload(taskID string) tea.Cmd {
	path := strings.TrimSpace(v.uploadInput.Value())
	v.uploadInputFocused = false
	v.uploadInput.Blur()
	if path == "" {
		return nil
	}

	userID := v.userID()
	return v.run("Uploading attachment", func() error {
		f, err := os.Open(path)
		if err != nil {
			return gateway.Validation(err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return gateway.Validation(err)
		}
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		_, err = v.app.Tasks.UploadAttachment(v.ctx, taskID, store.Upload{
			FileName:    filepath.Base(path),
			ContentType: contentType,
			Size:        info.Size(),
			UploadedBy:  userID,
			Body:        f,
		})
		return err
	})
}

func (v *TaskListView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.editing = false
		return v, nil

	case msg.String() == "ctrl+s":
		return v, v.saveTask()

	case key.Matches(msg, v.keys.Tab):
		v.editFocusIdx = (v.editFocusIdx + 1) % 6 // 0-5: title, desc, priority, due, tags, save
		v.updateEditFocus()
		return v, nil

	case msg.String() == "shift+tab":
		v.editFocusIdx = (v.editFocusIdx + 5) % 6
		v.updateEditFocus()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		switch v.editFocusIdx {
		case 0, 2, 3, 4:
			v.editFocusIdx++
			v.updateEditFocus()
			return v, nil
		case 5:
			return v, v.saveTask()
		}
		// Enter in the description textarea adds a newline

	case v.editFocusIdx == 2 && (msg.String() == "left" || msg.String() == "h"):
		v.editPriority = (v.editPriority + len(priorities) - 1) % len(priorities)
		return v, nil

	case v.editFocusIdx == 2 && (msg.String() == "right" || msg.String() == "l" || msg.String() == " "):
		v.editPriority = (v.editPriority + 1) % len(priorities)
		return v, nil
	}

	var cmd tea.Cmd
	switch v.editFocusIdx {
	case 0:
		v.editTitle, cmd = v.editTitle.Update(msg)
	case 1:
		v.editDesc, cmd = v.editDesc.Update(msg)
	case 3:
		v.editDue, cmd = v.editDue.Update(msg)
	case 4:
		v.editTags, cmd = v.editTags.Update(msg)
	}
	return v, cmd
}

func (v *TaskListView) cycleFocus(dir int) {
	// Blur current
	v.searchInput.Blur()

	// Cycle
	v.focus = FocusArea((int(v.focus) + dir + 4) % 4)

	// Focus search if needed
	if v.focus == FocusSearchInput {
		v.searchInput.Focus()
	}
}

func (v *TaskListView) ensureVisible() {
	visibleItems := v.visibleItems()
	if v.cursor < v.scrollY {
		v.scrollY = v.cursor
	} else if v.cursor >= v.scrollY+visibleItems {
		v.scrollY = v.cursor - visibleItems + 1
	}
}

// visibleItems is how many two-line task items fit under the header
func (v *TaskListView) visibleItems() int {
	availableHeight := max(v.height-12, 3)
	return max(availableHeight/3, 1)
}

func priorityIndex(p models.Priority) int {
	for i, q := range priorities {
		if q == p {
			return i
		}
	}
	return 1
}

func (v *TaskListView) startNewTask() {
	v.editing = true
	v.editingNew = true
	v.editTaskID = ""
	v.editFocusIdx = 0
	v.editTitle.Reset()
	v.editDesc.Reset()
	v.editDue.Reset()
	v.editTags.Reset()
	v.editPriority = priorityIndex(models.PriorityMedium)
	v.updateEditFocus()
}

func (v *TaskListView) startEditTask(task models.Task) {
	v.editing = true
	v.editingNew = false
	v.editTaskID = task.ID
	v.editFocusIdx = 0
	v.editTitle.SetValue(task.Title)
	v.editDesc.SetValue(task.Description)
	v.editDue.Reset()
	if task.DueDate != nil {
		v.editDue.SetValue(task.DueDate.Format(dateLayout))
	}
	v.editTags.SetValue(strings.Join(task.Tags, ", "))
	v.editPriority = priorityIndex(task.Priority)
	v.updateEditFocus()
}

func (v *TaskListView) updateEditFocus() {
	v.editTitle.Blur()
	v.editDesc.Blur()
	v.editDue.Blur()
	v.editTags.Blur()

	switch v.editFocusIdx {
	case 0:
		v.editTitle.Focus()
	case 1:
		v.editDesc.Focus()
	case 3:
		v.editDue.Focus()
	case 4:
		v.editTags.Focus()
	}
}

// parseTags splits a comma separated list, dropping blanks and repeats
func parseTags(s string) []string {
	tags := []string{}
	seen := map[string]bool{}
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}

func (v *TaskListView) saveTask() tea.Cmd {
	title := strings.TrimSpace(v.editTitle.Value())
	if title == "" {
		v.err = describeErr("Saving task", gateway.Validation(models.ErrTaskTitleEmpty))
		return nil
	}

	var due *time.Time
	if raw := strings.TrimSpace(v.editDue.Value()); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, time.Local)
		if err != nil {
			v.err = "Due date must look like " + dateLayout
			return nil
		}
		due = &d
	}

	desc := strings.TrimSpace(v.editDesc.Value())
	priority := priorities[v.editPriority]
	tags := parseTags(v.editTags.Value())
	v.editing = false
	v.err = ""

	if v.editingNew {
		in := models.NewTask{
			Title:        title,
			Description:  desc,
			ProjectID:    v.project.ID,
			AssignedByID: v.userID(),
			Priority:     priority,
			DueDate:      due,
			Tags:         tags,
		}
		return v.run("Creating task", func() error {
			_, err := v.app.Tasks.CreateTask(v.ctx, in)
			return err
		})
	}

	id := v.editTaskID
	u := models.TaskUpdate{
		Title:       &title,
		Description: &desc,
		Priority:    &priority,
		DueDate:     due,
		Tags:        tags,
	}
	return v.run("Saving task", func() error {
		_, err := v.app.Tasks.UpdateTask(v.ctx, id, u)
		return err
	})
}

// View renders the view
func (v *TaskListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if v.confirmingDelete {
		return v.renderDeleteConfirm()
	}

	if v.editing {
		return v.renderEditForm()
	}

	if v.viewingTask {
		return v.renderTaskView()
	}

	var b strings.Builder

	// Header with back button, search, and status filter
	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")

	// Task list
	b.WriteString(v.renderTaskList())

	// Errors and notices
	b.WriteString("\n")
	b.WriteString(v.renderStatus())

	// Help
	b.WriteString(v.renderHelp())

	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TaskListView) renderStatus() string {
	switch {
	case v.err != "":
		return v.styles.ErrorText.Render(v.err) + "\n"
	case v.notice != "":
		return v.styles.StatusBar.Render(v.notice) + "\n"
	case v.app.Tasks.IsLoading():
		return v.styles.StatusBar.Render("Syncing...") + "\n"
	}
	return ""
}

func (v *TaskListView) filterLabel() string {
	switch {
	case v.showingCompleted:
		return string(models.StatusCompleted)
	case v.statusFilter != nil:
		return string(*v.statusFilter)
	}
	return "open"
}

func (v *TaskListView) renderHeader() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	isNarrow := contentWidth < 60

	// Search input - dynamic width
	searchStyle := s.Input
	if v.focus == FocusSearchInput {
		searchStyle = s.InputFocused
	}
	searchWidth := clamp(contentWidth-8, 10, 30)
	v.searchInput.Placeholder = "Search..."
	searchBox := searchStyle.Width(searchWidth).Render(v.searchInput.View())

	// Status filter dropdown - show just the status at narrow widths
	filterStyle := s.Button
	if v.focus == FocusStatusDropdown {
		filterStyle = s.ButtonFocused
	}
	label := v.filterLabel()
	if !isNarrow {
		label = "Status: " + label
	}
	filterBtn := filterStyle.Render(label + " ▼")

	// Title - add indicator when viewing completed tasks
	titleText := v.project.Name
	if v.showingCompleted {
		titleText = v.project.Name + " (Completed)"
	}
	title := s.Title.Render(titleText)

	var header string
	if isNarrow {
		// Narrow: stack vertically, no back button (esc still works)
		header = lipgloss.JoinVertical(lipgloss.Left,
			searchBox,
			filterBtn,
		)
	} else {
		// Wide: horizontal with back button
		backStyle := s.Button
		if v.focus == FocusBackButton {
			backStyle = s.ButtonFocused
		}
		backBtn := backStyle.Render("← Projects")

		header = lipgloss.JoinHorizontal(lipgloss.Center,
			backBtn, "  ", searchBox, "  ", filterBtn,
		)
	}

	// Status dropdown if open
	dropdown := ""
	if v.statusDropdownOpen {
		dropdown = "\n" + v.renderStatusDropdown()
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, header+dropdown)
}

func (v *TaskListView) renderStatusDropdown() string {
	s := v.styles
	var items []string

	openStyle := s.ListItem
	if v.statusCursor == 0 {
		openStyle = s.ListSelected
	}
	items = append(items, openStyle.Render("Open"))

	for i, status := range allStatuses {
		itemStyle := s.ListItem
		if v.statusCursor == i+1 {
			itemStyle = s.ListSelected
		}
		items = append(items, itemStyle.Render(styles.StatusDot(status)+" "+string(status)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, items...)
	return s.FilterBar.Render(content)
}

func (v *TaskListView) renderTaskList() string {
	s := v.styles

	if len(v.tasks) == 0 {
		if v.app.Tasks.IsPending("fetchTasks", v.project.ID+"/") {
			return s.TitleMuted.Render("Loading tasks...")
		}
		return s.TitleMuted.Render("No tasks. Press 'n' to create one.")
	}

	visibleItems := v.visibleItems()

	var items []string
	endIdx := min(v.scrollY+visibleItems, len(v.tasks))

	for i := v.scrollY; i < endIdx; i++ {
		task := v.tasks[i]
		items = append(items, v.renderTaskItem(task, i == v.cursor && v.focus == FocusTaskList))
	}

	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *TaskListView) renderTaskItem(task models.Task, selected bool) string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	width := max(contentWidth-4, 20)
	now := time.Now()

	status := styles.Badge(fmt.Sprintf("[%s]", task.Status), styles.StatusColor(task.Status))
	titleLine := status + " " + task.Title

	// Detail line (below title, like description in project list)
	parts := []string{
		styles.ProgressBar(task.Progress, 8) + fmt.Sprintf(" %3d%%", task.Progress),
		styles.Badge(string(task.Priority), styles.PriorityColor(task.Priority)),
	}
	if task.DueDate != nil {
		due := "due " + task.DueDate.Format("Jan 2")
		if store.Overdue(task, now) {
			due = s.Overdue.Render(due + " overdue")
		}
		parts = append(parts, due)
	}
	if len(task.Tags) > 0 {
		parts = append(parts, s.Tags(task.Tags))
	}
	detailLine := strings.Join(parts, "  ")

	// Apply styling based on selection state
	var titleStyle, detailStyle lipgloss.Style
	if selected {
		titleStyle = s.ListSelected.Width(width)
		detailStyle = s.ListSelected.Width(width)
	} else {
		titleStyle = s.ListItem.Width(width)
		detailStyle = s.ListItem.Width(width)
	}

	title := titleStyle.MaxHeight(1).Render(titleLine)
	detail := detailStyle.MaxHeight(1).Render(detailLine)

	// Return two-line item with margin
	return lipgloss.JoinVertical(lipgloss.Left, title, detail) + "\n"
}

func (v *TaskListView) renderEditForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	formTitle := "New Task"
	if !v.editingNew {
		formTitle = "Edit Task"
	}

	titleStyle := s.Input
	descStyle := s.Input
	priorityStyle := s.Input
	dueStyle := s.Input
	tagsStyle := s.Input
	btnStyle := s.Button

	switch v.editFocusIdx {
	case 0:
		titleStyle = s.InputFocused
	case 1:
		descStyle = s.InputFocused
	case 2:
		priorityStyle = s.InputFocused
	case 3:
		dueStyle = s.InputFocused
	case 4:
		tagsStyle = s.InputFocused
	case 5:
		btnStyle = s.ButtonFocused
	}

	// Dynamic input width based on content width
	inputWidth := clamp(contentWidth-6, 20, 50)

	var prios []string
	for i, p := range priorities {
		label := string(p)
		if i == v.editPriority {
			label = styles.Badge("‹"+label+"›", styles.PriorityColor(p))
		} else {
			label = s.TitleMuted.Render(" " + label + " ")
		}
		prios = append(prios, label)
	}

	form := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(formTitle),
		"",
		"Title:",
		titleStyle.Width(inputWidth).Render(v.editTitle.View()),
		"",
		"Description:",
		descStyle.Render(v.editDesc.View()),
		"",
		"Priority:",
		priorityStyle.Width(inputWidth).Render(strings.Join(prios, " ")),
		"",
		"Due date:",
		dueStyle.Width(20).Render(v.editDue.View()),
		"",
		"Tags:",
		tagsStyle.Width(inputWidth).Render(v.editTags.View()),
		"",
		btnStyle.Render(" Save "),
		"",
		s.TitleMuted.Render("Tab: next • ←→: priority • Ctrl+S: save • Esc: cancel"),
	)

	// Center within content width, then center that in terminal
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TaskListView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 50 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}

	// Dynamic label for 'c' key based on current mode
	completedLabel := "done"
	if v.showingCompleted {
		completedLabel = "back"
	}

	return v.styles.Help.Render(
		fmt.Sprintf("%s view • %s new • %s status • %s/%s progress • %s search • %s filter • %s %s • %s back • %s help",
			v.styles.HelpKey.Render("↵"),
			v.styles.HelpKey.Render("n"),
			v.styles.HelpKey.Render("s"),
			v.styles.HelpKey.Render("+"),
			v.styles.HelpKey.Render("-"),
			v.styles.HelpKey.Render("/"),
			v.styles.HelpKey.Render("f"),
			v.styles.HelpKey.Render("c"),
			completedLabel,
			v.styles.HelpKey.Render("esc"),
			v.styles.HelpKey.Render("?"),
		),
	)
}

func (v *TaskListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	// Dynamic label for 'c' key based on current mode
	completedLabel := "show completed"
	if v.showingCompleted {
		completedLabel = "hide completed"
	}

	helpItems := []string{
		s.HelpKey.Render("↵") + "      view task",
		s.HelpKey.Render("e") + "      edit task",
		s.HelpKey.Render("n") + "      new task",
		s.HelpKey.Render("d") + "      delete task",
		s.HelpKey.Render("s") + "      next status",
		s.HelpKey.Render("+/-") + "    progress",
		s.HelpKey.Render("a") + "      assign to me",
		s.HelpKey.Render("/") + "      search",
		s.HelpKey.Render("f") + "      filter by status",
		s.HelpKey.Render("c") + "      " + completedLabel,
		s.HelpKey.Render("r") + "      refresh",
		s.HelpKey.Render("esc") + "    back",
		s.HelpKey.Render("q") + "      quit",
		"",
		s.TitleMuted.Render("Press any key to close"),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.FilterBar.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TaskListView) renderDeleteConfirm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Warning.Render("Delete Task?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("Are you sure you want to delete %q?", v.deleteTargetName)),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func commentAuthor(c models.TaskComment) string {
	if c.User != nil {
		if name := c.User.FullName(); name != "" {
			return name
		}
	}
	return c.UserID
}

func (v *TaskListView) renderTaskView() string {
	task := v.app.Tasks.Current()
	if task == nil {
		return v.styles.TitleMuted.Render("Loading...")
	}

	s := v.styles
	maxContentWidth := styles.ContentWidth(v.width)

	descText := task.Description
	if descText == "" {
		descText = s.TitleMuted.Render("No description")
	}

	dueText := "None"
	if task.DueDate != nil {
		dueText = task.DueDate.Format("Mon Jan 2, 2006")
		if store.Overdue(*task, time.Now()) {
			dueText = s.Overdue.Render(dueText + " (overdue)")
		}
	}

	tagsText := s.Tags(task.Tags)
	if tagsText == "" {
		tagsText = s.TitleMuted.Render("None")
	}

	assignee := "Unassigned"
	if task.AssigneeID != nil {
		assignee = *task.AssigneeID
		if u := v.app.Auth.User(); u != nil && u.ID == assignee {
			assignee = "You"
		}
	}

	// Build the view - use content width for text wrapping
	titleStyle := s.Title.MarginBottom(1)
	labelStyle := s.TitleMuted
	textWidth := clamp(maxContentWidth-10, 20, 70)

	v.commentInput.SetWidth(clamp(textWidth, 20, 50))

	var commentsContent string
	if len(task.Comments) == 0 {
		commentsContent = s.TitleMuted.Render("No comments yet")
	} else {
		var commentLines []string
		for _, comment := range task.Comments {
			header := commentAuthor(comment) + " • " + comment.CreatedAt.Local().Format("Jan 2, 2006 3:04 PM")
			if comment.EditedAt != nil {
				header += " (edited)"
			}
			commentLines = append(commentLines, lipgloss.JoinVertical(lipgloss.Left,
				s.TitleMuted.Render(header),
				lipgloss.NewStyle().Width(textWidth).Render(comment.Content),
			))
		}
		commentsContent = lipgloss.JoinVertical(lipgloss.Left, commentLines...)
	}

	var attachmentsContent string
	if len(task.Attachments) == 0 {
		attachmentsContent = s.TitleMuted.Render("No attachments")
	} else {
		var lines []string
		for i, a := range task.Attachments {
			st := s.ListItem
			if i == v.attachmentCursor {
				st = s.ListSelected
			}
			lines = append(lines, st.Render(fmt.Sprintf("%s (%s, %d bytes)", a.FileName, a.FileType, a.FileSize)))
		}
		attachmentsContent = lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	var input string
	switch {
	case v.commentInputFocused:
		input = s.InputFocused.Render(v.commentInput.View())
	case v.uploadInputFocused:
		input = s.InputFocused.Width(textWidth).Render(v.uploadInput.View())
	default:
		input = s.Input.Render(v.commentInput.View())
	}

	var helpText string
	switch {
	case v.commentInputFocused:
		helpText = s.Help.Render(
			fmt.Sprintf("%s submit • %s cancel",
				s.HelpKey.Render("ctrl+s"),
				s.HelpKey.Render("esc"),
			),
		)
	case v.uploadInputFocused:
		helpText = s.Help.Render(
			fmt.Sprintf("%s upload • %s cancel",
				s.HelpKey.Render("↵"),
				s.HelpKey.Render("esc"),
			),
		)
	default:
		helpText = s.Help.Render(
			fmt.Sprintf("%s edit • %s status • %s/%s progress • %s comment • %s upload • %s save file • %s remove file • %s delete • %s back",
				s.HelpKey.Render("e"),
				s.HelpKey.Render("s"),
				s.HelpKey.Render("+"),
				s.HelpKey.Render("-"),
				s.HelpKey.Render("c"),
				s.HelpKey.Render("u"),
				s.HelpKey.Render("o"),
				s.HelpKey.Render("x"),
				s.HelpKey.Render("d"),
				s.HelpKey.Render("esc"),
			),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(task.Title),
		styles.Badge(string(task.Status), styles.StatusColor(task.Status))+"  "+
			styles.ProgressBar(task.Progress, 20)+fmt.Sprintf(" %d%%", task.Progress),
		"",
		labelStyle.Render("Priority")+"  "+styles.Badge(string(task.Priority), styles.PriorityColor(task.Priority)),
		labelStyle.Render("Due")+"       "+dueText,
		labelStyle.Render("Assignee")+"  "+assignee,
		labelStyle.Render("Tags")+"      "+tagsText,
		"",
		labelStyle.Render("Description"),
		lipgloss.NewStyle().Width(textWidth).Render(descText),
		"",
		labelStyle.Render("Attachments"),
		attachmentsContent,
		"",
		labelStyle.Render("Comments"),
		commentsContent,
		"",
		input,
		v.renderStatus(),
		helpText,
	)

	// Return with padding, not centered vertically, but horizontally centered if wide
	padded := v.styles.Page.Render(content)
	return styles.CenterView(padded, v.width, v.height)
}
