package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskies/internal/app"
	"github.com/tgienger/taskies/internal/gateway"
	"github.com/tgienger/taskies/internal/models"
	"github.com/tgienger/taskies/internal/ui/keys"
	"github.com/tgienger/taskies/internal/ui/styles"
)

type projectItem struct {
	project models.Project
}

func (i projectItem) Title() string       { return i.project.Name }
func (i projectItem) Description() string { return i.project.Description }
func (i projectItem) FilterValue() string { return i.project.Name + " " + i.project.Description }

type projectDelegate struct {
	styles *styles.Styles
	width  int
}

func (d projectDelegate) Height() int                               { return 2 }
func (d projectDelegate) Spacing() int                              { return 1 }
func (d projectDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d projectDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	p, ok := item.(projectItem)
	if !ok {
		return
	}

	selected := index == m.Index()
	width := max(d.width-4, 20)

	var titleStyle, descStyle lipgloss.Style
	if selected {
		titleStyle = d.styles.ListSelected.Width(width)
		descStyle = d.styles.ListSelected.Foreground(styles.Current.ForegroundDim).Width(width)
	} else {
		titleStyle = d.styles.ListItem.Width(width)
		descStyle = d.styles.ListItem.Foreground(styles.Current.ForegroundDim).Width(width)
	}

	prio := styles.Badge(string(p.project.Priority), styles.PriorityColor(p.project.Priority))
	title := titleStyle.Render(p.Title() + "  " + prio)

	summary := fmt.Sprintf("%s %3d%%  %s", styles.ProgressBar(p.project.Progress, 10), p.project.Progress, p.project.Status)
	if p.Description() != "" {
		summary += " • " + p.Description()
	}
	desc := descStyle.MaxHeight(1).Render(summary)

	fmt.Fprintf(w, "%s\n%s", title, desc)
}

// ProjectListView lists the signed-in user's projects under a dashboard
// summary
type ProjectListView struct {
	ctx              context.Context
	app              *app.App
	list             list.Model
	delegate         *projectDelegate
	styles           *styles.Styles
	keys             keys.KeyMap
	width            int
	height           int
	creating         bool
	loaded           bool
	confirmingDelete bool
	deleteTargetID   string
	deleteTargetName string
	newName          textinput.Model
	newDesc          textinput.Model
	focusIdx         int // 0=name, 1=desc, 2=confirm

	stats   models.DashboardStats
	tasks   []models.Task // every task of the user, for stats
	overdue int
	err     string
	notice  string

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

func NewProjectListView(ctx context.Context, a *app.App) *ProjectListView {
	s := styles.NewStyles()

	newName := textinput.New()
	newName.Placeholder = "Project name"
	newName.CharLimit = 100

	newDesc := textinput.New()
	newDesc.Placeholder = "Description (optional)"
	newDesc.CharLimit = 500

	delegate := &projectDelegate{styles: s, width: 80}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Projects"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = s.Title
	l.SetShowHelp(false)

	v := &ProjectListView{
		ctx:      ctx,
		app:      a,
		list:     l,
		delegate: delegate,
		styles:   s,
		keys:     keys.DefaultKeyMap(),
		newName:  newName,
		newDesc:  newDesc,
		tasks:    a.Tasks.Tasks(),
	}
	// Show what the cache holds until the fetch returns
	if cached := a.Projects.Projects(); len(cached) > 0 {
		v.setProjects(cached)
	}
	return v
}

func (v *ProjectListView) Init() tea.Cmd {
	return tea.Batch(v.loadProjects, v.loadTasks, v.loadOverdue)
}

type projectsLoadedMsg struct {
	projects []models.Project
	err      error
}

type dashboardTasksMsg struct {
	tasks []models.Task
}

type overdueLoadedMsg struct {
	count int
}

type projectChangedMsg struct {
	notice string
}

func (v *ProjectListView) userID() string {
	if u := v.app.Auth.User(); u != nil {
		return u.ID
	}
	return ""
}

func (v *ProjectListView) loadProjects() tea.Msg {
	projects, err := v.app.Projects.FetchProjects(v.ctx, v.userID())
	if err != nil {
		// Fall back to the cached list
		return projectsLoadedMsg{projects: v.app.Projects.Projects(), err: err}
	}
	return projectsLoadedMsg{projects: projects}
}

// loadTasks fetches the user's tasks across all projects. On failure the
// previous snapshot is kept.
func (v *ProjectListView) loadTasks() tea.Msg {
	tasks, err := v.app.Tasks.FetchTasks(v.ctx, "", "")
	if err != nil {
		return nil
	}
	return dashboardTasksMsg{tasks: tasks}
}

func (v *ProjectListView) loadOverdue() tea.Msg {
	tasks, err := v.app.Tasks.FetchOverdueTasks(v.ctx, v.userID())
	if err != nil {
		return nil
	}
	return overdueLoadedMsg{count: len(tasks)}
}

func (v *ProjectListView) setProjects(projects []models.Project) {
	items := make([]list.Item, len(projects))
	for i, p := range projects {
		items[i] = projectItem{project: p}
	}
	v.list.SetItems(items)
	v.stats = v.app.StatsFor(v.tasks)
	v.loaded = true
}

func (v *ProjectListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		// Use content width (capped at MaxWidth) for internal layout
		contentWidth := styles.ContentWidth(msg.Width)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth-4, msg.Height-9)
		return v, nil

	case projectsLoadedMsg:
		v.setProjects(msg.projects)
		v.err = ""
		if msg.err != nil {
			v.err = describeErr("Loading projects", msg.err)
		}
		return v, nil

	case dashboardTasksMsg:
		v.tasks = msg.tasks
		v.stats = v.app.StatsFor(v.tasks)
		return v, nil

	case overdueLoadedMsg:
		v.overdue = msg.count
		return v, nil

	case projectChangedMsg:
		v.err = ""
		v.notice = msg.notice
		v.setProjects(v.app.Projects.Projects())
		return v, nil

	case errMsg:
		v.err = describeErr(msg.op, msg.err)
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

		if v.creating {
			return v.updateCreating(msg)
		}

		// Let the list's own filter consume keys while typing
		if v.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Back):
			// Don't quit on escape in project list - only q quits
			if v.list.FilterState() == list.FilterApplied {
				break
			}
			return v, nil
		case key.Matches(msg, v.keys.New):
			v.creating = true
			v.focusIdx = 0
			v.err = ""
			v.newName.Reset()
			v.newDesc.Reset()
			v.newName.Focus()
			return v, textinput.Blink
		case key.Matches(msg, v.keys.Help):
			v.showHelpPopup = true
			return v, nil
		case key.Matches(msg, v.keys.Refresh):
			v.notice = ""
			return v, tea.Batch(v.loadProjects, v.loadOverdue)
		case key.Matches(msg, v.keys.SignOut):
			return v, func() tea.Msg { return SignOutRequested{} }
		case key.Matches(msg, v.keys.Enter):
			if item, ok := v.list.SelectedItem().(projectItem); ok {
				return v, func() tea.Msg {
					return SelectedProject{Project: item.project}
				}
			}
		case key.Matches(msg, v.keys.Status):
			if item, ok := v.list.SelectedItem().(projectItem); ok {
				return v, v.cycleStatus(item.project)
			}
		case key.Matches(msg, v.keys.Delete):
			if item, ok := v.list.SelectedItem().(projectItem); ok {
				v.confirmingDelete = true
				v.deleteTargetID = item.project.ID
				v.deleteTargetName = item.project.Name
				return v, nil
			}
		}
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

// nextProjectStatus cycles active → on-hold → completed → active
func nextProjectStatus(s models.ProjectStatus) models.ProjectStatus {
	switch s {
	case models.ProjectActive:
		return models.ProjectOnHold
	case models.ProjectOnHold:
		return models.ProjectCompleted
	}
	return models.ProjectActive
}

func (v *ProjectListView) cycleStatus(p models.Project) tea.Cmd {
	next := nextProjectStatus(p.Status)
	return func() tea.Msg {
		if _, err := v.app.Projects.UpdateProject(v.ctx, p.ID, models.ProjectUpdate{Status: &next}); err != nil {
			return errMsg{op: "Updating project", err: err}
		}
		return projectChangedMsg{notice: fmt.Sprintf("%s is now %s", p.Name, next)}
	}
}

func (v *ProjectListView) deleteProject(id string) tea.Cmd {
	return func() tea.Msg {
		if err := v.app.Projects.DeleteProject(v.ctx, id); err != nil {
			return errMsg{op: "Deleting project", err: err}
		}
		return projectChangedMsg{notice: "Project deleted"}
	}
}

func (v *ProjectListView) createProject() tea.Cmd {
	name := strings.TrimSpace(v.newName.Value())
	if name == "" {
		v.err = describeErr("Creating project", gateway.Validation(models.ErrProjectNameEmpty))
		return nil
	}
	in := models.NewProject{
		Name:        name,
		Description: strings.TrimSpace(v.newDesc.Value()),
		OwnerID:     v.userID(),
	}
	v.creating = false
	return func() tea.Msg {
		project, err := v.app.Projects.CreateProject(v.ctx, in)
		if err != nil {
			return errMsg{op: "Creating project", err: err}
		}
		return SelectedProject{Project: *project}
	}
}

func (v *ProjectListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		return v, v.deleteProject(v.deleteTargetID)
	case "n", "N", "esc":
		v.confirmingDelete = false
		return v, nil
	}
	return v, nil
}

func (v *ProjectListView) updateCreating(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.creating = false
		return v, nil

	case msg.String() == "ctrl+s":
		return v, v.createProject()

	case msg.String() == "shift+tab":
		v.focusIdx = (v.focusIdx + 2) % 3
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Tab):
		v.focusIdx = (v.focusIdx + 1) % 3
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if v.focusIdx == 0 || v.focusIdx == 1 {
			v.focusIdx++
			v.updateFocus()
			return v, nil
		}
		return v, v.createProject()
	}

	var cmd tea.Cmd
	switch v.focusIdx {
	case 0:
		v.newName, cmd = v.newName.Update(msg)
	case 1:
		v.newDesc, cmd = v.newDesc.Update(msg)
	}
	return v, cmd
}

func (v *ProjectListView) updateFocus() {
	v.newName.Blur()
	v.newDesc.Blur()
	switch v.focusIdx {
	case 0:
		v.newName.Focus()
	case 1:
		v.newDesc.Focus()
	}
}

// View renders the view
func (v *ProjectListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if v.confirmingDelete {
		return v.renderDeleteConfirm()
	}

	if v.creating {
		return v.renderCreateForm()
	}

	if !v.loaded {
		return v.styles.TitleMuted.Render("Loading...")
	}

	if len(v.list.Items()) == 0 {
		return v.renderEmpty()
	}

	content := v.renderStats() + "\n" + v.list.View() + "\n" + v.renderStatus() + v.renderHelp()
	return styles.CenterView(content, v.width, v.height)
}

func (v *ProjectListView) renderStats() string {
	s := v.styles
	st := v.stats
	name := ""
	if u := v.app.Auth.User(); u != nil {
		name = u.FullName()
	}
	line := fmt.Sprintf("%d/%d projects active • %d tasks, %d in progress, %d done • %d overdue",
		st.ActiveProjects, st.TotalProjects, st.TotalTasks, st.TasksInProgress, st.CompletedTasks, max(st.OverdueTasks, v.overdue))
	week := fmt.Sprintf("week %s %d%%  month %s %d%%",
		styles.ProgressBar(st.WeeklyProgress, 10), st.WeeklyProgress,
		styles.ProgressBar(st.MonthlyProgress, 10), st.MonthlyProgress)

	return s.StatusBar.Render(lipgloss.JoinVertical(lipgloss.Left,
		s.TitleBar.Render(name),
		s.TitleMuted.Render(line),
		week,
	))
}

func (v *ProjectListView) renderStatus() string {
	switch {
	case v.err != "":
		return v.styles.ErrorText.Render(v.err) + "\n"
	case v.notice != "":
		return v.styles.StatusBar.Render(v.notice) + "\n"
	}
	return ""
}

func (v *ProjectListView) renderEmpty() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Render("No Projects"),
		"",
		s.TitleMuted.Render("Press 'n' to create your first project"),
		"",
		s.ButtonPrimary.Render(" New Project "),
		"",
		v.renderStatus(),
	)

	// Center within content width, then center that in terminal
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ProjectListView) renderCreateForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	nameStyle := s.Input
	descStyle := s.Input
	btnStyle := s.Button

	switch v.focusIdx {
	case 0:
		nameStyle = s.InputFocused
	case 1:
		descStyle = s.InputFocused
	case 2:
		btnStyle = s.ButtonFocused
	}

	// Dynamic input width based on content width
	inputWidth := clamp(contentWidth-6, 20, 50)

	form := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("New Project"),
		"",
		"Name:",
		nameStyle.Width(inputWidth).Render(v.newName.View()),
		"",
		"Description:",
		descStyle.Width(inputWidth).Render(v.newDesc.View()),
		"",
		btnStyle.Render(" Create "),
		"",
		v.renderStatus(),
		s.TitleMuted.Render("Tab: next • Ctrl+S: save • Esc: cancel"),
	)

	// Center within content width, then center that in terminal
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ProjectListView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 50 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	return v.styles.Help.Render(
		fmt.Sprintf("%s select • %s new • %s status • %s del • %s refresh • %s quit",
			v.styles.HelpKey.Render("↵"),
			v.styles.HelpKey.Render("n"),
			v.styles.HelpKey.Render("s"),
			v.styles.HelpKey.Render("d"),
			v.styles.HelpKey.Render("r"),
			v.styles.HelpKey.Render("q"),
		),
	)
}

func (v *ProjectListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	helpItems := []string{
		s.HelpKey.Render("↵") + "       select project",
		s.HelpKey.Render("n") + "       new project",
		s.HelpKey.Render("s") + "       cycle project status",
		s.HelpKey.Render("d") + "       delete project",
		s.HelpKey.Render("/") + "       filter",
		s.HelpKey.Render("r") + "       refresh",
		s.HelpKey.Render("ctrl+o") + "  sign out",
		s.HelpKey.Render("q") + "       quit",
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

func (v *ProjectListView) renderDeleteConfirm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Warning.Render("Delete Project?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("%q and its tasks will be removed.", v.deleteTargetName)),
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
