// Package ui is the terminal front end. Views call store actions from tea
// commands and re-read store state when the results come back.
package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/taskies/internal/app"
	"github.com/tgienger/taskies/internal/models"
	"github.com/tgienger/taskies/internal/ui/views"
)

// Currently active view
type View int

const (
	ViewSignIn View = iota
	ViewProjects
	ViewTasks
)

type App struct {
	ctx         context.Context
	app         *app.App
	currentView View
	signIn      *views.SignInView
	projectList *views.ProjectListView
	taskList    *views.TaskListView
	width       int
	height      int
}

// Creates a new application
func NewApp(ctx context.Context, a *app.App) *App {
	return &App{
		ctx:         ctx,
		app:         a,
		currentView: ViewSignIn,
		signIn:      views.NewSignInView(ctx, a),
	}
}

func (a *App) Init() tea.Cmd {
	if !a.app.Auth.IsAuthenticated() {
		return a.signIn.Init()
	}

	// Check for last opened project
	if id := a.app.LastProjectID(); id != "" {
		if project, ok := a.app.Projects.ProjectByID(id); ok {
			a.projectList = views.NewProjectListView(a.ctx, a.app)
			return a.openProject(project)
		}
	}

	return a.showProjects()
}

func (a *App) resize() tea.Cmd {
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: a.width, Height: a.height}
	}
}

func (a *App) showProjects() tea.Cmd {
	a.currentView = ViewProjects
	if a.projectList == nil {
		a.projectList = views.NewProjectListView(a.ctx, a.app)
	}
	return tea.Batch(a.projectList.Init(), a.resize())
}

func (a *App) openProject(project models.Project) tea.Cmd {
	a.currentView = ViewTasks
	a.taskList = views.NewTaskListView(a.ctx, a.app, project)
	a.app.Projects.SetCurrent(project.ID)

	// Save as last opened project
	a.app.SetLastProjectID(project.ID)

	// Initialize task list with window size
	return tea.Batch(a.taskList.Init(), a.resize())
}

func (a *App) signOut() tea.Msg {
	// The session is cleared locally even when the gateway call fails
	_ = a.app.SignOut(a.ctx)
	return signedOutMsg{}
}

type signedOutMsg struct{}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Always update the views that persist across switches
		a.signIn.Update(msg)
		if a.projectList != nil {
			a.projectList.Update(msg)
		}

	case views.SignedIn:
		a.projectList = nil
		return a, a.showProjects()

	case views.SignOutRequested:
		return a, a.signOut

	case signedOutMsg:
		a.currentView = ViewSignIn
		a.projectList = nil
		a.taskList = nil
		a.signIn = views.NewSignInView(a.ctx, a.app)
		return a, tea.Batch(a.signIn.Init(), a.resize())

	case views.SelectedProject:
		return a, a.openProject(msg.Project)

	case views.BackToProjects:
		a.app.Unwatch()
		a.app.Projects.SetCurrent("")
		a.app.SetLastProjectID("")
		return a, a.showProjects()
	}

	var cmd tea.Cmd
	switch a.currentView {
	case ViewSignIn:
		_, cmd = a.signIn.Update(msg)
	case ViewProjects:
		_, cmd = a.projectList.Update(msg)
	case ViewTasks:
		_, cmd = a.taskList.Update(msg)
	}

	return a, cmd
}

func (a *App) View() string {
	switch a.currentView {
	case ViewSignIn:
		return a.signIn.View()
	case ViewTasks:
		if a.taskList != nil {
			return a.taskList.View()
		}
	}
	if a.projectList == nil {
		return ""
	}
	return a.projectList.View()
}
