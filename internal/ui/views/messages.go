package views

import (
	"github.com/tgienger/taskies/internal/gateway"
	"github.com/tgienger/taskies/internal/models"
)

// SignedIn is sent once the auth store holds a user
type SignedIn struct{}

// SignOutRequested asks the app to end the session
type SignOutRequested struct{}

// SelectedProject opens the task list of Project
type SelectedProject struct {
	Project models.Project
}

// BackToProjects signals to go back to project list
type BackToProjects struct{}

// errMsg carries a failed store call back to the view that issued it
type errMsg struct {
	op  string
	err error
}

// describeErr turns a store error into the line shown to the user
func describeErr(op string, err error) string {
	switch gateway.KindOf(err) {
	case gateway.KindNetwork:
		return op + ": offline or server unreachable, showing cached data"
	case gateway.KindAuth:
		return op + ": " + err.Error() + " (sign in again)"
	}
	return op + ": " + err.Error()
}
