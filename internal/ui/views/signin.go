package views

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskies/internal/app"
	"github.com/tgienger/taskies/internal/ui/keys"
	"github.com/tgienger/taskies/internal/ui/styles"
)

const (
	fieldEmail = iota
	fieldPassword
	fieldFirstName
	fieldLastName
)

// SignInView collects credentials. ctrl+n switches to registration, where
// first and last name are asked as well.
type SignInView struct {
	ctx    context.Context
	app    *app.App
	styles *styles.Styles
	keys   keys.KeyMap

	width  int
	height int

	inputs   []textinput.Model
	focusIdx int
	signUp   bool
	busy     bool
	notice   string
	err      string
}

func NewSignInView(ctx context.Context, a *app.App) *SignInView {
	mk := func(placeholder string, limit int) textinput.Model {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.CharLimit = limit
		return ti
	}
	password := mk("Password", 128)
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	v := &SignInView{
		ctx:    ctx,
		app:    a,
		styles: styles.NewStyles(),
		keys:   keys.DefaultKeyMap(),
		inputs: []textinput.Model{
			mk("you@example.com", 254),
			password,
			mk("First name", 100),
			mk("Last name", 100),
		},
	}
	v.updateFocus()
	return v
}

func (v *SignInView) Init() tea.Cmd {
	return textinput.Blink
}

type signedUpMsg struct{ email string }

type resetSentMsg struct{ email string }

func (v *SignInView) fields() int {
	if v.signUp {
		return len(v.inputs)
	}
	return 2
}

func (v *SignInView) value(i int) string {
	return strings.TrimSpace(v.inputs[i].Value())
}

func (v *SignInView) submit() tea.Cmd {
	email, password := v.value(fieldEmail), v.inputs[fieldPassword].Value()
	v.busy = true
	v.err = ""
	if v.signUp {
		first, last := v.value(fieldFirstName), v.value(fieldLastName)
		return func() tea.Msg {
			if err := v.app.Auth.SignUp(v.ctx, email, password, first, last); err != nil {
				return errMsg{op: "Sign up", err: err}
			}
			return signedUpMsg{email: email}
		}
	}
	return func() tea.Msg {
		if err := v.app.Auth.SignIn(v.ctx, email, password); err != nil {
			return errMsg{op: "Sign in", err: err}
		}
		return SignedIn{}
	}
}

func (v *SignInView) resetPassword() tea.Cmd {
	email := v.value(fieldEmail)
	if email == "" {
		v.err = "Enter your email address first"
		return nil
	}
	v.busy = true
	return func() tea.Msg {
		if err := v.app.Auth.ResetPassword(v.ctx, email); err != nil {
			return errMsg{op: "Password reset", err: err}
		}
		return resetSentMsg{email: email}
	}
}

func (v *SignInView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case errMsg:
		v.busy = false
		v.err = describeErr(msg.op, msg.err)
		return v, nil

	case signedUpMsg:
		v.busy = false
		v.signUp = false
		v.focusIdx = fieldPassword
		v.updateFocus()
		v.notice = "Account created for " + msg.email + ", check your mail to confirm it"
		return v, nil

	case resetSentMsg:
		v.busy = false
		v.notice = "Password reset link sent to " + msg.email
		return v, nil

	case tea.KeyMsg:
		if v.busy {
			return v, nil
		}
		switch {
		case msg.String() == "ctrl+c":
			return v, tea.Quit
		case key.Matches(msg, v.keys.Back):
			if v.signUp {
				v.signUp = false
				v.focusIdx = min(v.focusIdx, fieldPassword)
				v.updateFocus()
				return v, nil
			}
			return v, tea.Quit
		case msg.String() == "ctrl+n":
			v.signUp = !v.signUp
			v.err, v.notice = "", ""
			v.focusIdx = fieldEmail
			v.updateFocus()
			return v, textinput.Blink
		case msg.String() == "ctrl+r":
			return v, v.resetPassword()
		case key.Matches(msg, v.keys.Tab), msg.String() == "down":
			v.focusIdx = (v.focusIdx + 1) % v.fields()
			v.updateFocus()
			return v, nil
		case msg.String() == "shift+tab", msg.String() == "up":
			v.focusIdx = (v.focusIdx + v.fields() - 1) % v.fields()
			v.updateFocus()
			return v, nil
		case key.Matches(msg, v.keys.Enter):
			if v.focusIdx < v.fields()-1 {
				v.focusIdx++
				v.updateFocus()
				return v, nil
			}
			return v, v.submit()
		}
	}

	var cmd tea.Cmd
	v.inputs[v.focusIdx], cmd = v.inputs[v.focusIdx].Update(msg)
	return v, cmd
}

func (v *SignInView) updateFocus() {
	for i := range v.inputs {
		if i == v.focusIdx {
			v.inputs[i].Focus()
		} else {
			v.inputs[i].Blur()
		}
	}
}

func (v *SignInView) View() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	inputWidth := clamp(contentWidth-6, 20, 50)

	title := "Sign In"
	if v.signUp {
		title = "Create Account"
	}

	field := func(label string, i int) []string {
		st := s.Input
		if i == v.focusIdx {
			st = s.InputFocused
		}
		return []string{label, st.Width(inputWidth).Render(v.inputs[i].View()), ""}
	}

	rows := []string{s.Title.Render(title), ""}
	rows = append(rows, field("Email:", fieldEmail)...)
	rows = append(rows, field("Password:", fieldPassword)...)
	if v.signUp {
		rows = append(rows, field("First name:", fieldFirstName)...)
		rows = append(rows, field("Last name:", fieldLastName)...)
	}

	switch {
	case v.busy:
		rows = append(rows, s.TitleMuted.Render("Working..."))
	case v.err != "":
		rows = append(rows, s.Warning.Render(v.err))
	case v.notice != "":
		rows = append(rows, s.Notice.Render(v.notice))
	}

	other := "ctrl+n: create account"
	if v.signUp {
		other = "ctrl+n: back to sign in"
	}
	rows = append(rows, "",
		s.TitleMuted.Render("Tab: next • ↵: submit • "+other+" • ctrl+r: reset password • Esc: quit"),
	)

	form := lipgloss.JoinVertical(lipgloss.Left, rows...)
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().Width(inputWidth+4).Render(form),
	)
	return styles.CenterView(centered, v.width, v.height)
}
