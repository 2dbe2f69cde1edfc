package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskies/internal/models"
)

// Theme is the palette every style is derived from
type Theme struct {
	Name string

	Background    lipgloss.Color
	Foreground    lipgloss.Color
	ForegroundDim lipgloss.Color

	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	Border      lipgloss.Color
	BorderFocus lipgloss.Color
	Selection   lipgloss.Color
}

// TokyoNight is the default palette
var TokyoNight = Theme{
	Name: "Tokyo Night",

	Background:    lipgloss.Color("#1a1b26"),
	Foreground:    lipgloss.Color("#c0caf5"),
	ForegroundDim: lipgloss.Color("#565f89"),

	Primary:   lipgloss.Color("#7aa2f7"),
	Secondary: lipgloss.Color("#bb9af7"),
	Accent:    lipgloss.Color("#7dcfff"),

	Success: lipgloss.Color("#9ece6a"),
	Warning: lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
	Info:    lipgloss.Color("#7aa2f7"),

	Border:      lipgloss.Color("#3b4261"),
	BorderFocus: lipgloss.Color("#7aa2f7"),
	Selection:   lipgloss.Color("#33467c"),
}

// Current holds the active theme
var Current = TokyoNight

// MaxWidth caps the width of every screen
const MaxWidth = 80

// ContentWidth returns the width screens lay themselves out in
func ContentWidth(terminalWidth int) int {
	return min(terminalWidth, MaxWidth)
}

// CenterView centers content horizontally on terminals wider than MaxWidth
func CenterView(content string, terminalWidth, terminalHeight int) string {
	if terminalWidth <= MaxWidth {
		return content
	}
	return lipgloss.Place(terminalWidth, terminalHeight, lipgloss.Center, lipgloss.Top, content)
}

// Styles holds the styles shared by the sign-in, project and task screens
type Styles struct {
	App        lipgloss.Style
	Page       lipgloss.Style
	TitleBar   lipgloss.Style
	Title      lipgloss.Style
	TitleMuted lipgloss.Style

	// project and task rows
	ListItem     lipgloss.Style
	ListSelected lipgloss.Style
	Tag          lipgloss.Style
	Overdue      lipgloss.Style

	// search box and status dropdown
	FilterBar lipgloss.Style

	// forms
	Button        lipgloss.Style
	ButtonFocused lipgloss.Style
	ButtonPrimary lipgloss.Style
	Input         lipgloss.Style
	InputFocused  lipgloss.Style

	Help      lipgloss.Style
	HelpKey   lipgloss.Style
	StatusBar lipgloss.Style

	// store errors, confirmations and notices
	ErrorText lipgloss.Style
	Warning   lipgloss.Style
	Notice    lipgloss.Style
}

// NewStyles builds the styles for the current theme
func NewStyles() *Styles {
	t := Current
	bordered := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(c)
	}
	row := lipgloss.NewStyle().Padding(0, 2)

	return &Styles{
		App:        lipgloss.NewStyle().Background(t.Background).Foreground(t.Foreground),
		Page:       lipgloss.NewStyle().Padding(1, 2),
		TitleBar:   lipgloss.NewStyle().Foreground(t.Foreground).Background(t.Background).Padding(0, 1).Bold(true),
		Title:      lipgloss.NewStyle().Foreground(t.Primary).Bold(true),
		TitleMuted: lipgloss.NewStyle().Foreground(t.ForegroundDim),

		ListItem:     row.Foreground(t.Foreground),
		ListSelected: row.Foreground(t.Primary).Background(t.Selection).Bold(true),
		Tag:          lipgloss.NewStyle().Foreground(t.Accent),
		Overdue:      lipgloss.NewStyle().Foreground(t.Error).Bold(true),

		FilterBar: bordered(t.Border).Padding(0, 1),

		Button:        bordered(t.Border).Foreground(t.Foreground).Padding(0, 2),
		ButtonFocused: bordered(t.BorderFocus).Foreground(t.Primary).Padding(0, 2).Bold(true),
		ButtonPrimary: lipgloss.NewStyle().Foreground(t.Background).Background(t.Primary).Padding(0, 2).Bold(true),
		Input:         bordered(t.Border).Foreground(t.Foreground).Padding(0, 1),
		InputFocused:  bordered(t.BorderFocus).Foreground(t.Foreground).Padding(0, 1),

		Help:      lipgloss.NewStyle().Foreground(t.ForegroundDim).Padding(1, 2),
		HelpKey:   lipgloss.NewStyle().Foreground(t.Primary).Bold(true),
		StatusBar: lipgloss.NewStyle().Foreground(t.ForegroundDim).Padding(0, 1),

		ErrorText: lipgloss.NewStyle().Foreground(t.Error).Padding(0, 2),
		Warning:   lipgloss.NewStyle().Foreground(t.Error).Bold(true),
		Notice:    lipgloss.NewStyle().Foreground(t.Success).Bold(true),
	}
}

// Tags renders task tags as "#a #b"
func (s *Styles) Tags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return s.Tag.Render("#" + strings.Join(tags, " #"))
}

// StatusColor picks the badge color of a task status
func StatusColor(s models.TaskStatus) lipgloss.Color {
	t := Current
	switch s {
	case models.StatusInProgress:
		return t.Info
	case models.StatusReview:
		return t.Secondary
	case models.StatusCompleted:
		return t.Success
	case models.StatusCancelled:
		return t.Error
	}
	return t.ForegroundDim
}

// PriorityColor picks the color of a priority label
func PriorityColor(p models.Priority) lipgloss.Color {
	t := Current
	switch p {
	case models.PriorityUrgent:
		return t.Error
	case models.PriorityHigh:
		return t.Warning
	case models.PriorityLow:
		return t.ForegroundDim
	}
	return t.Accent
}

// Badge renders a short colored label such as a status or priority
func Badge(text string, c lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(c).Bold(true).Render(text)
}

// StatusDot renders a colored bullet for a task status
func StatusDot(s models.TaskStatus) string {
	return lipgloss.NewStyle().Foreground(StatusColor(s)).Render("●")
}

// ProgressBar draws pct (0-100) as a bar width cells wide
func ProgressBar(pct, width int) string {
	if width < 1 {
		return ""
	}
	pct = max(0, min(pct, 100))
	filled := pct * width / 100
	return lipgloss.NewStyle().Foreground(Current.Success).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(Current.Border).Render(strings.Repeat("░", width-filled))
}
