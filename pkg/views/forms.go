package views

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
)

// newForm builds a huh form styled like the rest of bugwork. The program
// owns the event loop, so completion is read from Form.State rather than
// through a quit command.
func newForm(d Deps, groups ...*huh.Group) *huh.Form {
	f := huh.NewForm(groups...).
		WithTheme(huh.ThemeDracula()).
		WithShowHelp(true)
	if d.Width > 0 {
		f = f.WithWidth(d.Width)
	}
	return f
}
