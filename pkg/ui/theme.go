package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals keep their own
// background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and ANSI white
// (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Danger    lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor

	Header lipgloss.Style
	User   lipgloss.Style
	Footer lipgloss.Style
	Toast  lipgloss.Style
	Error  lipgloss.Style
	Dialog lipgloss.Style
	Alert  lipgloss.Style
	Prompt lipgloss.Style
	Help   lipgloss.Style
}

// DefaultTheme returns the Dracula-inspired theme (adaptive).
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   ColorPrimary,
		Secondary: ColorSecondary,
		Subtext:   ColorSubtext,
		Border:    ColorBgHighlight,
		Danger:    ColorDanger,
		Success:   ColorSuccess,
	}

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)
	t.User = r.NewStyle().Foreground(t.Secondary).Padding(0, 1)
	t.Footer = r.NewStyle().Foreground(ColorMuted)
	t.Toast = r.NewStyle().Foreground(t.Success).Bold(true)
	t.Error = r.NewStyle().Foreground(t.Danger).Bold(true)
	t.Prompt = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.Help = r.NewStyle().Foreground(t.Subtext)

	t.Dialog = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Background(ThemeBg("#282A36")).
		Padding(1, 3)
	t.Alert = r.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(t.Danger).
		Foreground(ThemeFg("#F8F8F2")).
		Background(ThemeBg("#282A36")).
		Padding(1, 3)

	return t
}
