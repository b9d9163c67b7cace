// Package ui hosts bugwork in a bubbletea program. The screen is the
// composition of the render panes ("body", "#content" and whatever slots the
// content declares) in a scrolling viewport, with overlays for dialogs,
// alerts and attachment previews on top.
package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/bugwork/pkg/attach"
	"github.com/vanderheijden86/bugwork/pkg/render"
	"github.com/vanderheijden86/bugwork/pkg/session"
	"github.com/vanderheijden86/bugwork/pkg/views"
)

// ToastDuration is how long a toast stays in the footer.
const ToastDuration = 3 * time.Second

// Default dimensions until the first WindowSizeMsg arrives.
const (
	defaultWidth  = 80
	defaultHeight = 24
)

// Navigator is the part of the router the UI drives.
type Navigator interface {
	Go(path string)
	Current() string
}

type toastExpiredMsg struct{ seq int }

type dialogEntry struct {
	id   string
	text string
}

// Model is the root bubbletea model.
type Model struct {
	panes *render.Panes
	nav   Navigator
	user  func() string
	theme Theme

	width    int
	height   int
	viewport viewport.Model
	spinner  spinner.Model
	prompt   textinput.Model

	contentGen  uint64
	interactive views.Interactive

	prompting bool
	showHelp  bool
	dialogs   []dialogEntry
	toast     string
	toastSeq  int
	alert     string
	preview   string
}

// NewModel creates the root model over panes. user reports the signed-in
// user name and may be nil.
func NewModel(panes *render.Panes, nav Navigator, user func() string) Model {
	theme := DefaultTheme(lipgloss.DefaultRenderer())

	prompt := textinput.New()
	prompt.Prompt = "go to: "
	prompt.Placeholder = "/bug/123"
	prompt.CharLimit = 256

	m := Model{
		panes:   panes,
		nav:     nav,
		user:    user,
		theme:   theme,
		width:   defaultWidth,
		height:  defaultHeight,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.Prompt)),
		prompt:  prompt,
	}
	m.viewport = viewport.New(defaultWidth, m.bodyHeight())
	return m
}

func (m Model) bodyHeight() int {
	h := m.height - 2 // header and footer
	if h < 3 {
		h = 3
	}
	return h
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.track()}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = m.bodyHeight()
		cmds = append(cmds, m.forward(msg))

	case redrawMsg:

	case dialogMsg:
		if msg.open {
			m.dialogs = append(m.dialogs, dialogEntry{id: msg.id, text: msg.text})
			if len(m.dialogs) == 1 {
				cmds = append(cmds, m.spinner.Tick)
			}
		} else {
			for i, d := range m.dialogs {
				if d.id == msg.id {
					m.dialogs = append(m.dialogs[:i:i], m.dialogs[i+1:]...)
					break
				}
			}
		}

	case spinner.TickMsg:
		if len(m.dialogs) > 0 {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case toastMsg:
		m.toastSeq++
		m.toast = msg.text
		seq := m.toastSeq
		cmds = append(cmds, tea.Tick(ToastDuration, func(time.Time) tea.Msg {
			return toastExpiredMsg{seq: seq}
		}))

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}

	case alertMsg:
		m.alert = msg.text

	case views.PreviewMsg:
		m.openPreview(msg.Attachment)

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))

	default:
		cmds = append(cmds, m.forward(msg))
	}

	cmds = append(cmds, m.track())
	m.refresh()
	return m, tea.Batch(cmds...)
}

// track notices a new fragment in "#content" and initializes it when it is
// interactive.
func (m *Model) track() tea.Cmd {
	if m.panes == nil {
		return nil
	}
	frag, gen, _ := m.panes.Get(render.Content)
	if gen == m.contentGen {
		return nil
	}
	m.contentGen = gen
	m.viewport.GotoTop()
	m.interactive, _ = frag.(views.Interactive)
	if m.interactive == nil {
		return nil
	}
	return m.interactive.Init()
}

func (m *Model) forward(msg tea.Msg) tea.Cmd {
	if m.interactive == nil {
		return nil
	}
	return m.interactive.Update(msg)
}

func (m *Model) capturing() bool {
	kc, ok := m.interactive.(views.KeyCapturer)
	return ok && kc.CapturesKeys()
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return tea.Quit
	}

	// Overlays swallow the key that dismisses them.
	switch {
	case m.preview != "":
		m.preview = ""
		return nil
	case m.alert != "":
		m.alert = ""
		return nil
	case len(m.dialogs) > 0:
		return nil
	case m.prompting:
		return m.updatePrompt(msg)
	case m.showHelp:
		m.showHelp = false
		return nil
	}

	if m.capturing() {
		if key == "ctrl+g" {
			return m.openPrompt()
		}
		return m.forward(msg)
	}

	switch key {
	case "q":
		return tea.Quit
	case "g", "ctrl+g":
		return m.openPrompt()
	case "?":
		m.showHelp = true
		return nil
	case "h":
		m.nav.Go("/")
		return nil
	case "/":
		m.nav.Go("/search/")
		return nil
	case "c":
		m.nav.Go(session.CreatePath)
		return nil
	case "L":
		m.nav.Go("/logout/")
		return nil
	case "r":
		if cur := m.nav.Current(); cur != "" {
			m.nav.Go(cur)
		}
		return nil
	}

	cmd := m.forward(msg)
	var vcmd tea.Cmd
	m.viewport, vcmd = m.viewport.Update(msg)
	return tea.Batch(cmd, vcmd)
}

func (m *Model) openPrompt() tea.Cmd {
	m.prompting = true
	m.prompt.Reset()
	return m.prompt.Focus()
}

func (m *Model) updatePrompt(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.prompting = false
		m.prompt.Blur()
		return nil
	case "enter":
		path := strings.TrimSpace(m.prompt.Value())
		m.prompting = false
		m.prompt.Blur()
		if path == "" {
			return nil
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		m.nav.Go(path)
		return nil
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return cmd
}

func (m *Model) openPreview(a attach.Attachment) {
	out, err := attach.Preview(a, m.width, m.height-2)
	if err != nil {
		m.alert = "Cannot preview " + a.Name + ": " + err.Error()
		return
	}
	m.preview = m.theme.Header.Render(a.Name) + "\n" + out
}

func (m *Model) refresh() {
	m.viewport.SetContent(compose(m.panes, m.width))
}

// compose joins the panes depth first: body, then content and its slots.
func compose(p *render.Panes, width int) string {
	if p == nil {
		return ""
	}
	var parts []string
	var walk func(selector string)
	walk = func(selector string) {
		if f, _, ok := p.Get(selector); ok && f != nil {
			if v := strings.TrimRight(f.View(), "\n"); v != "" {
				parts = append(parts, v)
			}
		}
		for _, child := range p.Children(selector) {
			walk(child)
		}
	}
	walk(render.Body)
	walk(render.Content)
	return strings.Join(parts, "\n"+RenderDivider(width)+"\n")
}

func (m Model) View() string {
	if m.preview != "" {
		return m.preview + "\n" + m.theme.Footer.Render("press any key to close")
	}

	body := m.viewport.View()
	switch {
	case m.alert != "":
		body = m.center(m.theme.Alert.Render(m.alert + "\n\n" + m.theme.Help.Render("press any key")))
	case len(m.dialogs) > 0:
		d := m.dialogs[len(m.dialogs)-1]
		body = m.center(m.theme.Dialog.Render(m.spinner.View() + " " + d.text))
	case m.showHelp:
		body = m.center(m.theme.Dialog.Render(helpText(m.theme)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.header(), body, m.footer())
}

func (m Model) center(box string) string {
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, box)
}

func (m Model) header() string {
	who := "not signed in"
	if m.user != nil {
		if name := m.user(); name != "" {
			who = name
		}
	}
	path := ""
	if m.nav != nil {
		path = m.nav.Current()
	}
	return m.theme.Header.Render("bugwork") + m.theme.User.Render(who) + m.theme.Footer.Render(path)
}

func (m Model) footer() string {
	switch {
	case m.prompting:
		return m.prompt.View()
	case m.toast != "":
		return m.theme.Toast.Render(m.toast)
	case m.capturing():
		return RenderKeyHints(m.theme, "ctrl+g", "go to", "ctrl+c", "quit")
	}
	return RenderKeyHints(m.theme, "g", "go to", "/", "search", "c", "new bug", "?", "help", "q", "quit")
}

func helpText(t Theme) string {
	rows := [][2]string{
		{"g", "go to a path"},
		{"h", "home"},
		{"/", "search"},
		{"c", "file a new bug"},
		{"L", "sign out"},
		{"r", "reload"},
		{"1 2 3", "bug comments, details, attachments"},
		{"y", "copy bug link"},
		{"ctrl+o", "attach a file (new bug)"},
		{"ctrl+l", "manage attachments (new bug)"},
		{"q", "quit"},
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = t.Prompt.Render(padRight(r[0], 8)) + " " + r[1]
	}
	return strings.Join(lines, "\n")
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
