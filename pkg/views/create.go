package views

import (
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/vanderheijden86/bugwork/pkg/attach"
	"github.com/vanderheijden86/bugwork/pkg/render"
	"github.com/vanderheijden86/bugwork/pkg/router"
	"github.com/vanderheijden86/bugwork/pkg/share"
	"github.com/vanderheijden86/bugwork/pkg/tpl"
)

// PreviewMsg asks the UI to show an attachment full screen.
type PreviewMsg struct {
	Attachment attach.Attachment
}

// CreateBug is the bug creation view. It owns the pending attachment list,
// which outlives individual renders of the view.
type CreateBug struct {
	d       Deps
	list    *attach.List
	capture *attach.Capturer
	submit  *attach.Submitter
	pending func() (share.Activity, bool)
}

var _ render.View = (*CreateBug)(nil)

// NewCreateBug builds the creation view. pending hands over a buffered
// share activity, if any; it may be nil.
func NewCreateBug(d Deps, pending func() (share.Activity, bool)) *CreateBug {
	list := attach.NewList()
	list.OnChange(d.redraw)
	capture := attach.NewCapturer(list)
	capture.Logger = d.logger()
	return &CreateBug{
		d:       d,
		list:    list,
		capture: capture,
		submit: &attach.Submitter{
			Service:  d.Service,
			Notifier: d.Notifier,
			Navigate: func(path string) { d.Nav.Go(path) },
			Defaults: d.Config.Bug,
			Legacy:   d.Config.Legacy(),
			Logger:   d.logger(),
		},
		pending: pending,
	}
}

// List returns the pending attachments.
func (c *CreateBug) List() *attach.List { return c.list }

// Render starts a fresh form with an empty attachment list, then captures
// the files of a waiting share activity in the background.
func (c *CreateBug) Render(ctx context.Context, _ *router.Context) (render.Fragment, error) {
	component := ""
	if c.d.Config.Legacy() {
		component = c.d.Config.Bug.LegacyComponent
	}
	header, err := c.d.fill(ctx, tpl.CreateBug, struct{ Product, Component string }{c.d.Config.Bug.Product, component})
	if err != nil {
		return nil, err
	}

	c.list.Reset()
	if c.pending != nil {
		if a, ok := c.pending(); ok && a.Name == share.ActivityShare {
			go c.capture.Blobs(context.Background(), a.Blobs, a.Filenames)
		}
	}

	f := &createForm{view: c, header: header}
	f.build()
	return f, nil
}

type createMode int

const (
	modeForm createMode = iota
	modePicker
	modeFiles
)

type createForm struct {
	view   *CreateBug
	header string

	mode   createMode
	form   *huh.Form
	fields attach.Fields
	picker filepicker.Model
	cursor int
	busy   bool
}

type submitDoneMsg struct {
	from *createForm
	id   int
	err  error
}

var _ Interactive = (*createForm)(nil)

func (f *createForm) build() {
	var inputs []huh.Field
	if !f.view.d.Config.Legacy() {
		inputs = append(inputs, huh.NewInput().Title("Component").Value(&f.fields.Component).
			Validate(required("component")))
	}
	inputs = append(inputs,
		huh.NewInput().Title("Summary").Value(&f.fields.Summary).Validate(required("summary")),
		huh.NewText().Title("Description").Lines(6).Value(&f.fields.Description),
	)
	f.form = newForm(f.view.d, huh.NewGroup(inputs...))
}

func (f *createForm) Init() tea.Cmd { return f.form.Init() }

func (f *createForm) Update(msg tea.Msg) tea.Cmd {
	if done, ok := msg.(submitDoneMsg); ok {
		if done.from != f {
			return nil
		}
		f.busy = false
		if done.err != nil {
			f.build()
			return f.form.Init()
		}
		return nil
	}
	if f.busy {
		return nil
	}

	key, isKey := msg.(tea.KeyMsg)
	switch f.mode {
	case modePicker:
		if isKey && key.String() == "esc" {
			f.mode = modeForm
			return nil
		}
		return f.updatePicker(msg)
	case modeFiles:
		if isKey {
			return f.updateFiles(key)
		}
	default:
		if isKey {
			switch key.String() {
			case "ctrl+o":
				return f.openPicker()
			case "ctrl+l":
				if f.view.list.Len() > 0 {
					f.mode = modeFiles
					f.cursor = 0
				}
				return nil
			}
		}
	}
	return f.updateForm(msg)
}

func (f *createForm) updateForm(msg tea.Msg) tea.Cmd {
	if f.form.State != huh.StateNormal {
		return nil
	}
	_, cmd := f.form.Update(msg)
	switch f.form.State {
	case huh.StateCompleted:
		f.busy = true
		fields := f.fields
		return func() tea.Msg {
			id, err := f.view.submit.Submit(context.Background(), f.view.list, fields)
			return submitDoneMsg{from: f, id: id, err: err}
		}
	case huh.StateAborted:
		f.build()
		return f.form.Init()
	}
	return cmd
}

func (f *createForm) openPicker() tea.Cmd {
	f.picker = filepicker.New()
	if dir, err := os.UserHomeDir(); err == nil {
		f.picker.CurrentDirectory = dir
	}
	f.picker.AutoHeight = false
	f.picker.SetHeight(12)
	f.mode = modePicker
	return f.picker.Init()
}

func (f *createForm) updatePicker(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.picker, cmd = f.picker.Update(msg)
	ok, path := f.picker.DidSelectFile(msg)
	if !ok {
		return cmd
	}
	f.mode = modeForm
	capture := f.view.capture
	return tea.Batch(cmd, func() tea.Msg {
		capture.Files(context.Background(), path)
		return nil
	})
}

func (f *createForm) updateFiles(key tea.KeyMsg) tea.Cmd {
	items := f.view.list.Snapshot()
	if len(items) == 0 {
		f.mode = modeForm
		return nil
	}
	if f.cursor >= len(items) {
		f.cursor = len(items) - 1
	}
	switch key.String() {
	case "up", "k":
		if f.cursor > 0 {
			f.cursor--
		}
	case "down", "j":
		if f.cursor < len(items)-1 {
			f.cursor++
		}
	case "d", "x", "delete":
		f.view.list.Delete(items[f.cursor].Name)
		if f.view.list.Len() == 0 {
			f.mode = modeForm
		}
	case "p", "enter":
		a := items[f.cursor]
		if !a.Previewable() {
			return nil
		}
		return func() tea.Msg { return PreviewMsg{Attachment: a} }
	case "esc", "tab":
		f.mode = modeForm
	}
	return nil
}

func (f *createForm) View() string {
	var b strings.Builder
	b.WriteString(f.header)
	b.WriteString("\n")

	switch {
	case f.busy:
		b.WriteString("  " + attach.SubmittingMessage + "\n")
	case f.mode == modePicker:
		b.WriteString(hintStyle.Render("  Pick a file to attach (esc to go back)") + "\n")
		b.WriteString(f.picker.View())
	default:
		b.WriteString(f.form.View())
	}

	items := f.view.list.Snapshot()
	b.WriteString("\n\n")
	if len(items) == 0 {
		b.WriteString(hintStyle.Render("  No attachments. ctrl+o adds a file."))
		return b.String()
	}
	b.WriteString(hintStyle.Render("  Attachments (ctrl+l to manage, d deletes, p previews)") + "\n")
	rows := strings.Split(attach.Rows(items, f.rowWidth()), "\n")
	for i, row := range rows {
		prefix := "  "
		if f.mode == modeFiles && i == f.cursor {
			prefix = "> "
		}
		b.WriteString(prefix + row + "\n")
	}
	return b.String()
}

func (f *createForm) rowWidth() int {
	if w := f.view.d.Width; w > 4 {
		return w - 4
	}
	return 60
}

// Submit files the bug with the given fields and the pending attachments
// without going through the form.
func (c *CreateBug) Submit(ctx context.Context, fields attach.Fields) (int, error) {
	return c.submit.Submit(ctx, c.list, fields)
}

func (f *createForm) CapturesKeys() bool { return true }
