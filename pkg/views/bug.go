package views

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/bugwork/pkg/bz"
	"github.com/vanderheijden86/bugwork/pkg/render"
	"github.com/vanderheijden86/bugwork/pkg/router"
	"github.com/vanderheijden86/bugwork/pkg/tpl"
)

// BugDetail renders the loaded bug's header. Its lower half is the
// "#bugContent" pane the panel views render into.
func BugDetail(d Deps) render.View {
	return render.ViewFunc(func(ctx context.Context, nav *router.Context) (render.Fragment, error) {
		bug, err := bugOf(nav)
		if err != nil {
			return nil, err
		}
		out, err := d.fill(ctx, tpl.ViewBug, struct{ Bug *bz.Bug }{bug})
		if err != nil {
			return nil, err
		}
		return &bugFragment{d: d, bug: *bug, text: out}, nil
	})
}

type bugFragment struct {
	d    Deps
	bug  bz.Bug
	text string
}

var _ Interactive = (*bugFragment)(nil)

func (f *bugFragment) View() string    { return f.text }
func (f *bugFragment) Slots() []string { return []string{render.BugContent} }
func (f *bugFragment) Init() tea.Cmd   { return nil }

func (f *bugFragment) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	base := fmt.Sprintf("/bug/%d", f.bug.ID)
	switch key.String() {
	case "1":
		f.d.Nav.Go(base)
	case "2":
		f.d.Nav.Go(base + "/details/")
	case "3":
		f.d.Nav.Go(base + "/attachments/")
	case "y":
		return f.copyLink
	}
	return nil
}

func (f *bugFragment) copyLink() tea.Msg {
	if f.d.BugURL == nil {
		return nil
	}
	link := f.d.BugURL(f.bug.ID)
	if err := f.d.copy(link); err != nil {
		f.d.Notifier.Alert("Could not copy link: " + err.Error())
		return nil
	}
	f.d.Notifier.Toast("Copied " + link)
	return nil
}

// BugComments lists the comments of the loaded bug.
func BugComments(d Deps) render.View {
	return render.ViewFunc(func(ctx context.Context, nav *router.Context) (render.Fragment, error) {
		bug, err := bugOf(nav)
		if err != nil {
			return nil, err
		}
		comments, err := d.Service.Comments(ctx, bug.ID)
		if err != nil {
			return nil, fmt.Errorf("loading comments of bug %d: %w", bug.ID, err)
		}
		return d.text(ctx, tpl.BugComments, struct{ Comments []bz.Comment }{comments})
	})
}

// BugDetails shows the loaded bug's fields.
func BugDetails(d Deps) render.View {
	return render.ViewFunc(func(ctx context.Context, nav *router.Context) (render.Fragment, error) {
		bug, err := bugOf(nav)
		if err != nil {
			return nil, err
		}
		return d.text(ctx, tpl.BugDetails, struct{ Bug *bz.Bug }{bug})
	})
}

// BugAttachments lists the existing attachments of the loaded bug.
func BugAttachments(d Deps) render.View {
	return render.ViewFunc(func(ctx context.Context, nav *router.Context) (render.Fragment, error) {
		bug, err := bugOf(nav)
		if err != nil {
			return nil, err
		}
		list, err := d.Service.Attachments(ctx, bug.ID)
		if err != nil {
			return nil, fmt.Errorf("loading attachments of bug %d: %w", bug.ID, err)
		}
		return d.text(ctx, tpl.BugAttachments, struct{ Attachments []bz.AttachmentInfo }{list})
	})
}
