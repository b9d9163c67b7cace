// Package views turns navigation contexts into fragments. Most views fill a
// template; login, search and bug creation return interactive fragments that
// take keyboard input while they sit in "#content".
package views

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/bugwork/pkg/attach"
	"github.com/vanderheijden86/bugwork/pkg/bz"
	"github.com/vanderheijden86/bugwork/pkg/config"
	"github.com/vanderheijden86/bugwork/pkg/notify"
	"github.com/vanderheijden86/bugwork/pkg/render"
	"github.com/vanderheijden86/bugwork/pkg/router"
	"github.com/vanderheijden86/bugwork/pkg/session"
	"github.com/vanderheijden86/bugwork/pkg/tpl"
	"github.com/vanderheijden86/bugwork/pkg/version"
)

// Interactive fragments receive the messages of the program while they are
// shown. Init runs once when the fragment appears; Update runs on the UI
// goroutine only.
type Interactive interface {
	render.Fragment
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
}

// KeyCapturer is implemented by fragments that take free text input. While
// one is shown the UI leaves every key to it.
type KeyCapturer interface {
	CapturesKeys() bool
}

// Navigator is the part of the router views use.
type Navigator interface {
	Go(path string)
	ReturnPath() string
}

// Deps are the collaborators shared by every view.
type Deps struct {
	Templates *tpl.Reader
	Service   bz.Service
	Session   *session.Controller
	Config    *config.Config
	Nav       Navigator
	Notifier  notify.Notifier
	// Width is the column budget for forms. Zero lets huh decide.
	Width int
	// BugURL links a bug on the web; nil disables copying links.
	BugURL func(id int) string
	// Clipboard defaults to the system clipboard.
	Clipboard func(text string) error
	// Redraw asks the UI to repaint after background changes.
	Redraw func()
	Logger *log.Logger
}

func (d Deps) redraw() {
	if d.Redraw != nil {
		d.Redraw()
	}
}

func (d Deps) copy(text string) error {
	if d.Clipboard != nil {
		return d.Clipboard(text)
	}
	return clipboard.WriteAll(text)
}

func (d Deps) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}

func (d Deps) fill(ctx context.Context, id string, data any) (string, error) {
	doc, err := d.Templates.Read(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.Render(data)
}

func (d Deps) text(ctx context.Context, id string, data any) (render.Fragment, error) {
	out, err := d.fill(ctx, id, data)
	if err != nil {
		return nil, err
	}
	return render.Text(out), nil
}

// Home is the body shell rendered once before the session is known.
func Home(d Deps) render.View {
	return render.ViewFunc(func(ctx context.Context, _ *router.Context) (render.Fragment, error) {
		return d.text(ctx, tpl.Home, struct{ Version, URL string }{version.Version, d.Config.Server.URL})
	})
}

// Dashboard greets the logged-in user.
func Dashboard(d Deps) render.View {
	return render.ViewFunc(func(ctx context.Context, _ *router.Context) (render.Fragment, error) {
		name, _ := d.Session.User()
		return d.text(ctx, tpl.Dashboard, struct{ User string }{name})
	})
}

// ErrorView renders a failed navigation.
func ErrorView(d Deps, nav *router.Context, cause error) render.View {
	return render.ViewFunc(func(ctx context.Context, _ *router.Context) (render.Fragment, error) {
		path := ""
		if nav != nil {
			path = nav.Path
		}
		return d.text(ctx, tpl.Error, struct{ Message, Path string }{ErrorMessage(path, cause), path})
	})
}

// ErrorMessage phrases a navigation failure for the user.
func ErrorMessage(path string, err error) string {
	var svcErr *bz.Error
	switch {
	case errors.Is(err, router.ErrNotFound):
		return fmt.Sprintf("Nothing lives at %s.", path)
	case errors.Is(err, router.ErrRedirectLoop):
		return "The page kept redirecting."
	case errors.As(err, &svcErr) && svcErr.Message != "":
		return svcErr.Message
	case errors.Is(err, bz.ErrUnreachable):
		return attach.UnreachableMessage
	case err != nil:
		return err.Error()
	default:
		return "Unknown error."
	}
}

func bugOf(nav *router.Context) (*bz.Bug, error) {
	if nav == nil || nav.Bug == nil {
		return nil, errors.New("views: no bug loaded")
	}
	return nav.Bug, nil
}
