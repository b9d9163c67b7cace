package views

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/vanderheijden86/bugwork/pkg/attach"
	"github.com/vanderheijden86/bugwork/pkg/bz"
	"github.com/vanderheijden86/bugwork/pkg/render"
	"github.com/vanderheijden86/bugwork/pkg/router"
	"github.com/vanderheijden86/bugwork/pkg/tpl"
)

// LoginFunc performs a login. Whatever navigation follows a success is the
// caller's business.
type LoginFunc func(ctx context.Context, email, password string) error

// Login renders the sign-in form.
func Login(d Deps, login LoginFunc) render.View {
	return render.ViewFunc(func(ctx context.Context, _ *router.Context) (render.Fragment, error) {
		header, err := d.fill(ctx, tpl.Login, struct{ Service, Return string }{d.Config.Server.URL, d.Nav.ReturnPath()})
		if err != nil {
			return nil, err
		}
		f := &loginForm{d: d, login: login, header: header}
		f.build()
		return f, nil
	})
}

type loginForm struct {
	d      Deps
	login  LoginFunc
	header string

	form     *huh.Form
	email    string
	password string
	busy     bool
	problem  string
}

type loginDoneMsg struct {
	from *loginForm
	err  error
}

var _ Interactive = (*loginForm)(nil)

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(what + " is required")
		}
		return nil
	}
}

func (f *loginForm) build() {
	f.password = ""
	f.form = newForm(f.d,
		huh.NewGroup(
			huh.NewInput().Title("Email").Value(&f.email).Validate(required("email")),
			huh.NewInput().Title("Password").Value(&f.password).
				EchoMode(huh.EchoModePassword).Validate(required("password")),
		),
	)
}

func (f *loginForm) Init() tea.Cmd { return f.form.Init() }

func (f *loginForm) Update(msg tea.Msg) tea.Cmd {
	if done, ok := msg.(loginDoneMsg); ok {
		if done.from != f {
			return nil
		}
		f.busy = false
		if done.err == nil {
			f.problem = ""
			return nil
		}
		f.problem = loginProblem(done.err)
		f.build()
		return f.form.Init()
	}
	if f.busy || f.form.State != huh.StateNormal {
		return nil
	}

	_, cmd := f.form.Update(msg)
	switch f.form.State {
	case huh.StateNormal:
		return cmd
	case huh.StateAborted:
		f.build()
		return f.form.Init()
	}
	f.busy = true
	email, password := strings.TrimSpace(f.email), f.password
	return func() tea.Msg {
		return loginDoneMsg{from: f, err: f.login(context.Background(), email, password)}
	}
}

func loginProblem(err error) string {
	var svcErr *bz.Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return attach.UnreachableMessage
}

func (f *loginForm) View() string {
	var b strings.Builder
	b.WriteString(f.header)
	if f.problem != "" {
		b.WriteString("\n  " + errorStyle.Render(f.problem) + "\n")
	}
	if f.busy {
		b.WriteString("\n  Signing in ...\n")
		return b.String()
	}
	b.WriteString("\n" + f.form.View())
	return b.String()
}

func (f *loginForm) CapturesKeys() bool { return true }
