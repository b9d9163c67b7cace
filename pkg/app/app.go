// Package app wires the session controller, router, render scheduler and
// views into the bugwork client: it owns the route table, reacts to session
// transitions and buffers share activities until the first dispatch.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/vanderheijden86/bugwork/pkg/bz"
	"github.com/vanderheijden86/bugwork/pkg/config"
	"github.com/vanderheijden86/bugwork/pkg/debug"
	"github.com/vanderheijden86/bugwork/pkg/metrics"
	"github.com/vanderheijden86/bugwork/pkg/notify"
	"github.com/vanderheijden86/bugwork/pkg/render"
	"github.com/vanderheijden86/bugwork/pkg/router"
	"github.com/vanderheijden86/bugwork/pkg/session"
	"github.com/vanderheijden86/bugwork/pkg/share"
	"github.com/vanderheijden86/bugwork/pkg/store"
	"github.com/vanderheijden86/bugwork/pkg/tpl"
	"github.com/vanderheijden86/bugwork/pkg/views"
)

// Well-known paths.
const (
	RootPath   = "/"
	LoginPath  = "/login/"
	LogoutPath = "/logout/"
)

// ErrBugMissing is reported when the service answers a bug lookup with no bug.
var ErrBugMissing = errors.New("app: service returned no bug")

// Options configure an App. Config, Service and Store are required.
type Options struct {
	Config    *config.Config
	Service   bz.Service
	Store     store.Store
	Host      render.Host
	Notifier  notify.Notifier
	Templates *tpl.Reader
	Logger    *log.Logger
	// BugURL links a bug on the web, for the copy-link key.
	BugURL    func(id int) string
	Clipboard func(text string) error
	Redraw    func()
	Width     int
}

// App is one running client.
type App struct {
	cfg     *config.Config
	svc     bz.Service
	session *session.Controller
	router  *router.Router
	sched   *render.Scheduler
	deps    views.Deps
	create  *views.CreateBug

	mu      sync.Mutex
	last    string
	started bool
	pending *share.Activity
}

// New builds an App and its route table.
func New(opts Options) (*App, error) {
	if opts.Config == nil || opts.Service == nil || opts.Store == nil {
		return nil, errors.New("app: config, service and store are required")
	}
	if opts.Host == nil {
		opts.Host = render.NewPanes()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	if opts.Templates == nil {
		reader, err := tpl.New(tpl.WithStyle(opts.Config.UI.MarkdownStyle), tpl.WithWordWrap(opts.Config.UI.WordWrap))
		if err != nil {
			return nil, fmt.Errorf("app: loading templates: %w", err)
		}
		opts.Templates = reader
	}

	a := &App{
		cfg:     opts.Config,
		svc:     opts.Service,
		session: session.NewController(opts.Service, opts.Store, opts.Config.Legacy()),
		router:  router.New(),
		sched:   render.NewScheduler(opts.Host),
	}
	a.deps = views.Deps{
		Templates: opts.Templates,
		Service:   opts.Service,
		Session:   a.session,
		Config:    opts.Config,
		Nav:       a.router,
		Notifier:  opts.Notifier,
		Width:     opts.Width,
		BugURL:    opts.BugURL,
		Clipboard: opts.Clipboard,
		Redraw:    opts.Redraw,
		Logger:    opts.Logger,
	}
	a.create = views.NewCreateBug(a.deps, a.takeShare)
	a.routes()
	return a, nil
}

func (a *App) routes() {
	r, s := a.router, a.sched
	detail := s.Step(render.Content, views.BugDetail(a.deps))

	r.Use(a.remember)
	r.OnError(a.showError)

	r.Handle("/", a.guard, a.root)
	r.Handle(LoginPath, a.loginRoute)
	r.Handle(LogoutPath, a.logoutRoute)
	r.Handle("/bug/{id:[0-9]+}", a.loadBug, detail,
		s.Step(render.BugContent, views.BugComments(a.deps)))
	r.Handle("/bug/{id:[0-9]+}/details/", a.loadBug, detail,
		s.Step(render.BugContent, views.BugDetails(a.deps)))
	r.Handle("/bug/{id:[0-9]+}/attachments/", a.loadBug, detail,
		s.Step(render.BugContent, views.BugAttachments(a.deps)))
	r.Handle(session.CreatePath, a.guard, s.Step(render.Content, a.create))
	r.Handle("/search/", s.Step(render.Content, views.Search(a.deps)))
	r.Handle("/search/{term}", s.Step(render.Content, views.Search(a.deps)))
}

// remember hands the previous navigation's path to the new context.
func (a *App) remember(_ context.Context, nav *router.Context) router.Result {
	a.mu.Lock()
	if a.last != "" {
		nav.State = a.last
	}
	a.last = nav.Path
	a.mu.Unlock()
	return router.Next
}

// guard sends legacy-mode visitors without a session to the login view.
func (a *App) guard(_ context.Context, _ *router.Context) router.Result {
	if _, ok := a.session.User(); a.cfg.Legacy() && !ok {
		return router.Redirect(LoginPath)
	}
	return router.Next
}

func (a *App) root(ctx context.Context, nav *router.Context) router.Result {
	if a.cfg.Legacy() {
		return router.Redirect(session.CreatePath)
	}
	if _, ok := a.session.User(); ok {
		return a.sched.Step(render.Content, views.Dashboard(a.deps))(ctx, nav)
	}
	return a.sched.Step(render.Content, views.Login(a.deps, a.Login))(ctx, nav)
}

func (a *App) loginRoute(ctx context.Context, nav *router.Context) router.Result {
	if _, ok := a.session.User(); ok {
		if a.cfg.Legacy() {
			return router.Redirect(session.CreatePath)
		}
		return router.Redirect(RootPath)
	}
	return a.sched.Step(render.Content, views.Login(a.deps, a.Login))(ctx, nav)
}

func (a *App) logoutRoute(ctx context.Context, _ *router.Context) router.Result {
	tr := a.session.Logout(ctx)
	return router.Redirect(tr.Redirect)
}

func (a *App) loadBug(ctx context.Context, nav *router.Context) router.Result {
	defer metrics.Timer(metrics.BugLoad)()
	id := nav.Param("id")
	list, err := a.svc.GetBug(ctx, id)
	if err != nil {
		metrics.BugLoad.Fail()
		return router.Fail(fmt.Errorf("loading bug %s: %w", id, err))
	}
	if len(list.Bugs) == 0 {
		metrics.BugLoad.Fail()
		return router.Fail(fmt.Errorf("loading bug %s: %w", id, ErrBugMissing))
	}
	nav.Bug = &list.Bugs[0]
	return router.Next
}

func (a *App) showError(ctx context.Context, nav *router.Context, err error) {
	debug.Log("navigation failed: %v", err)
	a.sched.Submit(ctx, render.Content, func(ctx context.Context) (render.Fragment, error) {
		return views.ErrorView(a.deps, nav, err).Render(ctx, nav)
	})
}

// Start renders the body shell, settles the session and then performs the
// first dispatch to path. A share activity that arrived in the meantime is
// opened right after.
func (a *App) Start(ctx context.Context, path string) error {
	a.sched.Submit(ctx, render.Body, func(ctx context.Context) (render.Fragment, error) {
		return views.Home(a.deps).Render(ctx, nil)
	})

	tr := a.session.Init(ctx)
	debug.Log("session init: %s -> %s (%v)", tr.From, tr.To, tr.Reason)

	if path == "" {
		path = RootPath
	}
	err := a.router.Start(ctx, path)

	a.mu.Lock()
	a.started = true
	queued := a.pending != nil
	a.mu.Unlock()
	if queued {
		a.router.Go(session.CreatePath)
	}
	return err
}

// Share accepts an external share activity. Before the first dispatch it is
// only buffered; afterwards it also opens the creation view. Activities with
// other names are ignored.
func (a *App) Share(act share.Activity) {
	if act.Name != share.ActivityShare {
		debug.Log("ignoring %q activity", act.Name)
		return
	}
	a.mu.Lock()
	a.pending = &act
	started := a.started
	a.mu.Unlock()
	if started {
		a.router.Go(session.CreatePath)
	}
}

func (a *App) takeShare() (share.Activity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return share.Activity{}, false
	}
	act := *a.pending
	a.pending = nil
	return act, true
}

// Login signs in and moves on: legacy mode goes to the creation view,
// otherwise back to where the user came from.
func (a *App) Login(ctx context.Context, email, password string) error {
	tr, _, err := a.session.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.follow(tr)
	return nil
}

// Logout signs out and returns to the root path.
func (a *App) Logout(ctx context.Context) {
	a.follow(a.session.Logout(ctx))
}

func (a *App) follow(tr session.Transition) {
	switch {
	case tr.Redirect != "":
		a.router.Go(tr.Redirect)
	case tr.Has(session.EventLogin):
		a.router.Go(a.returnTarget())
	}
}

// returnTarget is the path to show after a login. The login and logout
// paths themselves are never returned to.
func (a *App) returnTarget() string {
	switch ret := a.router.ReturnPath(); ret {
	case "", LoginPath, LogoutPath:
		return RootPath
	default:
		return ret
	}
}

// Go navigates asynchronously.
func (a *App) Go(path string) { a.router.Go(path) }

// Navigate navigates and waits for the route chain to finish.
func (a *App) Navigate(ctx context.Context, path string) error {
	return a.router.Navigate(ctx, path)
}

// Idle waits for every queued render.
func (a *App) Idle() { a.sched.Idle() }

// Session returns the session controller.
func (a *App) Session() *session.Controller { return a.session }

// Router returns the router.
func (a *App) Router() *router.Router { return a.router }

// CreateView returns the bug creation view and its attachment list.
func (a *App) CreateView() *views.CreateBug { return a.create }

// Templates returns the template reader the views use.
func (a *App) Templates() *tpl.Reader { return a.deps.Templates }
