// Package router maps navigation paths to ordered chains of steps (guards,
// loaders and render steps) and runs them.
//
// A step returns a Result instead of calling a continuation: Next advances,
// Redirect abandons the chain and dispatches another path, Stop ends the
// chain quietly and Fail hands the error to the router's error handler.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/vanderheijden86/bugwork/pkg/bz"
	"github.com/vanderheijden86/bugwork/pkg/debug"
	"github.com/vanderheijden86/bugwork/pkg/metrics"
)

// MaxRedirects bounds how many redirects one navigation may follow.
const MaxRedirects = 8

var (
	// ErrNotFound is reported for paths no route matches.
	ErrNotFound = errors.New("router: no route")
	// ErrRedirectLoop is reported when a navigation keeps redirecting.
	ErrRedirectLoop = errors.New("router: too many redirects")
)

// Context is the per-navigation bundle passed through a chain. Loader steps
// fill Bug; nothing else writes to it after dispatch.
type Context struct {
	Path   string
	Params map[string]string
	Bug    *bz.Bug
	State  any
}

// Param returns a path parameter or "".
func (c *Context) Param(name string) string {
	return c.Params[name]
}

type resultKind int

const (
	kindNext resultKind = iota
	kindRedirect
	kindStop
	kindFail
)

// Result tells the executor what to do after a step.
type Result struct {
	kind   resultKind
	target string
	err    error
}

// Next continues with the following step.
var Next = Result{}

// Stop ends the chain without error.
var Stop = Result{kind: kindStop}

// Redirect abandons the chain and navigates to path.
func Redirect(path string) Result {
	return Result{kind: kindRedirect, target: path}
}

// Fail abandons the chain with an error.
func Fail(err error) Result {
	return Result{kind: kindFail, err: err}
}

// RedirectTarget reports the redirect path, if r is a redirect.
func (r Result) RedirectTarget() (string, bool) {
	return r.target, r.kind == kindRedirect
}

// Err returns the failure carried by r.
func (r Result) Err() error {
	return r.err
}

// Stopped reports whether r ends the chain (anything but Next).
func (r Result) Stopped() bool {
	return r.kind != kindNext
}

func (r Result) String() string {
	switch r.kind {
	case kindRedirect:
		return "redirect " + r.target
	case kindStop:
		return "stop"
	case kindFail:
		return fmt.Sprintf("fail: %v", r.err)
	default:
		return "next"
	}
}

// Step is one link of a route chain.
type Step func(ctx context.Context, nav *Context) Result

// ErrorHandler receives navigation failures; it is where an error view is
// rendered.
type ErrorHandler func(ctx context.Context, nav *Context, err error)

// Router dispatches paths to step chains. Navigations may run concurrently;
// only the current context and return path are shared between them.
type Router struct {
	mux    *mux.Router
	chains map[*mux.Route][]Step

	mu         sync.Mutex
	pre        []Step
	exits      []func(prev *Context)
	onError    ErrorHandler
	current    *Context
	returnPath string
	started    bool
}

// New creates a router whose exit hook records the return path.
func New() *Router {
	r := &Router{
		mux:    mux.NewRouter(),
		chains: make(map[*mux.Route][]Step),
	}
	r.Exit(func(prev *Context) {
		r.mu.Lock()
		r.returnPath = prev.Path
		r.mu.Unlock()
	})
	return r
}

// Handle registers a chain for a gorilla/mux style pattern such as
// "/bug/{id}". Routes are matched in registration order.
func (r *Router) Handle(pattern string, steps ...Step) {
	route := r.mux.Path(pattern).HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	r.mu.Lock()
	r.chains[route] = steps
	r.mu.Unlock()
}

// Use registers a step that runs before every route chain.
func (r *Router) Use(step Step) {
	r.mu.Lock()
	r.pre = append(r.pre, step)
	r.mu.Unlock()
}

// Exit registers a hook run with the previous context before each dispatch.
func (r *Router) Exit(fn func(prev *Context)) {
	r.mu.Lock()
	r.exits = append(r.exits, fn)
	r.mu.Unlock()
}

// OnError sets the handler for failed navigations.
func (r *Router) OnError(h ErrorHandler) {
	r.mu.Lock()
	r.onError = h
	r.mu.Unlock()
}

// ReturnPath is the last path navigated away from.
func (r *Router) ReturnPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.returnPath
}

// Current returns the path of the most recent dispatch.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return ""
	}
	return r.current.Path
}

// Started reports whether the first dispatch has happened.
func (r *Router) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Start performs the first dispatch.
func (r *Router) Start(ctx context.Context, path string) error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return r.Navigate(ctx, path)
}

// Go navigates on a new goroutine. Failures reach the error handler.
func (r *Router) Go(path string) {
	go func() {
		if err := r.Navigate(context.Background(), path); err != nil {
			debug.Log("navigate %s: %v", path, err)
		}
	}()
}

// Navigate dispatches path and follows redirects until a chain completes,
// stops or fails. Failures are passed to the error handler and returned.
func (r *Router) Navigate(ctx context.Context, path string) error {
	defer metrics.Timer(metrics.Navigation)()
	defer debug.Trace("navigate " + path)()

	for hops := 0; ; hops++ {
		if hops > MaxRedirects {
			err := fmt.Errorf("%w: last target %s", ErrRedirectLoop, path)
			r.fail(ctx, &Context{Path: path}, err)
			return err
		}

		nav, res := r.dispatch(ctx, path)
		switch res.kind {
		case kindRedirect:
			debug.Log("redirect %s -> %s", path, res.target)
			path = res.target
		case kindFail:
			r.fail(ctx, nav, res.err)
			return res.err
		default:
			return nil
		}
	}
}

func (r *Router) dispatch(ctx context.Context, rawPath string) (*Context, Result) {
	path := cleanPath(rawPath)
	nav := &Context{Path: path, Params: map[string]string{}}

	r.mu.Lock()
	prev := r.current
	r.current = nav
	exits := append([]func(*Context){}, r.exits...)
	pre := append([]Step{}, r.pre...)
	r.mu.Unlock()

	if prev != nil {
		for _, fn := range exits {
			fn(prev)
		}
	}

	chain, ok := r.match(nav)
	for _, step := range pre {
		if res := step(ctx, nav); res.Stopped() {
			return nav, res
		}
	}
	if !ok {
		return nav, Fail(fmt.Errorf("%w: %s", ErrNotFound, path))
	}
	for _, step := range chain {
		if res := step(ctx, nav); res.Stopped() {
			return nav, res
		}
	}
	return nav, Next
}

func (r *Router) match(nav *Context) ([]Step, bool) {
	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: nav.Path}}
	var m mux.RouteMatch
	if !r.mux.Match(req, &m) || m.Route == nil {
		return nil, false
	}
	for k, v := range m.Vars {
		nav.Params[k] = v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	chain, ok := r.chains[m.Route]
	return chain, ok
}

func (r *Router) fail(ctx context.Context, nav *Context, err error) {
	r.mu.Lock()
	h := r.onError
	r.mu.Unlock()
	if h != nil {
		h(ctx, nav, err)
	}
}

// cleanPath drops query and fragment and guarantees a leading slash.
func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
