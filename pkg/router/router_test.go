package router

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) step(name string, res Result) Step {
	return func(ctx context.Context, nav *Context) Result {
		r.mu.Lock()
		r.steps = append(r.steps, name)
		r.mu.Unlock()
		return res
	}
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

func TestNavigate_RunsChainInOrder(t *testing.T) {
	rec := &recorder{}
	r := New()
	r.Use(rec.step("pre", Next))
	r.Handle("/bug/{id}", rec.step("load", Next), rec.step("detail", Next), rec.step("comments", Next))

	if err := r.Navigate(context.Background(), "/bug/42"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	want := []string{"pre", "load", "detail", "comments"}
	if got := rec.got(); !reflect.DeepEqual(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
}

func TestNavigate_Params(t *testing.T) {
	r := New()
	var id, term string
	r.Handle("/bug/{id}/details/", func(ctx context.Context, nav *Context) Result {
		id = nav.Param("id")
		return Next
	})
	r.Handle("/search/{term}", func(ctx context.Context, nav *Context) Result {
		term = nav.Param("term")
		return Next
	})

	if err := r.Navigate(context.Background(), "/bug/7/details/"); err != nil {
		t.Fatal(err)
	}
	if err := r.Navigate(context.Background(), "/search/crash?x=1"); err != nil {
		t.Fatal(err)
	}
	if id != "7" {
		t.Errorf("id = %q, want 7", id)
	}
	if term != "crash" {
		t.Errorf("term = %q, want crash", term)
	}
}

func TestNavigate_StepHaltsChain(t *testing.T) {
	rec := &recorder{}
	r := New()
	r.Handle("/logout/", rec.step("logout", Stop), rec.step("never", Next))

	if err := r.Navigate(context.Background(), "/logout/"); err != nil {
		t.Fatal(err)
	}
	if got := rec.got(); !reflect.DeepEqual(got, []string{"logout"}) {
		t.Errorf("steps = %v", got)
	}
}

func TestNavigate_FollowsRedirect(t *testing.T) {
	rec := &recorder{}
	r := New()
	r.Handle("/create/", rec.step("guard", Redirect("/login/")), rec.step("create", Next))
	r.Handle("/login/", rec.step("login", Next))

	if err := r.Navigate(context.Background(), "/create/"); err != nil {
		t.Fatal(err)
	}
	if got := rec.got(); !reflect.DeepEqual(got, []string{"guard", "login"}) {
		t.Errorf("steps = %v", got)
	}
	if r.Current() != "/login/" {
		t.Errorf("current = %q", r.Current())
	}
	if r.ReturnPath() != "/create/" {
		t.Errorf("return path = %q, want /create/", r.ReturnPath())
	}
}

func TestNavigate_RedirectLoop(t *testing.T) {
	r := New()
	r.Handle("/a", func(context.Context, *Context) Result { return Redirect("/b") })
	r.Handle("/b", func(context.Context, *Context) Result { return Redirect("/a") })

	var handled error
	r.OnError(func(ctx context.Context, nav *Context, err error) { handled = err })

	err := r.Navigate(context.Background(), "/a")
	if !errors.Is(err, ErrRedirectLoop) {
		t.Fatalf("expected redirect loop, got %v", err)
	}
	if !errors.Is(handled, ErrRedirectLoop) {
		t.Errorf("error handler got %v", handled)
	}
}

func TestNavigate_FailGoesToErrorHandler(t *testing.T) {
	boom := errors.New("load failed")
	r := New()
	r.Handle("/bug/{id}", func(context.Context, *Context) Result { return Fail(boom) })

	var gotNav *Context
	var gotErr error
	r.OnError(func(ctx context.Context, nav *Context, err error) {
		gotNav, gotErr = nav, err
	})

	if err := r.Navigate(context.Background(), "/bug/9"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if gotErr != boom || gotNav == nil || gotNav.Path != "/bug/9" {
		t.Errorf("handler got nav=%v err=%v", gotNav, gotErr)
	}
}

func TestNavigate_NotFound(t *testing.T) {
	r := New()
	r.Handle("/", func(context.Context, *Context) Result { return Next })

	err := r.Navigate(context.Background(), "/nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReturnPath_RecordsPathLeft(t *testing.T) {
	r := New()
	r.Handle("/", func(context.Context, *Context) Result { return Next })
	r.Handle("/bug/{id}", func(context.Context, *Context) Result { return Next })

	if r.ReturnPath() != "" {
		t.Fatalf("expected empty return path before any navigation")
	}
	_ = r.Navigate(context.Background(), "/")
	if r.ReturnPath() != "" {
		t.Errorf("first navigation should not record a return path, got %q", r.ReturnPath())
	}
	_ = r.Navigate(context.Background(), "/bug/1")
	if r.ReturnPath() != "/" {
		t.Errorf("return path = %q, want /", r.ReturnPath())
	}
	_ = r.Navigate(context.Background(), "/")
	if r.ReturnPath() != "/bug/1" {
		t.Errorf("return path = %q, want /bug/1", r.ReturnPath())
	}
}

func TestStart_MarksStarted(t *testing.T) {
	r := New()
	r.Handle("/", func(context.Context, *Context) Result { return Next })
	if r.Started() {
		t.Fatal("router should not be started yet")
	}
	if err := r.Start(context.Background(), "/"); err != nil {
		t.Fatal(err)
	}
	if !r.Started() {
		t.Error("router should be started")
	}
}

func TestResultString(t *testing.T) {
	cases := map[string]Result{
		"next":              Next,
		"stop":              Stop,
		"redirect /login/":  Redirect("/login/"),
		"fail: bad request": Fail(errors.New("bad request")),
	}
	for want, res := range cases {
		if got := res.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
	if target, ok := Redirect("/x").RedirectTarget(); !ok || target != "/x" {
		t.Errorf("RedirectTarget = %q, %v", target, ok)
	}
}
