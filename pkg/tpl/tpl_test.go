package tpl

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/bugwork/pkg/bz"
)

func newReader(t *testing.T) *Reader {
	t.Helper()
	r, err := New(WithStyle("notty"), WithWordWrap(80))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestRead_UnknownTemplate(t *testing.T) {
	r := newReader(t)
	if _, err := r.Read(context.Background(), "nope"); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected ErrUnknownTemplate, got %v", err)
	}
}

func TestRead_CancelledContext(t *testing.T) {
	r := newReader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Read(ctx, Home); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEveryIDHasATemplate(t *testing.T) {
	r := newReader(t)
	have := map[string]bool{}
	for _, id := range r.IDs() {
		have[id] = true
	}
	for _, id := range []string{Home, Dashboard, Login, Search, CreateBug, ViewBug, BugComments, BugDetails, BugAttachments, Error} {
		if !have[id] {
			t.Errorf("missing template %q", id)
		}
	}
}

func TestRead_ReturnsFreshDocs(t *testing.T) {
	r := newReader(t)
	ctx := context.Background()

	a, err := r.Read(ctx, Dashboard)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Read(ctx, Dashboard)
	if err != nil {
		t.Fatal(err)
	}
	if a == b || a.t == b.t {
		t.Fatal("Read must return a new document each call")
	}

	// Redefining a block in one doc must not leak into the next.
	if _, err := a.t.New("extra").Parse("x"); err != nil {
		t.Fatal(err)
	}
	if b.t.Lookup("extra") != nil {
		t.Error("documents share template state")
	}
}

func TestDoc_Markdown(t *testing.T) {
	r := newReader(t)
	doc, err := r.Read(context.Background(), ViewBug)
	if err != nil {
		t.Fatal(err)
	}
	bug := &bz.Bug{ID: 42, Summary: "Crash on boot", Status: "RESOLVED", Resolution: "FIXED", Product: "Firefox OS", Component: "Gaia"}
	src, err := doc.Markdown(struct{ Bug *bz.Bug }{bug})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(src, "# Bug 42: Crash on boot") {
		t.Errorf("unexpected heading in %q", src)
	}
	if !strings.Contains(src, "RESOLVED FIXED in Firefox OS / Gaia") {
		t.Errorf("missing status line in %q", src)
	}
	if strings.Contains(src, "filed") {
		t.Errorf("zero creation time should be omitted: %q", src)
	}
}

func TestDoc_RenderComments(t *testing.T) {
	r := newReader(t)
	doc, err := r.Read(context.Background(), BugComments)
	if err != nil {
		t.Fatal(err)
	}
	out, err := doc.Render(map[string]any{
		"Comments": []bz.Comment{{Creator: "a@b.com", Text: "first line\nsecond line", CreationTime: time.Now().Add(-time.Hour)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Comments", "a@b.com", "first line", "second line", "hour ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output missing %q:\n%s", want, out)
		}
	}
}

func TestDoc_RenderEmptyLists(t *testing.T) {
	r := newReader(t)
	ctx := context.Background()
	cases := []struct {
		id   string
		data any
		want string
	}{
		{BugComments, map[string]any{"Comments": nil}, "No comments."},
		{BugAttachments, map[string]any{"Attachments": nil}, "No attachments."},
		{Search, map[string]any{"Term": "", "Bugs": nil}, "Type a query"},
		{Search, map[string]any{"Term": "zzz", "Bugs": nil}, "No bugs found."},
	}
	for _, tc := range cases {
		doc, err := r.Read(ctx, tc.id)
		if err != nil {
			t.Fatal(err)
		}
		out, err := doc.Render(tc.data)
		if err != nil {
			t.Fatalf("%s: %v", tc.id, err)
		}
		if !strings.Contains(out, tc.want) {
			t.Errorf("%s: expected %q in:\n%s", tc.id, tc.want, out)
		}
	}
}

func TestFuncs(t *testing.T) {
	quote := funcs["quote"].(func(string) string)
	if got := quote("a\nb\n"); got != "> a\n> b" {
		t.Errorf("quote = %q", got)
	}
	size := funcs["bytes"].(func(int64) string)
	if got := size(-5); got != "0 B" {
		t.Errorf("bytes(-5) = %q", got)
	}
	if got := size(1500); got != "1.5 kB" {
		t.Errorf("bytes(1500) = %q", got)
	}
}
