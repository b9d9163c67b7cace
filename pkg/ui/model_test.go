package ui

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/bugwork/pkg/attach"
	"github.com/vanderheijden86/bugwork/pkg/config"
	"github.com/vanderheijden86/bugwork/pkg/render"
	"github.com/vanderheijden86/bugwork/pkg/router"
	"github.com/vanderheijden86/bugwork/pkg/session"
	"github.com/vanderheijden86/bugwork/pkg/store"
	"github.com/vanderheijden86/bugwork/pkg/testutil"
	"github.com/vanderheijden86/bugwork/pkg/tpl"
	"github.com/vanderheijden86/bugwork/pkg/views"
)

type fakeNav struct {
	mu      sync.Mutex
	paths   []string
	current string
}

func (n *fakeNav) Go(path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

func (n *fakeNav) Current() string { return n.current }

func (n *fakeNav) ReturnPath() string { return "" }

func (n *fakeNav) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

// fakeForm is an interactive fragment that records what reaches it.
type fakeForm struct {
	text     string
	captures bool
	inits    int
	keys     []string
}

var (
	_ views.Interactive = (*fakeForm)(nil)
	_ views.KeyCapturer = (*fakeForm)(nil)
)

func (f *fakeForm) View() string       { return f.text }
func (f *fakeForm) Init() tea.Cmd      { f.inits++; return nil }
func (f *fakeForm) CapturesKeys() bool { return f.captures }

func (f *fakeForm) Update(msg tea.Msg) tea.Cmd {
	if k, ok := msg.(tea.KeyMsg); ok {
		f.keys = append(f.keys, k.String())
	}
	return nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+g":
		return tea.KeyMsg{Type: tea.KeyCtrlG}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func newTestModel() (Model, *render.Panes, *fakeNav) {
	panes := render.NewPanes()
	nav := &fakeNav{current: "/"}
	return NewModel(panes, nav, func() string { return "a@b.com" }), panes, nav
}

type slotted struct{ render.Text }

func (slotted) Slots() []string { return []string{render.BugContent} }

func TestCompose_PaneOrder(t *testing.T) {
	panes := render.NewPanes()
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(panes.Swap(render.Body, render.Text("BODY")))
	must(panes.Swap(render.Content, slotted{render.Text("DETAIL")}))
	must(panes.Swap(render.BugContent, render.Text("COMMENTS")))

	out := compose(panes, 10)
	b, d, c := strings.Index(out, "BODY"), strings.Index(out, "DETAIL"), strings.Index(out, "COMMENTS")
	if b < 0 || d < b || c < d {
		t.Fatalf("unexpected order in:\n%s", out)
	}

	must(panes.Swap(render.Content, render.Text("LOGIN")))
	if out := compose(panes, 10); strings.Contains(out, "COMMENTS") {
		t.Fatalf("stale slot still shown:\n%s", out)
	}
}

func TestGlobalKeysNavigate(t *testing.T) {
	m, panes, nav := newTestModel()
	if err := panes.Swap(render.Content, render.Text("dashboard")); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"c", "/", "h", "L"} {
		m = step(t, m, key(k))
	}
	want := []string{"/create/", "/search/", "/", "/logout/"}
	if got := nav.Paths(); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("paths = %v, want %v", got, want)
	}
	if !strings.Contains(m.View(), "dashboard") {
		t.Errorf("content not shown:\n%s", m.View())
	}
	if !strings.Contains(m.View(), "a@b.com") {
		t.Errorf("user not shown in header")
	}
}

func TestInteractiveFragments(t *testing.T) {
	m, panes, nav := newTestModel()
	form := &fakeForm{text: "login form", captures: true}
	if err := panes.Swap(render.Content, form); err != nil {
		t.Fatal(err)
	}

	m = step(t, m, redrawMsg{})
	m = step(t, m, redrawMsg{})
	if form.inits != 1 {
		t.Fatalf("Init ran %d times, want 1", form.inits)
	}

	m = step(t, m, key("c"))
	m = step(t, m, key("q"))
	if len(nav.Paths()) != 0 {
		t.Fatalf("capturing form let keys through: %v", nav.Paths())
	}
	if strings.Join(form.keys, "") != "cq" {
		t.Fatalf("form keys = %v", form.keys)
	}

	bug := &fakeForm{text: "bug 42"}
	if err := panes.Swap(render.Content, bug); err != nil {
		t.Fatal(err)
	}
	m = step(t, m, key("2"))
	m = step(t, m, key("c"))
	if strings.Join(bug.keys, "") != "2" {
		t.Errorf("bug keys = %v", bug.keys)
	}
	if p := nav.Paths(); len(p) != 1 || p[0] != "/create/" {
		t.Errorf("paths = %v", p)
	}
	if bug.inits != 1 {
		t.Errorf("bug Init ran %d times", bug.inits)
	}
}

func TestQuitKeys(t *testing.T) {
	m, panes, _ := newTestModel()
	if err := panes.Swap(render.Content, &fakeForm{captures: true}); err != nil {
		t.Fatal(err)
	}
	_, cmd := m.Update(key("ctrl+c"))
	if !isQuit(cmd) {
		t.Fatal("ctrl+c must quit")
	}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	msg := cmd()
	if _, ok := msg.(tea.QuitMsg); ok {
		return true
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if isQuit(c) {
				return true
			}
		}
	}
	return false
}

func TestGotoPrompt(t *testing.T) {
	m, _, nav := newTestModel()
	m = step(t, m, key("g"))
	if !m.prompting {
		t.Fatal("prompt not open")
	}
	for _, r := range "bug/7" {
		m = step(t, m, key(string(r)))
	}
	m = step(t, m, key("enter"))
	if m.prompting {
		t.Error("prompt still open")
	}
	if p := nav.Paths(); len(p) != 1 || p[0] != "/bug/7" {
		t.Fatalf("paths = %v", p)
	}

	m = step(t, m, key("g"))
	m = step(t, m, key("x"))
	m = step(t, m, key("esc"))
	if m.prompting || len(nav.Paths()) != 1 {
		t.Fatal("esc should cancel the prompt")
	}
}

func TestDialogsAndToasts(t *testing.T) {
	m, panes, nav := newTestModel()
	if err := panes.Swap(render.Content, render.Text("form")); err != nil {
		t.Fatal(err)
	}

	m = step(t, m, dialogMsg{id: "d1", text: "Submitting Bug ...", open: true})
	if !strings.Contains(m.View(), "Submitting Bug ...") {
		t.Fatal("dialog not shown")
	}
	m = step(t, m, key("c"))
	if len(nav.Paths()) != 0 {
		t.Fatal("keys must not pass a blocking dialog")
	}
	m = step(t, m, dialogMsg{id: "d1"})
	if strings.Contains(m.View(), "Submitting Bug ...") {
		t.Fatal("dialog not closed")
	}

	m = step(t, m, toastMsg{text: "Bug Submitted"})
	if !strings.Contains(m.View(), "Bug Submitted") {
		t.Fatal("toast not shown")
	}
	m = step(t, m, toastMsg{text: "Copied"})
	m = step(t, m, toastExpiredMsg{seq: 1})
	if !strings.Contains(m.View(), "Copied") {
		t.Fatal("an older toast's timer cleared the newer toast")
	}
	m = step(t, m, toastExpiredMsg{seq: 2})
	if strings.Contains(m.View(), "Copied") {
		t.Fatal("toast not cleared")
	}
}

func TestAlertDismissedByAnyKey(t *testing.T) {
	m, panes, nav := newTestModel()
	if err := panes.Swap(render.Content, render.Text("form")); err != nil {
		t.Fatal(err)
	}
	m = step(t, m, alertMsg{text: "There was an unknown error"})
	if !strings.Contains(m.View(), "There was an unknown error") {
		t.Fatal("alert not shown")
	}
	m = step(t, m, key("c"))
	if m.alert != "" {
		t.Fatal("alert not dismissed")
	}
	if len(nav.Paths()) != 0 {
		t.Fatal("dismissing key leaked through")
	}
}

func TestPreviewOverlay(t *testing.T) {
	m, _, _ := newTestModel()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	a := attach.Attachment{
		Name:     "shot.png",
		MimeType: "image/png",
		Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
	}

	m = step(t, m, views.PreviewMsg{Attachment: a})
	if m.preview == "" || !strings.Contains(m.View(), "shot.png") {
		t.Fatalf("preview not shown (alert %q)", m.alert)
	}
	m = step(t, m, key("z"))
	if m.preview != "" {
		t.Fatal("preview not dismissed")
	}

	m = step(t, m, views.PreviewMsg{Attachment: attach.Attachment{Name: "bad.png", MimeType: "image/png", Data: "AAAA"}})
	if m.preview != "" || !strings.Contains(m.alert, "bad.png") {
		t.Fatalf("broken image should alert, got preview=%q alert=%q", m.preview, m.alert)
	}
}

func TestBridge_HoldsUntilAttached(t *testing.T) {
	b := NewBridge()
	d := b.Dialog("Submitting Bug ...")
	b.Toast("hi")
	d.Close()
	d.Close()
	b.Redraw()

	msgs := make(chan tea.Msg, 16)
	b.AttachFunc(func(msg tea.Msg) { msgs <- msg })
	b.Alert("boom")

	var got []tea.Msg
	timeout := time.After(2 * time.Second)
	for len(got) < 5 {
		select {
		case msg := <-msgs:
			got = append(got, msg)
		case <-timeout:
			t.Fatalf("got %d messages: %#v", len(got), got)
		}
	}
	select {
	case extra := <-msgs:
		t.Fatalf("unexpected extra message %#v", extra)
	case <-time.After(20 * time.Millisecond):
	}

	open, ok := got[0].(dialogMsg)
	if !ok || !open.open || open.id == "" {
		t.Fatalf("first message %#v", got[0])
	}
	if _, ok := got[1].(toastMsg); !ok {
		t.Fatalf("toast message %#v", got[1])
	}
	if closed, ok := got[2].(dialogMsg); !ok || closed.open || closed.id != open.id {
		t.Fatalf("close message %#v", got[2])
	}
	if _, ok := got[3].(redrawMsg); !ok {
		t.Fatalf("redraw message %#v", got[3])
	}
	if a, ok := got[4].(alertMsg); !ok || a.text != "boom" {
		t.Fatalf("alert message %#v", got[4])
	}
}

func TestBridge_PostDoesNotBlockOnSend(t *testing.T) {
	b := NewBridge()
	release := make(chan struct{})
	var delivered sync.WaitGroup
	delivered.Add(3)
	b.AttachFunc(func(tea.Msg) {
		<-release
		delivered.Done()
	})

	posted := make(chan struct{})
	go func() {
		b.Redraw()
		b.Toast("a")
		b.Alert("b")
		close(posted)
	}()
	select {
	case <-posted:
	case <-time.After(2 * time.Second):
		t.Fatal("posting waited for the receiver")
	}
	close(release)
	delivered.Wait()
}

func TestBridge_SessionNotices(t *testing.T) {
	b := NewBridge()
	msgs := make(chan tea.Msg, 16)
	b.AttachFunc(func(msg tea.Msg) { msgs <- msg })

	svc := testutil.NewFakeService()
	c := session.NewController(svc, store.NewMem(), false)
	c.Observe(b.SessionEvent)
	ctx := context.Background()

	c.Init(ctx)
	if _, _, err := c.Login(ctx, "a@b.com", "pw"); err != nil {
		t.Fatal(err)
	}
	c.Logout(ctx)

	var toasts []string
	timeout := time.After(2 * time.Second)
	for len(toasts) < 2 {
		select {
		case msg := <-msgs:
			if tm, ok := msg.(toastMsg); ok {
				toasts = append(toasts, tm.text)
			}
		case <-timeout:
			t.Fatalf("toasts so far: %v", toasts)
		}
	}
	testutil.AssertStrings(t, "toasts", toasts, []string{"Signed in as a@b.com", "Signed out"})
}

type pingMsg struct{}

// A key that changes the attachment list redraws through the bridge from
// inside Update; the event loop must keep running.
func TestProgram_DeleteAttachmentKeepsLoopRunning(t *testing.T) {
	reader, err := tpl.New(tpl.WithStyle("notty"), tpl.WithWordWrap(80))
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	svc := testutil.NewFakeService()
	panes := render.NewPanes()
	bridge := NewBridge()
	nav := &fakeNav{current: "/create/"}

	create := views.NewCreateBug(views.Deps{
		Templates: reader,
		Service:   svc,
		Session:   session.NewController(svc, store.NewMem(), false),
		Config:    &cfg,
		Nav:       nav,
		Notifier:  bridge,
		Redraw:    bridge.Redraw,
		Logger:    log.New(io.Discard, "", 0),
	}, nil)
	frag, err := create.Render(context.Background(), &router.Context{Path: "/create/", Params: map[string]string{}})
	if err != nil {
		t.Fatal(err)
	}
	create.List().Add(attach.Attachment{Name: "log.txt", MimeType: "text/plain", Data: "aGVsbG8="})
	if err := panes.Swap(render.Content, frag); err != nil {
		t.Fatal(err)
	}

	var once sync.Once
	alive := make(chan struct{})
	p := tea.NewProgram(NewModel(panes, nav, nil),
		tea.WithInput(nil),
		tea.WithoutRenderer(),
		tea.WithFilter(func(_ tea.Model, msg tea.Msg) tea.Msg {
			if _, ok := msg.(pingMsg); ok {
				once.Do(func() { close(alive) })
			}
			return msg
		}),
	)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_, _ = p.Run()
	}()
	bridge.Attach(p)

	go func() {
		p.Send(tea.KeyMsg{Type: tea.KeyCtrlL})
		p.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
		p.Send(pingMsg{})
	}()

	select {
	case <-alive:
	case <-time.After(3 * time.Second):
		p.Kill()
		t.Fatalf("event loop stuck after deleting an attachment (list len=%d)", create.List().Len())
	}
	if n := create.List().Len(); n != 0 {
		t.Errorf("list len = %d, want 0", n)
	}

	p.Quit()
	select {
	case <-runDone:
	case <-time.After(3 * time.Second):
		p.Kill()
		t.Fatal("program did not quit")
	}
}
