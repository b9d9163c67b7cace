package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/vanderheijden86/bugwork/pkg/notify"
	"github.com/vanderheijden86/bugwork/pkg/session"
)

type redrawMsg struct{}

type dialogMsg struct {
	id   string
	text string
	open bool
}

type toastMsg struct{ text string }

type alertMsg struct{ text string }

// Bridge carries work finished on other goroutines into the program:
// pane changes become redraws, notifications become overlay messages.
// Messages sent before Attach are held and delivered on attach.
//
// Posting never blocks, so Update may post. One pump goroutine sends in
// post order.
type Bridge struct {
	mu      sync.Mutex
	send    func(tea.Msg)
	pending []tea.Msg
	wake    chan struct{}

	sessionReady bool
}

var _ notify.Notifier = (*Bridge)(nil)

// NewBridge returns an unattached bridge.
func NewBridge() *Bridge {
	return &Bridge{wake: make(chan struct{}, 1)}
}

// Attach starts delivering to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.AttachFunc(p.Send)
}

// AttachFunc starts delivering through send. Held messages go first.
func (b *Bridge) AttachFunc(send func(tea.Msg)) {
	b.mu.Lock()
	first := b.send == nil
	b.send = send
	b.mu.Unlock()
	if first {
		go b.pump()
	}
	b.signal()
}

func (b *Bridge) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) pump() {
	for range b.wake {
		for {
			b.mu.Lock()
			if len(b.pending) == 0 {
				b.mu.Unlock()
				break
			}
			msg := b.pending[0]
			b.pending = b.pending[1:]
			send := b.send
			b.mu.Unlock()
			send(msg)
		}
	}
}

func (b *Bridge) post(msg tea.Msg) {
	b.mu.Lock()
	b.pending = append(b.pending, msg)
	attached := b.send != nil
	b.mu.Unlock()
	if attached {
		b.signal()
	}
}

// Redraw asks the program to repaint.
func (b *Bridge) Redraw() {
	b.post(redrawMsg{})
}

type bridgeDialog struct {
	b    *Bridge
	id   string
	once sync.Once
}

func (d *bridgeDialog) Close() {
	d.once.Do(func() {
		d.b.post(dialogMsg{id: d.id})
	})
}

// Dialog shows a blocking progress dialog until the returned handle is
// closed.
func (b *Bridge) Dialog(text string) notify.Dialog {
	id := uuid.NewString()
	b.post(dialogMsg{id: id, text: text, open: true})
	return &bridgeDialog{b: b, id: id}
}

// Toast shows a short-lived message in the footer.
func (b *Bridge) Toast(text string) {
	b.post(toastMsg{text: text})
}

// Alert shows a message box that stays until a key is pressed.
func (b *Bridge) Alert(text string) {
	b.post(alertMsg{text: text})
}

// SessionEvent turns session events into footer notices. Events up to and
// including init only restore the stored session and stay quiet.
func (b *Bridge) SessionEvent(e session.Event) {
	b.mu.Lock()
	ready := b.sessionReady
	if e.Kind == session.EventInit {
		b.sessionReady = true
	}
	b.mu.Unlock()
	if !ready {
		return
	}
	switch e.Kind {
	case session.EventLogin:
		b.Toast("Signed in as " + e.Name)
	case session.EventLogout:
		b.Toast("Signed out")
	}
}
