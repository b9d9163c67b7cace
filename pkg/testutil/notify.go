package testutil

import (
	"sync"

	"github.com/vanderheijden86/bugwork/pkg/notify"
)

// Notifier records every notification as "dialog:", "close:", "toast:" or
// "alert:" followed by the message.
type Notifier struct {
	mu     sync.Mutex
	events []string
}

var _ notify.Notifier = (*Notifier)(nil)

type recordedDialog struct {
	n   *Notifier
	msg string
}

func (d recordedDialog) Close() { d.n.add("close:" + d.msg) }

func (n *Notifier) add(e string) {
	n.mu.Lock()
	n.events = append(n.events, e)
	n.mu.Unlock()
}

// Dialog implements notify.Notifier.
func (n *Notifier) Dialog(msg string) notify.Dialog {
	n.add("dialog:" + msg)
	return recordedDialog{n: n, msg: msg}
}

// Toast implements notify.Notifier.
func (n *Notifier) Toast(msg string) { n.add("toast:" + msg) }

// Alert implements notify.Notifier.
func (n *Notifier) Alert(msg string) { n.add("alert:" + msg) }

// Events returns the recorded notifications.
func (n *Notifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}
