// Package notify defines how the core reports progress and problems to the
// user. The terminal UI implements Notifier; tests use a recorder.
package notify

// Dialog is a blocking indicator that stays up until closed.
type Dialog interface {
	Close()
}

// Notifier shows dialogs, transient toasts and alerts.
type Notifier interface {
	Dialog(message string) Dialog
	Toast(message string)
	Alert(message string)
}

// Discard is a Notifier that shows nothing.
type Discard struct{}

type nopDialog struct{}

func (nopDialog) Close() {}

// Dialog implements Notifier.
func (Discard) Dialog(string) Dialog { return nopDialog{} }

// Toast implements Notifier.
func (Discard) Toast(string) {}

// Alert implements Notifier.
func (Discard) Alert(string) {}
