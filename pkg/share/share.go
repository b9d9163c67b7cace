// Package share delivers share activities: files handed to bugwork from
// outside, either dropped into an inbox directory or named on the command
// line. Each activity becomes the attachments of a new bug.
package share

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/bugwork/pkg/attach"
	"github.com/vanderheijden86/bugwork/pkg/debug"
	"github.com/vanderheijden86/bugwork/pkg/watcher"
)

// ActivityShare is the only activity name bugwork reacts to.
const ActivityShare = "share"

// Activity is one external share request. Blobs and Filenames are parallel.
type Activity struct {
	Name      string
	Blobs     []attach.Blob
	Filenames []string
}

// FromPaths builds a share activity over local files.
func FromPaths(paths ...string) Activity {
	a := Activity{Name: ActivityShare}
	for _, p := range paths {
		a.Blobs = append(a.Blobs, attach.FileBlob(p))
		a.Filenames = append(a.Filenames, filepath.Base(p))
	}
	return a
}

// Inbox turns files dropped into a directory into share activities, one per
// batch of files that arrive together.
type Inbox struct {
	w  *watcher.Watcher
	ch chan Activity
}

// NewInbox prepares an inbox on dir, creating it if needed.
func NewInbox(dir string, forcePoll bool) (*Inbox, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating share inbox: %w", err)
	}
	in := &Inbox{ch: make(chan Activity, 8)}
	w, err := watcher.NewWatcher(dir,
		watcher.WithForcePoll(forcePoll),
		watcher.WithOnFiles(in.deliver),
		watcher.WithOnError(func(err error) {
			debug.Log("share inbox: %v", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	in.w = w
	return in, nil
}

func (in *Inbox) deliver(paths []string) {
	select {
	case in.ch <- FromPaths(paths...):
	default:
		debug.Log("share inbox: dropping %d files, consumer is behind", len(paths))
	}
}

// Start begins watching. Files already in the directory are not shared.
func (in *Inbox) Start() error {
	return in.w.Start()
}

// Stop stops watching.
func (in *Inbox) Stop() {
	in.w.Stop()
}

// Dir returns the inbox directory.
func (in *Inbox) Dir() string {
	return in.w.Dir()
}

// Activities delivers one activity per arriving batch.
func (in *Inbox) Activities() <-chan Activity {
	return in.ch
}
