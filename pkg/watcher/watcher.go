// Package watcher reports files that appear in a directory. It uses
// fsnotify where that works and falls back to polling on network mounts or
// when asked to.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/bugwork/pkg/debug"
)

// DefaultPollInterval is the polling interval in fallback mode.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrNotDirectory   = errors.New("watched path is not a directory")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets how long the directory must be quiet before new
// files are reported.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnFiles sets the callback receiving each batch of new files, sorted.
func WithOnFiles(fn func(paths []string)) WatcherOption {
	return func(w *Watcher) {
		w.onFiles = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

type fileState struct {
	mtime time.Time
	size  int64
}

// Watcher reports regular files added to a directory. Files present when
// it starts are not reported, and each file is reported once until it is
// removed. Hidden files and partial downloads (.part, .tmp, ~) are ignored
// until renamed.
type Watcher struct {
	dir              string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onFiles          func([]string)
	onError          func(error)
	forcePoll        bool
	forcePollEnv     bool
	fsType           FilesystemType

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.RWMutex

	scanMu sync.Mutex
	seen   map[string]fileState
	polled map[string]fileState
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, opts ...WatcherOption) (*Watcher, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:              absDir,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onFiles:          func([]string) {},
		onError:          func(error) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounceDuration)
	return w, nil
}

// Start begins watching. The directory must exist.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	info, err := os.Stat(w.dir)
	if err != nil {
		if os.IsPermission(err) {
			return ErrPermission
		}
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, w.dir)
	}

	current, err := w.list()
	if err != nil {
		return err
	}
	w.scanMu.Lock()
	w.seen = current
	w.polled = current
	w.scanMu.Unlock()

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.useFallback = false
	w.forcePollEnv = envBool("BUGWORK_FORCE_POLL")
	w.fsType = DetectFilesystemType(w.dir)
	if isRemoteFilesystem(w.fsType) || w.forcePoll || w.forcePollEnv {
		w.useFallback = true
	}

	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			err = fsw.Add(w.dir)
			if err != nil {
				fsw.Close()
			}
		}
		if err != nil {
			debug.Log("watcher: fsnotify unavailable for %s, polling: %v", w.dir, err)
			w.useFallback = true
		} else {
			w.fsWatcher = fsw
			go w.watchFsnotify(fsw)
		}
	}
	if w.useFallback {
		go w.watchPolling()
	}

	w.started = true
	return nil
}

// Stop stops watching. A batch already being reported still completes.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// FilesystemType returns the classification of the watched directory.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval used in polling mode.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func ignored(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, ".part") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, "~")
}

func (w *Watcher) watchFsnotify(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Dir(event.Name) != w.dir {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.debouncer.Trigger(w.scan)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) watchPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			current, err := w.list()
			if err != nil {
				w.onError(err)
				continue
			}
			w.scanMu.Lock()
			changed := !sameStates(current, w.polled)
			w.polled = current
			w.scanMu.Unlock()

			if changed {
				w.debouncer.Trigger(w.scan)
			}
		}
	}
}

// scan reports files not seen before and forgets removed ones.
func (w *Watcher) scan() {
	if !w.IsStarted() {
		return
	}
	current, err := w.list()
	if err != nil {
		w.onError(err)
		return
	}

	w.scanMu.Lock()
	var added []string
	for name := range current {
		if _, ok := w.seen[name]; !ok {
			added = append(added, filepath.Join(w.dir, name))
		}
	}
	w.seen = current
	w.scanMu.Unlock()

	if len(added) == 0 {
		return
	}
	sort.Strings(added)
	debug.Log("watcher: %d new files in %s", len(added), w.dir)
	w.onFiles(added)
}

func (w *Watcher) list() (map[string]fileState, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsPermission(err) {
			return nil, ErrPermission
		}
		return nil, err
	}
	out := make(map[string]fileState, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || ignored(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out[e.Name()] = fileState{mtime: info.ModTime(), size: info.Size()}
	}
	return out, nil
}

func sameStates(a, b map[string]fileState) bool {
	if len(a) != len(b) {
		return false
	}
	for name, sa := range a {
		sb, ok := b[name]
		if !ok || !sa.mtime.Equal(sb.mtime) || sa.size != sb.size {
			return false
		}
	}
	return true
}
