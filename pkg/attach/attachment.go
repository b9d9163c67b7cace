// Package attach captures local files and shared blobs as base64 payloads,
// keeps them in an ordered list, and uploads them after a bug is created.
package attach

import (
	"math"
	"sync"

	"github.com/dustin/go-humanize"
)

// Attachment is one captured payload. Data is plain base64, without a data
// URL prefix.
type Attachment struct {
	Name     string
	MimeType string
	Data     string
}

// dataURLOverhead is the fixed prefix allowance subtracted before estimating.
const dataURLOverhead = 814

// base64Expansion approximates how much larger base64 is than its input.
const base64Expansion = 1.37

// EstimateSize approximates the decoded size of a base64 payload. It is
// deliberately rough and never negative.
func EstimateSize(data string) int64 {
	n := math.Floor((float64(len(data))-dataURLOverhead)/base64Expansion + 0.5)
	if n < 0 {
		return 0
	}
	return int64(n)
}

// Size returns the estimated decoded size.
func (a Attachment) Size() int64 {
	return EstimateSize(a.Data)
}

// HumanSize formats Size for display.
func (a Attachment) HumanSize() string {
	return humanize.Bytes(uint64(a.Size()))
}

// List is the ordered attachment list of one bug creation form. All methods
// are safe for concurrent use; the change callback runs outside the lock.
type List struct {
	mu       sync.Mutex
	items    []Attachment
	onChange func()
}

// NewList returns an empty list.
func NewList() *List {
	return &List{}
}

// OnChange sets the callback run after every mutation.
func (l *List) OnChange(fn func()) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

func (l *List) changed() {
	l.mu.Lock()
	fn := l.onChange
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Add appends a.
func (l *List) Add(a Attachment) {
	l.mu.Lock()
	l.items = append(l.items, a)
	l.mu.Unlock()
	l.changed()
}

// Delete removes every attachment named exactly name and reports how many
// went. The rest keep their order.
func (l *List) Delete(name string) int {
	l.mu.Lock()
	kept := l.items[:0]
	for _, a := range l.items {
		if a.Name != name {
			kept = append(kept, a)
		}
	}
	removed := len(l.items) - len(kept)
	clear(l.items[len(kept):])
	l.items = kept
	l.mu.Unlock()

	if removed > 0 {
		l.changed()
	}
	return removed
}

// Pop removes and returns the most recently added attachment.
func (l *List) Pop() (Attachment, bool) {
	l.mu.Lock()
	if len(l.items) == 0 {
		l.mu.Unlock()
		return Attachment{}, false
	}
	last := l.items[len(l.items)-1]
	l.items[len(l.items)-1] = Attachment{}
	l.items = l.items[:len(l.items)-1]
	l.mu.Unlock()

	l.changed()
	return last, true
}

// Reset empties the list.
func (l *List) Reset() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
	l.changed()
}

// Len returns the number of attachments.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Snapshot returns a copy of the attachments in order.
func (l *List) Snapshot() []Attachment {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Attachment(nil), l.items...)
}
