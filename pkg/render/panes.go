package render

import (
	"errors"
	"fmt"
	"sync"
)

// Well-known pane selectors.
const (
	Body       = "body"
	Content    = "#content"
	BugContent = "#bugContent"
)

// ErrNoTarget is returned when a job targets a pane that does not exist,
// e.g. "#bugContent" while "#content" holds something other than a bug.
var ErrNoTarget = errors.New("render: no such target")

// Host receives finished fragments.
type Host interface {
	Swap(selector string, f Fragment) error
}

type pane struct {
	frag     Fragment
	gen      uint64
	children []string
}

// Panes is the in-process Host: a set of named panes, some of them created
// by the Slotted fragment of their parent.
type Panes struct {
	mu       sync.RWMutex
	panes    map[string]*pane
	gen      uint64
	onChange func()
}

// NewPanes creates the root panes "body" and "#content".
func NewPanes() *Panes {
	return &Panes{
		panes: map[string]*pane{
			Body:    {},
			Content: {},
		},
	}
}

// OnChange registers the callback run after every change. It must not call
// back into Panes synchronously while holding its own locks.
func (p *Panes) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Swap clears the pane and its children and installs f.
func (p *Panes) Swap(selector string, f Fragment) error {
	p.mu.Lock()
	pn, ok := p.panes[selector]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoTarget, selector)
	}
	p.dropChildren(pn)
	p.gen++
	pn.frag = f
	pn.gen = p.gen
	if s, ok := f.(Slotted); ok {
		for _, child := range s.Slots() {
			p.panes[child] = &pane{}
			pn.children = append(pn.children, child)
		}
	}
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

func (p *Panes) dropChildren(pn *pane) {
	for _, child := range pn.children {
		if c, ok := p.panes[child]; ok {
			p.dropChildren(c)
			delete(p.panes, child)
		}
	}
	pn.children = nil
}

// Get returns the fragment in a pane and its generation. The fragment is
// nil for an empty pane.
func (p *Panes) Get(selector string) (Fragment, uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pn, ok := p.panes[selector]
	if !ok {
		return nil, 0, false
	}
	return pn.frag, pn.gen, true
}

// Children lists the slot panes of selector in declaration order.
func (p *Panes) Children(selector string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pn, ok := p.panes[selector]
	if !ok {
		return nil
	}
	return append([]string(nil), pn.children...)
}
