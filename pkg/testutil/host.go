package testutil

import (
	"sync"

	"github.com/vanderheijden86/bugwork/pkg/render"
)

// Host wraps render.Panes and records each successful swap as
// "selector=first line of the fragment".
type Host struct {
	*render.Panes

	mu    sync.Mutex
	swaps []string
}

// NewHost returns a recording host with the standard panes.
func NewHost() *Host {
	return &Host{Panes: render.NewPanes()}
}

// Swap implements render.Host.
func (h *Host) Swap(selector string, f render.Fragment) error {
	if err := h.Panes.Swap(selector, f); err != nil {
		return err
	}
	h.mu.Lock()
	h.swaps = append(h.swaps, selector+"="+FirstLine(f.View()))
	h.mu.Unlock()
	return nil
}

// Swaps returns the recorded swaps.
func (h *Host) Swaps() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.swaps...)
}

// Selectors returns the selector of each recorded swap.
func (h *Host) Selectors() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.swaps))
	for i, s := range h.swaps {
		for j := 0; j < len(s); j++ {
			if s[j] == '=' {
				s = s[:j]
				break
			}
		}
		out[i] = s
	}
	return out
}
