package render

import (
	"context"

	"github.com/vanderheijden86/bugwork/pkg/router"
)

// Fragment is a unit of rendered output that can be swapped into a pane.
type Fragment interface {
	View() string
}

// Text is a static fragment.
type Text string

// View implements Fragment.
func (t Text) View() string { return string(t) }

// Slotted fragments contain named child panes, such as the bug detail panel
// whose lower half is "#bugContent". Swapping a Slotted fragment into a pane
// recreates those children empty.
type Slotted interface {
	Fragment
	Slots() []string
}

// Producer builds a fragment for a render job.
type Producer func(ctx context.Context) (Fragment, error)

// View produces a fragment for a navigation.
type View interface {
	Render(ctx context.Context, nav *router.Context) (Fragment, error)
}

// ViewFunc adapts a function to View.
type ViewFunc func(ctx context.Context, nav *router.Context) (Fragment, error)

// Render implements View.
func (f ViewFunc) Render(ctx context.Context, nav *router.Context) (Fragment, error) {
	return f(ctx, nav)
}
