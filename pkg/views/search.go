package views

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/vanderheijden86/bugwork/pkg/bz"
	"github.com/vanderheijden86/bugwork/pkg/render"
	"github.com/vanderheijden86/bugwork/pkg/router"
	"github.com/vanderheijden86/bugwork/pkg/tpl"
)

// Search runs a quicksearch for the {term} path parameter and offers a
// query box for the next one.
func Search(d Deps) render.View {
	return render.ViewFunc(func(ctx context.Context, nav *router.Context) (render.Fragment, error) {
		term, err := url.PathUnescape(nav.Param("term"))
		if err != nil {
			return nil, fmt.Errorf("bad search term: %w", err)
		}
		var bugs []bz.Bug
		if term != "" {
			res, err := d.Service.Search(ctx, term)
			if err != nil {
				return nil, fmt.Errorf("searching %q: %w", term, err)
			}
			bugs = res.Bugs
		}
		results, err := d.fill(ctx, tpl.Search, struct {
			Term string
			Bugs []bz.Bug
		}{term, bugs})
		if err != nil {
			return nil, err
		}
		f := &searchForm{d: d, results: results, query: term}
		f.build()
		return f, nil
	})
}

type searchForm struct {
	d       Deps
	results string
	form    *huh.Form
	query   string
}

var _ Interactive = (*searchForm)(nil)

func (f *searchForm) build() {
	f.form = newForm(f.d, huh.NewGroup(
		huh.NewInput().Title("Search").Placeholder("words, or #id").Value(&f.query),
	))
}

func (f *searchForm) Init() tea.Cmd { return f.form.Init() }

func (f *searchForm) Update(msg tea.Msg) tea.Cmd {
	if f.form.State != huh.StateNormal {
		return nil
	}
	_, cmd := f.form.Update(msg)
	if f.form.State == huh.StateCompleted {
		f.d.Nav.Go(SearchPath(f.query))
		return nil
	}
	return cmd
}

func (f *searchForm) View() string {
	if f.form.State != huh.StateNormal {
		return f.results
	}
	return f.form.View() + "\n" + f.results
}

// SearchPath is where a query leads: a bug id ("123" or "#123") opens the
// bug, anything else is a search.
func SearchPath(query string) string {
	q := strings.TrimSpace(query)
	if id, err := strconv.Atoi(strings.TrimPrefix(q, "#")); err == nil && id > 0 {
		return fmt.Sprintf("/bug/%d", id)
	}
	if q == "" {
		return "/search/"
	}
	return "/search/" + url.PathEscape(q)
}

func (f *searchForm) CapturesKeys() bool { return f.form.State == huh.StateNormal }
