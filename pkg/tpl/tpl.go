// Package tpl reads the markdown templates views are built from and renders
// them for the terminal with glamour.
package tpl

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
)

//go:embed templates/*.md
var files embed.FS

// ErrUnknownTemplate is returned by Read for ids with no template.
var ErrUnknownTemplate = errors.New("tpl: unknown template")

// Template ids.
const (
	Home           = "home"
	Dashboard      = "dashboard"
	Login          = "login"
	Search         = "search"
	CreateBug      = "create_bug"
	ViewBug        = "view_bug"
	BugComments    = "bug_comments"
	BugDetails     = "bug_details"
	BugAttachments = "bug_attachments"
	Error          = "error"
)

// Option configures a Reader.
type Option func(*options)

type options struct {
	style    string
	wordWrap int
}

// WithStyle picks a glamour standard style ("dark", "light", "notty", ...).
// "auto" or "" detects it from the terminal.
func WithStyle(style string) Option {
	return func(o *options) { o.style = style }
}

// WithWordWrap sets the wrap width. Zero keeps glamour's default.
func WithWordWrap(n int) Option {
	return func(o *options) { o.wordWrap = n }
}

// Reader hands out template documents. It is safe for concurrent use.
type Reader struct {
	base *template.Template

	mu sync.Mutex
	md *glamour.TermRenderer
}

// New parses the embedded templates.
func New(opts ...Option) (*Reader, error) {
	o := options{style: "auto"}
	for _, opt := range opts {
		opt(&o)
	}

	base, err := template.New("").Funcs(funcs).ParseFS(files, "templates/*.md")
	if err != nil {
		return nil, fmt.Errorf("tpl: parsing templates: %w", err)
	}

	mdOpts := []glamour.TermRendererOption{}
	if o.style == "" || o.style == "auto" {
		mdOpts = append(mdOpts, glamour.WithAutoStyle())
	} else {
		mdOpts = append(mdOpts, glamour.WithStandardStyle(o.style))
	}
	if o.wordWrap > 0 {
		mdOpts = append(mdOpts, glamour.WithWordWrap(o.wordWrap))
	}
	md, err := glamour.NewTermRenderer(mdOpts...)
	if err != nil {
		return nil, fmt.Errorf("tpl: creating markdown renderer: %w", err)
	}
	return &Reader{base: base, md: md}, nil
}

// IDs lists the known template ids.
func (r *Reader) IDs() []string {
	var ids []string
	for _, t := range r.base.Templates() {
		if name := t.Name(); name != "" {
			ids = append(ids, strings.TrimSuffix(name, path.Ext(name)))
		}
	}
	return ids
}

// Read returns a fresh document for id. Documents share nothing with each
// other, so callers may execute them concurrently.
func (r *Reader) Read(ctx context.Context, id string) (*Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := r.base.Lookup(id + ".md")
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, id)
	}
	clone, err := t.Clone()
	if err != nil {
		return nil, fmt.Errorf("tpl: cloning %s: %w", id, err)
	}
	return &Doc{id: id, t: clone, r: r}, nil
}

func (r *Reader) renderMarkdown(src string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.md.Render(src)
}

// Doc is one template ready to be filled in.
type Doc struct {
	id string
	t  *template.Template
	r  *Reader
}

// ID returns the template id.
func (d *Doc) ID() string { return d.id }

// Markdown executes the template and returns the markdown source.
func (d *Doc) Markdown(data any) (string, error) {
	var b strings.Builder
	if err := d.t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("tpl: executing %s: %w", d.id, err)
	}
	return b.String(), nil
}

// Render executes the template and renders it for the terminal.
func (d *Doc) Render(data any) (string, error) {
	src, err := d.Markdown(data)
	if err != nil {
		return "", err
	}
	out, err := d.r.renderMarkdown(src)
	if err != nil {
		return "", fmt.Errorf("tpl: rendering %s: %w", d.id, err)
	}
	return out, nil
}

var funcs = template.FuncMap{
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return humanize.Time(t)
	},
	"bytes": func(n int64) string {
		if n < 0 {
			n = 0
		}
		return humanize.Bytes(uint64(n))
	},
	"quote": func(s string) string {
		lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
		for i, l := range lines {
			lines[i] = "> " + l
		}
		return strings.Join(lines, "\n")
	},
	"join": strings.Join,
}
