package attach

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/bugwork/pkg/debug"
)

// MaxFileSize caps a single capture. Bugzilla rejects larger uploads anyway.
const MaxFileSize = 10 << 20

// Blob is an externally supplied payload, such as a shared file.
type Blob struct {
	// Type is the MIME type if the source knows it.
	Type string
	Open func() (io.ReadCloser, error)
}

// FileBlob returns a blob reading path.
func FileBlob(path string) Blob {
	return Blob{
		Type: mimeFromExt(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesBlob returns a blob over an in-memory payload.
func BytesBlob(mimeType string, data []byte) Blob {
	return Blob{
		Type: mimeType,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// ReadFile captures a local file.
func ReadFile(path string) (Attachment, error) {
	b := FileBlob(path)
	return read(filepath.Base(path), b)
}

func read(name string, b Blob) (Attachment, error) {
	if b.Open == nil {
		return Attachment{}, fmt.Errorf("attach: %s has no content", name)
	}
	rc, err := b.Open()
	if err != nil {
		return Attachment{}, fmt.Errorf("attach: opening %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxFileSize+1))
	if err != nil {
		return Attachment{}, fmt.Errorf("attach: reading %s: %w", name, err)
	}
	if len(data) > MaxFileSize {
		return Attachment{}, fmt.Errorf("attach: %s is larger than %d bytes", name, MaxFileSize)
	}

	mimeType := b.Type
	if mimeType == "" {
		mimeType = mimeFromExt(name)
	}
	if mimeType == "" && len(data) > 0 {
		mimeType = sniff(data)
	}
	return Attachment{
		Name:     name,
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}, nil
}

func mimeFromExt(name string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if t == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return t
}

// sniff leaves generic binary as unknown so uploads fall back explicitly.
func sniff(data []byte) string {
	t := http.DetectContentType(data)
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		t = mt
	}
	if t == "application/octet-stream" {
		return ""
	}
	return t
}

// Capturer reads files and blobs concurrently into a List. Each completion
// is appended as soon as it is ready, so the order of the list follows
// completion order, not input order.
type Capturer struct {
	List   *List
	Logger *log.Logger
}

// NewCapturer returns a capturer appending to list.
func NewCapturer(list *List) *Capturer {
	return &Capturer{List: list, Logger: log.Default()}
}

// Files captures local files. Unreadable files are logged and skipped; the
// number of attachments added is returned.
func (c *Capturer) Files(ctx context.Context, paths ...string) int {
	names := make([]string, len(paths))
	blobs := make([]Blob, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
		blobs[i] = FileBlob(p)
	}
	return c.Blobs(ctx, blobs, names)
}

// Blobs captures blobs named by the parallel names slice. Missing names are
// generated from the position.
func (c *Capturer) Blobs(ctx context.Context, blobs []Blob, names []string) int {
	defer debug.Trace(fmt.Sprintf("capture %d blobs", len(blobs)))()

	g, ctx := errgroup.WithContext(ctx)
	added := make(chan struct{}, len(blobs))
	for i, b := range blobs {
		name := fmt.Sprintf("attachment-%d", i+1)
		if i < len(names) && strings.TrimSpace(names[i]) != "" {
			name = names[i]
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			a, err := read(name, b)
			if err != nil {
				c.Logger.Printf("Error reading %s: %v", name, err)
				return nil
			}
			c.List.Add(a)
			added <- struct{}{}
			return nil
		})
	}
	_ = g.Wait()
	return len(added)
}
