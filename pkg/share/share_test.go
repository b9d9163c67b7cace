package share

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vanderheijden86/bugwork/pkg/attach"
)

func TestFromPaths(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "screen.png")
	if err := os.WriteFile(p, []byte("\x89PNG\r\n\x1a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := FromPaths(p)
	if a.Name != ActivityShare {
		t.Errorf("Name = %q", a.Name)
	}
	if len(a.Blobs) != 1 || len(a.Filenames) != 1 || a.Filenames[0] != "screen.png" {
		t.Fatalf("unexpected activity %+v", a)
	}
	if a.Blobs[0].Type != "image/png" {
		t.Errorf("blob type = %q", a.Blobs[0].Type)
	}

	list := attach.NewList()
	if n := attach.NewCapturer(list).Blobs(context.Background(), a.Blobs, a.Filenames); n != 1 {
		t.Fatalf("captured %d", n)
	}
}

func TestInbox_DeliversNewFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox")
	in, err := NewInbox(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("inbox dir not created: %v", err)
	}
	if err := in.Start(); err != nil {
		t.Fatal(err)
	}
	defer in.Stop()

	if err := os.WriteFile(filepath.Join(dir, "log.txt"), []byte("boom"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case a := <-in.Activities():
		if len(a.Filenames) != 1 || a.Filenames[0] != "log.txt" {
			t.Errorf("unexpected activity %+v", a.Filenames)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no activity delivered")
	}
}
