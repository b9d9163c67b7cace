package attach

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func pngAttachment(t *testing.T, w, h int) Attachment {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return Attachment{Name: "shot.png", MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(buf.Bytes())}
}

func TestPreviewable(t *testing.T) {
	for mt, want := range map[string]bool{
		"image/png":  true,
		"image/jpg":  true,
		"image/jpeg": true,
		"image/gif":  false,
		"text/plain": false,
		"":           false,
	} {
		if got := (Attachment{MimeType: mt}).Previewable(); got != want {
			t.Errorf("Previewable(%q) = %v", mt, got)
		}
	}
}

func TestPreview_ScalesIntoBox(t *testing.T) {
	a := pngAttachment(t, 40, 20)
	out, err := Preview(a, 10, 4)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) > 4 {
		t.Errorf("expected at most 4 rows, got %d", len(lines))
	}
	if n := strings.Count(lines[0], "▀"); n != 10 {
		t.Errorf("expected 10 cells in first row, got %d", n)
	}
}

func TestPreview_Errors(t *testing.T) {
	if _, err := Preview(Attachment{Name: "a.txt", MimeType: "text/plain"}, 10, 10); err == nil {
		t.Error("expected error for non-image")
	}
	if _, err := Preview(Attachment{Name: "bad.png", MimeType: "image/png", Data: "!!!"}, 10, 10); err == nil {
		t.Error("expected error for invalid base64")
	}
	garbage := base64.StdEncoding.EncodeToString([]byte("not an image"))
	if _, err := Preview(Attachment{Name: "bad.png", MimeType: "image/png", Data: garbage}, 10, 10); err == nil {
		t.Error("expected error for undecodable image")
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{10, 10, 20, 20, 10, 10},
		{40, 20, 10, 8, 10, 5},
		{20, 40, 10, 8, 4, 8},
		{0, 5, 10, 10, 1, 1},
		{1000, 1, 10, 10, 10, 1},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, tt.maxW, tt.maxH)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fit(%d,%d in %dx%d) = %dx%d, want %dx%d", tt.w, tt.h, tt.maxW, tt.maxH, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestRow(t *testing.T) {
	a := Attachment{Name: "a-very-long-screenshot-name.png", MimeType: "image/png", Data: strings.Repeat("A", 2000)}
	row := Row(a, 30)
	if !strings.HasPrefix(row, "* ") {
		t.Errorf("previewable row should be marked: %q", row)
	}
	if !strings.HasSuffix(row, "866 B") {
		t.Errorf("row should end with size: %q", row)
	}
	if !strings.Contains(row, "…") {
		t.Errorf("long name should be truncated: %q", row)
	}

	plain := Row(Attachment{Name: "log.txt", MimeType: "text/plain"}, 30)
	if !strings.HasPrefix(plain, "  log.txt") || !strings.HasSuffix(plain, "0 B") {
		t.Errorf("unexpected row %q", plain)
	}
}
