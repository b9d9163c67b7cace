package attach

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"
)

var previewTypes = map[string]bool{
	"image/png":  true,
	"image/jpg":  true,
	"image/jpeg": true,
}

// Previewable reports whether a has an image preview.
func (a Attachment) Previewable() bool {
	return previewTypes[a.MimeType]
}

// Preview renders the image as a thumbnail of at most cols x rows cells,
// two pixels per cell using the upper half block.
func Preview(a Attachment, cols, rows int) (string, error) {
	if !a.Previewable() {
		return "", fmt.Errorf("attach: %s (%s) has no preview", a.Name, a.MimeType)
	}
	if cols <= 0 || rows <= 0 {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return "", fmt.Errorf("attach: decoding %s: %w", a.Name, err)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("attach: decoding image %s: %w", a.Name, err)
	}

	w, h := fit(src.Bounds().Dx(), src.Bounds().Dy(), cols, rows*2)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var b strings.Builder
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x++ {
			style := lipgloss.NewStyle().Foreground(hex(dst, x, y))
			if y+1 < h {
				style = style.Background(hex(dst, x, y+1))
			}
			b.WriteString(style.Render("▀"))
		}
		if y+2 < h {
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// fit scales w x h to fit inside maxW x maxH keeping the aspect ratio.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	if w*maxH > h*maxW {
		return maxW, max(1, h*maxW/w)
	}
	return max(1, w*maxH/h), maxH
}

func hex(img *image.RGBA, x, y int) lipgloss.Color {
	c := img.RGBAAt(x, y)
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}
