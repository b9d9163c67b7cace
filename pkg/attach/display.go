package attach

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Row formats a as "name  size" in width cells, truncating the name.
// Previewable attachments are marked with a leading "*".
func Row(a Attachment, width int) string {
	mark := "  "
	if a.Previewable() {
		mark = "* "
	}
	size := a.HumanSize()
	nameWidth := width - runewidth.StringWidth(mark) - runewidth.StringWidth(size) - 2
	if nameWidth < 1 {
		nameWidth = 1
	}
	name := runewidth.Truncate(a.Name, nameWidth, "…")
	name = runewidth.FillRight(name, nameWidth)
	return mark + name + "  " + size
}

// Rows formats every attachment in order, one per line.
func Rows(items []Attachment, width int) string {
	lines := make([]string, len(items))
	for i, a := range items {
		lines[i] = Row(a, width)
	}
	return strings.Join(lines, "\n")
}
