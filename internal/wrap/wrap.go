// Package wrap lays text out in fixed-width terminal columns.
package wrap

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// MinWidth is the narrowest column Lines will wrap to.
const MinWidth = 10

// Lines wraps text to width display cells. Hard newlines are kept, runs of
// whitespace collapse to one space, and a word wider than the column is split
// across lines. The result always has at least one line.
func Lines(text string, width int) []string {
	if width < MinWidth {
		width = MinWidth
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		out = append(out, wrapParagraph(para, width)...)
	}
	return out
}

func wrapParagraph(para string, width int) []string {
	var (
		lines []string
		line  strings.Builder
		used  int
	)
	flush := func() {
		lines = append(lines, line.String())
		line.Reset()
		used = 0
	}
	for _, word := range strings.Fields(para) {
		w := runewidth.StringWidth(word)
		if used > 0 && used+1+w > width {
			flush()
		}
		if used > 0 {
			line.WriteByte(' ')
			used++
		}
		// Only reachable on an empty line: a word that fits after a space
		// was handled above.
		for w > width {
			head := runewidth.Truncate(word, width, "")
			lines = append(lines, head)
			word = word[len(head):]
			w = runewidth.StringWidth(word)
		}
		line.WriteString(word)
		used += w
	}
	if used > 0 || len(lines) == 0 {
		flush()
	}
	return lines
}
