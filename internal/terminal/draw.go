package terminal

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"
)

type rect struct {
	x, y, w, h int
}

// centeredRect returns a rect taking percentX by percentY of a w by h area,
// centered in it.
func centeredRect(percentX, percentY, w, h int) rect {
	rw := w * percentX / 100
	rh := h * percentY / 100
	return rect{x: (w - rw) / 2, y: (h - rh) / 2, w: rw, h: rh}
}

func fill(s tcell.Screen, r rect, style tcell.Style) {
	for y := r.y; y < r.y+r.h; y++ {
		for x := r.x; x < r.x+r.w; x++ {
			s.SetContent(x, y, ' ', nil, style)
		}
	}
}

func drawBox(s tcell.Screen, r rect, label string, style tcell.Style) {
	if r.w < 2 || r.h < 2 {
		return
	}
	for x := r.x + 1; x < r.x+r.w-1; x++ {
		s.SetContent(x, r.y, tcell.RuneHLine, nil, style)
		s.SetContent(x, r.y+r.h-1, tcell.RuneHLine, nil, style)
	}
	for y := r.y + 1; y < r.y+r.h-1; y++ {
		s.SetContent(r.x, y, tcell.RuneVLine, nil, style)
		s.SetContent(r.x+r.w-1, y, tcell.RuneVLine, nil, style)
	}
	s.SetContent(r.x, r.y, tcell.RuneULCorner, nil, style)
	s.SetContent(r.x+r.w-1, r.y, tcell.RuneURCorner, nil, style)
	s.SetContent(r.x, r.y+r.h-1, tcell.RuneLLCorner, nil, style)
	s.SetContent(r.x+r.w-1, r.y+r.h-1, tcell.RuneLRCorner, nil, style)
	if label != "" {
		drawText(s, r.x+1, r.y, r.w-2, label, style)
	}
}

// drawText writes text one grapheme cluster per cell run, stopping before
// the first cluster that would cross maxWidth. It returns the width used.
func drawText(s tcell.Screen, x, y, maxWidth int, text string, style tcell.Style) int {
	used := 0
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		w := g.Width()
		if w == 0 {
			continue
		}
		if used+w > maxWidth {
			break
		}
		rs := g.Runes()
		s.SetContent(x+used, y, rs[0], rs[1:], style)
		used += w
	}
	return used
}
