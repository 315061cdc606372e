package terminal

import (
	"strings"
	"unicode"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"tuimessenger/internal/chat"
	"tuimessenger/internal/wrap"
)

const (
	title   = "TUI Messenger"
	keyHint = "(h) help"

	headerHeight    = 3
	maxComposeLines = 5
)

var (
	styleTitle  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleHint   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleOwn    = tcell.StyleDefault.Foreground(tcell.ColorDarkCyan)
	styleOther  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleSystem = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	stylePopup  = tcell.StyleDefault.Background(tcell.ColorDarkGray)
	styleAlert  = stylePopup.Foreground(tcell.ColorRed)
)

var helpLines = []string{
	"(enter) compose a message",
	"(n) to set username",
	"(up/down) scroll messages",
	"(q) to quit",
}

// Renderer draws a chat.Session onto a tcell screen. It implements
// chat.Renderer and never mutates the session.
type Renderer struct {
	screen        tcell.Screen
	width, height int
}

func NewRenderer(s tcell.Screen) *Renderer {
	return &Renderer{screen: s}
}

var _ chat.Renderer = (*Renderer)(nil)

func (r *Renderer) Render(s *chat.Session) error {
	scr := r.screen
	w, h := scr.Size()
	scr.Clear()
	scr.HideCursor()

	switch s.Screen() {
	case chat.ScreenMain, chat.ScreenComposingMessage:
		r.drawChat(s, w, h)
	case chat.ScreenHelpMenu:
		r.drawChat(s, w, h)
		r.drawPopup(centeredRect(60, 25, w, h), "Help Menu", helpLines, styleAlert)
	case chat.ScreenExiting:
		r.drawChat(s, w, h)
		r.drawPopup(centeredRect(60, 25, w, h), "Exit", []string{"Quit? (y/n)"}, styleAlert)
	case chat.ScreenDisconnected:
		r.drawPopup(centeredRect(60, 25, w, h), "Disconnected",
			[]string{"Connection to relay lost.", "Ctrl-C to quit"}, styleAlert)
	case chat.ScreenSetUsername:
		r.drawChat(s, w, h)
		r.drawPrompt(s, w, h, "Set Username", "Enter to save, Esc to cancel")
	case chat.ScreenLoggingIn:
		r.drawPrompt(s, w, h, "Login", "Choose a username and press Enter")
	}

	if w != r.width || h != r.height {
		r.width, r.height = w, h
		scr.Sync()
		return nil
	}
	scr.Show()
	return nil
}

// chatLine is one wrapped row of the message list.
type chatLine struct {
	text  string
	style tcell.Style
	right bool
}

func messageLines(msgs []chat.Message, width int, username string) []chatLine {
	var out []chatLine
	for _, m := range msgs {
		switch {
		case m.IsOwn(username):
			for _, l := range wrap.Lines(m.Content, width) {
				out = append(out, chatLine{text: l, style: styleOwn, right: true})
			}
		case m.Kind == chat.KindChat:
			for _, l := range wrap.Lines(m.Content, width) {
				out = append(out, chatLine{text: m.Sender + ": " + l, style: styleOther})
			}
		default:
			for _, l := range wrap.Lines(m.Content, width) {
				out = append(out, chatLine{text: l, style: styleSystem})
			}
		}
	}
	return out
}

// visibleWindow returns the slice bounds showing the last n lines of total,
// moved up by scroll. scroll is clamped to the available history.
func visibleWindow(total, n, scroll int) (start, end int) {
	if n <= 0 {
		return total, total
	}
	maxScroll := max(0, total-n)
	scroll = min(max(scroll, 0), maxScroll)
	end = total - scroll
	start = max(0, end-n)
	return start, end
}

func (r *Renderer) drawChat(s *chat.Session, w, h int) {
	scr := r.screen

	composeWidth := max(0, w-4)
	input := wrap.Lines(s.Compose(), composeWidth)
	maxInput := min(max(0, h-4), maxComposeLines)
	inStart, inEnd := visibleWindow(len(input), maxInput, s.ComposeScroll())
	visibleInput := input[inStart:inEnd]

	header := rect{x: 0, y: 0, w: w, h: headerHeight}
	compose := rect{x: 0, w: w, h: len(visibleInput) + 2}
	compose.y = h - compose.h
	list := rect{x: 0, y: headerHeight, w: w, h: compose.y - headerHeight}

	drawBox(scr, header, "", tcell.StyleDefault)
	drawText(scr, header.x+1, header.y+1, header.w-2, title, styleTitle)
	hintX := header.x + header.w - 1 - runewidth.StringWidth(keyHint)
	if hintX > header.x+1+runewidth.StringWidth(title) {
		drawText(scr, hintX, header.y+1, header.w-2, keyHint, styleHint)
	}

	if list.h >= 2 {
		drawBox(scr, list, "", tcell.StyleDefault)
		maxWidth := max(0, list.w-4)
		lines := messageLines(s.Messages(), maxWidth, s.Username())
		start, end := visibleWindow(len(lines), list.h-2, s.MessageScroll())
		for i, l := range lines[start:end] {
			x := list.x + 1
			if l.right {
				x += max(0, maxWidth-runewidth.StringWidth(l.text))
			}
			drawText(scr, x, list.y+1+i, list.x+list.w-1-x, l.text, l.style)
		}
	}

	drawBox(scr, compose, "Compose Message", tcell.StyleDefault)
	for i, l := range visibleInput {
		drawText(scr, compose.x+1, compose.y+1+i, compose.w-2, l, tcell.StyleDefault)
	}
	if s.Screen() == chat.ScreenComposingMessage && len(visibleInput) > 0 {
		last := visibleInput[len(visibleInput)-1]
		// Wrapping drops trailing blanks; the cursor still moves past them.
		x := compose.x + 1 + runewidth.StringWidth(last) + trailingBlankWidth(s.Compose())
		scr.ShowCursor(min(x, compose.x+compose.w-2), compose.y+len(visibleInput))
	}
}

func trailingBlankWidth(text string) int {
	return runewidth.StringWidth(text[len(strings.TrimRightFunc(text, unicode.IsSpace)):])
}

func (r *Renderer) drawPopup(area rect, name string, lines []string, style tcell.Style) {
	if need := len(lines) + 2; area.h < need {
		area.y = max(0, area.y-(need-area.h)/2)
		area.h = need
	}
	fill(r.screen, area, stylePopup)
	drawBox(r.screen, area, name, stylePopup)
	for i, l := range lines {
		if i >= area.h-2 {
			break
		}
		drawText(r.screen, area.x+1, area.y+1+i, area.w-2, l, style)
	}
}

// drawPrompt shows the compose buffer as a single-field input popup.
func (r *Renderer) drawPrompt(s *chat.Session, w, h int, name, hint string) {
	area := centeredRect(60, 25, w, h)
	area.h = max(area.h, 4)
	r.drawPopup(area, name, nil, stylePopup)

	inner := area.w - 2
	// Keep the tail visible when the name is wider than the field.
	rs := []rune(s.Compose())
	for len(rs) > 0 && runewidth.StringWidth(string(rs)) >= inner {
		rs = rs[1:]
	}
	value := string(rs)
	drawText(r.screen, area.x+1, area.y+1, inner, value, stylePopup.Foreground(tcell.ColorWhite))
	drawText(r.screen, area.x+1, area.y+area.h-2, inner, hint, stylePopup.Foreground(tcell.ColorSilver))
	r.screen.ShowCursor(area.x+1+runewidth.StringWidth(value), area.y+1)
}
