package wrap

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/require"
)

func TestLines(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{name: "empty", text: "", width: 20, want: []string{""}},
		{name: "fits", text: "hello world", width: 20, want: []string{"hello world"}},
		{name: "wraps at word", text: "the quick brown fox jumps", width: 10, want: []string{"the quick", "brown fox", "jumps"}},
		{name: "collapses spaces", text: "  a   b  ", width: 10, want: []string{"a b"}},
		{name: "keeps newlines", text: "one\n\ntwo", width: 10, want: []string{"one", "", "two"}},
		{name: "minimum width", text: "abcdefghij klm", width: 3, want: []string{"abcdefghij", "klm"}},
		{name: "splits long word", text: "abcdefghijklmnopqrstuvwxyz", width: 10, want: []string{"abcdefghij", "klmnopqrst", "uvwxyz"}},
		{name: "long word after short", text: "hi abcdefghijklm", width: 10, want: []string{"hi", "abcdefghij", "klm"}},
		{name: "exact fit", text: "abcd efghi", width: 10, want: []string{"abcd efghi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Lines(tt.text, tt.width))
		})
	}
}

func TestLinesWideRunes(t *testing.T) {
	lines := Lines(strings.Repeat("日本", 8), 10)
	for _, l := range lines {
		require.LessOrEqual(t, runewidth.StringWidth(l), 10, l)
	}
	require.Equal(t, strings.Repeat("日本", 8), strings.Join(lines, ""))
}

func TestLinesNeverExceedWidth(t *testing.T) {
	text := "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore"
	for width := MinWidth; width < 40; width++ {
		for _, l := range Lines(text, width) {
			require.LessOrEqual(t, runewidth.StringWidth(l), width, "width %d line %q", width, l)
		}
	}
}
