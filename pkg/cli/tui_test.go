package cli

import (
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestFrameRender(t *testing.T) {
	var transcript []string
	for i := range 20 {
		transcript = append(transcript, fmt.Sprintf("line %d", i))
	}
	f := Frame{
		Styles: NewStyles(DefaultTheme),
		Title:  "WonderChat",
		Status: "Listening...",
		Sections: []Section{
			{Label: "Transcript", Content: func() []string { return transcript }},
			{Label: "Log", Content: func() []string { return []string{strings.Repeat("x", 200)} }},
		},
		Help: "ctrl+c to quit",
	}

	out := f.Render(60, 20)
	lines := strings.Split(out, "\n")
	if len(lines) > 20 {
		t.Errorf("rendered %d lines, want at most 20", len(lines))
	}
	for i, line := range lines[:len(lines)-1] {
		if w := lipgloss.Width(line); w != 60 {
			t.Errorf("line %d width = %d, want 60: %q", i, w, line)
		}
	}
	if !strings.Contains(out, "line 19") {
		t.Error("most recent transcript line missing")
	}
	if strings.Contains(out, "line 1 ") {
		t.Error("oldest transcript line should scroll out")
	}
	if !strings.Contains(out, "…") {
		t.Error("long line should be truncated")
	}
}

func TestFrameTooSmall(t *testing.T) {
	f := Frame{Styles: NewStyles(DefaultTheme), Title: "WonderChat", Status: "Ready"}
	if out := f.Render(5, 5); !strings.Contains(out, "Ready") || strings.Contains(out, "\n") {
		t.Errorf("small render = %q", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 3); got != "hel" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("日本語", 4); got != "日本" {
		t.Errorf("truncate wide = %q", got)
	}
	if got := truncate("x", 0); got != "" {
		t.Errorf("truncate zero = %q", got)
	}
}
