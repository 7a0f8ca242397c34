package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/haivivi/wonderchat/pkg/buffer"
	"github.com/haivivi/wonderchat/pkg/cli"
)

const (
	viewTranscriptLines = 200
	viewLogLines        = 200
)

// liveView prints the conversation. In TUI mode it redraws a full-screen
// frame with transcript and log panes on every change; otherwise it appends
// plain lines.
type liveView struct {
	mu      sync.Mutex
	w       io.Writer
	tui     bool
	styles  cli.Styles
	status  string
	interim string
	lines   *buffer.RingBuffer[string]
	logs    *cli.LogWriter
}

func newLiveView(w io.Writer, tui bool) *liveView {
	return &liveView{
		w:      w,
		tui:    tui,
		styles: cli.NewStyles(cli.DefaultTheme),
		status: "Disconnected",
		lines:  buffer.RingN[string](viewTranscriptLines),
		logs:   cli.NewLogWriter(viewLogLines),
	}
}

func (v *liveView) setStatus(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s == v.status {
		return
	}
	v.status = s
	if !v.tui {
		fmt.Fprintln(v.w, v.styles.Badge(s))
		return
	}
	v.redraw()
}

func (v *liveView) setInterim(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.interim = text
	if v.tui {
		v.redraw()
	}
}

func (v *liveView) addUser(text string) {
	v.mu.Lock()
	v.interim = ""
	v.mu.Unlock()
	v.addLine(v.styles.User.Render("You") + ": " + text)
}

func (v *liveView) addAssistant(text string) {
	v.addLine(v.styles.Assistant.Render("WonderChat") + ": " + text)
}

func (v *liveView) addError(err error) {
	v.addLine(v.styles.Error.Render("Error") + ": " + err.Error())
}

func (v *liveView) addLine(line string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lines.Add(line)
	if !v.tui {
		fmt.Fprintln(v.w, line)
		return
	}
	v.redraw()
}

func (v *liveView) frame() cli.Frame {
	return cli.Frame{
		Styles: v.styles,
		Title:  "WonderChat",
		Status: v.status,
		Sections: []cli.Section{
			{Label: "Conversation", Content: func() []string {
				lines := v.lines.Snapshot()
				if v.interim != "" {
					lines = append(lines, v.styles.Help.Render("… "+v.interim))
				}
				return lines
			}},
			{Label: "Log", Content: v.logs.Lines},
		},
		Help: "type to send text · /mic /vad on|off /threshold n /reconnect /quit",
	}
}

// redraw must be called with mu held.
func (v *liveView) redraw() {
	width, height := terminalSize()
	fmt.Fprint(v.w, "\x1b[H\x1b[2J"+v.frame().Render(width, height)+"\n")
}

// terminalSize reads COLUMNS and LINES, falling back to 80x24.
func terminalSize() (int, int) {
	size := func(env string, def int) int {
		if n, err := strconv.Atoi(os.Getenv(env)); err == nil && n > 0 {
			return n
		}
		return def
	}
	return size("COLUMNS", 80), size("LINES", 24)
}

// follow redraws whenever a log line arrives until done is closed.
func (v *liveView) follow(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-v.logs.Channel():
			v.mu.Lock()
			v.redraw()
			v.mu.Unlock()
		}
	}
}
