package cli

import (
	"strings"

	"github.com/haivivi/wonderchat/pkg/buffer"
)

// LogWriter is an io.Writer that keeps the most recent lines for the live
// status frame and notifies listeners of each new line.
type LogWriter struct {
	buf *buffer.RingBuffer[string]
	ch  chan string
}

func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{
		buf: buffer.RingN[string](maxLines),
		ch:  make(chan string, 100),
	}
}

// Write splits p into lines. Notifications are dropped when nobody reads
// the channel.
func (w *LogWriter) Write(p []byte) (n int, err error) {
	text := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(text, "\n") {
		w.buf.Add(line)
		select {
		case w.ch <- line:
		default:
		}
	}
	return len(p), nil
}

// Lines returns the buffered lines, oldest first.
func (w *LogWriter) Lines() []string {
	return w.buf.Snapshot()
}

func (w *LogWriter) Channel() <-chan string {
	return w.ch
}
