package voicechat

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/haivivi/wonderchat/pkg/buffer"
)

// DefaultDebugLogEntries bounds the debug log of one connection.
const DefaultDebugLogEntries = 10000

// debugLog keeps timestamped diagnostic lines for the current connection and
// mirrors them to slog.
type debugLog struct {
	prefix  string
	entries *buffer.RingBuffer[string]
	logger  *slog.Logger
	now     func() time.Time
}

func newDebugLog(prefix string, size int, logger *slog.Logger) *debugLog {
	if size <= 0 {
		size = DefaultDebugLogEntries
	}
	return &debugLog{
		prefix:  prefix,
		entries: buffer.RingN[string](size),
		logger:  logger,
		now:     time.Now,
	}
}

func (l *debugLog) add(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.entries.Add(fmt.Sprintf("[%s] [%s] %s", l.now().UTC().Format(time.RFC3339Nano), l.prefix, msg))
	l.logger.Debug("voicechat: "+msg, "session", l.prefix)
}

func (l *debugLog) reset() {
	l.entries.Reset()
}

func (l *debugLog) String() string {
	return strings.Join(l.entries.Snapshot(), "\n")
}
