package log

import (
	"bufio"
	"strings"
	"sync"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/santacall/santacall/internal/pkg/encoding/json"
)

type debugLogger struct {
	*zapLogger
	out *memoryWriter
}

type memoryWriter struct {
	lock *sync.Mutex
	buf  strings.Builder
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.buf.Write(p)
}

func (w *memoryWriter) Sync() error {
	return nil
}

func (w *memoryWriter) String() string {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.buf.String()
}

func (w *memoryWriter) Reset() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.buf.Reset()
}

// NewDebugLogger returns a logger which stores all messages in memory as JSON lines.
func NewDebugLogger() DebugLogger {
	out := &memoryWriter{lock: &sync.Mutex{}}
	core := zapcore.NewCore(newEncoder(LogFormatJSON), out, DebugLevel)
	return &debugLogger{zapLogger: loggerFromZapCore(core), out: out}
}

func (l *debugLogger) Truncate() {
	l.out.Reset()
}

func (l *debugLogger) AllMessages() string {
	return l.out.String()
}

func (l *debugLogger) WarnAndErrorMessages() string {
	return l.filter(WarnLevel, ErrorLevel)
}

func (l *debugLogger) ErrorMessages() string {
	return l.filter(ErrorLevel)
}

func (l *debugLogger) CompareJSONMessages(expected string) error {
	return CompareJSONMessages(expected, l.AllMessages())
}

func (l *debugLogger) AssertJSONMessages(t assert.TestingT, expected string, msgAndArgs ...any) bool {
	return AssertJSONMessages(t, expected, l.AllMessages(), msgAndArgs...)
}

func (l *debugLogger) filter(levels ...zapcore.Level) string {
	var out strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(l.out.String()))
	for scanner.Scan() {
		line := scanner.Text()
		var msg struct {
			Level string `json:"level"`
		}
		if err := json.DecodeString(line, &msg); err != nil {
			continue
		}
		for _, level := range levels {
			if msg.Level == level.String() {
				out.WriteString(line)
				out.WriteString("\n")
				break
			}
		}
	}
	return out.String()
}
