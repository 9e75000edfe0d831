package log

import (
	"context"
	stdLog "log"
	"strings"

	"go.uber.org/zap/zapcore"
)

// LevelWriter writes each line as a message with the defined level.
type LevelWriter struct {
	logger Logger
	level  zapcore.Level
}

func NewLevelWriter(logger Logger, level zapcore.Level) *LevelWriter {
	return &LevelWriter{logger: logger, level: level}
}

func (w *LevelWriter) Write(p []byte) (n int, err error) {
	ctx := context.Background()
	lines := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(lines, "\n") {
		w.logger.Log(ctx, w.level.String(), line)
	}
	return len(p), nil
}

// NewStdErrorLogger adapts the logger for the standard library, for example for http.Server.ErrorLog.
func NewStdErrorLogger(logger Logger) *stdLog.Logger {
	return stdLog.New(NewLevelWriter(logger, ErrorLevel), "", 0)
}
