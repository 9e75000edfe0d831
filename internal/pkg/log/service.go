package log

import (
	"io"

	"go.uber.org/zap/zapcore"
)

// NewServiceLogger creates a logger for a long-running service.
// Debug messages are written only if debug is enabled.
func NewServiceLogger(w io.Writer, format LogFormat, debug bool) Logger {
	level := InfoLevel
	if debug {
		level = DebugLevel
	}
	return loggerFromZapCore(zapcore.NewCore(newEncoder(format), zapcore.Lock(zapcore.AddSync(w)), level))
}

func newEncoder(format LogFormat) zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "message",
		NameKey:        zapcore.OmitKey,
		CallerKey:      zapcore.OmitKey,
		FunctionKey:    zapcore.OmitKey,
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	if format == LogFormatJSON {
		return zapcore.NewJSONEncoder(cfg)
	}

	cfg.TimeKey = zapcore.OmitKey
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " "
	return zapcore.NewConsoleEncoder(cfg)
}
