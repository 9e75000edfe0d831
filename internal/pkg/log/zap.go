package log

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/santacall/santacall/internal/pkg/ctxattr"
)

// zapLogger is the default implementation of the Logger interface.
type zapLogger struct {
	logger    *zap.Logger
	component string
	attrs     []attribute.KeyValue
}

func loggerFromZapCore(core zapcore.Core) *zapLogger {
	return &zapLogger{logger: zap.New(core)}
}

func (l *zapLogger) With(attrs ...attribute.KeyValue) Logger {
	clone := *l
	clone.attrs = append(append([]attribute.KeyValue(nil), l.attrs...), attrs...)
	return &clone
}

func (l *zapLogger) WithComponent(component string) Logger {
	clone := *l
	if clone.component == "" {
		clone.component = component
	} else {
		clone.component += "." + component
	}
	return &clone
}

func (l *zapLogger) WithDuration(v time.Duration) Logger {
	return l.With(attribute.String(DurationKey, v.String()))
}

func (l *zapLogger) Debug(ctx context.Context, message string) {
	l.log(ctx, DebugLevel, message)
}

func (l *zapLogger) Info(ctx context.Context, message string) {
	l.log(ctx, InfoLevel, message)
}

func (l *zapLogger) Warn(ctx context.Context, message string) {
	l.log(ctx, WarnLevel, message)
}

func (l *zapLogger) Error(ctx context.Context, message string) {
	l.log(ctx, ErrorLevel, message)
}

func (l *zapLogger) Log(ctx context.Context, level string, message string) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = InfoLevel
	}
	l.log(ctx, lvl, message)
}

func (l *zapLogger) Debugf(ctx context.Context, template string, args ...any) {
	l.log(ctx, DebugLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Infof(ctx context.Context, template string, args ...any) {
	l.log(ctx, InfoLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Warnf(ctx context.Context, template string, args ...any) {
	l.log(ctx, WarnLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Errorf(ctx context.Context, template string, args ...any) {
	l.log(ctx, ErrorLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Sync() error {
	return l.logger.Sync()
}

func (l *zapLogger) log(ctx context.Context, level zapcore.Level, message string) {
	entry := l.logger.Check(level, message)
	if entry == nil {
		return
	}

	// Logger attributes have priority over the context attributes
	attrs := ctxattr.Attributes(ctx).ToSlice()
	attrs = append(attrs, l.attrs...)
	if l.component != "" {
		attrs = append(attrs, attribute.String(ComponentKey, l.component))
	}
	set := attribute.NewSet(attrs...)

	fields := make([]zap.Field, 0, set.Len())
	replacements := make([]string, 0, 2*set.Len())
	for iter := set.Iter(); iter.Next(); {
		kv := iter.Attribute()
		fields = append(fields, zapField(kv))
		replacements = append(replacements, "<"+string(kv.Key)+">", kv.Value.Emit())
	}

	if len(replacements) > 0 && strings.Contains(message, "<") {
		entry.Message = strings.NewReplacer(replacements...).Replace(message)
	}

	entry.Write(fields...)
}

func zapField(kv attribute.KeyValue) zap.Field {
	key := string(kv.Key)
	switch kv.Value.Type() {
	case attribute.BOOL:
		return zap.Bool(key, kv.Value.AsBool())
	case attribute.INT64:
		return zap.Int64(key, kv.Value.AsInt64())
	case attribute.FLOAT64:
		return zap.Float64(key, kv.Value.AsFloat64())
	case attribute.STRING:
		return zap.String(key, kv.Value.AsString())
	default:
		return zap.String(key, kv.Value.Emit())
	}
}
