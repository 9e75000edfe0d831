package log

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"

	"github.com/santacall/santacall/internal/pkg/ctxattr"
)

func TestServiceLogger_Console(t *testing.T) {
	t.Parallel()

	var out strings.Builder
	logger := NewServiceLogger(&out, LogFormatConsole, false).WithComponent("api")

	ctx := context.Background()
	logger.Debug(ctx, "Debug msg")
	logger.Info(ctx, "Info msg")
	logger.Warn(ctx, "Warn msg")
	logger.Error(ctx, "Error msg")

	expected := `
INFO Info msg {"component": "api"}
WARN Warn msg {"component": "api"}
ERROR Error msg {"component": "api"}
`
	assert.Equal(t, strings.TrimLeft(expected, "\n"), out.String())
}

func TestServiceLogger_Debug(t *testing.T) {
	t.Parallel()

	var out strings.Builder
	logger := NewServiceLogger(&out, LogFormatConsole, true)
	logger.Debug(context.Background(), "Debug msg")
	assert.Equal(t, "DEBUG Debug msg\n", out.String())
}

func TestZapLogger_Attributes(t *testing.T) {
	t.Parallel()

	logger := NewDebugLogger()
	ctx := ctxattr.ContextWith(context.Background(), attribute.String("order.id", "o1"), attribute.Int("attempt", 1))

	logger.WithComponent("video").WithComponent("coordinator").Infof(ctx, `Submitted job for order "<order.id>", attempt %d.`, 1)
	logger.With(attribute.String("order.id", "o2")).WithDuration(time.Second).Warn(ctx, `Order "<order.id>" is slow.`)
	logger.Log(ctx, "unknown", "Fallback level.")

	expected := `
{"level":"info","message":"Submitted job for order \"o1\", attempt 1.","component":"video.coordinator","order.id":"o1","attempt":1}
{"level":"warn","message":"Order \"o2\" is slow.","order.id":"o2","duration":"1s"}
{"level":"info","message":"Fallback level."}
`
	logger.AssertJSONMessages(t, expected)
	assert.Equal(t, 1, strings.Count(logger.WarnAndErrorMessages(), "\n"))
	assert.Empty(t, logger.ErrorMessages())

	logger.Truncate()
	assert.Empty(t, logger.AllMessages())
}

func TestLevelWriter(t *testing.T) {
	t.Parallel()

	logger := NewDebugLogger()
	NewStdErrorLogger(logger).Print("http: TLS handshake error\nsecond line")

	expected := `
{"level":"error","message":"http: TLS handshake error"}
{"level":"error","message":"second line"}
`
	logger.AssertJSONMessages(t, expected)
}

func TestNewLogFormat(t *testing.T) {
	t.Parallel()

	format, err := NewLogFormat("json")
	assert.NoError(t, err)
	assert.Equal(t, LogFormatJSON, format)

	format, err = NewLogFormat("xml")
	assert.Error(t, err)
	assert.Equal(t, LogFormatConsole, format)
}

func TestCompareJSONMessages(t *testing.T) {
	t.Parallel()

	actual := `{"level":"info","message":"Order created.","order.id":"abc123"}
{"level":"info","message":"Order scheduled."}`

	assert.NoError(t, CompareJSONMessages(`{"message":"Order created.","order.id":"abc%s"}`, actual))
	assert.NoError(t, CompareJSONMessages(`{"message":"Order scheduled."}`, actual))
	assert.Error(t, CompareJSONMessages(`{"message":"Order scheduled."}
{"message":"Order created."}`, actual))
}
