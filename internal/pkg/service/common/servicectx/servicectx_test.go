package servicectx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santacall/santacall/internal/pkg/log"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

func TestProcess_OnShutdown_LIFO(t *testing.T) {
	t.Parallel()

	logger := log.NewDebugLogger()
	proc, err := New(logger, WithoutSignals(), WithUniqueID("my-process"))
	require.NoError(t, err)
	assert.Equal(t, "my-process", proc.UniqueID())

	var order []string
	proc.OnShutdown(func(ctx context.Context) {
		order = append(order, "first")
	})
	proc.OnShutdown(func(ctx context.Context) {
		order = append(order, "second")
	})

	proc.Shutdown(errors.New("some reason"))
	proc.WaitForShutdown()

	assert.Equal(t, []string{"second", "first"}, order)
	assert.Error(t, proc.Ctx().Err())
	logger.AssertJSONMessages(t, `
{"level":"info","message":"process unique id \"my-process\"","component":"process"}
{"level":"info","message":"exiting (some reason)","component":"process"}
{"level":"info","message":"exited","component":"process"}
`)
}

func TestProcess_Add(t *testing.T) {
	t.Parallel()

	proc, err := New(log.NewNopLogger(), WithoutSignals())
	require.NoError(t, err)

	stopped := make(chan struct{})
	proc.Add(func(ctx context.Context, errCh chan<- error) {
		<-ctx.Done()
		close(stopped)
	})
	proc.Add(func(ctx context.Context, errCh chan<- error) {
		errCh <- errors.New("operation failed")
	})

	proc.WaitForShutdown()
	<-stopped
}
