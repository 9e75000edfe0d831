// Package servicectx provides unique ID for a service process and support for the graceful shutdown.
package servicectx

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/santacall/santacall/internal/pkg/idgenerator"
	"github.com/santacall/santacall/internal/pkg/log"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

const DefaultShutdownTimeout = 30 * time.Second

type Process struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   log.Logger
	wg       *sync.WaitGroup
	errCh    chan error
	uniqueID string
	timeout  time.Duration

	lock        *sync.Mutex
	terminating bool
	onShutdown  []OnShutdownFn
}

type Option func(c *config)

// OnShutdownFn is invoked on termination, the ctx is limited by the shutdown timeout.
type OnShutdownFn func(ctx context.Context)

type config struct {
	uniqueID        string
	shutdownTimeout time.Duration
	signals         bool
}

// WithUniqueID sets unique ID of the service process.
// By default, it is generated from the hostname and PID.
func WithUniqueID(v string) Option {
	return func(c *config) {
		c.uniqueID = v
	}
}

func WithShutdownTimeout(v time.Duration) Option {
	return func(c *config) {
		c.shutdownTimeout = v
	}
}

// WithoutSignals disables the SIGINT/SIGTERM handler.
func WithoutSignals() Option {
	return func(c *config) {
		c.signals = false
	}
}

func New(logger log.Logger, opts ...Option) (*Process, error) {
	c := config{shutdownTimeout: DefaultShutdownTimeout, signals: true}
	for _, o := range opts {
		o(&c)
	}

	if c.uniqueID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, errors.PrefixError(err, "cannot get hostname")
		}
		c.uniqueID = fmt.Sprintf(`%s-%05d`, hostname, os.Getpid())
	}

	// Channel used by both the signal handler and service goroutines
	// to notify the main goroutine when to stop the server.
	errCh := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	proc := &Process{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.WithComponent("process"),
		wg:       &sync.WaitGroup{},
		errCh:    errCh,
		uniqueID: c.uniqueID,
		timeout:  c.shutdownTimeout,
		lock:     &sync.Mutex{},
	}

	if c.signals {
		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				proc.Shutdown(errors.Errorf("%s", sig))
			case <-ctx.Done():
			}
			signal.Stop(sigCh)
		}()
	}

	proc.logger.Infof(ctx, `process unique id "%s"`, proc.UniqueID())
	return proc, nil
}

func NewForTest(t *testing.T) *Process {
	t.Helper()

	proc, err := New(log.NewNopLogger(), WithoutSignals(), WithUniqueID("test_"+idgenerator.Random(5)))
	if err != nil {
		t.Fatal(err)
		return nil
	}

	t.Cleanup(func() {
		proc.Shutdown(errors.New("test cleanup"))
		proc.WaitForShutdown()
	})

	return proc
}

// Ctx returns context of the Process, it is cancelled on shutdown.
func (v *Process) Ctx() context.Context {
	return v.ctx
}

// Shutdown triggers termination of the Process, only the first call is effective.
func (v *Process) Shutdown(err error) {
	select {
	case v.errCh <- err:
	default:
	}
}

// WaitForShutdown blocks until a shutdown is requested,
// then it invokes the OnShutdown callbacks and waits for all operations.
func (v *Process) WaitForShutdown() {
	ctx := context.Background()

	select {
	case err := <-v.errCh:
		v.logger.Infof(ctx, "exiting (%v)", err)
	case <-v.ctx.Done():
		v.logger.Info(ctx, "exiting (context cancelled)")
	}

	v.lock.Lock()
	v.terminating = true
	callbacks := v.onShutdown
	v.lock.Unlock()

	// Send cancellation signal to the goroutines.
	v.cancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	// Iterate callbacks in reverse order, LIFO
	for i := len(callbacks) - 1; i >= 0; i-- {
		callbacks[i](shutdownCtx)
	}

	v.wg.Wait()
	v.logger.Info(ctx, "exited")
}

// UniqueID returns unique process ID, it consists of hostname and PID.
func (v *Process) UniqueID() string {
	return v.uniqueID
}

// Add an operation.
// The Process is graceful terminated when all operations are completed.
// The ctx parameter can be used to wait for the service termination.
// The errCh parameter can be used to stop the service with an error.
func (v *Process) Add(operation func(ctx context.Context, errCh chan<- error)) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		errCh := make(chan error, 1)
		operation(v.ctx, errCh)
		select {
		case err := <-errCh:
			v.Shutdown(err)
		default:
		}
	}()
}

// OnShutdown registers a callback that is invoked when the process is terminating.
// Graceful shutdown waits until the callback has finished.
// Callbacks are invoked sequentially in LIFO order.
func (v *Process) OnShutdown(fn OnShutdownFn) {
	v.lock.Lock()
	defer v.lock.Unlock()
	if v.terminating {
		v.logger.Error(context.Background(), `cannot register OnShutdown callback: the process is terminating`)
		return
	}
	v.onShutdown = append(v.onShutdown, fn)
}
