package dependencies

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/santacall/santacall/internal/pkg/log"
	"github.com/santacall/santacall/internal/pkg/service/common/servicectx"
	"github.com/santacall/santacall/internal/pkg/service/common/utctime"
	"github.com/santacall/santacall/internal/pkg/service/santacall/backend/backendtest"
	"github.com/santacall/santacall/internal/pkg/service/santacall/config"
	"github.com/santacall/santacall/internal/pkg/telemetry"
)

// Mocked dependencies container for tests.
type Mocked interface {
	ServiceScope
	DebugLogger() log.DebugLogger
	TestTelemetry() telemetry.ForTest
	FakeClock() *clockwork.FakeClock
	TestRenderer() *backendtest.Renderer
	TestTelephony() *backendtest.Telephony
	TestBilling() *backendtest.Billing
}

type mocked struct {
	*serviceScope
	debugLogger log.DebugLogger
	telemetry   telemetry.ForTest
	clock       *clockwork.FakeClock
	renderer    *backendtest.Renderer
	telephony   *backendtest.Telephony
	billing     *backendtest.Billing
}

type MockedConfig struct {
	clock  *clockwork.FakeClock
	config config.Config
}

type MockedOption func(c *MockedConfig)

// WithClock sets the fake clock, by default the clock starts at Monday 2024-12-02 09:00 UTC.
func WithClock(v *clockwork.FakeClock) MockedOption {
	return func(c *MockedConfig) {
		c.clock = v
	}
}

func WithConfig(fn func(cfg *config.Config)) MockedOption {
	return func(c *MockedConfig) {
		fn(&c.config)
	}
}

func NewMockedServiceScope(t *testing.T, opts ...MockedOption) Mocked {
	t.Helper()

	cfg := MockedConfig{config: config.New()}
	// Retries in tests are deterministic
	cfg.config.Render.BackoffRandomizationFactor = 0
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.clock == nil {
		cfg.clock = clockwork.NewFakeClockAt(utctime.MustParse("2024-12-02T09:00:00.000Z").Time())
	}

	debugLogger := log.NewDebugLogger()
	tel := telemetry.NewForTest(t)
	renderer := backendtest.NewRenderer()
	telephony := backendtest.NewTelephony()
	billing := backendtest.NewBilling()

	proc, err := servicectx.New(debugLogger, servicectx.WithoutSignals(), servicectx.WithShutdownTimeout(10*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		proc.Shutdown(nil)
		proc.WaitForShutdown()
	})

	return &mocked{
		serviceScope: newServiceScope(cfg.config, proc, debugLogger, tel, cfg.clock, backends{
			renderer:  renderer,
			telephony: telephony,
			billing:   billing,
		}),
		debugLogger: debugLogger,
		telemetry:   tel,
		clock:       cfg.clock,
		renderer:    renderer,
		telephony:   telephony,
		billing:     billing,
	}
}

func (v *mocked) DebugLogger() log.DebugLogger {
	return v.debugLogger
}

func (v *mocked) TestTelemetry() telemetry.ForTest {
	return v.telemetry
}

func (v *mocked) FakeClock() *clockwork.FakeClock {
	return v.clock
}

func (v *mocked) TestRenderer() *backendtest.Renderer {
	return v.renderer
}

func (v *mocked) TestTelephony() *backendtest.Telephony {
	return v.telephony
}

func (v *mocked) TestBilling() *backendtest.Billing {
	return v.billing
}
