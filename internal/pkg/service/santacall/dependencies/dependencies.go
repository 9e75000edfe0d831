// Package dependencies provides the dependency container of the santacall service.
//
// The container is created once per process by NewServiceScope.
// Tests use NewMockedServiceScope, which replaces the external backends by in-memory fakes
// and the real clock by a fake clock.
package dependencies

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/santacall/santacall/internal/pkg/log"
	"github.com/santacall/santacall/internal/pkg/service/common/servicectx"
	"github.com/santacall/santacall/internal/pkg/service/santacall/backend"
	"github.com/santacall/santacall/internal/pkg/service/santacall/config"
	"github.com/santacall/santacall/internal/pkg/service/santacall/repository"
	"github.com/santacall/santacall/internal/pkg/service/santacall/timewindow"
	"github.com/santacall/santacall/internal/pkg/telemetry"
	"github.com/santacall/santacall/internal/pkg/validator"
)

type ServiceScope interface {
	Logger() log.Logger
	Clock() clockwork.Clock
	Process() *servicectx.Process
	Telemetry() telemetry.Telemetry
	Validator() validator.Validator
	Config() config.Config
	SlotValidator() *timewindow.Validator
	Repository() *repository.Repository
	Renderer() backend.Renderer
	Telephony() backend.Telephony
	Billing() backend.Billing
}

// serviceScope implements ServiceScope interface.
type serviceScope struct {
	logger        log.Logger
	clock         clockwork.Clock
	proc          *servicectx.Process
	telemetry     telemetry.Telemetry
	validator     validator.Validator
	config        config.Config
	slotValidator *timewindow.Validator
	repository    *repository.Repository
	renderer      backend.Renderer
	telephony     backend.Telephony
	billing       backend.Billing
}

type backends struct {
	renderer  backend.Renderer
	telephony backend.Telephony
	billing   backend.Billing
}

func NewServiceScope(ctx context.Context, cfg config.Config, proc *servicectx.Process, logger log.Logger, tel telemetry.Telemetry) (ServiceScope, error) {
	clients, err := backend.NewClients(logger, cfg.Backends)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "service dependencies initialized")
	return newServiceScope(cfg, proc, logger, tel, clockwork.NewRealClock(), backends{
		renderer:  clients.Renderer,
		telephony: clients.Telephony,
		billing:   clients.Billing,
	}), nil
}

func newServiceScope(cfg config.Config, proc *servicectx.Process, logger log.Logger, tel telemetry.Telemetry, clk clockwork.Clock, b backends) *serviceScope {
	return &serviceScope{
		logger:        logger,
		clock:         clk,
		proc:          proc,
		telemetry:     tel,
		validator:     validator.New(),
		config:        cfg,
		slotValidator: timewindow.NewValidator(cfg.TimeWindow),
		repository:    repository.New(),
		renderer:      b.renderer,
		telephony:     b.telephony,
		billing:       b.billing,
	}
}

func (v *serviceScope) Logger() log.Logger {
	return v.logger
}

func (v *serviceScope) Clock() clockwork.Clock {
	return v.clock
}

func (v *serviceScope) Process() *servicectx.Process {
	return v.proc
}

func (v *serviceScope) Telemetry() telemetry.Telemetry {
	return v.telemetry
}

func (v *serviceScope) Validator() validator.Validator {
	return v.validator
}

func (v *serviceScope) Config() config.Config {
	return v.config
}

func (v *serviceScope) SlotValidator() *timewindow.Validator {
	return v.slotValidator
}

func (v *serviceScope) Repository() *repository.Repository {
	return v.repository
}

func (v *serviceScope) Renderer() backend.Renderer {
	return v.renderer
}

func (v *serviceScope) Telephony() backend.Telephony {
	return v.telephony
}

func (v *serviceScope) Billing() backend.Billing {
	return v.billing
}
