package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/santacall/santacall/internal/pkg/log"
	"github.com/santacall/santacall/internal/pkg/service/common/cliconfig"
	"github.com/santacall/santacall/internal/pkg/service/common/httpserver"
	"github.com/santacall/santacall/internal/pkg/service/common/servicectx"
	"github.com/santacall/santacall/internal/pkg/service/santacall/api"
	"github.com/santacall/santacall/internal/pkg/service/santacall/config"
	"github.com/santacall/santacall/internal/pkg/service/santacall/dependencies"
	"github.com/santacall/santacall/internal/pkg/service/santacall/fulfillment"
	"github.com/santacall/santacall/internal/pkg/telemetry"
)

const metricsPath = "/metrics"

func serveCommand(root *RootCommand) *cobra.Command {
	cfg := config.New()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the fulfillment of the booked orders.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := root.bind(cmd, &cfg); err != nil {
				return err
			}
			return serve(cmd.Context(), root, cfg)
		},
	}

	if err := cliconfig.GenerateFlags(cfg, cmd.Flags()); err != nil {
		panic(err)
	}

	return cmd
}

func serve(ctx context.Context, root *RootCommand, cfg config.Config) error {
	format, err := log.NewLogFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	logger := log.NewServiceLogger(root.stderr, format, cfg.DebugLog)

	dump, err := cliconfig.Dump(cfg)
	if err != nil {
		return err
	}
	logger.Infof(ctx, "configuration: %s", dump.String())

	tel, err := telemetry.New()
	if err != nil {
		return err
	}

	proc, err := servicectx.New(logger, servicectx.WithShutdownTimeout(cfg.ShutdownTimeout))
	if err != nil {
		return err
	}

	proc.OnShutdown(func(ctx context.Context) {
		if err := tel.Shutdown(ctx); err != nil {
			logger.Errorf(ctx, "cannot shutdown telemetry: %s", err)
		}
	})

	d, err := dependencies.NewServiceScope(ctx, cfg, proc, logger, tel)
	if err != nil {
		return err
	}

	orders := fulfillment.New(d)
	handlers, err := api.New(d, orders, api.NewHeaderIdentityProvider())
	if err != nil {
		return err
	}
	proc.OnShutdown(func(context.Context) {
		handlers.Close()
	})

	apiServer := httpserver.New(d, httpserver.Config{
		ListenAddress: cfg.API.Listen,
		Handler:       handlers.Handler(),
		IgnoredPaths:  []string{api.HealthCheckPath},
	})
	metricsServer := httpserver.New(d, httpserver.Config{
		ListenAddress: cfg.Metrics.Listen,
		Handler:       tel.MetricsHandler(),
		IgnoredPaths:  []string{metricsPath},
	})

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error { return apiServer.Start(grpCtx) })
	grp.Go(func() error { return metricsServer.Start(grpCtx) })
	if err := grp.Wait(); err != nil {
		proc.Shutdown(err)
		proc.WaitForShutdown()
		return err
	}

	proc.WaitForShutdown()
	return nil
}
