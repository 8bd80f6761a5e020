package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/accountpool/internal/adapters/codec"
	"github.com/bnema/accountpool/internal/adapters/httpapi"
	"github.com/bnema/accountpool/internal/application"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(app *app) *cobra.Command {
	var (
		listen      string
		role        string
		noScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pool scheduler, event router and HTTP API",
		Long:  "serve runs one fleet process: it rotates due pools, relays job cancellations and stream events over the shared bus, and exposes the HTTP API with /metrics and /healthz.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen == "" {
				listen = app.cfg.HTTP.Listen
			}
			if role == "" {
				role = app.cfg.Process.Role
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, app, listen, role, !noScheduler)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (default from http.listen)")
	cmd.Flags().StringVar(&role, "role", "", "Process role: coordinator or worker (default from process.role)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Do not run the rotation scheduler in this process")

	return cmd
}

func runServe(ctx context.Context, app *app, listen, rawRole string, withScheduler bool) error {
	role, err := application.ParseRole(rawRole)
	if err != nil {
		return err
	}
	if role == application.RoleWorker && app.cfg.Redis.Addr == "" {
		app.logger.Warn("worker role without redis: broadcasts stay in this process and nothing relays them")
	}

	envelopes, err := codec.NewCBOR()
	if err != nil {
		return fmt.Errorf("build event codec: %w", err)
	}

	logger := app.logger.With("process", app.cfg.Process.ID, "role", role)
	router := application.NewEventRouter(role, app.cfg.Process.ID, app.bus, envelopes, application.NewStreamRegistry(), logger)

	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listen, err)
	}

	handler := httpapi.NewHandler(httpapi.Deps{
		Pools:          app.pools,
		Acquirer:       app.acquirer,
		Rotator:        app.queue,
		Requests:       app.requests,
		Generations:    app.pools,
		Streams:        router.Streams(),
		Events:         router,
		Jobs:           app.jobs,
		MaxJobsPerUser: app.cfg.Jobs.MaxPerUser,
		Logger:         logger,
	})

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return router.Run(ctx)
	})
	group.Go(func() error {
		return app.jobs.Listen(ctx)
	})
	if withScheduler {
		scheduler := application.NewScheduler(app.queue, app.repo, app.cfg.Scheduler.Interval, logger)
		group.Go(func() error {
			return scheduler.Run(ctx)
		})
	}
	group.Go(func() error {
		return httpapi.Serve(ctx, listener, handler.Router(), logger)
	})

	logger.Info("apool serving", "listen", listener.Addr().String(), "scheduler", withScheduler)
	return group.Wait()
}
