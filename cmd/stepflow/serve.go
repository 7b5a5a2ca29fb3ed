package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/web"
)

const (
	defaultPort     = 9091
	shutdownTimeout = 30 * time.Second
)

func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the HTTP runner",
		Flags: append(engineFlags(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the HTTP server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.BoolFlag{
				Name:    "access-log",
				Usage:   "Log every HTTP request",
				Sources: cli.EnvVars("ACCESS_LOG"),
			},
			&cli.BoolFlag{
				Name:    "log-events",
				Usage:   "Log run events received from the event bus",
				Sources: cli.EnvVars("LOG_EVENTS"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := log.WithModule("runner")

			eng, err := newEngine(ctx, logger, engineOptionsFrom(command))
			if err != nil {
				return err
			}

			if command.Bool("log-events") {
				if err := logRunEvents(ctx, eng.bus, logger.With("module", "run_events")); err != nil {
					return errors.Join(err, eng.close(context.WithoutCancel(ctx)))
				}
			}

			server := web.NewServer(web.ServerOptions{
				Runs:       eng.manager,
				Executions: eng.executions,
				Repository: eng.repository,
				Registry:   eng.registry,
				Logger:     logger,
				Metrics:    eng.metrics,
				Gatherer:   eng.gatherer,
				AccessLog:  command.Bool("access-log"),
			})
			app := server.App()

			go func() {
				<-ctx.Done()
				logger.Info("Shutting down HTTP server")

				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()

				if err := app.ShutdownWithContext(shutdownCtx); err != nil {
					logger.Error("Failed to shut down HTTP server", "error", err)
				}
			}()

			serveErr := server.Start(app, command.Int("port"))

			return errors.Join(serveErr, eng.close(context.WithoutCancel(ctx)))
		},
	}
}
