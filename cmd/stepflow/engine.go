package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/stepflow/pkg/cmd"
	"github.com/dukex/stepflow/pkg/definition"
	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/expression"
	"github.com/dukex/stepflow/pkg/metrics"
	"github.com/dukex/stepflow/pkg/otelhelper"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/registry"
	"github.com/dukex/stepflow/pkg/session"
	"github.com/dukex/stepflow/pkg/sink"
	"github.com/dukex/stepflow/pkg/workflow"
)

const (
	defaultDatabaseURL    = "file://./data"
	defaultSessionTimeout = 30 * time.Second
)

type engineOptions struct {
	DatabaseURL    string
	EventBus       string
	KafkaBrokers   string
	PluginsPath    string
	MaxConcurrency int
	Tracing        bool
	SessionTimeout time.Duration
}

// engineFlags are shared by every command that runs workflows.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Persistence URL (file path, postgres:// or redis://)",
			Value:   defaultDatabaseURL,
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus provider (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers, used when the event bus is kafka",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:  "plugins-path",
			Usage: "Directory holding step plugins under steps/",
		},
		&cli.IntFlag{
			Name:    "max-concurrency",
			Usage:   "Maximum number of runs executing at once",
			Value:   1,
			Sources: cli.EnvVars("MAX_CONCURRENCY"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces over OTLP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.DurationFlag{
			Name:    "session-timeout",
			Usage:   "Timeout of requests made through the run session",
			Value:   defaultSessionTimeout,
			Sources: cli.EnvVars("SESSION_TIMEOUT"),
		},
	}
}

func engineOptionsFrom(command *cli.Command) engineOptions {
	return engineOptions{
		DatabaseURL:    command.String("database-url"),
		EventBus:       command.String("event-bus"),
		KafkaBrokers:   command.String("kafka-brokers"),
		PluginsPath:    command.String("plugins-path"),
		MaxConcurrency: command.Int("max-concurrency"),
		Tracing:        command.Bool("otel"),
		SessionTimeout: command.Duration("session-timeout"),
	}
}

// engine holds everything a stepflow process needs to admit and execute runs.
type engine struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	bus         eventbus.EventBus
	registry    *registry.Registry
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	tracer      trace.Tracer
	runs        *workflow.RunWorkflow
	manager     *workflow.RunManager
	executions  *workflow.ExecutionService
	repository  *workflow.Repository

	shutdownTracer func(context.Context) error
}

func newEngine(ctx context.Context, logger *slog.Logger, opts engineOptions) (*engine, error) {
	e := &engine{logger: logger, shutdownTracer: func(context.Context) error { return nil }}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e.metrics = metrics.New(promRegistry)
	e.gatherer = promRegistry

	e.tracer = otelhelper.NoopTracer()

	if opts.Tracing {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, "stepflow")
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer: %w", err)
		}

		e.tracer = tracer
		e.shutdownTracer = shutdown
	}

	reg, err := cmd.NewRegistry(logger, opts.PluginsPath)
	if err != nil {
		return nil, errors.Join(err, e.shutdownTracer(ctx))
	}

	e.registry = reg

	store, err := cmd.NewPersistence(ctx, logger, opts.DatabaseURL)
	if err != nil {
		return nil, errors.Join(err, e.shutdownTracer(ctx))
	}

	e.persistence = store
	e.repository = workflow.NewRepository(store)

	bus, err := cmd.NewEventBus(opts.EventBus, logger, opts.KafkaBrokers)
	if err != nil {
		return nil, errors.Join(err, e.close(ctx))
	}

	e.bus = bus

	e.runs, err = workflow.NewRunWorkflow(workflow.RunWorkflowOptions{
		RunnerFactory: workflow.ExecutorFactory(workflow.ExecutorOptions{
			Registry:       reg,
			SessionFactory: session.HTTPFactory(opts.SessionTimeout),
			SinkFactory:    sink.Factory(bus, e.metrics),
			Publisher:      sink.Publisher(bus, e.metrics),
			Evaluator:      expression.NewEvaluator(),
			Logger:         logger,
			Tracer:         e.tracer,
			Metrics:        e.metrics,
		}),
		Loader:     definition.NewLoader(reg).Load,
		Executions: store,
		Workflows:  store,
		Logger:     logger,
	})
	if err != nil {
		return nil, errors.Join(err, e.close(ctx))
	}

	e.manager, err = workflow.NewRunManager(workflow.RunManagerOptions{
		MaxConcurrency: opts.MaxConcurrency,
		Run:            e.runs.Run,
		Logger:         logger,
		Metrics:        e.metrics,
	})
	if err != nil {
		return nil, errors.Join(err, e.close(ctx))
	}

	e.executions, err = workflow.NewExecutionService(workflow.ExecutionServiceOptions{
		Executions: store,
		Workflows:  store,
		Runs:       e.manager,
		Logger:     logger,
	})
	if err != nil {
		return nil, errors.Join(err, e.close(ctx))
	}

	return e, nil
}

// close waits for admitted runs, then releases the bus, the store and the tracer.
func (e *engine) close(ctx context.Context) error {
	if e.manager != nil {
		e.manager.Wait()
	}

	var errs []error

	if e.bus != nil {
		if err := e.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event bus: %w", err))
		}
	}

	if e.persistence != nil {
		if err := e.persistence.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close persistence: %w", err))
		}
	}

	if err := e.shutdownTracer(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down tracer: %w", err))
	}

	return errors.Join(errs...)
}
