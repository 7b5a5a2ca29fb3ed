package web

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/metrics"
	"github.com/dukex/stepflow/pkg/registry"
	"github.com/dukex/stepflow/pkg/workflow"
)

type ServerOptions struct {
	Runs RunAdmitter
	// Executions backs the cancel, retry, metrics and feedback routes. Nil leaves them out.
	Executions *workflow.ExecutionService
	Repository *workflow.Repository
	Registry   *registry.Registry
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	// Gatherer backs GET /metrics. Nil leaves the route out.
	Gatherer prometheus.Gatherer
	// AccessLog enables the fiber request logger.
	AccessLog bool
}

type Server struct {
	opts   ServerOptions
	logger *slog.Logger
}

func NewServer(opts ServerOptions) *Server {
	return &Server{
		opts:   opts,
		logger: log.OrNop(opts.Logger).With("module", "web"),
	}
}

// App builds the fiber application with every route registered.
func (s *Server) App() *fiber.App {
	handlers := NewAPIHandlers(
		s.opts.Runs,
		s.opts.Executions,
		s.opts.Repository,
		validator.New(validator.WithRequiredStructEnabled()),
		s.opts.Registry,
		s.logger,
	)

	app := fiber.New()
	app.Use(cors.New())

	if s.opts.AccessLog {
		app.Use(logger.New(logger.Config{
			DisableColors: true,
		}))
	}

	app.Use(s.countRequests)

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("stepflow runner")
	})

	app.Get("/health", handlers.HealthCheck)
	app.Get("/steps", handlers.GetSteps)

	r := app.Group("/runs")
	r.Get("/", handlers.ListRuns)
	r.Post("/", handlers.CreateRun)
	r.Get("/:id", handlers.GetRun)

	if s.opts.Executions != nil {
		r.Post("/:id/cancel", handlers.CancelRun)
		r.Post("/:id/retry", handlers.RetryRun)
		r.Post("/:id/metrics", handlers.RecordRunMetric)
		r.Get("/:id/feedback", handlers.GetRunFeedback)
	}

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)

	if s.opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	return app
}

// Start serves the application until it fails or is shut down.
func (s *Server) Start(app *fiber.App, port int) error {
	s.logger.Info("Starting HTTP server", "port", port)

	return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) countRequests(c fiber.Ctx) error {
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			status = fiberErr.Code
		}
	}

	s.opts.Metrics.HTTPRequest(c.Method(), c.Route().Path, strconv.Itoa(status))

	return err
}
