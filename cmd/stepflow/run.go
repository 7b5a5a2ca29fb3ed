package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/dukex/stepflow/pkg/definition"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/models"
)

var ErrMissingDefinition = errors.New("a workflow definition file is required")

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Run a workflow definition file once and print its ledger",
		ArgsUsage: "<definition.json|yaml>",
		Flags: append(engineFlags(),
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Identifier of the run. A UUID is generated when empty",
			},
			&cli.StringFlag{
				Name:  "start",
				Usage: "Step to start from instead of the definition's start node",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Do not log run events",
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return ErrMissingDefinition
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := log.WithModule("run")

			payload, err := definition.ParseFile(path)
			if err != nil {
				return err
			}

			if start := command.String("start"); start != "" {
				payload["startNodeId"] = start
			}

			runID := command.String("run-id")
			if runID == "" {
				runID = uuid.New().String()
			}

			eng, err := newEngine(ctx, logger, engineOptionsFrom(command))
			if err != nil {
				return err
			}

			if !command.Bool("quiet") {
				if err := logRunEvents(ctx, eng.bus, logger.With("module", "run_events")); err != nil {
					return errors.Join(err, eng.close(context.WithoutCancel(ctx)))
				}
			}

			execution, runErr := eng.runs.Execute(ctx, runID, payload)
			if execution != nil {
				if err := printExecution(command.Root().Writer, execution); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}

			return errors.Join(runErr, eng.close(context.WithoutCancel(ctx)))
		},
	}
}

func printExecution(w io.Writer, execution *models.WorkflowExecution) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(models.NewExecutionView(execution)); err != nil {
		return fmt.Errorf("failed to print execution: %w", err)
	}

	return nil
}
