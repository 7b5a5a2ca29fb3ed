package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dukex/stepflow/pkg/cmd"
	"github.com/dukex/stepflow/pkg/definition"
	"github.com/dukex/stepflow/pkg/log"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate workflow definition files without running them",
		ArgsUsage: "<definition>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "plugins-path",
				Usage: "Directory holding step plugins under steps/",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			paths := command.Args().Slice()
			if len(paths) == 0 {
				return ErrMissingDefinition
			}

			logger := log.WithModule("validate")

			reg, err := cmd.NewRegistry(logger, command.String("plugins-path"))
			if err != nil {
				return err
			}

			return validateFiles(command.Root().Writer, definition.NewLoader(reg), paths)
		},
	}
}

// validateFiles reports every file and fails when at least one is invalid.
func validateFiles(w io.Writer, loader *definition.Loader, paths []string) error {
	invalid := 0

	for _, path := range paths {
		loaded, err := loader.LoadFile(path)
		if err != nil {
			invalid++

			_, _ = fmt.Fprintf(w, "INVALID %s: %v\n", path, err)

			continue
		}

		wf := loaded.Workflow
		_, _ = fmt.Fprintf(w, "VALID   %s: %s (%s), %d steps, start %s, entry steps [%s]\n",
			path, wf.Name(), wf.ID(), len(wf.Nodes()), loaded.StartNodeID, strings.Join(wf.StartNodeIDs(), ", "))
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d definitions are invalid", invalid, len(paths))
	}

	return nil
}
