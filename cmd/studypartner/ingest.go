package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"studypartner/internal/app"
	"studypartner/internal/metrics"
)

func ingestCmd(e *env) *cobra.Command {
	var course string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest lecture documents into a course index",
		Long: `Segments, embeds and tags each file and writes its units to the course
index. Files are processed in order; a failing file does not stop the rest.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			store, err := persistentStore(ctx, e.cfg)
			if err != nil {
				return err
			}

			svc, err := app.NewServices(e.cfg, store, nil, metrics.Default)
			if err != nil {
				return err
			}
			defer svc.Close()

			var errs []error
			for _, path := range args {
				units, err := svc.Pipeline.IngestFile(ctx, path, course)
				if err != nil {
					slog.ErrorContext(ctx, "ingest failed", "path", path, "course", course, "error", err)
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d units\n", path, len(units))
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVar(&course, "course", "", "course slug (required)")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}
