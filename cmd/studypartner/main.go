package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"studypartner/internal/app"
	"studypartner/internal/config"
	"studypartner/internal/logger"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// env carries the loaded config to subcommands.
type env struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "studypartner",
		Short:         "Course lecture search and question answering",
		Long:          "studypartner ingests lecture documents into per-course vector indexes and answers questions with page citations.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.cfg = cfg
			slog.SetDefault(logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat))
			return nil
		},
	}

	root.AddCommand(serveCmd(e))
	root.AddCommand(workerCmd(e))
	root.AddCommand(ingestCmd(e))
	root.AddCommand(askCmd(e))
	root.AddCommand(keysCmd(e))
	return root
}

// persistentStore opens the vector store for one-shot commands. The memory
// backend is refused there: units ingested by one invocation would be gone
// before the next could query them.
func persistentStore(ctx context.Context, cfg *config.Config) (app.VectorStore, error) {
	if cfg.VectorBackend == config.VectorBackendMemory {
		return nil, fmt.Errorf("VECTOR_BACKEND=%s only serves the long-running serve command; use %s for ingest and ask",
			config.VectorBackendMemory, config.VectorBackendWeaviate)
	}
	return app.NewVectorStore(ctx, cfg)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
