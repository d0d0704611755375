package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"studypartner/internal/adapter/redis"
	"studypartner/internal/app"
	"studypartner/internal/config"
	"studypartner/internal/keys"
	"studypartner/internal/metrics"
)

func askCmd(e *env) *cobra.Command {
	var course string

	cmd := &cobra.Command{
		Use:   `ask --course <course> "question"`,
		Short: "Answer a question from a course's lectures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			store, err := persistentStore(ctx, e.cfg)
			if err != nil {
				return err
			}

			keyStore, closeKeys := sharedKeyStore(cmd, e.cfg)
			defer closeKeys()

			svc, err := app.NewServices(e.cfg, store, keyStore, metrics.Default)
			if err != nil {
				return err
			}
			defer svc.Close()

			resp := svc.Answers.Answer(ctx, strings.Join(args, " "), course)
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			if resp.ErrorKind != "" {
				return fmt.Errorf("answer failed: %s", resp.ErrorKind)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&course, "course", "", "course slug (required)")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

// sharedKeyStore connects to the Redis key pool once. When Redis is down the
// returned store is nil and the services rotate in process.
func sharedKeyStore(cmd *cobra.Command, cfg *config.Config) (keys.Store, func()) {
	client, err := redis.NewClient(cmd.Context(), cfg.RedisURL)
	if err != nil {
		slog.Warn("redis unavailable, key rotation is local to this process", "error", err)
		return nil, func() {}
	}
	return redis.NewKeyPool(client, cfg.KeyPoolName), func() { _ = client.Close() }
}
