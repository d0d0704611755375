package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"studypartner/internal/adapter/redis"
	"studypartner/internal/keys"
	"studypartner/internal/metrics"
)

func keysCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect or seed the shared API key pool",
	}

	withPool := func(cmd *cobra.Command, fn func(pool *redis.KeyPool, r *keys.Rotator) error) error {
		client, err := redis.NewClient(cmd.Context(), e.cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		pool := redis.NewKeyPool(client, e.cfg.KeyPoolName)
		return fn(pool, keys.NewRotator(pool, e.cfg.APIKeys, metrics.Default))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the pool in rotation order, masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd, func(_ *redis.KeyPool, r *keys.Rotator) error {
				pool, err := r.Pool(cmd.Context())
				if err != nil {
					return err
				}
				if len(pool) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "key pool is empty")
					return nil
				}
				for i, k := range pool {
					fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, keys.Mask(k))
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Fill an empty pool from API_KEYS",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd, func(_ *redis.KeyPool, r *keys.Rotator) error {
				seeded, err := r.Seed(cmd.Context())
				if err != nil {
					return err
				}
				if seeded {
					fmt.Fprintf(cmd.OutOrStdout(), "seeded %d keys\n", len(e.cfg.APIKeys))
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "pool already populated, left unchanged")
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Replace the pool with API_KEYS",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd, func(pool *redis.KeyPool, r *keys.Rotator) error {
				if err := pool.Reset(cmd.Context()); err != nil {
					return err
				}
				if _, err := r.Seed(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pool reset to %d keys\n", len(e.cfg.APIKeys))
				return nil
			})
		},
	})

	return cmd
}
