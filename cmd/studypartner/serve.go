package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/spf13/cobra"

	"studypartner/internal/app"
	"studypartner/internal/config"
	"studypartner/internal/metrics"
	"studypartner/internal/worker"
)

func serveCmd(e *env) *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			deps, err := app.Bootstrap(ctx, e.cfg)
			if err != nil {
				return err
			}
			defer deps.Close()

			svc, err := app.NewServices(e.cfg, deps.VectorStore, deps.KeyStore, metrics.Default)
			if err != nil {
				return err
			}
			defer svc.Close()

			a := app.New(e.cfg, deps.DB, svc, deps.NSQProducer, slog.Default())

			if withWorker {
				consumer, err := startConsumer(e.cfg, a.IngestConsumer)
				if err != nil {
					return err
				}
				defer stopConsumer(consumer)
			}

			return a.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&withWorker, "worker", true, "also consume ingest tasks in this process")
	return cmd
}

func workerCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume queued ingest tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			deps, err := app.Bootstrap(ctx, e.cfg)
			if err != nil {
				return err
			}
			defer deps.Close()

			svc, err := app.NewServices(e.cfg, deps.VectorStore, deps.KeyStore, metrics.Default)
			if err != nil {
				return err
			}
			defer svc.Close()

			a := app.New(e.cfg, deps.DB, svc, deps.NSQProducer, slog.Default())
			consumer, err := startConsumer(e.cfg, a.IngestConsumer)
			if err != nil {
				return err
			}

			<-ctx.Done()
			stopConsumer(consumer)
			return nil
		},
	}
}

func startConsumer(cfg *config.Config, h *worker.IngestConsumer) (*nsq.Consumer, error) {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxAttempts = worker.DefaultMaxAttempts
	nsqCfg.MsgTimeout = cfg.IngestTimeout() + time.Minute

	consumer, err := nsq.NewConsumer(config.TopicIngestDocument, config.ChannelIngestWorker, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddHandler(h)

	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		return nil, fmt.Errorf("failed to connect to NSQLookupd: %w", err)
	}
	slog.Info("ingest consumer connected", "topic", config.TopicIngestDocument, "channel", config.ChannelIngestWorker)
	return consumer, nil
}

func stopConsumer(c *nsq.Consumer) {
	c.Stop()
	<-c.StopChan
	slog.Info("ingest consumer stopped")
}
