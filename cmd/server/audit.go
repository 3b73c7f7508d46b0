package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clearance/internal/platform/config"
	kafkaconsumer "clearance/internal/platform/kafka/consumer"
	"clearance/internal/platform/logger"
	"clearance/internal/platform/postgres"
	auditconsumer "clearance/pkg/platform/audit/consumer"
	auditpostgres "clearance/pkg/platform/audit/store/postgres"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit log maintenance",
	}
	cmd.AddCommand(replayCmd())
	return cmd
}

func replayCmd() *cobra.Command {
	var (
		fromStart bool
		idle      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-append dead-lettered audit entries to the audit store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := postgres.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			replay := auditconsumer.NewReplayHandler(auditpostgres.New(db), log)
			router := auditconsumer.NewRouter(log)
			router.Register(cfg.Kafka.DeadLetterTopic, replay)

			c, err := kafkaconsumer.New(kafkaconsumer.Config{
				Brokers:      cfg.Kafka.Brokers,
				GroupID:      cfg.Kafka.ReplayGroup,
				Topics:       router.Topics(),
				ResetToStart: fromStart,
			}, log)
			if err != nil {
				return err
			}
			defer c.Close()

			runCtx := ctx
			if idle > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, idle)
				defer cancel()
			}

			log.InfoContext(ctx, "replaying audit dead letters", "topic", cfg.Kafka.DeadLetterTopic, "group", cfg.Kafka.ReplayGroup)
			err = c.Run(runCtx, router)
			replayed, skipped := replay.Stats()
			log.InfoContext(ctx, "audit replay stopped", "replayed", replayed, "skipped", skipped)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromStart, "from-start", true, "consume from the earliest offset when the group has none committed")
	cmd.Flags().DurationVar(&idle, "for", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}
