package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/xavierca1/dj-funnel/internal/config"
	"github.com/xavierca1/dj-funnel/internal/infra/database"
	"github.com/xavierca1/dj-funnel/internal/infra/lock"
	"github.com/xavierca1/dj-funnel/internal/infra/queue"
	"github.com/xavierca1/dj-funnel/internal/usecase"
)

var errSweepLocked = errors.New("another sweep is running")

func newSweepCommand() *cobra.Command {
	var (
		dryRun bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Queue recovery emails for abandoned USB carts",
		Long: "Finds unpaid USB leads created between 30 minutes and 48 hours ago, " +
			"queues one recovery email per lead and tags it. Prints the run summary as JSON.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Load()

			db, err := database.NewDBConnection(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			var syncer usecase.LeadSyncer
			if !dryRun {
				rmq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
				if err != nil {
					log.Printf("⚠️ rabbitmq unavailable, subscriber re-sync disabled: %v", err)
				} else {
					defer rmq.Close()
					syncer = queue.NewProducer(rmq.Ch)
				}
			}

			sweeper := usecase.NewSweepAbandonedCartsUseCase(
				database.NewLeadRepository(db),
				database.NewEmailQueueRepository(db),
				syncer,
				cfg.CheckoutURL,
			)
			if limit > 0 {
				sweeper.Limit = limit
			}

			if !dryRun && cfg.RedisURL != "" {
				opts, err := redis.ParseURL(cfg.RedisURL)
				if err != nil {
					return fmt.Errorf("parse REDIS_URL: %w", err)
				}
				client := redis.NewClient(opts)
				defer client.Close()

				l := lock.NewRedisLock(client, "abandoned_cart_sweep", 10*time.Minute)
				ok, err := l.Acquire(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return errSweepLocked
				}
				defer l.Release(context.WithoutCancel(ctx))
			}

			summary, err := sweeper.Execute(ctx, dryRun)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report eligible leads without queuing or tagging")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum candidates to load (default 200)")

	return cmd
}
