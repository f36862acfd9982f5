package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/dripflow/pkg/cmd"
	"github.com/dukex/dripflow/pkg/log"
	"github.com/dukex/dripflow/pkg/queue"
	"github.com/jonboulle/clockwork"
	cli "github.com/urfave/cli/v3"
)

func main() {
	err := newCommand().Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "dripflow-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Claim due leads and hand them to workers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Maximum queue items claimed per tick",
				Value:   queue.DefaultBatchSize,
				Sources: cli.EnvVars("SCHEDULER_BATCH_SIZE"),
			},
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "Time between scheduling ticks",
				Value:   queue.DefaultInterval,
				Sources: cli.EnvVars("SCHEDULER_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:    "stuck-timeout",
				Usage:   "Age after which a claimed but unprocessed item is released",
				Value:   queue.DefaultStuckTimeout,
				Sources: cli.EnvVars("SCHEDULER_STUCK_TIMEOUT"),
			},
			&cli.Float64Flag{
				Name:    "dispatch-rate",
				Usage:   "Maximum dispatches per second (0 for unlimited)",
				Sources: cli.EnvVars("SCHEDULER_DISPATCH_RATE"),
			},
			&cli.BoolFlag{
				Name:    "inline",
				Usage:   "Run passes in this process instead of publishing them to workers",
				Sources: cli.EnvVars("SCHEDULER_INLINE"),
			},
			&cli.StringFlag{
				Name:    "tracking-domain",
				Usage:   "Public host serving click and unsubscribe links (inline mode)",
				Sources: cli.EnvVars("TRACKING_DOMAIN"),
			},
			&cli.StringFlag{
				Name:    "signing-secret",
				Usage:   "Secret used to sign tracking and unsubscribe tokens (inline mode)",
				Sources: cli.EnvVars("SIGNING_SECRET"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the OAuth token cache (inline mode)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "Log emails instead of sending them (inline mode)",
				Sources: cli.EnvVars("DRY_RUN"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.SetupWithFormat(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("dripflow-scheduler")

			logger.InfoContext(ctx, "Initializing dripflow scheduler")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), "dripflow-scheduler", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			engine := cmd.EngineConfig{
				TrackingDomain: command.String("tracking-domain"),
				SigningSecret:  command.String("signing-secret"),
				DryRun:         command.Bool("dry-run"),
				RedisURL:       command.String("redis-url"),
				Publisher:      eventBus,
			}

			dispatcher, err := newDispatcher(ctx, command.Bool("inline"), persistence, eventBus, engine, logger)
			if err != nil {
				return err
			}

			config := queue.DefaultConfig()
			config.BatchSize = int(command.Int("batch-size"))
			config.Interval = command.Duration("interval")
			config.StuckTimeout = command.Duration("stuck-timeout")
			config.DispatchRate = command.Float64("dispatch-rate")

			scheduler := queue.NewScheduler(persistence.QueueRepository(), dispatcher, clockwork.NewRealClock(), config, logger)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = scheduler.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Scheduler stopped with error", "error", err)

				return err
			}

			logger.InfoContext(ctx, "Shutting down scheduler...")

			return nil
		},
	}
}
