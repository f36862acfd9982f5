package main

import (
	"context"
	"os"

	"github.com/dukex/dripflow/pkg/cmd"
	"github.com/dukex/dripflow/pkg/log"
	"github.com/dukex/dripflow/pkg/otelhelper"
	"github.com/dukex/dripflow/pkg/tokens"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "dripflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Run workflow passes for queued leads",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:     "tracking-domain",
				Usage:    "Public host serving click and unsubscribe links",
				Required: true,
				Sources:  cli.EnvVars("TRACKING_DOMAIN"),
			},
			&cli.StringFlag{
				Name:     "signing-secret",
				Usage:    "Secret used to sign tracking and unsubscribe tokens",
				Required: true,
				Sources:  cli.EnvVars("SIGNING_SECRET"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the OAuth token cache (disabled when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "gmail-client-id",
				Sources: cli.EnvVars("GMAIL_CLIENT_ID"),
			},
			&cli.StringFlag{
				Name:    "gmail-client-secret",
				Sources: cli.EnvVars("GMAIL_CLIENT_SECRET"),
			},
			&cli.StringFlag{
				Name:    "outlook-client-id",
				Sources: cli.EnvVars("OUTLOOK_CLIENT_ID"),
			},
			&cli.StringFlag{
				Name:    "outlook-client-secret",
				Sources: cli.EnvVars("OUTLOOK_CLIENT_SECRET"),
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "Log emails instead of sending them",
				Sources: cli.EnvVars("DRY_RUN"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("dripflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing dripflow worker")

			eventBus := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), "dripflow-worker", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			config := cmd.EngineConfig{
				TrackingDomain: command.String("tracking-domain"),
				SigningSecret:  command.String("signing-secret"),
				DryRun:         command.Bool("dry-run"),
				RedisURL:       command.String("redis-url"),
				Gmail: tokens.Endpoint{
					ClientID:     command.String("gmail-client-id"),
					ClientSecret: command.String("gmail-client-secret"),
				},
				Outlook: tokens.Endpoint{
					ClientID:     command.String("outlook-client-id"),
					ClientSecret: command.String("outlook-client-secret"),
				},
				Publisher: eventBus,
			}

			if command.Bool("tracing") {
				tracer, shutdown, err := otelhelper.NewTracer(ctx, "dripflow-worker")
				if err != nil {
					return err
				}

				defer func() {
					err := shutdown(context.WithoutCancel(ctx))
					if err != nil {
						logger.ErrorContext(ctx, "Failed to shut down tracer", "error", err)
					}
				}()

				config.Tracer = tracer
			}

			processor, err := cmd.NewProcessor(ctx, persistence, config, logger)
			if err != nil {
				return err
			}

			worker := NewWorker(workerID, processor, eventBus, logger)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
