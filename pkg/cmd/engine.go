package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/dripflow/pkg/eventbus"
	"github.com/dukex/dripflow/pkg/mailer"
	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/dukex/dripflow/pkg/protocol"
	"github.com/dukex/dripflow/pkg/queue"
	"github.com/dukex/dripflow/pkg/state"
	"github.com/dukex/dripflow/pkg/steps"
	"github.com/dukex/dripflow/pkg/throttle"
	"github.com/dukex/dripflow/pkg/tokens"
	"github.com/dukex/dripflow/pkg/tracking"
	"github.com/dukex/dripflow/pkg/workflow"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// EngineConfig carries everything needed to evaluate workflow passes.
type EngineConfig struct {
	TrackingDomain string
	SigningSecret  string
	DryRun         bool
	RedisURL       string
	Gmail          tokens.Endpoint
	Outlook        tokens.Endpoint
	Publisher      eventbus.EventPublisher
	Tracer         trace.Tracer
	Clock          clockwork.Clock
}

// NewProcessor assembles the step evaluators, runner and processor over p.
func NewProcessor(ctx context.Context, p persistence.Persistence, config EngineConfig, logger *slog.Logger) (*workflow.Processor, error) {
	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	signer, err := tracking.NewSigner(config.SigningSecret)
	if err != nil {
		return nil, err
	}

	refresher, err := NewTokenRefresher(ctx, config, clock, logger)
	if err != nil {
		return nil, err
	}

	states := state.NewStore(p.LeadStateRepository(), clock)

	evaluator := steps.NewEvaluator(steps.Dependencies{
		States:   states,
		Breaker:  throttle.NewBreaker(p.ThrottleRepository(), clock),
		Leads:    p.LeadRepository(),
		Emails:   p.EmailRepository(),
		Accounts: p.AccountRepository(),
		Sender:   NewSender(config.DryRun, clock, logger),
		Tokens:   refresher,
		Tracker:  tracking.NewTracker(p.TrackingRepository()),
		Renderer: tracking.NewRenderer(config.TrackingDomain, signer),
		Linker:   tracking.NewLinker(config.TrackingDomain, signer),
		Clock:    clock,
	})

	runner := workflow.NewRunner(p.ExecutionRepository(), p.LeadRepository(), states, evaluator, config.Tracer, logger)

	return workflow.NewProcessor(runner, queue.NewQueue(p.QueueRepository(), clock), config.Publisher, logger), nil
}

func NewSender(dryRun bool, clock clockwork.Clock, logger *slog.Logger) protocol.Sender {
	if dryRun {
		return mailer.NewDryRunSender(logger)
	}

	return mailer.NewRouter(
		mailer.NewSMTPSender(nil, clock, logger),
		mailer.NewAPISender(nil, clock, logger),
	)
}

// NewTokenRefresher refreshes against the configured OAuth endpoints, through a Redis cache
// when a Redis URL is set.
func NewTokenRefresher(ctx context.Context, config EngineConfig, clock clockwork.Clock, logger *slog.Logger) (protocol.TokenRefresher, error) {
	endpoints := map[models.AccountProvider]tokens.Endpoint{}

	if config.Gmail.ClientID != "" {
		endpoints[models.ProviderGmail] = withDefaultURL(config.Gmail, tokens.GmailTokenURL, "")
	}

	if config.Outlook.ClientID != "" {
		endpoints[models.ProviderOutlook] = withDefaultURL(config.Outlook, tokens.OutlookTokenURL, tokens.OutlookScope)
	}

	refresher := tokens.NewRefresher(endpoints, nil, clock, logger)

	if config.RedisURL == "" {
		return refresher, nil
	}

	options, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return tokens.NewCache(client, refresher, clock, logger), nil
}

func withDefaultURL(endpoint tokens.Endpoint, tokenURL, scope string) tokens.Endpoint {
	if endpoint.TokenURL == "" {
		endpoint.TokenURL = tokenURL
	}

	if endpoint.Scope == "" {
		endpoint.Scope = scope
	}

	return endpoint
}
