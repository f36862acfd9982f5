// Package main provides the dripflow API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/dripflow/pkg/eventbus"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/dukex/dripflow/pkg/queue"
	"github.com/dukex/dripflow/pkg/services"
	"github.com/dukex/dripflow/pkg/tracking"
	"github.com/dukex/dripflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/jonboulle/clockwork"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	signer      *tracking.Signer
	validate    *validator.Validate
	clock       clockwork.Clock
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	signingSecret string,
) (*API, error) {
	signer, err := tracking.NewSigner(signingSecret)
	if err != nil {
		return nil, err
	}

	return &API{
		persistence: persistence,
		logger:      logger,
		eventBus:    eventBus,
		signer:      signer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		clock:       clockwork.NewRealClock(),
	}, nil
}

func (a *API) App() *fiber.App {
	q := queue.NewQueue(a.persistence.QueueRepository(), a.clock)
	publishing := services.NewPublishing(a.persistence, q, a.logger)

	var publisher eventbus.EventPublisher
	if a.eventBus != nil {
		publisher = a.eventBus
	}

	handlers := web.NewAPIHandlers(publishing, a.persistence, a.signer, publisher, a.validate, a.clock, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("dripflow API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
