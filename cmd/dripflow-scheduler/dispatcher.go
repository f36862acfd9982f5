// Package main provides the dripflow scheduler, which claims due queue items on a fixed tick.
package main

import (
	"context"
	"log/slog"

	"github.com/dukex/dripflow/pkg/cmd"
	"github.com/dukex/dripflow/pkg/eventbus"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/dukex/dripflow/pkg/protocol"
)

// newDispatcher publishes claimed items to workers, or runs them in process when inline is set.
func newDispatcher(
	ctx context.Context,
	inline bool,
	p persistence.Persistence,
	bus eventbus.EventBus,
	engine cmd.EngineConfig,
	logger *slog.Logger,
) (protocol.Dispatcher, error) {
	if !inline {
		return eventbus.NewDispatcher(bus), nil
	}

	logger.InfoContext(ctx, "Running workflow passes inline")

	processor, err := cmd.NewProcessor(ctx, p, engine, logger)
	if err != nil {
		return nil, err
	}

	return processor, nil
}
