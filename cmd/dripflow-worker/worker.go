// Package main provides the dripflow worker, which runs one workflow pass per queued lead.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/dripflow/pkg/eventbus"
	"github.com/dukex/dripflow/pkg/events"
	"github.com/dukex/dripflow/pkg/workflow"
)

type Worker struct {
	id        string
	logger    *slog.Logger
	processor *workflow.Processor
	eventBus  eventbus.EventBus
}

func NewWorker(id string, processor *workflow.Processor, eventBus eventbus.EventBus, logger *slog.Logger) *Worker {
	return &Worker{
		id:        id,
		logger:    logger,
		processor: processor,
		eventBus:  eventBus,
	}
}

// Subscribe registers the run handler and starts consuming.
func (w *Worker) Subscribe(ctx context.Context) error {
	err := w.eventBus.Handle(events.LeadRunRequestedEvent, w.processor.HandleRunRequested)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	return nil
}

func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := w.Subscribe(ctx)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}
