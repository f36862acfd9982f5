package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/dripflow/pkg/channels/gochannel"
	"github.com/dukex/dripflow/pkg/cmd"
	"github.com/dukex/dripflow/pkg/eventbus"
	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence/file"
	"github.com/dukex/dripflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_RunsRequestedLead(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, slog.Default())
	t.Cleanup(func() { _ = bus.Close() })

	p := file.NewPersistence(t.TempDir())

	execution := testutil.NewExecution(testutil.WaitStep("pause", 0, models.WaitUnitMinutes))
	require.NoError(t, p.ExecutionRepository().Save(t.Context(), execution))

	lead := testutil.NewLead()
	require.NoError(t, p.LeadRepository().Save(t.Context(), lead))

	processor, err := cmd.NewProcessor(t.Context(), p, cmd.EngineConfig{
		TrackingDomain: "track.example.com",
		SigningSecret:  "test-secret",
		DryRun:         true,
		Publisher:      bus,
	}, slog.Default())
	require.NoError(t, err)

	worker := NewWorker("worker-test", processor, bus, slog.Default())
	require.NoError(t, worker.Subscribe(t.Context()))

	require.NoError(t, eventbus.NewDispatcher(bus).Dispatch(t.Context(), &models.QueueItem{
		ID:          "item-1",
		LeadID:      lead.ID,
		ExecutionID: execution.ID,
		Settings:    execution.Settings,
	}))

	assert.Eventually(t, func() bool {
		loaded, err := p.LeadRepository().GetByID(t.Context(), lead.ID)

		return err == nil && loaded.WorkflowStatus == models.LeadWorkflowCompleted
	}, 5*time.Second, 50*time.Millisecond)
}
