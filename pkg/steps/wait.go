package steps

import (
	"github.com/dukex/dripflow/pkg/models"
)

// wait completes once delay has elapsed since the step first ran. It never sleeps.
func (e *Evaluator) wait(st *models.LeadStepState, cfg models.WaitConfig) Outcome {
	now := e.deps.Clock.Now()

	started := now
	if st.StartedAt != nil {
		started = *st.StartedAt
	}

	due := started.Add(cfg.Duration())
	if !now.Before(due) {
		return Completed()
	}

	return RetryAfter(models.RetryWait, due.Sub(now), "waiting")
}
