package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/dukex/dripflow/pkg/protocol"
	"github.com/dukex/dripflow/pkg/state"
	"github.com/dukex/dripflow/pkg/throttle"
	"github.com/dukex/dripflow/pkg/tracking"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultMaxWindowRetries = 48
	DefaultMaxQuotaRetries  = 3

	DayRetryDelay    = 5 * time.Hour
	WindowRetryDelay = time.Hour
	QuotaRetryDelay  = 24 * time.Hour
	BounceRetryDelay = time.Hour
)

var ErrUnknownConfig = errors.New("unknown step config")

// Dependencies are the collaborators an Evaluator needs. Tokens may be nil when no OAuth
// provider is configured.
type Dependencies struct {
	States   *state.Store
	Breaker  *throttle.Breaker
	Leads    persistence.LeadRepository
	Emails   persistence.EmailRepository
	Accounts persistence.AccountRepository
	Sender   protocol.Sender
	Tokens   protocol.TokenRefresher
	Tracker  protocol.Tracker
	Renderer *tracking.Renderer
	Linker   *tracking.Linker
	Clock    clockwork.Clock
}

// Evaluator runs one step for one lead and records the result in the state store.
// Expected conditions are reported as an Outcome, never as an error.
type Evaluator struct {
	MaxWindowRetries int
	MaxQuotaRetries  int

	deps Dependencies
}

func NewEvaluator(deps Dependencies) *Evaluator {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	return &Evaluator{
		MaxWindowRetries: DefaultMaxWindowRetries,
		MaxQuotaRetries:  DefaultMaxQuotaRetries,
		deps:             deps,
	}
}

// Evaluate moves the step to RUNNING, runs its kind-specific logic and persists the outcome.
// A step that already reached a terminal status returns that status again without side effects.
func (e *Evaluator) Evaluate(ctx context.Context, pass *Pass, node *models.StepNode) (Outcome, error) {
	st, err := e.deps.States.GetOrCreate(ctx, pass.Lead.ID, pass.Execution.WorkflowID, node.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to load step state: %w", err)
	}

	switch st.Status {
	case models.StepStatusCompleted:
		return Outcome{Kind: OutcomeCompleted, Branch: st.BranchResult, EmailRef: st.ProducedEmailRef}, nil
	case models.StepStatusFailed:
		return Failed("step already failed"), nil
	case models.StepStatusSkipped:
		return Skipped("step already skipped"), nil
	}

	err = e.deps.States.MarkRunning(ctx, st)
	if err != nil {
		return Outcome{}, err
	}

	var outcome Outcome

	switch cfg := node.Config.(type) {
	case models.SendEmailConfig:
		outcome, err = e.sendEmail(ctx, pass, node, st, cfg)
	case models.WaitConfig:
		outcome = e.wait(st, cfg)
	case models.CheckLinkClickedConfig:
		outcome, err = e.checkLinkClicked(ctx, pass, node, cfg)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownConfig, node.Config)
	}

	if err != nil {
		return Outcome{}, err
	}

	err = e.record(ctx, st, outcome)
	if err != nil {
		return Outcome{}, err
	}

	return outcome, nil
}

func (e *Evaluator) record(ctx context.Context, st *models.LeadStepState, outcome Outcome) error {
	switch outcome.Kind {
	case OutcomeCompleted:
		return e.deps.States.Complete(ctx, st, outcome.Branch, outcome.EmailRef)
	case OutcomeFailed:
		return e.deps.States.Fail(ctx, st)
	case OutcomeSkipped:
		return e.deps.States.Skip(ctx, st)
	case OutcomeRetryAfter:
		return e.deps.States.RecordRetry(ctx, st, outcome.Retry)
	default:
		return fmt.Errorf("unexpected outcome kind %d", outcome.Kind)
	}
}

// retry defers the step unless it was already deferred limit consecutive times for kind.
func retry(st *models.LeadStepState, kind models.RetryKind, limit int, delay time.Duration, reason string) Outcome {
	attempts := st.RetriesOf(kind)
	if attempts >= limit {
		return Failed(fmt.Sprintf("%s, giving up after %d retries", reason, attempts))
	}

	return RetryAfter(kind, delay, reason)
}
