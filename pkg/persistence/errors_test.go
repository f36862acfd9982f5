package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("state error unwraps to sentinel", func(t *testing.T) {
		err := persistence.NewStateError("Get", "lead-1", "wf-1", "step-1", persistence.ErrLeadStepStateNotFound)

		assert.True(t, errors.Is(err, persistence.ErrLeadStepStateNotFound))
		assert.True(t, persistence.IsNotFound(err))
		assert.False(t, persistence.IsLeadNotFound(err))
	})

	t.Run("state error contains context", func(t *testing.T) {
		err := persistence.NewStateError("Update", "lead-1", "wf-1", "step-1", persistence.ErrLeadStepStateNotFound)

		assert.Contains(t, err.Error(), "Update")
		assert.Contains(t, err.Error(), "lead-1")
		assert.Contains(t, err.Error(), "step-1")
		assert.Contains(t, err.Error(), "wf-1")
		assert.Contains(t, err.Error(), "lead step state not found")
	})

	t.Run("entity error survives further wrapping", func(t *testing.T) {
		err := fmt.Errorf("loading pass: %w", persistence.NewEntityError("GetByID", "lead", "lead-9", persistence.ErrLeadNotFound))

		assert.True(t, persistence.IsLeadNotFound(err))
		assert.True(t, persistence.IsNotFound(err))
		assert.Contains(t, err.Error(), "lead lead-9")

		var entityErr *persistence.EntityError
		assert.True(t, errors.As(err, &entityErr))
		assert.Equal(t, "lead", entityErr.Entity)
	})

	t.Run("unrelated errors are not not-found", func(t *testing.T) {
		assert.False(t, persistence.IsNotFound(errors.New("connection refused")))
		assert.False(t, persistence.IsExecutionNotFound(nil))
	})
}
