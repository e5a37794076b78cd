package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorClassification(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		err := NotFoundError("OPERATION")
		assert.True(t, IsNotFound(err))
		assert.Equal(t, "OPERATION_NOT_FOUND", GetErrorCode(err))
		assert.Equal(t, "OPERATION not found", err.Error())
	})

	t.Run("wrapped invalid state survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("cancel: %w", InvalidStateError("operation", "already completed"))
		assert.True(t, IsInvalidState(err))
		assert.False(t, IsNotFound(err))
		assert.Equal(t, "INVALID_STATE", GetErrorCode(err))
	})

	t.Run("step execution carries step type and cause", func(t *testing.T) {
		cause := errors.New("bridge rejected transfer")
		err := StepExecutionError("bridge_to_target", cause)
		assert.True(t, IsStepExecution(err))
		assert.Contains(t, err.Error(), "bridge_to_target")
		assert.Contains(t, err.Error(), "bridge rejected transfer")
		assert.Equal(t, "bridge_to_target", GetErrorDetails(err)["step_type"])
	})

	t.Run("service unavailable", func(t *testing.T) {
		err := ServiceUnavailableError("quote", nil)
		assert.True(t, IsServiceUnavailable(err))
		assert.Equal(t, "SERVICE_UNAVAILABLE", GetErrorCode(err))
	})

	t.Run("internal keeps the cause", func(t *testing.T) {
		err := InternalError("persist step checkpoint", errors.New("db down"))
		assert.True(t, IsInternal(err))
		assert.Equal(t, "persist step checkpoint: db down", err.Error())
		assert.Equal(t, "db down", GetErrorDetails(err)["cause"])
	})

	t.Run("plain errors have unknown code", func(t *testing.T) {
		assert.Equal(t, "UNKNOWN_ERROR", GetErrorCode(errors.New("boom")))
		assert.Nil(t, GetErrorDetails(errors.New("boom")))
	})
}
