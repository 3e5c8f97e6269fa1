package core_test

import (
	"testing"

	"github.com/devblok/triangle/core"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := core.Errorf(core.SubmissionError, "vk.QueueSubmit", "queue rejected batch").WithCondition(core.DeviceLost)
	assert.Equal(t, "vk.QueueSubmit(): submission error: queue rejected batch [device lost]", err.Error())
	assert.True(t, err.Retryable())
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := core.Errorf(core.MissingDependencyError, "op", "render pass is absent")
	wrapped := errors.Wrap(base, "building frame")

	assert.Equal(t, core.MissingDependencyError, core.KindOf(wrapped))
	assert.True(t, core.IsKind(wrapped, core.MissingDependencyError))
	assert.False(t, core.IsKind(nil, core.MissingDependencyError))
	assert.Equal(t, core.UnknownError, core.KindOf(errors.New("plain")))
	assert.Nil(t, core.Wrap(core.RecordingError, "op", nil))
}

func TestRetryOnlyRetriesTransientFailures(t *testing.T) {
	calls := 0
	err := core.Retry(3, func(int) error {
		calls++
		return core.Errorf(core.ResourceCreationFailure, "op", "no memory").WithCondition(core.OutOfMemory)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, core.IsRetryable(err))

	calls = 0
	err = core.Retry(3, func(int) error {
		calls++
		return core.Errorf(core.RecordingError, "op", "draw before bind")
	})
	assert.Equal(t, 1, calls)
	assert.True(t, core.IsKind(err, core.RecordingError))

	calls = 0
	err = core.Retry(3, func(attempt int) error {
		calls++
		if attempt == 0 {
			return core.Errorf(core.SubmissionError, "op", "lost").WithCondition(core.DeviceLost)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}
