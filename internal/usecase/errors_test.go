package usecase

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	require.Equal(t, "usecase: INVALID_INPUT/empty_question", newError(ErrorInvalidInput, ReasonEmptyQuestion, nil).Error())

	cause := errors.New("gather failed")
	err := newError(ErrorInternal, ReasonMetricsUnavailable, cause)
	require.Equal(t, "usecase: INTERNAL_ERROR/metrics_unavailable: gather failed", err.Error())
	require.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", newError(ErrorInvalidInput, ReasonQuestionTooLong, nil))
	code, reason, ok := CodeOf(wrapped)
	require.True(t, ok)
	require.Equal(t, ErrorInvalidInput, code)
	require.Equal(t, ReasonQuestionTooLong, reason)

	_, _, ok = CodeOf(errors.New("plain"))
	require.False(t, ok)
}
