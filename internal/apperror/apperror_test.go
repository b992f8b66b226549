package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := NotFound("approval request %d not found", 7)
	require.True(t, errors.Is(err, ErrNotFound))
	require.False(t, errors.Is(err, ErrConflict))
	require.Equal(t, "approval request 7 not found", err.Error())
}

func TestKindOfSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("review: %w", InvalidState("request is already %s", "approved"))
	require.Equal(t, KindInvalidState, KindOf(err))
	require.True(t, errors.Is(err, ErrInvalidState))

	require.Equal(t, Kind(""), KindOf(errors.New("connection refused")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("json: cannot unmarshal string")
	err := Wrap(KindValidation, cause, "invalid payload")
	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "invalid payload")
}
