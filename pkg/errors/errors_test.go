package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetadataTable(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:    {http.StatusBadRequest, false, "validation failed", true},
		CodeNotFound:      {http.StatusNotFound, false, "resource not found", false},
		CodeConflict:      {http.StatusConflict, false, "concurrent update detected", false},
		CodeIdempotency:   {http.StatusConflict, false, "idempotency key conflict", false},
		CodeCanceled:      {499, true, "request canceled", false},
		CodeStateConflict: {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
		CodeInternal:      {http.StatusInternalServerError, true, "internal server error", false},
		CodeDependency:    {http.StatusServiceUnavailable, true, "dependency unavailable", true},
	}
	for code, want := range cases {
		require.Equal(t, want, MetadataFor(code), "code %s", code)
	}
	require.Equal(t, MetadataFor(CodeInternal), MetadataFor("NOT_A_CODE"))
}

func TestDetailsAndCause(t *testing.T) {
	err := New(CodeValidation, "servings must be greater than zero")
	require.Nil(t, err.Details())
	require.Same(t, err, err.WithDetails(map[string]any{"field": "servings"}))
	require.Equal(t, map[string]any{"field": "servings"}, err.Details())

	cause := stdErrors.New("unique violation")
	wrapped := Wrap(CodeConflict, cause, "insert snapshot")
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, CodeConflict, wrapped.Code())
	require.Equal(t, "insert snapshot", wrapped.Message())

	var nilErr *Error
	require.Equal(t, CodeInternal, nilErr.Code())
	require.Nil(t, nilErr.WithDetails("ignored"))
}

func TestAsFindsTypedErrorThroughWrapping(t *testing.T) {
	err := fmt.Errorf("recalculate recipe: %w", New(CodeNotFound, "recipe not found"))
	require.Equal(t, CodeNotFound, As(err).Code())
	require.Nil(t, As(nil))
	require.Nil(t, As(stdErrors.New("plain")))
}

func TestCodeHelpers(t *testing.T) {
	dep := fmt.Errorf("save snapshot: %w", Wrap(CodeDependency, stdErrors.New("conn reset"), "persist"))
	require.Equal(t, CodeDependency, CodeOf(dep))
	require.True(t, Is(dep, CodeDependency))
	require.True(t, IsRetryable(dep))

	require.False(t, IsRetryable(New(CodeValidation, "bad")))
	require.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
	require.False(t, IsRetryable(nil))
	require.False(t, Is(nil, CodeInternal))
}

func TestClassifyContextErrors(t *testing.T) {
	canceled := Classify(fmt.Errorf("load recipe: %w", context.Canceled))
	require.Equal(t, CodeCanceled, canceled.Code())
	require.ErrorIs(t, canceled, context.Canceled)
	require.Equal(t, CodeDependency, CodeOf(context.DeadlineExceeded))

	typed := Newf(CodeNotFound, "recipe %s not found", "r-1")
	require.Same(t, typed, Classify(fmt.Errorf("wrap: %w", typed)))
	require.Nil(t, Classify(nil))
}

func TestErrorString(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("connection refused"), "load overhead pool")
	require.Equal(t, "DEPENDENCY_ERROR: load overhead pool: connection refused", err.Error())
	require.Equal(t, "VALIDATION_ERROR: quantity must not be zero", New(CodeValidation, "quantity must not be zero").Error())
}
