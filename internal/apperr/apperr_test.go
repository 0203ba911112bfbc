package apperr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipfeed/internal/apperr"
)

func TestError_ErrorString_WithAndWithoutCause(t *testing.T) {
	plain := apperr.New(apperr.Validation, "bad rating")
	assert.Equal(t, "bad rating", plain.Error())

	wrapped := apperr.Wrap(apperr.Dependency, "document store unavailable", errors.New("connection refused"))
	assert.Equal(t, "document store unavailable: connection refused", wrapped.Error())
}

func TestError_Unwrap_ExposesCause(t *testing.T) {
	cause := errors.New("timeout")
	wrapped := apperr.Wrap(apperr.Timeout, "fetch failed", cause)
	assert.ErrorIs(t, wrapped, cause)
}

func TestWithDetails_AttachesDetailSlice(t *testing.T) {
	err := apperr.Validationf("invalid request").WithDetails("page must be positive", "pageSize too large")
	assert.Equal(t, []string{"page must be positive", "pageSize too large"}, err.Details)
}

func TestAs_ExtractsTypedError(t *testing.T) {
	err := apperr.NotFoundf("title %s not found", "t1")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.NotFound, ae.Kind)
	assert.Equal(t, "title t1 not found", ae.Message)
}

func TestAs_ReturnsFalseForUntypedError(t *testing.T) {
	_, ok := apperr.As(errors.New("plain error"))
	assert.False(t, ok)
}

func TestKindOf_DefaultsToInternalForUnclassifiedErrors(t *testing.T) {
	assert.Equal(t, apperr.Internal, apperr.KindOf(errors.New("boom")))
}

func TestKindOf_ReturnsDeclaredKind(t *testing.T) {
	assert.Equal(t, apperr.Conflict, apperr.KindOf(apperr.Conflictf("already watching")))
}

func TestDependencyf_WrapsCauseUnderDependencyKind(t *testing.T) {
	cause := errors.New("kafka: broker unreachable")
	err := apperr.Dependencyf(cause, "publish failed")
	assert.Equal(t, apperr.Dependency, apperr.KindOf(err))
	assert.ErrorIs(t, err, cause)
}
