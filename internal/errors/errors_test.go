package errors

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	err := Wrap(CodeTimeout, context.DeadlineExceeded, "collaborator timed out")

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, CodeTimeout, CodeOf(err))
	assert.True(t, RetryableError(err))
	assert.Equal(t, "[TIMEOUT] collaborator timed out: context deadline exceeded", err.Error())
}

func TestIsComparesCodes(t *testing.T) {
	err := New(CodeToolNotFound, "tool \"nope\" is not registered")
	assert.True(t, stdErrors.Is(err, New(CodeToolNotFound, "")))
	assert.False(t, stdErrors.Is(err, New(CodeParameterMismatch, "")))
}

func TestDefaultsFromRegistry(t *testing.T) {
	err := New(CodePersistenceFailure, "")
	assert.Equal(t, "memory state could not be persisted", err.Message())
	assert.Equal(t, SeverityCritical, err.Severity())
	assert.True(t, err.ShouldAlert())

	overridden := New(CodePersistenceFailure, "", WithAlert(false), WithSeverity(SeverityInfo))
	assert.False(t, overridden.ShouldAlert())
	assert.Equal(t, SeverityInfo, overridden.Severity())
}

func TestUnregisteredCodeFallsBackToUnknown(t *testing.T) {
	attr := AttributesOf(Code("NOT_REGISTERED"))
	assert.Equal(t, AttributesOf(CodeUnknown), attr)
	assert.Equal(t, CodeUnknown, CodeOf(stdErrors.New("plain")))
	assert.False(t, HasCode(nil, CodeUnknown))
}

func TestMetadataIsCopied(t *testing.T) {
	err := New(CodeDependencyUnmet, "", WithMetadata("step", "2"))
	md := err.Metadata()
	md["step"] = "changed"
	assert.Equal(t, "2", err.Metadata()["step"])
}
