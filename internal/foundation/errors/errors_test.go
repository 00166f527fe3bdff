package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedErrorFormatting(t *testing.T) {
	err := NewError(CategoryPipeline, "waypoint returned no output").Build()
	assert.Equal(t, "[pipeline:error] waypoint returned no output", err.Error())

	cause := errors.New("boom")
	wrapped := WrapError(cause, CategoryFileSystem, "write failed").Build()
	assert.Equal(t, "[filesystem:error] write failed: boom", wrapped.Error())
	assert.Equal(t, cause, errors.Unwrap(wrapped))
}

func TestCategoryHelpers(t *testing.T) {
	err := ValidationError("destination nested inside source").Build()

	require.True(t, HasCategory(err, CategoryValidation))
	assert.False(t, HasCategory(err, CategoryBuild))
	assert.True(t, err.IsFatal())
}

func TestIsMatchesCategoryAndMessage(t *testing.T) {
	a := FileSystemError("size limit exceeded").Build()
	b := FileSystemError("size limit exceeded").WithContext("path", "big.bin").Build()

	assert.True(t, errors.Is(b, a))
	// Wrapping keeps errors.Is working through the chain.
	chained := fmt.Errorf("prime source: %w", b)
	assert.True(t, errors.Is(chained, a))
}

func TestWithContextDoesNotMutateOriginal(t *testing.T) {
	base := WatchError("read failed").Build()
	derived := base.WithContext("path", "a.txt")

	assert.Nil(t, base.Context()["path"])
	assert.Equal(t, "a.txt", derived.Context()["path"])
}

func TestCLIAdapterExitCodes(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	assert.Equal(t, 0, adapter.ExitCodeFor(nil))
	assert.Equal(t, 2, adapter.ExitCodeFor(ValidationError("bad flag").Build()))
	assert.Equal(t, 7, adapter.ExitCodeFor(ConfigError("missing source").Build()))
	assert.Equal(t, 11, adapter.ExitCodeFor(PipelineError("bad output").Build()))
	assert.Equal(t, 1, adapter.ExitCodeFor(errors.New("plain")))
}
