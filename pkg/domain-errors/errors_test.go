package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeLookup(t *testing.T) {
	t.Run("wrapped domain error keeps its code", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeExpired, "policy expired"))
		assert.True(t, HasCode(err, CodeExpired))
		assert.Equal(t, CodeExpired, CodeOf(err))
	})

	t.Run("plain errors map to internal", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("nil has no code", func(t *testing.T) {
		assert.False(t, HasCode(nil, CodeNotFound))
	})
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeTransferFailed, "treasury transfer failed")

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transfer_failed")
	assert.Contains(t, err.Error(), "connection reset")
}
