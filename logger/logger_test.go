package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDefaultIsNoOp(t *testing.T) {
	// Must not panic before Initialize
	require.NotNil(t, Logger)
	Logger.Infow("no-op logging", "key", "value")
}

func TestInitialize(t *testing.T) {
	t.Run("json output", func(t *testing.T) {
		err := Initialize(true)
		require.NoError(t, err)
		assert.True(t, JSONOutput)
		require.NotNil(t, Logger)
	})

	t.Run("console output", func(t *testing.T) {
		err := Initialize(false)
		require.NoError(t, err)
		assert.False(t, JSONOutput)
		require.NotNil(t, Logger)
	})
}

func TestSetLogger(t *testing.T) {
	test := zaptest.NewLogger(t).Sugar()
	prev := SetLogger(test)
	defer SetLogger(prev)

	assert.Same(t, test, Logger)
	Logger.Debugw("captured by zaptest", "component", "logger")
}
