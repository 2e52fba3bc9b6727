package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	testCases := []struct {
		name        string
		level       string
		environment string
		wantLevel   zapcore.Level
	}{
		{name: "production info", level: "info", environment: "production", wantLevel: zapcore.InfoLevel},
		{name: "development debug", level: "debug", environment: "development", wantLevel: zapcore.DebugLevel},
		{name: "warn", level: "warn", environment: "production", wantLevel: zapcore.WarnLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := New(tc.level, tc.environment)
			require.NoError(t, err)
			require.NotNil(t, l)
			assert.True(t, l.Core().Enabled(tc.wantLevel))
			if tc.wantLevel > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tc.wantLevel-1))
			}
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", "production")
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
