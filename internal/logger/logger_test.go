package logger

import (
	"testing"

	"marketplace/internal/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewAppliesLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zap.AtomicLevel
	}{
		{"debug", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"warn", zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"error", zap.NewAtomicLevelAt(zap.ErrorLevel)},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(config.LogConfig{Level: tt.level, Format: "json"})
			require.NoError(t, err)
			require.True(t, l.Core().Enabled(tt.want.Level()))
			require.False(t, l.Core().Enabled(tt.want.Level()-1))
		})
	}
}
