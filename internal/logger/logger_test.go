// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		level   string
		wantErr bool
	}{
		{"text info", "text", "info", false},
		{"json debug", "json", "debug", false},
		{"defaults", "", "", false},
		{"none", "text", "none", false},
		{"bad level", "text", "loud", true},
		{"bad format", "xml", "info", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(tt.format, tt.level)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestObserverLoggerLevels(t *testing.T) {
	log, logs := NewObserverLogger("debug")
	log.Debug("d")
	log.Info("i")
	log.Warn("w")
	log.Error("e")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestWithAddsFields(t *testing.T) {
	log, logs := NewObserverLogger("info")
	child := log.With(zap.String("archive", "a.tar"))
	child.Info("member done", zap.Int("rows", 3))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, map[string]interface{}{"archive": "a.tar", "rows": int64(3)}, logs.All()[0].ContextMap())
}
