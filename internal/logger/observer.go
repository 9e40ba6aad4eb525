// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// NewObserverLogger returns a logger that records entries at or above level
// in memory, for tests that assert on what was logged.
func NewObserverLogger(level string) (Logger, *observer.ObservedLogs) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	core, logs := observer.New(lvl)
	return &ZapLogger{zap.New(core)}, logs
}
