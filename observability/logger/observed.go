package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObserved returns a Logger whose entries are recorded in memory.
// Tests use it to assert on the diagnostics the runtime promises to emit.
func NewObserved(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &logger{zap.New(core).Sugar()}, logs
}
