package bridge

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"

	"github.com/rise-and-shine/dddbase/observability/logger"
)

var _ watermill.LoggerAdapter = (*loggerAdapter)(nil)

// loggerAdapter routes watermill logs through our logger.
type loggerAdapter struct {
	base logger.Logger
}

// NewLoggerAdapter adapts log to watermill.LoggerAdapter.
func NewLoggerAdapter(log logger.Logger) watermill.LoggerAdapter {
	return &loggerAdapter{base: log}
}

func (l *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.with(fields).With(zap.Error(err)).Error(msg)
}

func (l *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.with(fields).Info(msg)
}

func (l *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.with(fields).Debug(msg)
}

func (l *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.with(fields).Trace(msg)
}

func (l *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{base: l.with(fields)}
}

func (l *loggerAdapter) with(fields watermill.LogFields) logger.Logger {
	if len(fields) == 0 {
		return l.base
	}
	zf := make([]any, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return l.base.With(zf...)
}
