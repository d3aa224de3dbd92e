package notify

import (
	"github.com/AdamBeresnev/op-arena/internal/logging"
	"github.com/ThreeDotsLabs/watermill"
)

type watermillLogger struct {
	logger *logging.Logger
}

// NewWatermillLogger routes watermill's internal logs through the service logger.
func NewWatermillLogger(logger *logging.Logger) watermill.LoggerAdapter {
	return &watermillLogger{logger: logger.With("component", "watermill")}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error(msg, append(flatten(fields), "error", err)...)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.logger.Info(msg, flatten(fields)...)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, flatten(fields)...)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, flatten(fields)...)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{logger: l.logger.With(flatten(fields)...)}
}

func flatten(fields watermill.LogFields) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}
