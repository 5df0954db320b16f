package queue

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/custodia-labs/sleepsync/internal/logger"
)

// Ensure logAdapter implements the interface.
var _ watermill.LoggerAdapter = logAdapter{}

// logAdapter routes watermill logs through the process logger.
// Watermill's info chatter is demoted to debug.
type logAdapter struct {
	entry logger.Entry
}

func newLogAdapter() watermill.LoggerAdapter {
	return logAdapter{entry: logger.With("component", "queue")}
}

func (l logAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.with(fields).Err(err).Error("%s", msg)
}

func (l logAdapter) Info(msg string, fields watermill.LogFields) {
	l.with(fields).Debug("%s", msg)
}

func (l logAdapter) Debug(msg string, fields watermill.LogFields) {
	l.with(fields).Debug("%s", msg)
}

func (l logAdapter) Trace(string, watermill.LogFields) {}

func (l logAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return logAdapter{entry: l.with(fields)}
}

func (l logAdapter) with(fields watermill.LogFields) logger.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return l.entry.With(kv...)
}
