package shopcore

import (
	"io"
	"log"

	internalaudit "github.com/MrEthical07/shopcore/internal/audit"
)

// AuditEvent is one dispatched audit record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events on the dispatcher goroutine.
type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

type ChannelSink = internalaudit.ChannelSink

type JSONWriterSink = internalaudit.JSONWriterSink

type LoggerSink = internalaudit.LoggerSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLoggerSink logs failed events through logger, or log.Default when nil.
func NewLoggerSink(logger *log.Logger) *LoggerSink {
	return internalaudit.NewLoggerSink(logger)
}
