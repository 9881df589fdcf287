package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// ZerologAdapter routes watermill's internal logging into zerolog.
type ZerologAdapter struct {
	log zerolog.Logger
}

// NewZerologAdapter creates a watermill.LoggerAdapter backed by log.
func NewZerologAdapter(log zerolog.Logger) watermill.LoggerAdapter {
	return &ZerologAdapter{log: log.With().Str("component", "watermill").Logger()}
}

func withFields(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}

func (a *ZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	withFields(a.log.Error().Err(err), fields).Msg(msg)
}

func (a *ZerologAdapter) Info(msg string, fields watermill.LogFields) {
	withFields(a.log.Info(), fields).Msg(msg)
}

func (a *ZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	withFields(a.log.Debug(), fields).Msg(msg)
}

func (a *ZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	withFields(a.log.Trace(), fields).Msg(msg)
}

func (a *ZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := a.log.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &ZerologAdapter{log: ctx.Logger()}
}
