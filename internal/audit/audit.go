// Package audit records who changed which targets and markets.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/knockmap/knockmap/internal/config"
	"github.com/knockmap/knockmap/internal/edit"
)

// Entities that can be edited.
const (
	EntityTarget = "target"
	EntityMarket = "market"
)

// Event is one applied or refused edit.
type Event struct {
	Time      time.Time `json:"time" bson:"time"`
	RequestID string    `json:"request_id,omitempty" bson:"request_id,omitempty"`
	Entity    string    `json:"entity" bson:"entity"`
	Key       string    `json:"key" bson:"key"`
	Action    string    `json:"action" bson:"action"`
	Message   string    `json:"message" bson:"message"`
	Error     string    `json:"error,omitempty" bson:"error,omitempty"`
}

// Sink stores audit events.
type Sink interface {
	Record(ctx context.Context, events []Event) error
	Close(ctx context.Context) error
}

// Reader is a sink whose events can be read back.
type Reader interface {
	Recent(ctx context.Context, n int64) ([]Event, error)
	Count(ctx context.Context) (int64, error)
}

// Events converts the outcomes of one submit into audit events.
func Events(entity, requestID string, at time.Time, res edit.Result) []Event {
	out := make([]Event, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		e := Event{
			Time:      at,
			RequestID: requestID,
			Entity:    entity,
			Key:       o.Key,
			Action:    o.Action,
			Message:   o.Message,
		}
		if o.Err != nil {
			e.Error = o.Err.Error()
		}
		out = append(out, e)
	}
	return out
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, []Event) error {
	return nil
}

func (Nop) Close(context.Context) error {
	return nil
}

// LogSink writes each event as a structured log line.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Record(ctx context.Context, events []Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, e := range events {
		level := slog.LevelInfo
		if e.Error != "" {
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "audit",
			slog.String("entity", e.Entity),
			slog.String("key", e.Key),
			slog.String("action", e.Action),
			slog.String("message", e.Message),
			slog.String("request_id", e.RequestID),
		)
	}
	return nil
}

func (LogSink) Close(context.Context) error { return nil }

// Open builds the sink named by cfg.
func Open(ctx context.Context, cfg config.AuditConfig, logger *slog.Logger) (Sink, error) {
	switch cfg.Type {
	case "", "log":
		return LogSink{Logger: logger}, nil
	case "none":
		return Nop{}, nil
	case "mongodb":
		return NewMongoSink(ctx, cfg.ConnectionString, cfg.Database, cfg.Collection)
	default:
		return nil, fmt.Errorf("unsupported audit type %q", cfg.Type)
	}
}
