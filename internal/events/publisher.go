// Package events publishes domain events about assessment results.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/config"
	"github.com/stemsi/exstem-assess/internal/model"
)

// EventTypeResultDeclared is set in the event_type metadata header.
const EventTypeResultDeclared = "assessment.result.declared"

const (
	eventSource  = "exstem-assess"
	eventVersion = "1"
)

// ResultDeclared is emitted once per result that a declaration claims.
type ResultDeclared struct {
	ResultID      uuid.UUID          `json:"result_id"`
	RunID         string             `json:"run_id,omitempty"`
	TestID        string             `json:"test_id"`
	CandidateID   string             `json:"candidate_id"`
	CandidateName string             `json:"candidate_name"`
	Score         int                `json:"score"`
	Status        model.ResultStatus `json:"status"`
	DeclaredBy    string             `json:"declared_by"`
	DeclaredAt    time.Time          `json:"declared_at"`
	EmailSent     bool               `json:"email_sent"`
}

// Publisher emits domain events.
type Publisher interface {
	PublishResultDeclared(ctx context.Context, ev ResultDeclared) error
	Close() error
}

// WatermillPublisher publishes through any watermill message.Publisher.
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	log       zerolog.Logger
}

// NewPublisher builds a Kafka publisher when events are enabled, otherwise an
// in-process gochannel that drops messages nobody subscribed to.
func NewPublisher(cfg config.EventsConfig, log zerolog.Logger) (*WatermillPublisher, error) {
	wlog := NewZerologAdapter(log)

	if !cfg.Enabled {
		return NewWatermillPublisher(gochannel.NewGoChannel(gochannel.Config{}, wlog), cfg.ResultsTopic, log), nil
	}

	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wlog)
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	return NewWatermillPublisher(pub, cfg.ResultsTopic, log), nil
}

// NewWatermillPublisher wraps an existing watermill publisher.
func NewWatermillPublisher(pub message.Publisher, topic string, log zerolog.Logger) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: pub,
		topic:     topic,
		log:       log.With().Str("component", "events").Logger(),
	}
}

// PublishResultDeclared marshals ev and publishes it keyed by result id.
func (p *WatermillPublisher) PublishResultDeclared(ctx context.Context, ev ResultDeclared) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal result declared event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", EventTypeResultDeclared)
	msg.Metadata.Set("source", eventSource)
	msg.Metadata.Set("version", eventVersion)
	msg.Metadata.Set("result_id", ev.ResultID.String())
	msg.Metadata.Set("timestamp", ev.DeclaredAt.Format(time.RFC3339))

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish result declared event: %w", err)
	}

	p.log.Debug().
		Str("result_id", ev.ResultID.String()).
		Str("topic", p.topic).
		Msg("Published result declared event")
	return nil
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}
