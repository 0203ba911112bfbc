// Package analytics implements the fire-and-forget Analytics Sink
// described in spec.md §6: domain events are published to Kafka and
// never block the request that produced them.
package analytics

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"clipfeed/internal/metrics"
)

// Event topic names.
const (
	TopicContentView = "feed.content_view"
	TopicSearch      = "feed.search"
	TopicEngagement  = "feed.engagement"
)

// Event is the structured payload published for every tracked action.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	UserID    string                 `json:"userId"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// Sink is the Analytics Sink's client-facing interface.
type Sink interface {
	Track(ctx context.Context, event Event)
}

// KafkaSink publishes events to Kafka. Track never returns an error:
// publish failures are logged and swallowed, per spec.md §6 — an
// analytics outage must never fail a feed or playback request.
type KafkaSink struct {
	writer      *kafka.Writer
	topicPrefix string
}

// NewKafkaSink builds a KafkaSink writing to brokers.
func NewKafkaSink(brokers []string, topicPrefix string) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Second,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
		Async:        true,
	}
	return &KafkaSink{writer: writer, topicPrefix: topicPrefix}
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func (s *KafkaSink) fullTopic(topic string) string {
	if s.topicPrefix == "" {
		return topic
	}
	return s.topicPrefix + "." + topic
}

// Track publishes event asynchronously and fire-and-forget. The
// publish runs on a background context bounded by a 5-second timeout;
// ctx is not used, so the caller's cancellation does not affect it.
func (s *KafkaSink) Track(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	go func() {
		publishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("analytics: marshal event %s: %v", event.Type, err)
			metrics.AnalyticsEventsPublished.WithLabelValues(event.Type, "marshal_error").Inc()
			return
		}

		msg := kafka.Message{
			Topic: s.fullTopic(event.Type),
			Key:   []byte(event.UserID),
			Value: data,
			Time:  event.Timestamp,
		}

		if err := s.writer.WriteMessages(publishCtx, msg); err != nil {
			log.Printf("analytics: publish event %s: %v", event.Type, err)
			metrics.AnalyticsEventsPublished.WithLabelValues(event.Type, "error").Inc()
			return
		}
		metrics.AnalyticsEventsPublished.WithLabelValues(event.Type, "published").Inc()
	}()
}

// NoopSink discards every event. Useful for tests and for running
// without a Kafka dependency configured.
type NoopSink struct{}

// Track implements Sink by doing nothing.
func (NoopSink) Track(context.Context, Event) {}

var _ Sink = (*KafkaSink)(nil)
var _ Sink = NoopSink{}
