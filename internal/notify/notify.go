// Package notify publishes job outcomes for downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// JobOutcome is the event emitted after every job run.
type JobOutcome struct {
	RunID      string    `json:"run_id"`
	Job        string    `json:"job"`
	TenantID   string    `json:"tenant_id"`
	AsOfDate   string    `json:"as_of_date"`
	Success    bool      `json:"success"`
	Processed  int       `json:"processed"`
	Failures   int       `json:"failures"`
	Message    string    `json:"message,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Publisher delivers job outcome events.
type Publisher interface {
	Publish(ctx context.Context, ev JobOutcome) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, JobOutcome) error { return nil }
func (Nop) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes outcomes as JSON keyed by job name, so one job's events stay ordered.
type Kafka struct {
	writer messageWriter
}

// NewKafka creates a publisher writing to topic on brokers.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish implements Publisher.
func (k *Kafka) Publish(ctx context.Context, ev JobOutcome) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding job outcome: %w", err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Job),
		Value: value,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(ev.RunID)},
			{Key: "tenant_id", Value: []byte(ev.TenantID)},
		},
	})
	if err != nil {
		return fmt.Errorf("writing job outcome to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
