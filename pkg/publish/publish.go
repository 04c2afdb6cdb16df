// Package publish sends one Kafka message per collected device.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andrej220/netsurvey/internal/lg"
	"github.com/andrej220/netsurvey/pkg/collect"
	dm "github.com/andrej220/netsurvey/pkg/shared-models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
	lg     lg.Logger
}

// New returns a Publisher writing synchronously to topic on brokers.
func New(brokers []string, topic string, logger lg.Logger) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  false,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}, topic, logger)
}

func newPublisher(w messageWriter, topic string, logger lg.Logger) *Publisher {
	if logger == nil {
		logger = lg.Discard
	}
	return &Publisher{writer: w, topic: topic, lg: logger}
}

func (p *Publisher) Name() string { return "kafka" }

// Flush publishes every device of agg keyed by its address, so all runs of one
// device land in the same partition.
func (p *Publisher) Flush(ctx context.Context, runID uuid.UUID, agg *collect.Aggregate) error {
	devices := dm.NewDeviceMessages(runID, agg)
	if len(devices) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(devices))
	now := time.Now()
	for _, d := range devices {
		value, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", d.Address, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(d.Address),
			Value: value,
			Time:  now,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		if errors.Is(err, kafka.UnknownTopicOrPartition) {
			p.lg.Error("Kafka topic does not exist",
				lg.String("topic", p.topic),
				lg.String("action", "Create the topic manually or enable auto-creation"))
		}
		return fmt.Errorf("publish %d messages: %w", len(msgs), err)
	}
	p.lg.Info("Published device results", lg.String("topic", p.topic), lg.Int("messages", len(msgs)))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
