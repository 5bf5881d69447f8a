// Package kafka publishes tag snapshots to a Kafka topic, one message per
// tag keyed by "<plc>.<tag>", grounded on the teacher's kafka.Producer writer
// lifecycle but trimmed to a single fixed topic (no SASL, no per-topic
// writer map - §4.11 does not call for multi-topic routing).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/amrhady2/go-logix-cip/logix"
)

// Config names the broker and topic tag values are produced to.
type Config struct {
	Brokers []string
	Topic   string
}

// Producer is a publish.Sink backed by segmentio/kafka-go.
type Producer struct {
	cfg    Config
	writer *kafkago.Writer
}

// New constructs a Producer against cfg's brokers/topic.
func New(cfg Config) *Producer {
	return &Producer{
		cfg: cfg,
		writer: &kafkago.Writer{
			Addr:     kafkago.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafkago.Hash{},
		},
	}
}

// Publish produces one keyed message per tag.
func (p *Producer) Publish(plcName string, values []logix.TagValue) error {
	if len(values) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, len(values))
	for _, v := range values {
		payload, err := json.Marshal(struct {
			PLC       string      `json:"plc"`
			Tag       string      `json:"tag"`
			Value     interface{} `json:"value"`
			Type      string      `json:"type"`
			Timestamp int64       `json:"timestamp"`
		}{PLC: plcName, Tag: v.Name, Value: v.Value, Type: v.Type.String(), Timestamp: v.Timestamp.UnixMilli()})
		if err != nil {
			continue
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(fmt.Sprintf("%s.%s", plcName, v.Name)),
			Value: payload,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
