// Package notify announces committed artifacts on Kafka so downstream
// consumers learn about fresh forecasts without polling the remote store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/lakewx/nwp-blend/internal/config"
	"github.com/lakewx/nwp-blend/internal/domain"
)

// Publisher produces publication notices to a Kafka topic.
// It implements pipeline.Notifier.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured notification topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish announces one committed artifact.
func (p *Publisher) Publish(ctx context.Context, pub domain.Publication) error {
	msg, err := serializeToMessage(pub)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// publicationNotice is the wire shape of a notification.
type publicationNotice struct {
	Site        string `json:"site"`
	Parameter   string `json:"parameter"`
	Init        string `json:"init"`
	RemoteName  string `json:"remote_name"`
	PublishedAt string `json:"published_at"`
}

// serializeToMessage marshals a publication into a Kafka message. The key is
// the per-run artifact file name, so re-publishes of the same run land in the
// same partition.
func serializeToMessage(pub domain.Publication) (kafkago.Message, error) {
	notice := publicationNotice{
		Site:        pub.Key.Site,
		Parameter:   pub.Key.Parameter,
		Init:        pub.Key.Init,
		RemoteName:  pub.RemoteName,
		PublishedAt: pub.PublishedAt.UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(notice)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize publication notice: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(pub.Key.FileName()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}, nil
}
