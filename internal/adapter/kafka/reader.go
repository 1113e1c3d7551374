package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/air-quality-fusion/internal/config"
	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

// Reader consumes provider envelopes from the measurement and weather topics.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader        *kafkago.Reader
	flushInterval time.Duration
	logger        *slog.Logger
}

// NewReader creates a consumer-group reader over the source and weather topics.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		GroupID:     cfg.KafkaGroupID,
		GroupTopics: sourceTopics(cfg),
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     cfg.BatchFlushInterval,
		StartOffset: kafkago.FirstOffset,
	})
	return &Reader{reader: r, flushInterval: cfg.BatchFlushInterval, logger: logger}
}

func sourceTopics(cfg *config.Config) []string {
	topics := []string{cfg.KafkaSourceTopic}
	if cfg.KafkaWeatherTopic != "" && cfg.KafkaWeatherTopic != cfg.KafkaSourceTopic {
		topics = append(topics, cfg.KafkaWeatherTopic)
	}
	return topics
}

// ExtractBatch fetches up to batchSize messages. It returns early with what
// it has once the flush interval elapses, so a quiet topic still yields
// partial batches. Offsets are not committed; each event carries a Commit
// callback.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.flushInterval)
	defer cancel()

	batch := make([]domain.RawEvent, 0, batchSize)
	for len(batch) < batchSize {
		msg, err := r.reader.FetchMessage(fetchCtx)
		if err != nil {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return batch, err
		}
		raw := mapMessageToRawEvent(msg)
		raw.Commit = func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		}
		batch = append(batch, raw)
	}

	if len(batch) > 0 {
		r.logger.Debug("fetched batch", "messages", len(batch))
	}
	return batch, nil
}

// Close stops the consumer and leaves the group.
func (r *Reader) Close() error {
	return r.reader.Close()
}

func mapMessageToRawEvent(msg kafkago.Message) domain.RawEvent {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
