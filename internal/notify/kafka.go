package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink публикует события в топик Kafka.
type KafkaSink struct {
	writer  messageWriter
	logger  *zap.Logger
	timeout time.Duration
}

// NewKafkaSink создаёт приёмник, пишущий в topic на указанных брокерах.
func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Notify сериализует события в JSON и отправляет их одним пакетом.
// Ключ сообщения — Event.Key, чтобы события одной заявки попадали в одну партицию.
func (s *KafkaSink) Notify(ctx context.Context, events ...model.Event) {
	if len(events) == 0 {
		return
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			s.logger.Error("marshal event", zap.Error(err), zap.String("kind", string(e.Kind)))
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.Key),
			Value: value,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(e.Kind)},
				{Key: "event-id", Value: []byte(e.ID.String())},
			},
		})
	}

	// Публикация не должна зависеть от отмены исходного HTTP-запроса.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.writer.WriteMessages(sendCtx, msgs...); err != nil {
		s.logger.Error("publish events", zap.Error(err), zap.Int("count", len(msgs)))
	}
}

// Close закрывает соединения с брокерами.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
