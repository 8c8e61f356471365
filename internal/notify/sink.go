// Package notify доставляет доменные события внешним наблюдателям.
// Доставка выполняется по принципу fire-and-forget: ошибки публикации
// журналируются и не влияют на результат бизнес-операции.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/model"
)

// Sink принимает события после фиксации изменений.
type Sink interface {
	Notify(ctx context.Context, events ...model.Event)
}

// LogSink пишет события в журнал.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink создаёт приёмник, журналирующий события.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify журналирует каждое событие.
func (s *LogSink) Notify(_ context.Context, events ...model.Event) {
	for _, e := range events {
		s.logger.Info("event",
			zap.String("kind", string(e.Kind)),
			zap.String("id", e.ID.String()),
			zap.String("key", e.Key),
			zap.Any("payload", e.Payload),
		)
	}
}

// Multi рассылает события нескольким приёмникам.
type Multi []Sink

// Notify передаёт события каждому приёмнику по очереди.
func (m Multi) Notify(ctx context.Context, events ...model.Event) {
	for _, s := range m {
		s.Notify(ctx, events...)
	}
}

// Discard отбрасывает события.
type Discard struct{}

// Notify ничего не делает.
func (Discard) Notify(context.Context, ...model.Event) {}
