package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/asquebay/leadbase-service/internal/model"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
)

const (
	defaultRetryInitial = 500 * time.Millisecond
	defaultRetryMax     = 30 * time.Second
)

// BatchImporter - это интерфейс, который абстрагирует консьюмер
// от конкретной реализации сервисного слоя
type BatchImporter interface {
	ImportBatch(ctx context.Context, batch model.ImportBatch) error
}

// MessageReader - часть kafka.Reader, которой пользуется консьюмер
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer читает пакеты загрузок администраторов
type Consumer struct {
	reader  MessageReader
	service BatchImporter
	log     *slog.Logger

	retryInitial time.Duration
	retryMax     time.Duration
}

// ConsumerOption настраивает консьюмер
type ConsumerOption func(*Consumer)

// WithRetryBackoff задаёт паузы между повторами обработки сообщения
func WithRetryBackoff(initial, max time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.retryInitial = initial
		c.retryMax = max
	}
}

// NewConsumer создает новый экземпляр консьюмера
func NewConsumer(brokers []string, topic, groupID string, service BatchImporter, log *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
	})
	return NewConsumerWithReader(reader, service, log)
}

// NewConsumerWithReader создаёт консьюмер поверх готового ридера
func NewConsumerWithReader(reader MessageReader, service BatchImporter, log *slog.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:       reader,
		service:      service,
		log:          log.With(slog.String("component", "kafka_consumer")),
		retryInitial: defaultRetryInitial,
		retryMax:     defaultRetryMax,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run запускает цикл чтения сообщений из Kafka
// функция блокирующая, поэтому она запускается в отдельной горутине
func (c *Consumer) Run(ctx context.Context) {
	c.log.Info("kafka consumer started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info("context cancelled, stopping consumer")
			return
		default:
		}

		// FetchMessage блокирует до тех пор, пока не придет новое сообщение или не возникнет ошибка
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, io.EOF) {
				c.log.Info("kafka reader closed")
				return
			}
			c.log.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}

		c.log.Debug("received message", slog.String("topic", msg.Topic), slog.Int("partition", msg.Partition), slog.Int64("offset", msg.Offset))

		// 1. Обрабатываем, повторяя до успеха: FetchMessage не вернёт это сообщение снова,
		// а следующий commit сдвинет offset за него. Повтор безопасен, загрузки идемпотентны
		if err := c.handleWithRetry(ctx, msg); err != nil {
			c.log.Error("stopped retrying message, leaving it uncommitted",
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
			return
		}

		// 2. Всё прошло - фиксируем offset
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("failed to commit message", slog.String("error", err.Error()))
		}
	}
}

// handleWithRetry повторяет обработку с экспоненциальной паузой, пока она не пройдёт
// или не отменят контекст
func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = c.retryMax

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.handleMessage(ctx, msg)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.log.Warn("failed to handle message, will retry",
				slog.Int64("offset", msg.Offset),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
		}),
	)
	return err
}

// handleMessage парсит и обрабатывает одно сообщение
// nil означает, что сообщение можно подтверждать: оно сохранено или перечитывать его бессмысленно
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	var batch model.ImportBatch

	if err := json.Unmarshal(msg.Value, &batch); err != nil {
		c.log.Warn("failed to unmarshal message, skipping", slog.String("error", err.Error()))
		return nil
	}

	if err := batch.Validate(); err != nil {
		c.log.Warn("message validation failed, skipping",
			slog.String("error", err.Error()),
			slog.String("batch_id", batch.BatchID),
		)
		return nil
	}

	if batch.Empty() {
		c.log.Warn("empty batch, skipping", slog.String("batch_id", batch.BatchID))
		return nil
	}

	if err := c.service.ImportBatch(ctx, batch); err != nil {
		return err
	}

	c.log.Info("batch successfully processed", slog.String("batch_id", batch.BatchID))
	return nil
}

// Close останавливает ридер
func (c *Consumer) Close() error {
	c.log.Info("closing kafka consumer")
	return c.reader.Close()
}
