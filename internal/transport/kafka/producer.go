package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/asquebay/leadbase-service/internal/model"

	"github.com/segmentio/kafka-go"
)

// MessageWriter - часть kafka.Writer, которой пользуется продюсер
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer публикует события об оплатах
type Producer struct {
	writer MessageWriter
	log    *slog.Logger
}

// NewProducer создаёт продюсер для топика событий оплаты
func NewProducer(brokers []string, topic string, log *slog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return NewProducerWithWriter(writer, log)
}

// NewProducerWithWriter создаёт продюсер поверх готового писателя
func NewProducerWithWriter(writer MessageWriter, log *slog.Logger) *Producer {
	return &Producer{
		writer: writer,
		log:    log.With(slog.String("component", "kafka_producer")),
	}
}

// PublishPayment отправляет событие; ключ - номер счёта, чтобы события одного счёта шли по порядку
func (p *Producer) PublishPayment(ctx context.Context, event model.PaymentEvent) error {
	const op = "transport.kafka.Producer.PublishPayment"

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal event: %w", op, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.InvoiceNumber),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.log.Debug("payment event published", slog.String("invoice_number", event.InvoiceNumber), slog.String("status", string(event.Status)))
	return nil
}

// Close дожидается отправки буфера и закрывает писателя
func (p *Producer) Close() error {
	p.log.Info("closing kafka producer")
	return p.writer.Close()
}
