package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/leadbase-service/internal/lib/logger"
	"github.com/asquebay/leadbase-service/internal/model"
)

// fakeReader отдаёт заранее заготовленные сообщения, а затем io.EOF
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type mockImporter struct{ mock.Mock }

func (m *mockImporter) ImportBatch(ctx context.Context, batch model.ImportBatch) error {
	return m.Called(ctx, batch).Error(0)
}

func batchMessage(t *testing.T, offset int64, batch model.ImportBatch) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(batch)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: raw}
}

func validBatch(id string) model.ImportBatch {
	return model.ImportBatch{
		BatchID:    id,
		UploadedBy: uuid.New(),
		FileName:   "leads.csv",
		Contacts: []model.Contact{
			{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com"},
		},
		CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestConsumer(reader MessageReader, importer BatchImporter) *Consumer {
	return NewConsumerWithReader(reader, importer, logger.Discard(), WithRetryBackoff(time.Millisecond, 5*time.Millisecond))
}

func TestConsumerCommitsHandledAndSkipsInvalid(t *testing.T) {
	good := validBatch("b-1")
	empty := validBatch("b-3")
	empty.Contacts = nil

	reader := &fakeReader{messages: []kafka.Message{
		batchMessage(t, 1, good),
		{Offset: 2, Value: []byte("{not json")},
		batchMessage(t, 3, model.ImportBatch{BatchID: "no-uploader"}),
		batchMessage(t, 4, empty),
	}}
	importer := &mockImporter{}
	importer.On("ImportBatch", mock.Anything, mock.MatchedBy(func(b model.ImportBatch) bool { return b.BatchID == "b-1" })).Return(nil)

	c := newTestConsumer(reader, importer)
	c.Run(context.Background())

	assert.Equal(t, []int64{1, 2, 3, 4}, reader.committed, "poison messages are committed and skipped")
	importer.AssertNumberOfCalls(t, "ImportBatch", 1)
}

func TestConsumerRetriesTransientFailureBeforeCommit(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		batchMessage(t, 1, validBatch("b-1")),
		batchMessage(t, 2, validBatch("b-2")),
	}}
	importer := &mockImporter{}
	isFirst := mock.MatchedBy(func(b model.ImportBatch) bool { return b.BatchID == "b-1" })
	importer.On("ImportBatch", mock.Anything, isFirst).Return(errors.New("db down")).Once()
	importer.On("ImportBatch", mock.Anything, isFirst).Return(nil).Once()
	importer.On("ImportBatch", mock.Anything, mock.MatchedBy(func(b model.ImportBatch) bool { return b.BatchID == "b-2" })).Return(nil).Once()

	c := newTestConsumer(reader, importer)
	c.Run(context.Background())

	assert.Equal(t, []int64{1, 2}, reader.committed, "each message is committed once, in order, after it succeeded")
	importer.AssertNumberOfCalls(t, "ImportBatch", 3)
	importer.AssertExpectations(t)
}

func TestConsumerKeepsFailingMessageUncommittedOnShutdown(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		batchMessage(t, 1, validBatch("b-1")),
		batchMessage(t, 2, validBatch("b-2")),
	}}
	importer := &mockImporter{}
	importer.On("ImportBatch", mock.Anything, mock.Anything).Return(errors.New("db down"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := newTestConsumer(reader, importer)
	c.Run(ctx)

	assert.Empty(t, reader.committed)
	for _, call := range importer.Calls {
		assert.Equal(t, "b-1", call.Arguments.Get(1).(model.ImportBatch).BatchID, "next message is not fetched while the current one fails")
	}
	assert.Greater(t, len(importer.Calls), 1)
}

func TestConsumerStopsOnCancelledContext(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{batchMessage(t, 1, validBatch("b-1"))}}
	importer := &mockImporter{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestConsumer(reader, importer)
	c.Run(ctx)

	importer.AssertNotCalled(t, "ImportBatch", mock.Anything, mock.Anything)
	assert.Empty(t, reader.committed)
}

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerPublishPayment(t *testing.T) {
	writer := &fakeWriter{}
	p := NewProducerWithWriter(writer, logger.Discard())
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	event := model.NewPaymentEvent(model.Invoice{
		InvoiceNumber: "INV-1",
		CustomerID:    uuid.New(),
		PaymentStatus: model.PaymentCompleted,
		Type:          model.PurchaseContacts,
		ItemCount:     10,
		TotalAmount:   decimal.RequireFromString("5.00"),
		Currency:      "USD",
	}, at)

	require.NoError(t, p.PublishPayment(context.Background(), event))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "INV-1", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, model.EventPaymentFinalized, string(msg.Headers[0].Value))

	var got model.PaymentEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, model.PaymentCompleted, got.Status)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("5")))
}

func TestProducerPublishPaymentError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewProducerWithWriter(&fakeWriter{err: boom}, logger.Discard())

	err := p.PublishPayment(context.Background(), model.PaymentEvent{InvoiceNumber: "INV-1"})
	assert.ErrorIs(t, err, boom)
}
