package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tempora/internal/shared/domain"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Save(ctx context.Context, msg *Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	args := m.Called(ctx, limit)
	if msgs, ok := args.Get(0).([]*Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepository) MarkPublished(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	args := m.Called(ctx, id, errMsg, nextRetryAt)
	return args.Error(0)
}

func (m *mockRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *mockRepository) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	args := m.Called(ctx, olderThanDays)
	return args.Get(0).(int64), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	args := m.Called(ctx, routingKey, payload)
	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestNewMessage(t *testing.T) {
	event := domain.NewBaseEvent(uuid.New(), "booking", "booking.confirmed")

	msg, err := NewMessage(&event)
	require.NoError(t, err)

	assert.Equal(t, event.EventID(), msg.EventID)
	assert.Equal(t, "booking", msg.AggregateType)
	assert.Equal(t, "booking.confirmed", msg.RoutingKey)
	assert.Equal(t, "booking.confirmed", msg.EventType)
	assert.False(t, msg.IsPublished())
	assert.True(t, msg.CanRetry(1))
}

func TestProcessor_ProcessOnce_PublishesAndMarks(t *testing.T) {
	repo := new(mockRepository)
	pub := new(mockPublisher)
	proc := NewProcessor(repo, pub, DefaultProcessorConfig(), nil)

	ctx := context.Background()
	msg := &Message{ID: 1, RoutingKey: "booking.confirmed", Payload: []byte(`{}`)}

	repo.On("GetUnpublished", ctx, 100).Return([]*Message{msg}, nil)
	pub.On("Publish", ctx, "booking.confirmed", []byte(msg.Payload)).Return(nil)
	repo.On("MarkPublished", ctx, int64(1)).Return(nil)

	require.NoError(t, proc.ProcessOnce(ctx))

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
	assert.EqualValues(t, 1, proc.GetStats().PublishedCount)
}

func TestProcessor_ProcessOnce_RetriesOnFailure(t *testing.T) {
	repo := new(mockRepository)
	pub := new(mockPublisher)
	proc := NewProcessor(repo, pub, DefaultProcessorConfig(), nil)

	ctx := context.Background()
	msg := &Message{ID: 2, RoutingKey: "booking.confirmed", Payload: []byte(`{}`), RetryCount: 0}

	repo.On("GetUnpublished", ctx, 100).Return([]*Message{msg}, nil)
	pub.On("Publish", ctx, "booking.confirmed", []byte(msg.Payload)).Return(errors.New("broker down"))
	repo.On("MarkFailed", ctx, int64(2), "broker down", mock.AnythingOfType("time.Time")).Return(nil)

	require.NoError(t, proc.ProcessOnce(ctx))

	repo.AssertExpectations(t)
	assert.EqualValues(t, 1, proc.GetStats().FailedCount)
	assert.Equal(t, "broker down", proc.GetStats().LastError)
}

func TestProcessor_ProcessOnce_DeadLettersAtMaxRetries(t *testing.T) {
	repo := new(mockRepository)
	pub := new(mockPublisher)
	cfg := DefaultProcessorConfig()
	cfg.MaxRetries = 3
	proc := NewProcessor(repo, pub, cfg, nil)

	ctx := context.Background()
	msg := &Message{ID: 3, RoutingKey: "booking.confirmed", Payload: []byte(`{}`), RetryCount: 2}

	repo.On("GetUnpublished", ctx, 100).Return([]*Message{msg}, nil)
	pub.On("Publish", ctx, "booking.confirmed", []byte(msg.Payload)).Return(errors.New("broker down"))
	repo.On("MarkDead", ctx, int64(3), "broker down").Return(nil)

	require.NoError(t, proc.ProcessOnce(ctx))

	repo.AssertExpectations(t)
	assert.EqualValues(t, 1, proc.GetStats().DeadCount)
}

func TestProcessor_RetryBackoff(t *testing.T) {
	proc := NewProcessor(nil, nil, ProcessorConfig{
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  30 * time.Second,
	}, nil)

	assert.Equal(t, time.Second, proc.retryBackoff(1))
	assert.Equal(t, 2*time.Second, proc.retryBackoff(2))
	assert.Equal(t, 4*time.Second, proc.retryBackoff(3))
	assert.Equal(t, 30*time.Second, proc.retryBackoff(10))
}
