package recalc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"tradeledger/internal/recalc/mocks"
	riskmodels "tradeledger/internal/risk/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/circuit"
	"tradeledger/pkg/requestcontext"
)

func newQueue(t *testing.T, producer Producer, computer Computer, opts ...QueueOption) *Queue {
	t.Helper()
	fallback, err := NewDispatcher(computer, WithLogger(discardLogger()))
	require.NoError(t, err)
	q, err := NewQueue(producer, "risk.recalc", fallback, append([]QueueOption{WithQueueLogger(discardLogger())}, opts...)...)
	require.NoError(t, err)
	return q
}

func TestQueuePublishesOneTaskPerUser(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctrl := gomock.NewController(t)

	buyer, seller := id.NewUserID(), id.NewUserID()
	producer := mocks.NewMockProducer(ctrl)
	for _, userID := range []id.UserID{buyer, seller} {
		producer.EXPECT().Produce(gomock.Any(), "risk.recalc", []byte(userID.String()), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, _, value []byte) error {
				task, err := DecodeTask(value)
				require.NoError(t, err)
				assert.Equal(t, userID, task.UserID)
				assert.Equal(t, 1, task.Attempt)
				assert.Equal(t, riskmodels.TriggerTransactionStatusChange, task.Trigger)
				assert.Equal(t, "req-7", task.RequestID)
				return nil
			})
	}
	q := newQueue(t, producer, mocks.NewMockComputer(ctrl))

	q.Dispatch(requestcontext.WithRequestID(context.Background(), "req-7"), riskmodels.TriggerTransactionStatusChange, buyer, seller)
	q.Close()
}

func TestQueueFallsBackToInProcessOnPublishFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctrl := gomock.NewController(t)

	userID := id.NewUserID()
	producer := mocks.NewMockProducer(ctrl)
	producer.EXPECT().Produce(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("broker unreachable"))
	computer := mocks.NewMockComputer(ctrl)
	computer.EXPECT().ComputeScore(gomock.Any(), userID, riskmodels.TriggerVerification).Return(computed(userID), nil)

	q := newQueue(t, producer, computer)
	q.Dispatch(context.Background(), riskmodels.TriggerVerification, userID)
	q.Close()
}

func TestQueueSkipsBrokerWhileCircuitOpen(t *testing.T) {
	ctrl := gomock.NewController(t)

	breaker := circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))
	producer := mocks.NewMockProducer(ctrl)
	computer := mocks.NewMockComputer(ctrl)
	computer.EXPECT().ComputeScore(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, userID id.UserID, _ riskmodels.Trigger) (*riskmodels.Result, error) {
			return computed(userID), nil
		}).Times(4)
	q := newQueue(t, producer, computer, WithBreaker(breaker), WithProbeInterval(time.Hour))
	defer q.Close()
	task := func() Task { return Task{UserID: id.NewUserID(), Trigger: riskmodels.TriggerManual, Attempt: 1} }

	producer.EXPECT().Produce(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("down")).Times(2)
	q.publish(context.Background(), task())
	q.publish(context.Background(), task())
	require.True(t, breaker.IsOpen())

	// No Produce expectation: an open circuit goes straight to the fallback.
	q.publish(context.Background(), task())

	q.lastProbe.Store(time.Now().Add(-2 * time.Hour).UnixNano())
	producer.EXPECT().Produce(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("still down"))
	q.publish(context.Background(), task())
	assert.True(t, breaker.IsOpen())

	q.lastProbe.Store(time.Now().Add(-2 * time.Hour).UnixNano())
	producer.EXPECT().Produce(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	q.publish(context.Background(), task())
	assert.False(t, breaker.IsOpen())
}

func TestNewQueueValidatesArguments(t *testing.T) {
	ctrl := gomock.NewController(t)
	fallback, err := NewDispatcher(mocks.NewMockComputer(ctrl))
	require.NoError(t, err)
	producer := mocks.NewMockProducer(ctrl)

	_, err = NewQueue(nil, "t", fallback)
	assert.Error(t, err)
	_, err = NewQueue(producer, "", fallback)
	assert.Error(t, err)
	_, err = NewQueue(producer, "t", nil)
	assert.Error(t, err)
}
