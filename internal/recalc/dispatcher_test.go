package recalc

//go:generate mockgen -destination=mocks/mocks.go -package=mocks tradeledger/internal/recalc Computer,Producer,Executor,AuditPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"tradeledger/internal/recalc/mocks"
	riskmodels "tradeledger/internal/risk/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/requestcontext"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func computed(userID id.UserID) *riskmodels.Result {
	return &riskmodels.Result{Score: &riskmodels.Score{UserID: userID, Score: 20, Category: riskmodels.CategoryLow}}
}

func TestDispatchRunsOncePerDistinctUser(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctrl := gomock.NewController(t)

	buyer, seller := id.NewUserID(), id.NewUserID()
	computer := mocks.NewMockComputer(ctrl)
	for _, userID := range []id.UserID{buyer, seller} {
		computer.EXPECT().
			ComputeScore(gomock.Any(), userID, riskmodels.TriggerTransactionStatusChange).
			DoAndReturn(func(ctx context.Context, userID id.UserID, _ riskmodels.Trigger) (*riskmodels.Result, error) {
				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline)
				assert.NoError(t, ctx.Err())
				assert.Equal(t, "req-42", requestcontext.RequestID(ctx))
				return computed(userID), nil
			}).Times(1)
	}

	d, err := NewDispatcher(computer, WithLogger(discardLogger()))
	require.NoError(t, err)

	reqCtx, cancel := context.WithCancel(requestcontext.WithRequestID(context.Background(), "req-42"))
	d.Dispatch(reqCtx, riskmodels.TriggerTransactionStatusChange, buyer, seller, buyer, id.UserID{})
	cancel()
	d.Close()
}

func TestDispatchDoesNotWaitForComputation(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctrl := gomock.NewController(t)

	release := make(chan struct{})
	var finished atomic.Bool
	computer := mocks.NewMockComputer(ctrl)
	computer.EXPECT().ComputeScore(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, userID id.UserID, _ riskmodels.Trigger) (*riskmodels.Result, error) {
			<-release
			finished.Store(true)
			return computed(userID), nil
		})

	d, err := NewDispatcher(computer, WithLogger(discardLogger()))
	require.NoError(t, err)

	d.Dispatch(context.Background(), riskmodels.TriggerVerification, id.NewUserID())
	assert.False(t, finished.Load())

	close(release)
	d.Close()
	assert.True(t, finished.Load())
}

// One slow recalculation times out on its own deadline while the other
// party's recalculation completes.
func TestDispatchTimeoutsAreIndependent(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctrl := gomock.NewController(t)

	slow, fast := id.NewUserID(), id.NewUserID()
	var slowErr atomic.Value
	computer := mocks.NewMockComputer(ctrl)
	computer.EXPECT().ComputeScore(gomock.Any(), slow, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ id.UserID, _ riskmodels.Trigger) (*riskmodels.Result, error) {
			<-ctx.Done()
			slowErr.Store(ctx.Err())
			return nil, ctx.Err()
		})
	computer.EXPECT().ComputeScore(gomock.Any(), fast, gomock.Any()).Return(computed(fast), nil)

	d, err := NewDispatcher(computer, WithLogger(discardLogger()), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	d.Dispatch(context.Background(), riskmodels.TriggerTransactionStatusChange, slow, fast)
	d.Close()
	assert.ErrorIs(t, slowErr.Load().(error), context.DeadlineExceeded)
}

func TestExecuteReturnsComputationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	boom := errors.New("risk store down")
	computer := mocks.NewMockComputer(ctrl)
	computer.EXPECT().ComputeScore(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)
	computer.EXPECT().ComputeScore(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&riskmodels.Result{Skipped: true, SkipReason: "role bank is not scored"}, nil)

	d, err := NewDispatcher(computer, WithLogger(discardLogger()))
	require.NoError(t, err)

	assert.ErrorIs(t, d.Execute(context.Background(), id.NewUserID(), riskmodels.TriggerManual), boom)
	assert.NoError(t, d.Execute(context.Background(), id.NewUserID(), riskmodels.TriggerManual))
}

func TestDispatchAfterCloseIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctrl := gomock.NewController(t)
	computer := mocks.NewMockComputer(ctrl)

	d, err := NewDispatcher(computer, WithLogger(discardLogger()))
	require.NoError(t, err)
	d.Close()

	d.Dispatch(context.Background(), riskmodels.TriggerManual, id.NewUserID())
	d.Close()
}

func TestNewDispatcherRequiresComputer(t *testing.T) {
	_, err := NewDispatcher(nil)
	assert.Error(t, err)
}
