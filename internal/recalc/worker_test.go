package recalc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tradeledger/internal/platform/kafka"
	"tradeledger/internal/recalc/mocks"
	riskmodels "tradeledger/internal/risk/models"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	audit "tradeledger/pkg/platform/audit"
)

// =============================================================================
// Recalc Worker Test Suite
// =============================================================================
// Justification: queued recalculations must never be lost silently. A
// failing task is retried a bounded number of times and then parked on the
// dead-letter topic with an audit trail.

type WorkerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	executor *mocks.MockExecutor
	producer *mocks.MockProducer
	auditor  *mocks.MockAuditPublisher
	worker   *Worker
	system   id.UserID
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.executor = mocks.NewMockExecutor(s.ctrl)
	s.producer = mocks.NewMockProducer(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.system = id.NewUserID()

	var err error
	s.worker, err = NewWorker(s.executor, s.producer, WorkerConfig{
		Topic:       "risk.recalc",
		DeadTopic:   "risk.recalc.dlq",
		MaxAttempts: 3,
		SystemActor: s.system,
	}, WithWorkerLogger(discardLogger()), WithAuditPublisher(s.auditor))
	s.Require().NoError(err)
}

func (s *WorkerSuite) message(task Task) kafka.Message {
	payload, err := task.Encode()
	s.Require().NoError(err)
	return kafka.Message{Topic: "risk.recalc", Key: []byte(task.UserID.String()), Value: payload}
}

func (s *WorkerSuite) TestSuccessfulTaskIsAcknowledged() {
	task := Task{UserID: id.NewUserID(), Trigger: riskmodels.TriggerVerification, Attempt: 1}
	s.executor.EXPECT().Execute(gomock.Any(), task.UserID, task.Trigger).Return(nil)

	s.NoError(s.worker.Handle(context.Background(), s.message(task)))
}

func (s *WorkerSuite) TestFailedTaskIsRequeuedWithNextAttempt() {
	task := Task{UserID: id.NewUserID(), Trigger: riskmodels.TriggerManual, Attempt: 2}
	s.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(context.DeadlineExceeded)
	s.producer.EXPECT().Produce(gomock.Any(), "risk.recalc", []byte(task.UserID.String()), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _, value []byte) error {
			next, err := DecodeTask(value)
			s.Require().NoError(err)
			s.Equal(3, next.Attempt)
			s.Equal(task.UserID, next.UserID)
			return nil
		})

	s.NoError(s.worker.Handle(context.Background(), s.message(task)))
}

func (s *WorkerSuite) TestExhaustedTaskIsDeadLettered() {
	task := Task{UserID: id.NewUserID(), Trigger: riskmodels.TriggerManual, Attempt: 3}
	s.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("risk store down"))
	s.producer.EXPECT().Produce(gomock.Any(), "risk.recalc.dlq", []byte(task.UserID.String()), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _, value []byte) error {
			var dl DeadLetter
			s.Require().NoError(json.Unmarshal(value, &dl))
			s.Require().NotNil(dl.Task)
			s.Equal(3, dl.Task.Attempt)
			s.Equal("risk store down", dl.Error)
			return nil
		})
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		s.Equal(audit.ActionRecalcDeadLettered, e.Action)
		s.Equal(s.system, e.ActorID)
		s.Equal(id.RoleSystem, e.ActorRole)
		s.Equal(task.UserID.String(), e.SubjectID)
		s.Equal("3", e.To)
		return nil
	})

	s.NoError(s.worker.Handle(context.Background(), s.message(task)))
}

func (s *WorkerSuite) TestNonRetryableFailureSkipsRetries() {
	task := Task{UserID: id.NewUserID(), Trigger: riskmodels.TriggerManual, Attempt: 1}
	s.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(dErrors.New(dErrors.CodeValidation, "user id is required"))
	s.producer.EXPECT().Produce(gomock.Any(), "risk.recalc.dlq", gomock.Any(), gomock.Any()).Return(nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	s.NoError(s.worker.Handle(context.Background(), s.message(task)))
}

func (s *WorkerSuite) TestMalformedPayloadIsDeadLettered() {
	s.producer.EXPECT().Produce(gomock.Any(), "risk.recalc.dlq", []byte("malformed"), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _, value []byte) error {
			var dl DeadLetter
			s.Require().NoError(json.Unmarshal(value, &dl))
			s.Nil(dl.Task)
			s.Equal("{not json", dl.Raw)
			return nil
		})
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	s.NoError(s.worker.Handle(context.Background(), kafka.Message{Value: []byte("{not json")}))
}

func (s *WorkerSuite) TestAuditFailureIsSwallowed() {
	task := Task{UserID: id.NewUserID(), Trigger: riskmodels.TriggerManual, Attempt: 3}
	s.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("boom"))
	s.producer.EXPECT().Produce(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit store down"))

	s.NoError(s.worker.Handle(context.Background(), s.message(task)))
}

func (s *WorkerSuite) TestRepublishFailureIsReported() {
	task := Task{UserID: id.NewUserID(), Trigger: riskmodels.TriggerManual, Attempt: 1}
	s.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("boom"))
	s.producer.EXPECT().Produce(gomock.Any(), "risk.recalc", gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	s.Error(s.worker.Handle(context.Background(), s.message(task)))
}

func (s *WorkerSuite) TestNewWorkerValidatesConfig() {
	_, err := NewWorker(s.executor, s.producer, WorkerConfig{Topic: "a"})
	s.Error(err)
	_, err = NewWorker(nil, s.producer, WorkerConfig{Topic: "a", DeadTopic: "b"})
	s.Error(err)
}
