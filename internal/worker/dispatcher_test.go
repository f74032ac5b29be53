package worker

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"

	mocks "github.com/exitpal/exitpal/internal/mocks/worker"
	"github.com/exitpal/exitpal/internal/model"
	"github.com/exitpal/exitpal/internal/rabbitmq/queue"
)

func TestDispatcher_Run_HandlesJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockConsumer := mocks.NewMockjobConsumer(ctrl)
	mockHandler := mocks.NewMockjobHandler(ctrl)
	mockService := mocks.NewMockstatusService(ctrl)

	d := NewDispatcher(mockConsumer, mockHandler, mockService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	strategy := retry.Strategy{Attempts: 1, Delay: time.Millisecond}

	job := queue.DispatchJob{
		ID:          uuid.New(),
		OwnerID:     "owner-1",
		Destination: "+15551234567",
		Content:     "time to leave",
		Channel:     model.ChannelSMS,
		ScheduledAt: time.Now(),
	}

	mockConsumer.EXPECT().Consume(gomock.Any(), gomock.Any(), strategy).DoAndReturn(
		func(_ context.Context, out chan<- queue.DispatchJob, _ retry.Strategy) error {
			out <- job
			return nil
		},
	)

	mockService.EXPECT().GetStatusByID(gomock.Any(), strategy, job.ID, job.OwnerID).Return(model.StatusPending, nil)
	mockHandler.EXPECT().HandleJob(gomock.Any(), job, strategy)

	go d.Run(ctx, strategy, 1)

	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)
}

func TestDispatcher_Run_SkipsCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockConsumer := mocks.NewMockjobConsumer(ctrl)
	mockHandler := mocks.NewMockjobHandler(ctrl)
	mockService := mocks.NewMockstatusService(ctrl)

	d := NewDispatcher(mockConsumer, mockHandler, mockService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	strategy := retry.Strategy{Attempts: 1, Delay: time.Millisecond}
	job := queue.DispatchJob{ID: uuid.New(), OwnerID: "owner-1"}

	mockConsumer.EXPECT().Consume(gomock.Any(), gomock.Any(), strategy).DoAndReturn(
		func(_ context.Context, out chan<- queue.DispatchJob, _ retry.Strategy) error {
			out <- job
			return nil
		},
	)

	// A cancellation racing the queue must win: the job is dropped before
	// any telephony attempt.
	mockService.EXPECT().GetStatusByID(gomock.Any(), strategy, job.ID, job.OwnerID).Return(model.StatusCancelled, nil)

	go d.Run(ctx, strategy, 1)

	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)
}
