package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/exitpal/exitpal/internal/model"
	"github.com/exitpal/exitpal/internal/rabbitmq/queue"
)

//go:generate mockgen -source=dispatcher.go -destination=../mocks/worker/mock.go -package=mocks

type jobConsumer interface {
	Consume(ctx context.Context, out chan<- queue.DispatchJob, strategy retry.Strategy) error
}

type jobHandler interface {
	HandleJob(ctx context.Context, job queue.DispatchJob, strategy retry.Strategy)
}

type statusService interface {
	GetStatusByID(ctx context.Context, strategy retry.Strategy, id uuid.UUID, ownerID string) (model.Status, error)
}

// Dispatcher runs a pool of workers draining the dispatch queue. Each worker
// re-checks the message status before delivering, so a cancellation that
// landed between claim and dequeue still prevents the send. A cancel racing
// an already in-flight telephony call is not aborted; the resulting status
// update proceeds.
type Dispatcher struct {
	queue   jobConsumer
	handler jobHandler
	service statusService
}

func NewDispatcher(q jobConsumer, h jobHandler, s statusService) *Dispatcher {
	return &Dispatcher{
		queue:   q,
		handler: h,
		service: s,
	}
}

func (d *Dispatcher) Run(ctx context.Context, strategy retry.Strategy, workerCount int) {
	var wg sync.WaitGroup
	jobChan := make(chan queue.DispatchJob, workerCount*10)

	go func() {
		if err := d.queue.Consume(ctx, jobChan, strategy); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to consume dispatch jobs")
		}
	}()

	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func(id int) {
			defer wg.Done()

			zlog.Logger.Printf("dispatch-worker-%d started", id)

			for {
				select {
				case <-ctx.Done():
					zlog.Logger.Printf("dispatch-worker-%d shutting down", id)
					return
				case job, ok := <-jobChan:
					if !ok {
						zlog.Logger.Printf("dispatch-worker-%d channel closed, shutting down", id)
						return
					}

					status, err := d.service.GetStatusByID(ctx, strategy, job.ID, job.OwnerID)
					if err != nil {
						zlog.Logger.Printf("failed to get status for %s: %v", job.ID, err)
						continue
					}

					if status == model.StatusCancelled {
						zlog.Logger.Printf("message %s cancelled, skipping", job.ID)
						continue
					}

					d.handler.HandleJob(ctx, job, strategy)
				}
			}
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
	zlog.Logger.Print("dispatcher stopped")
}
