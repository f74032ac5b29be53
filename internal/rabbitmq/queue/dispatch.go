package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/exitpal/exitpal/internal/model"
)

const (
	ExchangeName   = "exitpal-exchange"
	MainQueueName  = "exitpal-dispatch"
	RetryQueueName = "exitpal-dispatch-retry"
	DLQName        = "exitpal-dispatch-dlq"
	RoutingKey     = "dispatch"
)

// DispatchJob is the payload the due-poller publishes for each claimed
// message. It carries everything the dispatcher needs so the workers only
// touch the store to record the outcome.
type DispatchJob struct {
	ID          uuid.UUID     `json:"id"`
	OwnerID     string        `json:"ownerId"`
	Destination string        `json:"destination"`
	Content     string        `json:"content"`
	Channel     model.Channel `json:"channel"`
	ScheduledAt time.Time     `json:"scheduledAt"`
}

// DispatchQueue wraps the RabbitMQ topology for delivery jobs: a direct
// exchange feeding the main queue, with a TTL retry queue and a DLQ.
type DispatchQueue struct {
	Publisher *rabbitmq.Publisher
	Consumer  *rabbitmq.Consumer
}

func NewDispatchQueue(ch *rabbitmq.Channel) (*DispatchQueue, error) {
	exchange := rabbitmq.NewExchange(ExchangeName, "direct")
	if err := exchange.BindToChannel(ch); err != nil {
		return nil, fmt.Errorf("failed to bind to exchange: %w", err)
	}

	qm := rabbitmq.NewQueueManager(ch)

	_, err := qm.DeclareQueue(DLQName, rabbitmq.QueueConfig{Durable: true})
	if err != nil {
		return nil, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	retryArgs := map[string]interface{}{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": MainQueueName,
		"x-message-ttl":             int32(5000),
	}

	_, err = qm.DeclareQueue(RetryQueueName, rabbitmq.QueueConfig{
		Durable: true,
		Args:    retryArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare retry queue: %w", err)
	}

	mainArgs := map[string]interface{}{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DLQName,
	}

	mainQ, err := qm.DeclareQueue(MainQueueName, rabbitmq.QueueConfig{
		Durable: true,
		Args:    mainArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare main queue: %w", err)
	}

	if err := ch.QueueBind(mainQ.Name, RoutingKey, exchange.Name(), false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind the exchange to the main queue: %w", err)
	}

	pub := rabbitmq.NewPublisher(ch, exchange.Name())
	cons := rabbitmq.NewConsumer(ch, rabbitmq.NewConsumerConfig(mainQ.Name))

	return &DispatchQueue{Publisher: pub, Consumer: cons}, nil
}

func (q *DispatchQueue) Publish(job DispatchJob, strategy retry.Strategy) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.Publisher.PublishWithRetry(body, RoutingKey, "application/json", strategy)
}

func (q *DispatchQueue) Consume(ctx context.Context, out chan<- DispatchJob, strategy retry.Strategy) error {
	msgChan := make(chan []byte)

	go decodeJobs(ctx, msgChan, out)

	return q.Consumer.ConsumeWithRetry(msgChan, strategy)
}

// decodeJobs forwards decoded jobs until the context is cancelled or the
// source closes. The forward itself is cancellable too, so the loop never
// hangs on a full out channel after the workers have exited.
func decodeJobs(ctx context.Context, msgChan <-chan []byte, out chan<- DispatchJob) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgChan:
			if !ok {
				return
			}

			var job DispatchJob
			if err := json.Unmarshal(m, &job); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to unmarshal dispatch job")
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- job:
			}
		}
	}
}
