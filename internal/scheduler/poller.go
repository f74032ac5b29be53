// Package scheduler turns rows in the message store into dispatch jobs. It
// replaces a fire-and-forget in-process timer with a durable due-queue: the
// store is the source of truth, so pending messages survive restarts and a
// missed poll only delays delivery instead of dropping it.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/exitpal/exitpal/internal/model"
	"github.com/exitpal/exitpal/internal/rabbitmq/queue"
)

//go:generate mockgen -source=poller.go -destination=../mocks/scheduler/mock.go -package=mocks

type dueRepository interface {
	ClaimDue(ctx context.Context, now time.Time, staleAfter time.Duration, limit int) ([]model.ScheduledMessage, error)
	ReleaseClaim(ctx context.Context, id uuid.UUID) error
}

type dispatchPublisher interface {
	Publish(job queue.DispatchJob, strategy retry.Strategy) error
}

// Poller periodically claims due pending messages and publishes one dispatch
// job per claim. Claims are conditional in the store, so running several
// pollers never double-publishes a message.
type Poller struct {
	repo  dueRepository
	queue dispatchPublisher

	interval   time.Duration
	batchSize  int
	staleAfter time.Duration
}

func NewPoller(repo dueRepository, q dispatchPublisher, interval time.Duration, batchSize int, staleAfter time.Duration) *Poller {
	return &Poller{
		repo:       repo,
		queue:      q,
		interval:   interval,
		batchSize:  batchSize,
		staleAfter: staleAfter,
	}
}

// Run polls until ctx is cancelled. The first tick happens immediately so a
// freshly started instance picks up backlog without waiting an interval.
func (p *Poller) Run(ctx context.Context, strategy retry.Strategy) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	zlog.Logger.Info().Dur("interval", p.interval).Int("batch", p.batchSize).Msg("due-poller started")

	p.tick(ctx, strategy)

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("due-poller stopped")
			return
		case <-ticker.C:
			p.tick(ctx, strategy)
		}
	}
}

func (p *Poller) tick(ctx context.Context, strategy retry.Strategy) {
	due, err := p.repo.ClaimDue(ctx, time.Now().UTC(), p.staleAfter, p.batchSize)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to claim due messages")
		return
	}

	for _, msg := range due {
		job := queue.DispatchJob{
			ID:          msg.ID,
			OwnerID:     msg.OwnerID,
			Destination: msg.Destination,
			Content:     msg.Content,
			Channel:     msg.Channel,
			ScheduledAt: msg.ScheduledAt,
		}

		if err := p.queue.Publish(job, strategy); err != nil {
			zlog.Logger.Error().Err(err).Str("id", msg.ID.String()).Msg("failed to publish dispatch job")

			// put the message back so the next tick retries it
			if relErr := p.repo.ReleaseClaim(ctx, msg.ID); relErr != nil {
				zlog.Logger.Error().Err(relErr).Str("id", msg.ID.String()).Msg("failed to release claim")
			}
			continue
		}

		zlog.Logger.Info().Str("id", msg.ID.String()).Str("channel", string(msg.Channel)).Msg("dispatch job published")
	}
}
