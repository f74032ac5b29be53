package message

import (
	"context"
	"errors"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/exitpal/exitpal/internal/rabbitmq/queue"
	msgsvc "github.com/exitpal/exitpal/internal/service/message"
)

//go:generate mockgen -source=handler.go -destination=../../../mocks/rabbitmq/handlers/message/mock.go -package=mocks
type messageService interface {
	Dispatch(ctx context.Context, strategy retry.Strategy, job queue.DispatchJob) error
}

// Handler consumes dispatch jobs off the queue and hands them to the
// service. The telephony attempt itself is single-shot; a failure is
// terminal for the message, not requeued.
type Handler struct {
	service messageService
}

func NewHandler(svc messageService) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) HandleJob(ctx context.Context, job queue.DispatchJob, strategy retry.Strategy) {
	zlog.Logger.Info().
		Str("id", job.ID.String()).
		Str("channel", string(job.Channel)).
		Time("scheduledAt", job.ScheduledAt).
		Msg("dispatching message")

	if err := h.service.Dispatch(ctx, strategy, job); err != nil {
		if errors.Is(err, msgsvc.ErrDailyLimitReached) {
			zlog.Logger.Warn().Str("id", job.ID.String()).Str("owner", job.OwnerID).Msg("daily limit reached, message failed")
			return
		}

		zlog.Logger.Error().Err(err).Str("id", job.ID.String()).Msg("dispatch failed")
		return
	}

	zlog.Logger.Info().Str("id", job.ID.String()).Msg("message dispatched")
}
