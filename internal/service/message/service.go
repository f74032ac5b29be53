package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/exitpal/exitpal/internal/model"
	"github.com/exitpal/exitpal/internal/rabbitmq/queue"
)

// ErrDailyLimitReached is returned by Dispatch when the owner has exhausted
// their daily send quota.
var ErrDailyLimitReached = errors.New("daily message limit reached")

//go:generate mockgen -source=service.go -destination=../../mocks/service/message/mock.go -package=mocks

type messageRepository interface {
	Create(ctx context.Context, msg model.ScheduledMessage) (model.ScheduledMessage, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.ScheduledMessage, error)
	GetByID(ctx context.Context, id uuid.UUID, ownerID string) (model.ScheduledMessage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status, providerRef string) (model.ScheduledMessage, error)
	Cancel(ctx context.Context, id uuid.UUID, ownerID string) error
	GetByProviderRef(ctx context.Context, ref string) (model.ScheduledMessage, error)
	CountSentSince(ctx context.Context, ownerID string, since time.Time) (int, error)
}

// Provider is the outbound telephony capability. Each call is a single
// remote attempt; retrying a failed send is never done here.
type Provider interface {
	SendText(ctx context.Context, to, body, from string) (string, error)
	PlaceVoiceCall(ctx context.Context, to, spokenText, from string) (string, error)
}

type usageLimiter interface {
	Reserve(ctx context.Context, ownerID string, limit int) (bool, error)
	Release(ctx context.Context, ownerID string) error
}

type identityProvider interface {
	IsPremium(ctx context.Context, ownerID string) (bool, error)
}

type changeFeed interface {
	Broadcast(ownerID string)
}

type cache interface {
	SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}) error
	GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error)
}

// Limits holds the per-tier daily send caps.
type Limits struct {
	Free    int
	Premium int
}

type Service struct {
	repo     messageRepository
	cache    cache
	provider Provider
	limiter  usageLimiter
	identity identityProvider
	feed     changeFeed
	limits   Limits
}

func NewService(
	repo messageRepository,
	cache cache,
	provider Provider,
	limiter usageLimiter,
	identity identityProvider,
	feed changeFeed,
	limits Limits,
) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		provider: provider,
		limiter:  limiter,
		identity: identity,
		feed:     feed,
		limits:   limits,
	}
}

// Schedule persists a new pending message. Delivery is picked up later by
// the due-poller; a scheduled time in the past simply makes the message due
// on the next poll.
func (s *Service) Schedule(ctx context.Context, strategy retry.Strategy, msg model.ScheduledMessage) (model.ScheduledMessage, error) {
	created, err := s.repo.Create(ctx, msg)
	if err != nil {
		return model.ScheduledMessage{}, fmt.Errorf("create message: %w", err)
	}

	if err := s.cache.SetWithRetry(ctx, strategy, statusKey(created.OwnerID, created.ID), string(created.Status)); err != nil {
		zlog.Logger.Error().Err(err).Str("id", created.ID.String()).Msg("failed to cache message status")
	}

	s.feed.Broadcast(created.OwnerID)

	return created, nil
}

// ListByOwner returns the owner's messages ordered by scheduled time
// descending. An owner with no messages gets an empty list, not an error.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]model.ScheduledMessage, error) {
	messages, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return messages, nil
}

// GetStatusByID returns the message status, preferring the cache and falling
// back to the store on a miss. Cache keys are scoped to the owner, so a
// foreign owner always falls through to the store and gets its not-found.
func (s *Service) GetStatusByID(ctx context.Context, strategy retry.Strategy, id uuid.UUID, ownerID string) (model.Status, error) {
	status, err := s.cache.GetWithRetry(ctx, strategy, statusKey(ownerID, id))
	if err != nil && !errors.Is(err, redis.Nil) {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get message status from cache")
	}

	if err != nil || status == "" {
		msg, err := s.repo.GetByID(ctx, id, ownerID)
		if err != nil {
			return "", fmt.Errorf("get message status: %w", err)
		}
		status = string(msg.Status)

		if err := s.cache.SetWithRetry(ctx, strategy, statusKey(ownerID, id), status); err != nil {
			zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache message status")
		}
	}

	return model.Status(status), nil
}

// Cancel transitions a pending message to cancelled. Non-pending and foreign
// messages fail with the store's not-found error.
func (s *Service) Cancel(ctx context.Context, strategy retry.Strategy, id uuid.UUID, ownerID string) error {
	if err := s.repo.Cancel(ctx, id, ownerID); err != nil {
		return fmt.Errorf("cancel message: %w", err)
	}

	if err := s.cache.SetWithRetry(ctx, strategy, statusKey(ownerID, id), string(model.StatusCancelled)); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache message status")
	}

	s.feed.Broadcast(ownerID)

	return nil
}

// SetStatus records a dispatch outcome and keeps the status cache and change
// feed in step with the store.
func (s *Service) SetStatus(ctx context.Context, strategy retry.Strategy, id uuid.UUID, status model.Status, providerRef string) error {
	updated, err := s.repo.UpdateStatus(ctx, id, status, providerRef)
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}

	if err := s.cache.SetWithRetry(ctx, strategy, statusKey(updated.OwnerID, id), string(status)); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache message status")
	}

	s.feed.Broadcast(updated.OwnerID)

	return nil
}

// Dispatch performs the delivery of one due message: reserve daily quota,
// make a single telephony attempt, record sent or failed. A failed attempt
// refunds its reservation so only successful sends consume quota.
func (s *Service) Dispatch(ctx context.Context, strategy retry.Strategy, job queue.DispatchJob) error {
	limit, err := s.dailyLimit(ctx, job.OwnerID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("owner", job.OwnerID).Msg("failed to resolve plan tier, assuming free")
	}

	allowed, err := s.limiter.Reserve(ctx, job.OwnerID, limit)
	if err != nil {
		s.markFailed(ctx, strategy, job.ID)
		return fmt.Errorf("reserve quota: %w", err)
	}
	if !allowed {
		s.markFailed(ctx, strategy, job.ID)
		return ErrDailyLimitReached
	}

	providerRef, err := s.send(ctx, job.Channel, job.Destination, job.Content, "")
	if err != nil {
		if relErr := s.limiter.Release(ctx, job.OwnerID); relErr != nil {
			zlog.Logger.Error().Err(relErr).Str("owner", job.OwnerID).Msg("failed to release quota reservation")
		}
		s.markFailed(ctx, strategy, job.ID)
		return fmt.Errorf("dispatch %s: %w", job.Channel, err)
	}

	if err := s.SetStatus(ctx, strategy, job.ID, model.StatusSent, providerRef); err != nil {
		return err
	}

	return nil
}

// SendDirect performs an immediate, non-scheduled send and returns the
// provider reference. Nothing is persisted.
func (s *Service) SendDirect(ctx context.Context, channel model.Channel, to, content, from string) (string, error) {
	return s.send(ctx, channel, to, content, from)
}

// Reconcile matches an inbound provider callback to a message by its
// provider reference. Terminal statuses are never rewritten from callbacks;
// the match is returned for logging only.
func (s *Service) Reconcile(ctx context.Context, providerRef string) (model.ScheduledMessage, error) {
	msg, err := s.repo.GetByProviderRef(ctx, providerRef)
	if err != nil {
		return model.ScheduledMessage{}, fmt.Errorf("reconcile callback: %w", err)
	}

	return msg, nil
}

// Usage reports how many messages the owner has successfully sent so far in
// the current UTC day, together with their plan limit.
func (s *Service) Usage(ctx context.Context, ownerID string) (used, limit int, err error) {
	limit, err = s.dailyLimit(ctx, ownerID)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve plan tier: %w", err)
	}

	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	used, err = s.repo.CountSentSince(ctx, ownerID, startOfDay)
	if err != nil {
		return 0, 0, fmt.Errorf("count sent messages: %w", err)
	}

	return used, limit, nil
}

func (s *Service) dailyLimit(ctx context.Context, ownerID string) (int, error) {
	premium, err := s.identity.IsPremium(ctx, ownerID)
	if err != nil {
		return s.limits.Free, err
	}
	if premium {
		return s.limits.Premium, nil
	}
	return s.limits.Free, nil
}

func (s *Service) send(ctx context.Context, channel model.Channel, to, content, from string) (string, error) {
	switch channel {
	case model.ChannelSMS:
		return s.provider.SendText(ctx, to, content, from)
	case model.ChannelVoice:
		return s.provider.PlaceVoiceCall(ctx, to, content, from)
	default:
		return "", fmt.Errorf("unknown channel %s", channel)
	}
}

func statusKey(ownerID string, id uuid.UUID) string {
	return ownerID + ":" + id.String()
}

func (s *Service) markFailed(ctx context.Context, strategy retry.Strategy, id uuid.UUID) {
	if err := s.SetStatus(ctx, strategy, id, model.StatusFailed, ""); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to set status=failed")
	}
}
