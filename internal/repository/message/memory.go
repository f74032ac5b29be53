package message

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/exitpal/exitpal/internal/model"
)

// MemoryRepository is an ephemeral, process-local message store. State is
// lost on restart; it backs local development and tests, and is the smallest
// implementation of the store contract.
type MemoryRepository struct {
	mu       sync.RWMutex
	messages map[uuid.UUID]model.ScheduledMessage
	claims   map[uuid.UUID]time.Time
}

// NewMemoryRepository creates an empty in-memory message repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		messages: make(map[uuid.UUID]model.ScheduledMessage),
		claims:   make(map[uuid.UUID]time.Time),
	}
}

func (r *MemoryRepository) Create(_ context.Context, msg model.ScheduledMessage) (model.ScheduledMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg.ID = uuid.New()
	now := time.Now().UTC()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	msg.Status = model.StatusPending

	r.messages[msg.ID] = msg
	return msg, nil
}

func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID string) ([]model.ScheduledMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var messages []model.ScheduledMessage
	for _, msg := range r.messages {
		if msg.OwnerID == ownerID {
			messages = append(messages, msg)
		}
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].ScheduledAt.After(messages[j].ScheduledAt)
	})

	return messages, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID, ownerID string) (model.ScheduledMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.messages[id]
	if !ok || msg.OwnerID != ownerID {
		return model.ScheduledMessage{}, ErrMessageNotFound
	}

	return msg, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, status model.Status, providerRef string) (model.ScheduledMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[id]
	if !ok {
		return model.ScheduledMessage{}, ErrMessageNotFound
	}

	msg.Status = status
	if providerRef != "" {
		msg.ProviderRef = providerRef
	}
	msg.UpdatedAt = time.Now().UTC()
	r.messages[id] = msg

	return msg, nil
}

func (r *MemoryRepository) Cancel(_ context.Context, id uuid.UUID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[id]
	if !ok || msg.OwnerID != ownerID || msg.Status != model.StatusPending {
		return ErrMessageNotFound
	}

	msg.Status = model.StatusCancelled
	msg.UpdatedAt = time.Now().UTC()
	r.messages[id] = msg

	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[id]
	if !ok || msg.OwnerID != ownerID {
		return ErrMessageNotFound
	}

	delete(r.messages, id)
	delete(r.claims, id)

	return nil
}

func (r *MemoryRepository) ClaimDue(_ context.Context, now time.Time, staleAfter time.Duration, limit int) ([]model.ScheduledMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []model.ScheduledMessage
	for id, msg := range r.messages {
		if msg.Status != model.StatusPending || msg.ScheduledAt.After(now) {
			continue
		}
		if claimed, ok := r.claims[id]; ok && claimed.After(now.Add(-staleAfter)) {
			continue
		}
		due = append(due, msg)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	for _, msg := range due {
		r.claims[msg.ID] = now
	}

	return due, nil
}

func (r *MemoryRepository) ReleaseClaim(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.claims, id)
	return nil
}

func (r *MemoryRepository) GetByProviderRef(_ context.Context, ref string) (model.ScheduledMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, msg := range r.messages {
		if msg.ProviderRef != "" && msg.ProviderRef == ref {
			return msg, nil
		}
	}

	return model.ScheduledMessage{}, ErrMessageNotFound
}

func (r *MemoryRepository) CountSentSince(_ context.Context, ownerID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, msg := range r.messages {
		if msg.OwnerID == ownerID && msg.Status == model.StatusSent && !msg.CreatedAt.Before(since) {
			count++
		}
	}

	return count, nil
}
