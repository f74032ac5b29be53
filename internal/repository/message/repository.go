package message

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/exitpal/exitpal/internal/model"
)

// Repository is the full message store contract. All backends implement it;
// consumers declare the narrower slice they actually use.
type Repository interface {
	Create(ctx context.Context, msg model.ScheduledMessage) (model.ScheduledMessage, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.ScheduledMessage, error)
	GetByID(ctx context.Context, id uuid.UUID, ownerID string) (model.ScheduledMessage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status, providerRef string) (model.ScheduledMessage, error)
	Cancel(ctx context.Context, id uuid.UUID, ownerID string) error
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
	ClaimDue(ctx context.Context, now time.Time, staleAfter time.Duration, limit int) ([]model.ScheduledMessage, error)
	ReleaseClaim(ctx context.Context, id uuid.UUID) error
	GetByProviderRef(ctx context.Context, ref string) (model.ScheduledMessage, error)
	CountSentSince(ctx context.Context, ownerID string, since time.Time) (int, error)
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*BoltRepository)(nil)
)
