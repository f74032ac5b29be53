package message

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exitpal/exitpal/internal/model"
)

func newTestMessage(owner string, at time.Time) model.ScheduledMessage {
	return model.ScheduledMessage{
		OwnerID:     owner,
		ContactName: "Alex",
		Content:     "time to leave",
		Destination: "+15551234567",
		ScheduledAt: at,
		Channel:     model.ChannelSMS,
	}
}

func TestMemory_CreateAndList(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	early, err := repo.Create(ctx, newTestMessage("owner-1", now.Add(time.Hour)))
	require.NoError(t, err)
	late, err := repo.Create(ctx, newTestMessage("owner-1", now.Add(2*time.Hour)))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newTestMessage("owner-2", now.Add(time.Hour)))
	require.NoError(t, err)

	messages, err := repo.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, late.ID, messages[0].ID)
	assert.Equal(t, early.ID, messages[1].ID)

	empty, err := repo.ListByOwner(ctx, "owner-3")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemory_OwnerScoping(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	msg, err := repo.Create(ctx, newTestMessage("owner-1", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, msg.ID, "owner-2")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	err = repo.Cancel(ctx, msg.ID, "owner-2")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	err = repo.Delete(ctx, msg.ID, "owner-2")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	got, err := repo.GetByID(ctx, msg.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestMemory_CancelOnlyPending(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	msg, err := repo.Create(ctx, newTestMessage("owner-1", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, repo.Cancel(ctx, msg.ID, "owner-1"))

	// Cancelled is terminal, a second cancel is rejected.
	err = repo.Cancel(ctx, msg.ID, "owner-1")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	got, err := repo.GetByID(ctx, msg.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
}

func TestMemory_ClaimDue(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	due, err := repo.Create(ctx, newTestMessage("owner-1", now.Add(-time.Minute)))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newTestMessage("owner-1", now.Add(time.Hour)))
	require.NoError(t, err)

	claimed, err := repo.ClaimDue(ctx, now, 2*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)

	// A fresh claim shields the message from a second poll.
	again, err := repo.ClaimDue(ctx, now, 2*time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	// A stale claim is taken over.
	later := now.Add(5 * time.Minute)
	reclaimed, err := repo.ClaimDue(ctx, later, 2*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, due.ID, reclaimed[0].ID)
}

func TestMemory_ReleaseClaim(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	due, err := repo.Create(ctx, newTestMessage("owner-1", now.Add(-time.Minute)))
	require.NoError(t, err)

	claimed, err := repo.ClaimDue(ctx, now, 2*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, repo.ReleaseClaim(ctx, due.ID))

	again, err := repo.ClaimDue(ctx, now, 2*time.Minute, 10)
	require.NoError(t, err)
	assert.Len(t, again, 1)
}

func TestMemory_ProviderRefAndUsage(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	msg, err := repo.Create(ctx, newTestMessage("owner-1", now))
	require.NoError(t, err)

	updated, err := repo.UpdateStatus(ctx, msg.ID, model.StatusSent, "SM123")
	require.NoError(t, err)
	assert.Equal(t, "SM123", updated.ProviderRef)

	byRef, err := repo.GetByProviderRef(ctx, "SM123")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, byRef.ID)

	count, err := repo.CountSentSince(ctx, "owner-1", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// An empty providerRef keeps the stored reference.
	kept, err := repo.UpdateStatus(ctx, msg.ID, model.StatusSent, "")
	require.NoError(t, err)
	assert.Equal(t, "SM123", kept.ProviderRef)
}
