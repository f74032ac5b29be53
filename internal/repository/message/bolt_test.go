package message

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/exitpal/exitpal/internal/model"
)

func setupBolt(t *testing.T) *BoltRepository {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewBoltRepository(db)
	require.NoError(t, err)

	return repo
}

func TestBolt_CreateAndList(t *testing.T) {
	repo := setupBolt(t)
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
}

func TestBolt_UpdateStatusByIDAlone(t *testing.T) {
	repo := setupBolt(t)
	ctx := context.Background()

	msg, err := repo.Create(ctx, newTestMessage("owner-1", time.Now().UTC()))
	require.NoError(t, err)

	// The dispatch path only carries the id; the owner index resolves it.
	updated, err := repo.UpdateStatus(ctx, msg.ID, model.StatusSent, "SM123")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", updated.OwnerID)
	assert.Equal(t, model.StatusSent, updated.Status)
	assert.Equal(t, "SM123", updated.ProviderRef)

	byRef, err := repo.GetByProviderRef(ctx, "SM123")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, byRef.ID)
}

func TestBolt_CancelAndDelete(t *testing.T) {
	repo := setupBolt(t)
	ctx := context.Background()

	msg, err := repo.Create(ctx, newTestMessage("owner-1", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	err = repo.Cancel(ctx, msg.ID, "owner-2")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	require.NoError(t, repo.Cancel(ctx, msg.ID, "owner-1"))
	err = repo.Cancel(ctx, msg.ID, "owner-1")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	require.NoError(t, repo.Delete(ctx, msg.ID, "owner-1"))
	_, err = repo.GetByID(ctx, msg.ID, "owner-1")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestBolt_ClaimDueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()
	now := time.Now().UTC()

	db, err := bolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	repo, err := NewBoltRepository(db)
	require.NoError(t, err)

	due, err := repo.Create(ctx, newTestMessage("owner-1", now.Add(-time.Minute)))
	require.NoError(t, err)

	claimed, err := repo.ClaimDue(ctx, now, 2*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, db.Close())

	// Claims are durable: after a restart the fresh claim still shields the
	// message, and a stale one is taken over.
	db, err = bolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo, err = NewBoltRepository(db)
	require.NoError(t, err)

	again, err := repo.ClaimDue(ctx, now, 2*time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	later := now.Add(5 * time.Minute)
	reclaimed, err := repo.ClaimDue(ctx, later, 2*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, due.ID, reclaimed[0].ID)
}

func TestBolt_CountSentSince(t *testing.T) {
	repo := setupBolt(t)
	ctx := context.Background()
	now := time.Now().UTC()

	sent, err := repo.Create(ctx, newTestMessage("owner-1", now))
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, sent.ID, model.StatusSent, "SM1")
	require.NoError(t, err)

	_, err = repo.Create(ctx, newTestMessage("owner-1", now))
	require.NoError(t, err)

	count, err := repo.CountSentSince(ctx, "owner-1", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
