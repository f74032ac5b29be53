package message

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/dbpg"

	"github.com/exitpal/exitpal/internal/model"
)

func setupMockDB(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}

	wrappedDB := &dbpg.DB{Master: db}
	repo := NewPostgresRepository(wrappedDB)

	return repo, mock
}

func messageRows(msgs ...model.ScheduledMessage) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "contact_name", "content", "destination",
		"scheduled_at", "channel", "status", "provider_ref", "created_at", "updated_at",
	})
	for _, m := range msgs {
		rows.AddRow(
			m.ID, m.OwnerID, m.ContactName, m.Content, m.Destination,
			m.ScheduledAt, string(m.Channel), string(m.Status), m.ProviderRef, m.CreatedAt, m.UpdatedAt,
		)
	}
	return rows
}

func TestCreate(t *testing.T) {
	repo, mock := setupMockDB(t)

	msg := model.ScheduledMessage{
		OwnerID:     "owner-1",
		ContactName: "Alex",
		Content:     "time to leave",
		Destination: "+15551234567",
		ScheduledAt: time.Now().Add(time.Hour),
		Channel:     model.ChannelSMS,
	}

	mock.ExpectExec("INSERT INTO messages").
		WithArgs(
			sqlmock.AnyArg(), msg.OwnerID, msg.ContactName, msg.Content, msg.Destination,
			msg.ScheduledAt, msg.Channel, model.StatusPending, sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := repo.Create(context.Background(), msg)
	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, model.StatusPending, created.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByOwner(t *testing.T) {
	repo, mock := setupMockDB(t)

	now := time.Now().UTC()
	first := model.ScheduledMessage{
		ID: uuid.New(), OwnerID: "owner-1", ContactName: "Alex",
		Content: "later", Destination: "+15551234567",
		ScheduledAt: now.Add(2 * time.Hour), Channel: model.ChannelSMS,
		Status: model.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	second := first
	second.ID = uuid.New()
	second.ScheduledAt = now.Add(time.Hour)

	mock.ExpectQuery("FROM messages").
		WithArgs("owner-1").
		WillReturnRows(messageRows(first, second))

	messages, err := repo.ListByOwner(context.Background(), "owner-1")
	assert.NoError(t, err)
	assert.Len(t, messages, 2)
	assert.Equal(t, first.ID, messages[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	mock.ExpectQuery("FROM messages").
		WithArgs(id, "owner-1").
		WillReturnRows(messageRows())

	_, err := repo.GetByID(context.Background(), id, "owner-1")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus(t *testing.T) {
	repo, mock := setupMockDB(t)

	now := time.Now().UTC()
	msg := model.ScheduledMessage{
		ID: uuid.New(), OwnerID: "owner-1", ContactName: "Alex",
		Content: "hi", Destination: "+15551234567",
		ScheduledAt: now, Channel: model.ChannelSMS,
		Status: model.StatusSent, ProviderRef: "SM123",
		CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectQuery("UPDATE messages").
		WithArgs(model.StatusSent, "SM123", sqlmock.AnyArg(), msg.ID).
		WillReturnRows(messageRows(msg))

	updated, err := repo.UpdateStatus(context.Background(), msg.ID, model.StatusSent, "SM123")
	assert.NoError(t, err)
	assert.Equal(t, "owner-1", updated.OwnerID)
	assert.Equal(t, model.StatusSent, updated.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_NotPending(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	mock.ExpectExec("UPDATE messages").
		WithArgs(model.StatusCancelled, sqlmock.AnyArg(), id, "owner-1", model.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Cancel(context.Background(), id, "owner-1")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimDue(t *testing.T) {
	repo, mock := setupMockDB(t)

	now := time.Now().UTC()
	due := model.ScheduledMessage{
		ID: uuid.New(), OwnerID: "owner-1", ContactName: "Alex",
		Content: "go", Destination: "+15551234567",
		ScheduledAt: now.Add(-time.Minute), Channel: model.ChannelVoice,
		Status: model.StatusPending, CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(model.StatusPending, now, now.Add(-2*time.Minute), 10).
		WillReturnRows(messageRows(due))
	mock.ExpectExec("SET claimed_at").
		WithArgs(now, due.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	claimed, err := repo.ClaimDue(context.Background(), now, 2*time.Minute, 10)
	assert.NoError(t, err)
	assert.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountSentSince(t *testing.T) {
	repo, mock := setupMockDB(t)

	since := time.Now().UTC().Truncate(24 * time.Hour)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("owner-1", model.StatusSent, since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountSentSince(context.Background(), "owner-1", since)
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.NoError(t, mock.ExpectationsWereMet())
}
