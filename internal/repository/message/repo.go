package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/exitpal/exitpal/internal/model"
)

var (
	// ErrMessageNotFound is returned when a message does not exist, is not
	// owned by the caller, or is no longer in a state the operation accepts.
	// The three cases are deliberately indistinguishable so that owner-scoped
	// operations never leak the existence of other users' records.
	ErrMessageNotFound = errors.New("message not found")
)

const messageColumns = `
		id, owner_id, contact_name, content, destination,
		scheduled_at, channel, status, provider_ref, created_at, updated_at`

// PostgresRepository persists scheduled messages in PostgreSQL.
type PostgresRepository struct {
	db *dbpg.DB
}

// NewPostgresRepository creates a message repository backed by PostgreSQL.
func NewPostgresRepository(db *dbpg.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new scheduled message and returns the stored record.
// The id and write timestamps are assigned here; the caller's values for
// those fields are ignored.
func (r *PostgresRepository) Create(ctx context.Context, msg model.ScheduledMessage) (model.ScheduledMessage, error) {
	msg.ID = uuid.New()
	now := time.Now().UTC()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	msg.Status = model.StatusPending

	query := `
		INSERT INTO messages (
		    id, owner_id, contact_name, content, destination,
		    scheduled_at, channel, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
    `

	_, err := r.db.ExecContext(
		ctx, query,
		msg.ID, msg.OwnerID, msg.ContactName, msg.Content, msg.Destination,
		msg.ScheduledAt, msg.Channel, msg.Status, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return model.ScheduledMessage{}, fmt.Errorf("failed to create message: %w", err)
	}

	return msg, nil
}

// ListByOwner returns every message belonging to ownerID, ordered by
// scheduled time descending.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.ScheduledMessage, error) {
	query := `
		SELECT` + messageColumns + `
		FROM messages
		WHERE owner_id = $1
		ORDER BY scheduled_at DESC;
    `

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []model.ScheduledMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// GetByID retrieves a single message scoped to its owner.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID, ownerID string) (model.ScheduledMessage, error) {
	query := `
		SELECT` + messageColumns + `
		FROM messages
		WHERE id = $1 AND owner_id = $2;
    `

	msg, err := scanMessage(r.db.Master.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ScheduledMessage{}, ErrMessageNotFound
		}
		return model.ScheduledMessage{}, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// UpdateStatus sets the status of a message by id and returns the updated
// record. A non-empty providerRef replaces the stored one; an empty value
// leaves it untouched. Transition legality beyond "record exists" is the
// caller's responsibility; concurrent updates are last-write-wins.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status, providerRef string) (model.ScheduledMessage, error) {
	query := `
		UPDATE messages
		SET status = $1,
		    provider_ref = COALESCE(NULLIF($2, ''), provider_ref),
		    updated_at = $3
		WHERE id = $4
		RETURNING` + messageColumns + `;
    `

	msg, err := scanMessage(r.db.Master.QueryRowContext(ctx, query, status, providerRef, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ScheduledMessage{}, ErrMessageNotFound
		}
		return model.ScheduledMessage{}, fmt.Errorf("failed to update message status: %w", err)
	}

	return msg, nil
}

// Cancel transitions a pending message to cancelled. It fails with
// ErrMessageNotFound when the message is missing, owned by someone else,
// or already in a terminal state.
func (r *PostgresRepository) Cancel(ctx context.Context, id uuid.UUID, ownerID string) error {
	query := `
		UPDATE messages
		SET status = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4 AND status = $5;
    `

	res, err := r.db.ExecContext(ctx, query, model.StatusCancelled, time.Now().UTC(), id, ownerID, model.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to cancel message: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrMessageNotFound
	}

	return nil
}

// Delete removes a message only if it is owned by ownerID.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	query := `
		DELETE FROM messages
		WHERE id = $1 AND owner_id = $2;
    `

	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrMessageNotFound
	}

	return nil
}

// ClaimDue atomically claims up to limit pending messages whose scheduled
// time has passed. A claim older than staleAfter is treated as abandoned and
// may be taken over, so a crashed poller never strands a message. Claimed
// rows are locked with SKIP LOCKED, which keeps concurrent pollers from
// publishing the same message twice.
func (r *PostgresRepository) ClaimDue(ctx context.Context, now time.Time, staleAfter time.Duration, limit int) ([]model.ScheduledMessage, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	tx, err := r.db.Master.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT`+messageColumns+`
		FROM messages
		WHERE status = $1
		  AND scheduled_at <= $2
		  AND (claimed_at IS NULL OR claimed_at < $3)
		ORDER BY scheduled_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $4;
    `, model.StatusPending, now, now.Add(-staleAfter), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select due messages: %w", err)
	}
	defer rows.Close()

	var messages []model.ScheduledMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, msg := range messages {
		if _, err := tx.ExecContext(ctx, `
			UPDATE messages SET claimed_at = $1 WHERE id = $2;
        `, now, msg.ID); err != nil {
			return nil, fmt.Errorf("failed to claim message %s: %w", msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", err)
	}

	return messages, nil
}

// ReleaseClaim returns a claimed message to the due pool, typically after a
// failed queue publish.
func (r *PostgresRepository) ReleaseClaim(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET claimed_at = NULL WHERE id = $1;
    `, id)
	if err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}

	return nil
}

// GetByProviderRef retrieves a message by the opaque reference assigned by
// the telephony provider on dispatch. Used to correlate inbound webhooks.
func (r *PostgresRepository) GetByProviderRef(ctx context.Context, ref string) (model.ScheduledMessage, error) {
	query := `
		SELECT` + messageColumns + `
		FROM messages
		WHERE provider_ref = $1;
    `

	msg, err := scanMessage(r.db.Master.QueryRowContext(ctx, query, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ScheduledMessage{}, ErrMessageNotFound
		}
		return model.ScheduledMessage{}, fmt.Errorf("failed to get message by provider ref: %w", err)
	}

	return msg, nil
}

// CountSentSince counts an owner's successfully sent messages created at or
// after the given instant.
func (r *PostgresRepository) CountSentSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE owner_id = $1 AND status = $2 AND created_at >= $3;
    `

	var count int
	if err := r.db.Master.QueryRowContext(ctx, query, ownerID, model.StatusSent, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sent messages: %w", err)
	}

	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (model.ScheduledMessage, error) {
	var (
		msg         model.ScheduledMessage
		channel     string
		status      string
		providerRef sql.NullString
	)

	err := row.Scan(
		&msg.ID, &msg.OwnerID, &msg.ContactName, &msg.Content, &msg.Destination,
		&msg.ScheduledAt, &channel, &status, &providerRef, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		return model.ScheduledMessage{}, err
	}

	msg.Channel = model.Channel(channel)
	msg.Status = model.Status(status)
	if providerRef.Valid {
		msg.ProviderRef = providerRef.String
	}

	return msg, nil
}
