package message

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/exitpal/exitpal/internal/model"
)

var (
	boltMessagesBucket = []byte("messages")    // nested bucket per owner
	boltOwnerIndex     = []byte("owner_index") // message id -> owner id
	boltClaimsBucket   = []byte("claims")      // message id -> claim time
)

// BoltRepository is an embedded single-node message store on bbolt. Records
// live in one bucket per owner, with a secondary id->owner index so that
// status updates by id alone never have to scan every owner's bucket.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository prepares the bucket layout and returns a repository over
// the given bbolt database.
func NewBoltRepository(db *bolt.DB) (*BoltRepository, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{boltMessagesBucket, boltOwnerIndex, boltClaimsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &BoltRepository{db: db}, nil
}

func (r *BoltRepository) Create(_ context.Context, msg model.ScheduledMessage) (model.ScheduledMessage, error) {
	msg.ID = uuid.New()
	now := time.Now().UTC()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	msg.Status = model.StatusPending

	err := r.db.Update(func(tx *bolt.Tx) error {
		owner, err := tx.Bucket(boltMessagesBucket).CreateBucketIfNotExists([]byte(msg.OwnerID))
		if err != nil {
			return fmt.Errorf("failed to create owner bucket: %w", err)
		}

		if err := putMessage(owner, msg); err != nil {
			return err
		}

		return tx.Bucket(boltOwnerIndex).Put(msg.ID[:], []byte(msg.OwnerID))
	})
	if err != nil {
		return model.ScheduledMessage{}, fmt.Errorf("failed to create message: %w", err)
	}

	return msg, nil
}

func (r *BoltRepository) ListByOwner(_ context.Context, ownerID string) ([]model.ScheduledMessage, error) {
	var messages []model.ScheduledMessage

	err := r.db.View(func(tx *bolt.Tx) error {
		owner := tx.Bucket(boltMessagesBucket).Bucket([]byte(ownerID))
		if owner == nil {
			return nil
		}

		return owner.ForEach(func(_, v []byte) error {
			var msg model.ScheduledMessage
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("failed to decode message: %w", err)
			}
			messages = append(messages, msg)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].ScheduledAt.After(messages[j].ScheduledAt)
	})

	return messages, nil
}

func (r *BoltRepository) GetByID(_ context.Context, id uuid.UUID, ownerID string) (model.ScheduledMessage, error) {
	var msg model.ScheduledMessage

	err := r.db.View(func(tx *bolt.Tx) error {
		owner := tx.Bucket(boltMessagesBucket).Bucket([]byte(ownerID))
		if owner == nil {
			return ErrMessageNotFound
		}

		raw := owner.Get(id[:])
		if raw == nil {
			return ErrMessageNotFound
		}

		return json.Unmarshal(raw, &msg)
	})
	if err != nil {
		return model.ScheduledMessage{}, err
	}

	return msg, nil
}

func (r *BoltRepository) UpdateStatus(_ context.Context, id uuid.UUID, status model.Status, providerRef string) (model.ScheduledMessage, error) {
	var updated model.ScheduledMessage

	err := r.db.Update(func(tx *bolt.Tx) error {
		owner, msg, err := lookupByID(tx, id)
		if err != nil {
			return err
		}

		msg.Status = status
		if providerRef != "" {
			msg.ProviderRef = providerRef
		}
		msg.UpdatedAt = time.Now().UTC()

		if err := putMessage(owner, msg); err != nil {
			return err
		}

		updated = msg
		return nil
	})
	if err != nil {
		return model.ScheduledMessage{}, err
	}

	return updated, nil
}

func (r *BoltRepository) Cancel(_ context.Context, id uuid.UUID, ownerID string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		owner := tx.Bucket(boltMessagesBucket).Bucket([]byte(ownerID))
		if owner == nil {
			return ErrMessageNotFound
		}

		raw := owner.Get(id[:])
		if raw == nil {
			return ErrMessageNotFound
		}

		var msg model.ScheduledMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("failed to decode message: %w", err)
		}
		if msg.Status != model.StatusPending {
			return ErrMessageNotFound
		}

		msg.Status = model.StatusCancelled
		msg.UpdatedAt = time.Now().UTC()

		return putMessage(owner, msg)
	})
}

func (r *BoltRepository) Delete(_ context.Context, id uuid.UUID, ownerID string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		owner := tx.Bucket(boltMessagesBucket).Bucket([]byte(ownerID))
		if owner == nil || owner.Get(id[:]) == nil {
			return ErrMessageNotFound
		}

		if err := owner.Delete(id[:]); err != nil {
			return err
		}
		if err := tx.Bucket(boltOwnerIndex).Delete(id[:]); err != nil {
			return err
		}

		return tx.Bucket(boltClaimsBucket).Delete(id[:])
	})
}

func (r *BoltRepository) ClaimDue(_ context.Context, now time.Time, staleAfter time.Duration, limit int) ([]model.ScheduledMessage, error) {
	var due []model.ScheduledMessage

	err := r.db.Update(func(tx *bolt.Tx) error {
		claims := tx.Bucket(boltClaimsBucket)

		err := forEachMessage(tx, func(msg model.ScheduledMessage) error {
			if msg.Status != model.StatusPending || msg.ScheduledAt.After(now) {
				return nil
			}
			if raw := claims.Get(msg.ID[:]); raw != nil {
				claimed, err := time.Parse(time.RFC3339Nano, string(raw))
				if err == nil && claimed.After(now.Add(-staleAfter)) {
					return nil
				}
			}
			due = append(due, msg)
			return nil
		})
		if err != nil {
			return err
		}

		sort.Slice(due, func(i, j int) bool {
			return due[i].ScheduledAt.Before(due[j].ScheduledAt)
		})
		if len(due) > limit {
			due = due[:limit]
		}

		for _, msg := range due {
			if err := claims.Put(msg.ID[:], []byte(now.Format(time.RFC3339Nano))); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return due, nil
}

func (r *BoltRepository) ReleaseClaim(_ context.Context, id uuid.UUID) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltClaimsBucket).Delete(id[:])
	})
}

func (r *BoltRepository) GetByProviderRef(_ context.Context, ref string) (model.ScheduledMessage, error) {
	var (
		found model.ScheduledMessage
		ok    bool
	)

	err := r.db.View(func(tx *bolt.Tx) error {
		return forEachMessage(tx, func(msg model.ScheduledMessage) error {
			if msg.ProviderRef != "" && msg.ProviderRef == ref {
				found = msg
				ok = true
			}
			return nil
		})
	})
	if err != nil {
		return model.ScheduledMessage{}, err
	}
	if !ok {
		return model.ScheduledMessage{}, ErrMessageNotFound
	}

	return found, nil
}

func (r *BoltRepository) CountSentSince(_ context.Context, ownerID string, since time.Time) (int, error) {
	count := 0

	err := r.db.View(func(tx *bolt.Tx) error {
		owner := tx.Bucket(boltMessagesBucket).Bucket([]byte(ownerID))
		if owner == nil {
			return nil
		}

		return owner.ForEach(func(_, v []byte) error {
			var msg model.ScheduledMessage
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("failed to decode message: %w", err)
			}
			if msg.Status == model.StatusSent && !msg.CreatedAt.Before(since) {
				count++
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

func putMessage(owner *bolt.Bucket, msg model.ScheduledMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return owner.Put(msg.ID[:], raw)
}

// lookupByID resolves a message through the owner index, so callers holding
// only the id (the dispatch path) avoid a full scan.
func lookupByID(tx *bolt.Tx, id uuid.UUID) (*bolt.Bucket, model.ScheduledMessage, error) {
	ownerID := tx.Bucket(boltOwnerIndex).Get(id[:])
	if ownerID == nil {
		return nil, model.ScheduledMessage{}, ErrMessageNotFound
	}

	owner := tx.Bucket(boltMessagesBucket).Bucket(ownerID)
	if owner == nil {
		return nil, model.ScheduledMessage{}, ErrMessageNotFound
	}

	raw := owner.Get(id[:])
	if raw == nil {
		return nil, model.ScheduledMessage{}, ErrMessageNotFound
	}

	var msg model.ScheduledMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, model.ScheduledMessage{}, fmt.Errorf("failed to decode message: %w", err)
	}

	return owner, msg, nil
}

func forEachMessage(tx *bolt.Tx, fn func(model.ScheduledMessage) error) error {
	root := tx.Bucket(boltMessagesBucket)

	return root.ForEachBucket(func(name []byte) error {
		owner := root.Bucket(name)
		return owner.ForEach(func(_, v []byte) error {
			var msg model.ScheduledMessage
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("failed to decode message: %w", err)
			}
			return fn(msg)
		})
	})
}
