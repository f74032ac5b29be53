// Package notifier delivers an owner's current message list to interested
// observers whenever it changes. Two interchangeable strategies exist: Hub
// (push, fed by store mutations) and Poller (fixed-interval re-fetch with
// change detection by serialized equality). Which one is active is a startup
// configuration decision.
package notifier

import (
	"context"

	"github.com/exitpal/exitpal/internal/model"
)

// ListFetcher retrieves the full, ordered message list for an owner.
type ListFetcher func(ctx context.Context, ownerID string) ([]model.ScheduledMessage, error)

// Callback receives the full current list on every emission.
type Callback func([]model.ScheduledMessage)

// Unsubscribe stops all future emissions and releases the subscription's
// resources. Calling it more than once is safe.
type Unsubscribe func()

// Notifier is the change-notification contract. Subscribe emits the current
// list once immediately, then again on every observed change.
type Notifier interface {
	Subscribe(ctx context.Context, ownerID string, fn Callback) (Unsubscribe, error)
}

// NopFeed discards broadcast signals. It stands in for the Hub when the
// polling strategy is configured, where change detection happens on the
// subscriber side.
type NopFeed struct{}

func (NopFeed) Broadcast(string) {}
