package notifier

import (
	"context"
	"sync"

	"github.com/wb-go/wbf/zlog"
)

// Hub is the push strategy. Store mutations call Broadcast with the affected
// owner; every subscriber for that owner re-fetches and receives the full
// current list. Signals are coalesced, so a burst of mutations produces at
// least one emission rather than one per mutation.
type Hub struct {
	fetch ListFetcher

	mu     sync.Mutex
	subs   map[string]map[uint64]chan struct{}
	nextID uint64
}

func NewHub(fetch ListFetcher) *Hub {
	return &Hub{
		fetch: fetch,
		subs:  make(map[string]map[uint64]chan struct{}),
	}
}

// Subscribe registers an observer for ownerID. The callback runs once
// immediately with the current list, then on every broadcast for the owner.
func (h *Hub) Subscribe(ctx context.Context, ownerID string, fn Callback) (Unsubscribe, error) {
	list, err := h.fetch(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	fn(list)

	signal := make(chan struct{}, 1)
	stop := make(chan struct{})

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[uint64]chan struct{})
	}
	h.subs[ownerID][id] = signal
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[ownerID], id)
			if len(h.subs[ownerID]) == 0 {
				delete(h.subs, ownerID)
			}
			h.mu.Unlock()
			close(stop)
		})
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				unsubscribe()
				return
			case <-stop:
				return
			case <-signal:
				list, err := h.fetch(ctx, ownerID)
				if err != nil {
					zlog.Logger.Error().Err(err).Str("owner", ownerID).Msg("failed to fetch messages for push notification")
					continue
				}
				fn(list)
			}
		}
	}()

	return unsubscribe, nil
}

// Broadcast signals every subscriber of ownerID that the owner's data
// changed. It never blocks: a subscriber already signalled is skipped.
func (h *Hub) Broadcast(ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, signal := range h.subs[ownerID] {
		select {
		case signal <- struct{}{}:
		default:
		}
	}
}
