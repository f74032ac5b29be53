package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/wb-go/wbf/zlog"
)

// Poller is the poll strategy: re-fetch the owner's list on a fixed interval
// and emit it only when its serialized form differs from the previously
// delivered one. No structural diffing, plain equality.
type Poller struct {
	fetch    ListFetcher
	interval time.Duration
}

func NewPoller(fetch ListFetcher, interval time.Duration) *Poller {
	return &Poller{fetch: fetch, interval: interval}
}

func (p *Poller) Subscribe(ctx context.Context, ownerID string, fn Callback) (Unsubscribe, error) {
	list, err := p.fetch(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	fn(list)

	last, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}

	stop := make(chan struct{})

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { close(stop) })
	}

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				list, err := p.fetch(ctx, ownerID)
				if err != nil {
					zlog.Logger.Error().Err(err).Str("owner", ownerID).Msg("failed to poll messages")
					continue
				}

				current, err := json.Marshal(list)
				if err != nil {
					zlog.Logger.Error().Err(err).Str("owner", ownerID).Msg("failed to serialize polled messages")
					continue
				}

				if bytes.Equal(current, last) {
					continue
				}

				last = current
				fn(list)
			}
		}
	}()

	return unsubscribe, nil
}
