// Package stream fans job events out to per-job subscribers. The hub is a
// thin view over the persisted progress log: a dropped subscriber reconnects
// by re-reading job state, so delivery here is best effort and non-blocking.
package stream

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"blogsmith/src/core/pipeline"
	"blogsmith/src/log"
)

const subscriberBuffer = 16

// Hub relays pipeline events to any number of subscribers per job id.
type Hub struct {
	mu   sync.RWMutex
	subs map[int64]map[string]chan pipeline.Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int64]map[string]chan pipeline.Event)}
}

var _ pipeline.Notifier = (*Hub)(nil)

// Subscribe opens a subscription for one job and returns its token and
// event channel. The caller must Unsubscribe when done.
func (h *Hub) Subscribe(jobID int64) (string, <-chan pipeline.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	token := uuid.NewString()
	ch := make(chan pipeline.Event, subscriberBuffer)
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[string]chan pipeline.Event)
	}
	h.subs[jobID][token] = ch
	return token, ch
}

// Unsubscribe closes and removes one subscription.
func (h *Hub) Unsubscribe(jobID int64, token string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if chans, ok := h.subs[jobID]; ok {
		if ch, ok := chans[token]; ok {
			close(ch)
			delete(chans, token)
		}
		if len(chans) == 0 {
			delete(h.subs, jobID)
		}
	}
}

// Publish delivers an event to all subscribers of its job. Slow subscribers
// whose buffers are full miss the event; they catch up from job state on
// reconnect.
func (h *Hub) Publish(ev pipeline.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for token, ch := range h.subs[ev.JobID] {
		select {
		case ch <- ev:
		default:
			log.Debug("dropping event for slow subscriber", "job_id", ev.JobID, "token", token)
		}
	}
}

// Notify implements pipeline.Notifier for in-process wiring.
func (h *Hub) Notify(_ context.Context, ev pipeline.Event) {
	h.Publish(ev)
}
