// Package progress fans campaign dispatch progress out to realtime subscribers
package progress

import (
	"log"
	"sync"
	"time"
)

// Event is one progress snapshot emitted during campaign dispatch
type Event struct {
	CampaignUUID string    `json:"campaign_uuid"`
	Status       string    `json:"status"`
	Total        int       `json:"total"`
	Processed    int       `json:"processed"`
	Sent         int       `json:"sent"`
	Failed       int       `json:"failed"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher delivers dispatch progress to interested subscribers
type Publisher interface {
	Publish(campaignID uint, event Event)
	// Subscribe registers a listener for one campaign's events. The returned
	// cancel func must be called to release the subscription.
	Subscribe(campaignID uint) (<-chan Event, func())
}

const subscriberBuffer = 16

// Hub is an in-process Publisher. Delivery is non-blocking: a subscriber
// that cannot keep up loses events rather than stalling dispatch.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint]map[chan Event]struct{}
	logger *log.Logger
}

// NewHub creates a new progress hub
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		subs:   make(map[uint]map[chan Event]struct{}),
		logger: logger,
	}
}

// Publish delivers the event to every subscriber of the campaign
func (h *Hub) Publish(campaignID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[campaignID] {
		select {
		case ch <- event:
		default:
			h.logger.Printf("progress subscriber for campaign %d is slow, dropping event", campaignID)
		}
	}
}

// Subscribe registers a listener for one campaign's events
func (h *Hub) Subscribe(campaignID uint) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[campaignID] == nil {
		h.subs[campaignID] = make(map[chan Event]struct{})
	}
	h.subs[campaignID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[campaignID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, campaignID)
			}
		}
	}
	return ch, cancel
}

// SubscriberCount reports the number of listeners for a campaign
func (h *Hub) SubscriberCount(campaignID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[campaignID])
}
