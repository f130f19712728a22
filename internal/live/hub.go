// Package live fans out link-collection snapshots to open public pages.
//
// Every change to a user's links publishes the full, versioned list. A
// subscriber holds at most one pending snapshot: when a newer one arrives
// before the old one was read, the old one is dropped. Slow readers
// therefore skip intermediate states but always end on the latest.
package live

import (
	"sync"

	"github.com/sakif/linkspark/internal/model"
)

// Snapshot is the complete link list of one owner at one version.
type Snapshot struct {
	Owner   string       `json:"-"`
	Version uint64       `json:"version"`
	Links   []model.Link `json:"links"`
}

// Hub routes snapshots from publishers to subscribers keyed by owner.
type Hub struct {
	mu       sync.Mutex
	subs     map[string]map[*Subscription]struct{}
	versions map[string]uint64
	closed   bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:     make(map[string]map[*Subscription]struct{}),
		versions: make(map[string]uint64),
	}
}

// Subscription receives snapshots for a single owner on C. C is closed when
// the subscription or the hub is closed.
type Subscription struct {
	C <-chan Snapshot

	ch    chan Snapshot
	hub   *Hub
	owner string
	once  sync.Once
}

// Subscribe starts receiving snapshots for owner.
func (h *Hub) Subscribe(owner string) *Subscription {
	ch := make(chan Snapshot, 1)
	s := &Subscription{C: ch, ch: ch, hub: h, owner: owner}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.once.Do(func() { close(ch) })
		return s
	}
	if h.subs[owner] == nil {
		h.subs[owner] = make(map[*Subscription]struct{})
	}
	h.subs[owner][s] = struct{}{}
	return s
}

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.remove(s)
}

// remove requires h.mu.
func (h *Hub) remove(s *Subscription) {
	if set, ok := h.subs[s.owner]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.owner)
		}
	}
	s.once.Do(func() { close(s.ch) })
}

// Publish assigns the next version for owner and delivers links to every
// subscriber of that owner, replacing any snapshot they have not read yet.
func (h *Hub) Publish(owner string, links []model.Link) Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.versions[owner]++
	snap := Snapshot{Owner: owner, Version: h.versions[owner], Links: links}
	if h.closed {
		return snap
	}

	for s := range h.subs[owner] {
		// Latest wins: drop an unread snapshot, then deliver. Both steps are
		// non-blocking and publishers are serialised by h.mu, so the send
		// always finds room.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- snap:
		default:
		}
	}
	return snap
}

// Version returns the last version published for owner (0 if none).
func (h *Hub) Version(owner string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.versions[owner]
}

// Subscribers returns how many subscriptions are open for owner.
func (h *Hub) Subscribers(owner string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[owner])
}

// Close ends every subscription. Later publishes still bump versions but
// reach no one.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.subs {
		for s := range set {
			h.remove(s)
		}
	}
}
