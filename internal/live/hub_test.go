package live

import (
	"sync"
	"testing"
	"time"

	"github.com/sakif/linkspark/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func links(titles ...string) []model.Link {
	out := make([]model.Link, len(titles))
	for i, t := range titles {
		out[i] = model.Link{ID: t, Title: t, Order: i, Active: true}
	}
	return out
}

func receive(t *testing.T, s *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-s.C:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
		return Snapshot{}
	}
}

func TestHub_DeliversToOwnerOnly(t *testing.T) {
	h := NewHub()
	alice := h.Subscribe("alice")
	bob := h.Subscribe("bob")
	defer alice.Close()
	defer bob.Close()

	h.Publish("alice", links("a"))

	snap := receive(t, alice)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Len(t, snap.Links, 1)

	select {
	case <-bob.C:
		t.Fatal("bob received alice's snapshot")
	default:
	}
}

func TestHub_LatestWins(t *testing.T) {
	h := NewHub()
	s := h.Subscribe("alice")
	defer s.Close()

	h.Publish("alice", links("a"))
	h.Publish("alice", links("a", "b"))
	h.Publish("alice", links("a", "b", "c"))

	snap := receive(t, s)
	assert.Equal(t, uint64(3), snap.Version)
	assert.Len(t, snap.Links, 3)

	select {
	case <-s.C:
		t.Fatal("stale snapshot was queued")
	default:
	}
}

func TestHub_VersionsAreMonotonic(t *testing.T) {
	h := NewHub()
	s := h.Subscribe("alice")
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Publish("alice", links("x"))
		}()
	}

	var last uint64
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case snap := <-s.C:
			assert.Greater(t, snap.Version, last)
			last = snap.Version
		case <-done:
			assert.Equal(t, uint64(50), h.Version("alice"))
			return
		}
	}
}

func TestSubscription_Close(t *testing.T) {
	h := NewHub()
	s := h.Subscribe("alice")
	assert.Equal(t, 1, h.Subscribers("alice"))

	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Subscribers("alice"))

	_, ok := <-s.C
	assert.False(t, ok, "channel should be closed")

	h.Publish("alice", links("a"))
}

func TestHub_Close(t *testing.T) {
	h := NewHub()
	s := h.Subscribe("alice")

	h.Close()
	_, ok := <-s.C
	assert.False(t, ok)

	late := h.Subscribe("alice")
	_, ok = <-late.C
	assert.False(t, ok, "subscribing to a closed hub yields a closed channel")
	late.Close()
}
