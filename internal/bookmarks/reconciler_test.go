package bookmarks

import (
	"errors"
	"fmt"
	"runtime"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/poll"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store"
)

const testBackoff = 20 * time.Millisecond

func newTestReconciler(f *fakeStore) (*Reconciler, *Cache, *PageCell) {
	cell := NewPageCell()
	cache := NewCache(f, cell, 10, logger.Nop())
	return NewReconciler(f, cache, cell, testBackoff, logger.Nop()), cache, cell
}

func waitState(t *testing.T, r *Reconciler, want FeedState) {
	t.Helper()
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		got := r.State()
		if got == want {
			return poll.Success()
		}
		return poll.Continue("feed state is %s, want %s", got, want)
	}, poll.WithTimeout(2*time.Second))
}

func TestReconcilerSubscribeAndReload(t *testing.T) {
	f := newFakeStore()
	f.seedRows("alice", 5)
	r, cache, _ := newTestReconciler(f)
	defer r.Close()

	r.SetOwner("alice")
	waitState(t, r, StateConnecting)

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if f.subCount() == 1 {
			return poll.Success()
		}
		return poll.Continue("no subscription yet")
	}, poll.WithTimeout(time.Second))

	f.lastSub().status <- store.StatusSubscribed
	waitState(t, r, StateActive)

	// Confirmation triggers one corrective reload of the visible page.
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if cache.Snapshot().TotalKnown {
			return poll.Success()
		}
		return poll.Continue("corrective reload has not landed")
	}, poll.WithTimeout(time.Second))
	assert.Equal(t, cache.Snapshot().Total, 5)
}

func TestReconcilerAppliesEvents(t *testing.T) {
	f := newFakeStore()
	seeded := f.seedRows("alice", 3)
	r, cache, _ := newTestReconciler(f)
	defer r.Close()

	r.SetOwner("alice")
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if f.subCount() == 1 {
			return poll.Success()
		}
		return poll.Continue("no subscription yet")
	}, poll.WithTimeout(time.Second))
	sub := f.lastSub()
	sub.status <- store.StatusSubscribed
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if cache.Snapshot().TotalKnown {
			return poll.Success()
		}
		return poll.Continue("initial load has not landed")
	}, poll.WithTimeout(time.Second))

	fresh := domain.Bookmark{ID: "bm-live", OwnerID: "alice", URL: "https://live.example.com", CreatedAt: time.Now()}
	sub.events <- store.ChangeEvent{Type: store.EventInsert, New: &fresh}
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if cache.Snapshot().Total == 4 {
			return poll.Success()
		}
		return poll.Continue("insert event not applied")
	}, poll.WithTimeout(time.Second))
	assert.Equal(t, cache.Snapshot().Rows[0].ID, "bm-live")

	sub.events <- store.ChangeEvent{Type: store.EventDelete, Old: &domain.Bookmark{ID: seeded[0].ID, OwnerID: "alice"}}
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if cache.Snapshot().Total == 3 {
			return poll.Success()
		}
		return poll.Continue("delete event not applied")
	}, poll.WithTimeout(time.Second))
}

func TestReconcilerDiscardsForeignAndAnonymousEvents(t *testing.T) {
	f := newFakeStore()
	f.seedRows("alice", 2)
	r, cache, _ := newTestReconciler(f)
	defer r.Close()

	r.SetOwner("alice")
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if f.subCount() == 1 {
			return poll.Success()
		}
		return poll.Continue("no subscription yet")
	}, poll.WithTimeout(time.Second))
	sub := f.lastSub()
	sub.status <- store.StatusSubscribed
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if cache.Snapshot().TotalKnown {
			return poll.Success()
		}
		return poll.Continue("initial load has not landed")
	}, poll.WithTimeout(time.Second))

	// Another owner's row and an event with no identity both get dropped.
	other := domain.Bookmark{ID: "bm-x", OwnerID: "mallory", URL: "https://x.example.com"}
	sub.events <- store.ChangeEvent{Type: store.EventInsert, New: &other}
	sub.events <- store.ChangeEvent{Type: store.EventDelete}

	// A valid one afterwards proves the loop kept running.
	mine := domain.Bookmark{ID: "bm-mine", OwnerID: "alice", URL: "https://mine.example.com", CreatedAt: time.Now()}
	sub.events <- store.ChangeEvent{Type: store.EventInsert, New: &mine}

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if cache.Snapshot().Total == 3 {
			return poll.Success()
		}
		return poll.Continue("valid event not applied")
	}, poll.WithTimeout(time.Second))
	snap := cache.Snapshot()
	assert.Equal(t, snap.Rows[0].ID, "bm-mine")
	for _, row := range snap.Rows {
		assert.Assert(t, row.ID != "bm-x", "foreign row must not land in the cache")
	}
}

func TestReconcilerReconnectsAfterDisruption(t *testing.T) {
	f := newFakeStore()
	f.seedRows("alice", 5)
	r, cache, _ := newTestReconciler(f)
	defer r.Close()

	r.SetOwner("alice")
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if f.subCount() == 1 {
			return poll.Success()
		}
		return poll.Continue("no subscription yet")
	}, poll.WithTimeout(time.Second))
	first := f.lastSub()
	first.status <- store.StatusSubscribed
	waitState(t, r, StateActive)

	first.status <- store.StatusTimedOut
	waitState(t, r, StateReconnecting)
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if first.isClosed() {
			return poll.Success()
		}
		return poll.Continue("disrupted subscription still open")
	}, poll.WithTimeout(time.Second))

	// Exactly one new subscription after the backoff.
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		switch n := f.subCount(); {
		case n == 2:
			return poll.Success()
		case n > 2:
			return poll.Error(fmt.Errorf("expected one reconnect, got %d subscriptions", n))
		default:
			return poll.Continue("reconnect has not happened")
		}
	}, poll.WithTimeout(2*time.Second))

	second := f.lastSub()
	second.status <- store.StatusSubscribed
	waitState(t, r, StateActive)

	// Re-confirmation reloads the visible page again.
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if f.queryCount() >= 2 {
			return poll.Success()
		}
		return poll.Continue("no corrective reload after reconnect")
	}, poll.WithTimeout(time.Second))
	assert.Equal(t, cache.Snapshot().Total, 5)
}

func TestReconcilerRetriesFailedSubscribe(t *testing.T) {
	f := newFakeStore()
	f.mu.Lock()
	f.subErr = errors.New("feed unavailable")
	f.mu.Unlock()
	r, _, _ := newTestReconciler(f)
	defer r.Close()

	r.SetOwner("alice")
	waitState(t, r, StateReconnecting)

	f.mu.Lock()
	f.subErr = nil
	f.mu.Unlock()

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if f.subCount() >= 1 {
			return poll.Success()
		}
		return poll.Continue("no retry yet")
	}, poll.WithTimeout(2*time.Second))
	f.lastSub().status <- store.StatusSubscribed
	waitState(t, r, StateActive)
}

// Teardown must stop the consume goroutine even when the subscription only
// closes its events channel, which is all the contract guarantees.
func TestReconcilerTeardownStopsConsumer(t *testing.T) {
	f := newFakeStore()
	f.seedRows("alice", 2)
	f.keepStatusOpen = true
	r, _, _ := newTestReconciler(f)

	baseline := runtime.NumGoroutine()

	const cycles = 20
	for i := 0; i < cycles; i++ {
		r.SetOwner("alice")
		want := i + 1
		poll.WaitOn(t, func(poll.LogT) poll.Result {
			if f.subCount() == want {
				return poll.Success()
			}
			return poll.Continue("subscription %d not opened", want)
		}, poll.WithTimeout(time.Second))
		sub := f.lastSub()
		sub.status <- store.StatusSubscribed
		waitState(t, r, StateActive)
		r.Close()
		poll.WaitOn(t, func(poll.LogT) poll.Result {
			if sub.isClosed() {
				return poll.Success()
			}
			return poll.Continue("subscription %d still open", want)
		}, poll.WithTimeout(time.Second))
	}

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		n := runtime.NumGoroutine()
		if n <= baseline+3 {
			return poll.Success()
		}
		return poll.Continue("%d goroutines alive, baseline %d", n, baseline)
	}, poll.WithTimeout(2*time.Second))
}

// A disruption status buffered right before the events channel closes must
// still trigger the reconnect.
func TestReconcilerReconnectsWhenFeedClosesAfterDisruption(t *testing.T) {
	f := newFakeStore()
	f.seedRows("alice", 2)
	f.keepStatusOpen = true
	r, _, _ := newTestReconciler(f)
	defer r.Close()

	r.SetOwner("alice")
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if f.subCount() == 1 {
			return poll.Success()
		}
		return poll.Continue("no subscription yet")
	}, poll.WithTimeout(time.Second))
	first := f.lastSub()
	first.status <- store.StatusSubscribed
	waitState(t, r, StateActive)

	// Mirror the production feed's failure path: status first, then the
	// events channel closes.
	first.status <- store.StatusChannelError
	first.mu.Lock()
	first.closed = true
	close(first.events)
	first.mu.Unlock()

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if f.subCount() == 2 {
			return poll.Success()
		}
		return poll.Continue("no reconnect after the feed closed")
	}, poll.WithTimeout(2*time.Second))
	f.lastSub().status <- store.StatusSubscribed
	waitState(t, r, StateActive)
}

func TestReconcilerOwnerChangeTearsDown(t *testing.T) {
	f := newFakeStore()
	f.seedRows("alice", 2)
	r, _, _ := newTestReconciler(f)
	defer r.Close()

	r.SetOwner("alice")
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if f.subCount() == 1 {
			return poll.Success()
		}
		return poll.Continue("no subscription yet")
	}, poll.WithTimeout(time.Second))
	first := f.lastSub()
	first.status <- store.StatusSubscribed
	waitState(t, r, StateActive)

	r.SetOwner("")
	waitState(t, r, StateUnsubscribed)
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if first.isClosed() {
			return poll.Success()
		}
		return poll.Continue("old subscription still open")
	}, poll.WithTimeout(time.Second))
}
