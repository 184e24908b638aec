package bookmarks

import (
	"context"
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/poll"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

func newTestCache(f *fakeStore, pageSize int) (*Cache, *PageCell) {
	cell := NewPageCell()
	return NewCache(f, cell, pageSize, logger.Nop()), cell
}

func TestCacheLoadPage(t *testing.T) {
	f := newFakeStore()
	seeded := f.seedRows("alice", 25)
	c, cell := newTestCache(f, 10)

	admitted := c.LoadPage(context.Background(), "alice", 1)
	assert.Assert(t, admitted)

	snap := c.Snapshot()
	assert.Equal(t, len(snap.Rows), 10)
	assert.Equal(t, snap.Rows[0].ID, seeded[0].ID)
	assert.Equal(t, snap.Total, 25)
	assert.Assert(t, snap.TotalKnown)
	assert.Assert(t, snap.HasMore)
	assert.Assert(t, !snap.Loading)
	assert.Equal(t, cell.Get(), 1)

	c.LoadPage(context.Background(), "alice", 3)
	snap = c.Snapshot()
	assert.Equal(t, len(snap.Rows), 5)
	assert.Assert(t, !snap.HasMore)
	assert.Equal(t, cell.Get(), 3)
}

func TestCacheLoadPageIdempotent(t *testing.T) {
	f := newFakeStore()
	f.seedRows("alice", 7)
	c, _ := newTestCache(f, 10)

	c.LoadPage(context.Background(), "alice", 1)
	first := c.Snapshot()
	c.LoadPage(context.Background(), "alice", 1)
	second := c.Snapshot()

	assert.DeepEqual(t, first, second)
}

func TestCacheLoadPageDropsConcurrent(t *testing.T) {
	f := newFakeStore()
	f.seedRows("alice", 5)
	f.queryGate = make(chan struct{})
	c, _ := newTestCache(f, 10)

	done := make(chan bool, 1)
	go func() {
		done <- c.LoadPage(context.Background(), "alice", 1)
	}()

	// Wait until the first load is inside Query.
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if c.Snapshot().Loading {
			return poll.Success()
		}
		return poll.Continue("first load not in flight yet")
	}, poll.WithTimeout(time.Second))

	assert.Assert(t, !c.LoadPage(context.Background(), "alice", 2), "second load should be dropped")

	close(f.queryGate)
	assert.Assert(t, <-done)
	assert.Equal(t, f.queryCount(), 1)
	assert.Equal(t, c.Snapshot().Number, 1)
}

func TestCacheLoadPageFailureLeavesStateUntouched(t *testing.T) {
	f := newFakeStore()
	f.seedRows("alice", 3)
	c, _ := newTestCache(f, 10)

	c.LoadPage(context.Background(), "alice", 1)
	before := c.Snapshot()

	f.mu.Lock()
	f.queryErr = errors.New("store down")
	f.mu.Unlock()

	admitted := c.LoadPage(context.Background(), "alice", 1)
	assert.Assert(t, admitted, "a failed load is still admitted")

	after := c.Snapshot()
	assert.DeepEqual(t, before, after)
}

func TestCacheApplyInsertOnPageOne(t *testing.T) {
	f := newFakeStore()
	f.seedRows("alice", 10)
	c, _ := newTestCache(f, 10)
	c.LoadPage(context.Background(), "alice", 1)

	fresh := domain.Bookmark{ID: "bm-new", OwnerID: "alice", URL: "https://new.example.com", CreatedAt: time.Now()}
	c.ApplyInsert(fresh)

	snap := c.Snapshot()
	assert.Equal(t, len(snap.Rows), 10, "page stays at its fixed size")
	assert.Equal(t, snap.Rows[0].ID, "bm-new")
	assert.Equal(t, snap.Total, 11)
	assert.Assert(t, snap.HasMore, "the popped row is now reachable on page 2")

	// Re-applying the same insert must not duplicate the row.
	c.ApplyInsert(fresh)
	snap = c.Snapshot()
	assert.Equal(t, snap.Rows[0].ID, "bm-new")
	assert.Assert(t, snap.Rows[1].ID != "bm-new")
	assert.Equal(t, snap.Total, 12, "the count still moves; identity only guards the list")
}

func TestCacheApplyInsertOnLaterPage(t *testing.T) {
	f := newFakeStore()
	f.seedRows("alice", 15)
	c, _ := newTestCache(f, 10)
	c.LoadPage(context.Background(), "alice", 2)

	before := c.Snapshot()
	c.ApplyInsert(domain.Bookmark{ID: "bm-new", OwnerID: "alice", URL: "https://new.example.com"})
	after := c.Snapshot()

	assert.DeepEqual(t, before.Rows, after.Rows)
	assert.Equal(t, after.Total, 16)
	assert.Assert(t, after.HasMore)
}

func TestCacheApplyDelete(t *testing.T) {
	f := newFakeStore()
	seeded := f.seedRows("alice", 3)
	c, _ := newTestCache(f, 10)
	c.LoadPage(context.Background(), "alice", 1)

	c.ApplyDelete(seeded[1].ID)
	snap := c.Snapshot()
	assert.Equal(t, len(snap.Rows), 2)
	assert.Equal(t, snap.Total, 2)

	// Absent id: count still drops, list untouched.
	c.ApplyDelete("no-such-id")
	snap = c.Snapshot()
	assert.Equal(t, len(snap.Rows), 2)
	assert.Equal(t, snap.Total, 1)

	c.ApplyDelete(seeded[0].ID)
	c.ApplyDelete(seeded[2].ID)
	c.ApplyDelete("another-ghost")
	snap = c.Snapshot()
	assert.Equal(t, snap.Total, 0, "count is floored at zero")
}

func TestCacheApplyUpdate(t *testing.T) {
	f := newFakeStore()
	seeded := f.seedRows("alice", 3)
	c, _ := newTestCache(f, 10)
	c.LoadPage(context.Background(), "alice", 1)

	updated := seeded[1]
	updated.Title = "renamed"
	c.ApplyUpdate(updated)

	snap := c.Snapshot()
	assert.Equal(t, snap.Rows[1].Title, "renamed")
	assert.Equal(t, snap.Total, 3, "updates never move the count")

	// Unknown row: nothing changes.
	c.ApplyUpdate(domain.Bookmark{ID: "ghost", Title: "nope"})
	assert.Equal(t, len(c.Snapshot().Rows), 3)
}

func TestCacheTakeAndRestore(t *testing.T) {
	f := newFakeStore()
	seeded := f.seedRows("alice", 3)
	c, _ := newTestCache(f, 10)
	c.LoadPage(context.Background(), "alice", 1)

	row, ok := c.Take(seeded[1].ID)
	assert.Assert(t, ok)
	assert.Equal(t, row.ID, seeded[1].ID)
	snap := c.Snapshot()
	assert.Equal(t, len(snap.Rows), 2)
	assert.Equal(t, snap.Total, 2)

	_, ok = c.Take("ghost")
	assert.Assert(t, !ok)

	c.Restore(row)
	snap = c.Snapshot()
	assert.Equal(t, len(snap.Rows), 3)
	assert.Equal(t, snap.Total, 3)
	assert.Equal(t, snap.Rows[1].ID, row.ID, "restored row returns to its CreatedAt position")
}

func TestCacheReset(t *testing.T) {
	f := newFakeStore()
	f.seedRows("alice", 5)
	c, cell := newTestCache(f, 10)
	c.LoadPage(context.Background(), "alice", 1)

	c.Reset()
	snap := c.Snapshot()
	assert.Equal(t, len(snap.Rows), 0)
	assert.Equal(t, snap.Total, 0)
	assert.Assert(t, !snap.TotalKnown)
	assert.Equal(t, cell.Get(), 1)
}
