package bookmarks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// fakeSub is a hand-driven subscription: tests push events and statuses
// through it to exercise the reconciler.
type fakeSub struct {
	events chan store.ChangeEvent
	status chan store.Status

	// The production subscription only closes its events channel on teardown;
	// the status channel closes with it but may still hold a buffered value.
	// keepStatusOpen reproduces older feed implementations that never close
	// status at all.
	keepStatusOpen bool

	mu     sync.Mutex
	closed bool
}

func newFakeSub() *fakeSub {
	return &fakeSub{
		events: make(chan store.ChangeEvent, 16),
		status: make(chan store.Status, 4),
	}
}

func (s *fakeSub) Events() <-chan store.ChangeEvent { return s.events }
func (s *fakeSub) Status() <-chan store.Status      { return s.status }

func (s *fakeSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
		if !s.keepStatusOpen {
			close(s.status)
		}
	}
	return nil
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeStore is an in-memory Store with per-owner rows kept in CreatedAt
// descending order, plus hooks to force failures and to block queries.
type fakeStore struct {
	mu         sync.Mutex
	rows       map[string][]domain.Bookmark
	nextID     int
	queryCalls int
	subs       []*fakeSub

	queryErr  error
	insertErr error
	deleteErr error
	subErr    error

	// New subscriptions keep their status channel open on Close.
	keepStatusOpen bool

	// When set, Query blocks until the channel is closed.
	queryGate chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string][]domain.Bookmark)}
}

// seedRows installs rows for an owner, newest first, with descending
// timestamps derived from position.
func (f *fakeStore) seedRows(ownerID string, n int) []domain.Bookmark {
	f.mu.Lock()
	defer f.mu.Unlock()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := make([]domain.Bookmark, 0, n)
	for i := 0; i < n; i++ {
		f.nextID++
		rows = append(rows, domain.Bookmark{
			ID:        fmt.Sprintf("bm-%d", f.nextID),
			OwnerID:   ownerID,
			Title:     fmt.Sprintf("bookmark %d", f.nextID),
			URL:       fmt.Sprintf("https://example.com/%d", f.nextID),
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	f.rows[ownerID] = rows
	return rows
}

func (f *fakeStore) Query(ctx context.Context, ownerID string, offset, limit int) ([]domain.Bookmark, int, error) {
	f.mu.Lock()
	f.queryCalls++
	gate := f.queryGate
	err := f.queryErr
	all := f.rows[ownerID]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	if err != nil {
		return nil, 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	all = f.rows[ownerID]
	total := len(all)
	if offset >= total {
		return []domain.Bookmark{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]domain.Bookmark, end-offset)
	copy(out, all[offset:end])
	return out, total, nil
}

func (f *fakeStore) Insert(ctx context.Context, ownerID, title, url string) (domain.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return domain.Bookmark{}, f.insertErr
	}
	f.nextID++
	b := domain.Bookmark{
		ID:        fmt.Sprintf("bm-%d", f.nextID),
		OwnerID:   ownerID,
		Title:     title,
		URL:       url,
		CreatedAt: time.Now().UTC(),
	}
	f.rows[ownerID] = append([]domain.Bookmark{b}, f.rows[ownerID]...)
	return b, nil
}

func (f *fakeStore) Delete(ctx context.Context, ownerID, id string) (domain.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return domain.Bookmark{}, f.deleteErr
	}
	for i, r := range f.rows[ownerID] {
		if r.ID == id {
			f.rows[ownerID] = append(f.rows[ownerID][:i], f.rows[ownerID][i+1:]...)
			return r, nil
		}
	}
	return domain.Bookmark{}, store.ErrNotFound
}

func (f *fakeStore) SubscribeChanges(ctx context.Context, ownerID string) (store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subErr != nil {
		return nil, f.subErr
	}
	sub := newFakeSub()
	sub.keepStatusOpen = f.keepStatusOpen
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeStore) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls
}

func (f *fakeStore) subCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeStore) lastSub() *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}
