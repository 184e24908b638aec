package bookmarks

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/notify"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// SessionConfig carries the tunables for one owner session. Zero values fall
// back to the package defaults.
type SessionConfig struct {
	PageSize         int
	ReconnectBackoff time.Duration
	ReloadDelay      time.Duration
	PageBackDelay    time.Duration
	NoticeTTL        time.Duration
}

// Session owns the live view state for one authenticated owner: the shared
// page cell, the pagination cache, the feed reconciler, the mutation
// coordinator and the notification queue. Every open connection for the same
// owner shares one session, which is how changes appear live across sessions.
type Session struct {
	OwnerID string

	Cell    *PageCell
	Cache   *Cache
	Feed    *Reconciler
	Ops     *Coordinator
	Notices *notify.Notifier

	mu       sync.Mutex
	watchers map[int]chan struct{}
	nextID   int
	closed   bool
}

// NewSession wires the components for one owner, subscribes to the change
// feed and kicks off the initial page-1 load.
func NewSession(ownerID string, st store.Store, cfg SessionConfig, log logger.Logger) *Session {
	cell := NewPageCell()
	cache := NewCache(st, cell, cfg.PageSize, log)
	notices := notify.New(cfg.NoticeTTL)
	feed := NewReconciler(st, cache, cell, cfg.ReconnectBackoff, log)
	ops := NewCoordinator(st, cache, cell, notices, cfg.ReloadDelay, cfg.PageBackDelay, log)

	s := &Session{
		OwnerID:  ownerID,
		Cell:     cell,
		Cache:    cache,
		Feed:     feed,
		Ops:      ops,
		Notices:  notices,
		watchers: make(map[int]chan struct{}),
	}
	cache.OnChange(s.poke)
	notices.OnChange(s.poke)

	ops.SetOwner(ownerID)
	feed.SetOwner(ownerID)
	go cache.LoadPage(context.Background(), ownerID, 1)

	return s
}

// Watch returns a channel that receives a signal whenever the session state
// changes, plus a cancel func the caller must invoke when done.
func (s *Session) Watch() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan struct{}, 1)
	s.watchers[id] = ch

	return ch, func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Close tears down the feed subscription, cancels pending timers and clears
// the cache. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.watchers = map[int]chan struct{}{}
	s.mu.Unlock()

	s.Feed.Close()
	s.Ops.Close()
	s.Notices.Close()
	s.Cache.Reset()
}

func (s *Session) poke() {
	s.mu.Lock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
}
