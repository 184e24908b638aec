package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/notify"
	"github.com/MrSnakeDoc/marks/internal/store"
)

const (
	// DefaultReloadDelay is how long a corrective reload or re-filter waits
	// after a confirmed mutation, letting the feed-driven patch settle first
	// so the page does not visibly replace itself twice.
	DefaultReloadDelay = 100 * time.Millisecond

	// DefaultPageBackDelay is how long the coordinator waits before
	// navigating back one page after the current page emptied.
	DefaultPageBackDelay = 300 * time.Millisecond
)

var (
	// ErrNoOwner is returned when a mutation arrives with no active owner.
	ErrNoOwner = errors.New("no active owner")

	// ErrNoURL is returned when an add carries an empty URL.
	ErrNoURL = errors.New("url is required")

	// ErrNotCached is returned when a delete targets a bookmark that is not
	// in the current in-memory page.
	ErrNotCached = errors.New("bookmark not in current page")
)

// Coordinator applies optimistic local mutations, issues the corresponding
// remote mutation, and reconciles with the confirmed outcome: the optimistic
// state is fully reverted on failure, and nudged toward the store's truth by
// short-delay corrective reloads on success.
type Coordinator struct {
	store    store.Store
	cache    *Cache
	cell     *PageCell
	notifier *notify.Notifier
	log      logger.Logger

	reloadDelay   time.Duration
	pageBackDelay time.Duration

	mu      sync.Mutex
	ownerID string
	saving  bool
	lastErr string
	gen     uint64
}

// NewCoordinator wires a coordinator for one cache/notifier pair. Zero delays
// fall back to the defaults.
func NewCoordinator(st store.Store, cache *Cache, cell *PageCell, notifier *notify.Notifier, reloadDelay, pageBackDelay time.Duration, log logger.Logger) *Coordinator {
	if reloadDelay <= 0 {
		reloadDelay = DefaultReloadDelay
	}
	if pageBackDelay <= 0 {
		pageBackDelay = DefaultPageBackDelay
	}
	return &Coordinator{
		store:         st,
		cache:         cache,
		cell:          cell,
		notifier:      notifier,
		log:           log,
		reloadDelay:   reloadDelay,
		pageBackDelay: pageBackDelay,
	}
}

// SetOwner switches the active owner. Pending delayed actions from the
// previous owner become no-ops.
func (co *Coordinator) SetOwner(ownerID string) {
	co.mu.Lock()
	if co.ownerID != ownerID {
		co.gen++
		co.ownerID = ownerID
		co.lastErr = ""
	}
	co.mu.Unlock()
}

// Close invalidates all pending delayed actions.
func (co *Coordinator) Close() {
	co.SetOwner("")
}

// Saving reports whether an add is currently in flight.
func (co *Coordinator) Saving() bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.saving
}

// LastError returns the user-visible message from the most recent failed
// mutation, or "" when the last mutation succeeded.
func (co *Coordinator) LastError() string {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.lastErr
}

// Add validates and saves a new bookmark. The title defaults to the URL when
// blank. On success a corrective reload of page 1 is scheduled (only when the
// user is looking at page 1) to pick up the store-assigned id and created_at;
// the feed-driven prepend will usually have landed an approximate copy
// already, which the reload replaces without duplication.
func (co *Coordinator) Add(ctx context.Context, title, url string) error {
	co.mu.Lock()
	owner := co.ownerID
	gen := co.gen
	co.mu.Unlock()
	if owner == "" {
		return ErrNoOwner
	}

	url = strings.TrimSpace(url)
	if url == "" {
		co.setErr("Please enter a URL.")
		co.notifier.Notify("Please enter a URL.", notify.KindError)
		return ErrNoURL
	}

	co.mu.Lock()
	co.saving = true
	co.mu.Unlock()
	defer func() {
		co.mu.Lock()
		co.saving = false
		co.mu.Unlock()
	}()

	if _, err := co.store.Insert(ctx, owner, domain.NormalizeTitle(title, url), url); err != nil {
		co.log.Error("failed to add bookmark", logger.Error(err))
		co.setErr("Unable to add bookmark. Please try again.")
		co.notifier.Notify("Failed to add bookmark. Please try again.", notify.KindError)
		return fmt.Errorf("add bookmark: %w", err)
	}

	co.setErr("")
	co.notifier.Notify("Bookmark added successfully!", notify.KindSuccess)

	if co.cell.Get() == 1 {
		co.after(gen, co.reloadDelay, func() {
			co.cache.LoadPage(context.Background(), owner, 1)
		})
	}
	return nil
}

// Delete removes a bookmark optimistically: the row leaves the cache and the
// count drops before the remote call resolves. On failure both are fully
// restored, with the row re-positioned by CreatedAt descending. A delete for
// an id that is not cached is a diagnostic no-op.
func (co *Coordinator) Delete(ctx context.Context, id string) error {
	co.mu.Lock()
	owner := co.ownerID
	gen := co.gen
	co.mu.Unlock()
	if owner == "" {
		return ErrNoOwner
	}

	row, ok := co.cache.Take(id)
	if !ok {
		co.log.Warn("bookmark not found for deletion",
			logger.String("id", id))
		return ErrNotCached
	}

	if _, err := co.store.Delete(ctx, owner, id); err != nil {
		co.log.Error("failed to delete bookmark",
			logger.String("id", id),
			logger.Error(err))
		co.cache.Restore(row)
		co.setErr("Unable to delete bookmark. Please try again.")
		co.notifier.Notify("Failed to delete bookmark. Please try again.", notify.KindError)
		return fmt.Errorf("delete bookmark: %w", err)
	}

	co.setErr("")
	co.notifier.Notify("Bookmark deleted successfully!", notify.KindSuccess)

	// The feed delete event and the optimistic removal both target the same
	// identity; re-filtering a moment later is harmless either way.
	co.after(gen, co.reloadDelay, func() {
		co.cache.Drop(id)
	})

	snap := co.cache.Snapshot()
	if snap.Number > 1 && len(snap.Rows) == 0 {
		co.after(gen, co.pageBackDelay, func() {
			if page := co.cell.Get(); page > 1 {
				co.cache.LoadPage(context.Background(), owner, page-1)
			}
		})
	}
	return nil
}

// after schedules fn unless the owner session has been torn down in the
// meantime; a stale timer firing after teardown is a guaranteed no-op.
func (co *Coordinator) after(gen uint64, d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		co.mu.Lock()
		live := gen == co.gen
		co.mu.Unlock()
		if live {
			fn()
		}
	})
}

func (co *Coordinator) setErr(msg string) {
	co.mu.Lock()
	co.lastErr = msg
	co.mu.Unlock()
}
