package bookmarks

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// DefaultPageSize is the fixed page length used for queries and feed-driven
// trimming when no explicit size is configured.
const DefaultPageSize = 10

// Page is an immutable snapshot of the cached view.
type Page struct {
	Rows       []domain.Bookmark `json:"bookmarks"`
	Number     int               `json:"page"`
	Total      int               `json:"total_count"`
	TotalKnown bool              `json:"total_known"`
	HasMore    bool              `json:"has_more"`
	Loading    bool              `json:"loading"`
}

// Cache holds one owner's current page of bookmarks, the page number (via the
// shared PageCell) and the total count as last observed from the store or
// incrementally adjusted by confirmed mutations and feed events. At most one
// page load is in flight at a time; calls arriving while a load is pending are
// dropped, not queued.
//
// All list mutations are idempotent with respect to identity: removing an
// absent id or re-adding a present id never duplicates rows or fails.
type Cache struct {
	store    store.Store
	log      logger.Logger
	cell     *PageCell
	pageSize int

	mu         sync.Mutex
	rows       []domain.Bookmark
	total      int
	totalKnown bool
	hasMore    bool
	loading    bool
	inFlight   bool
	onChange   func()
}

// NewCache creates an empty cache positioned on page 1.
func NewCache(st store.Store, cell *PageCell, pageSize int, log logger.Logger) *Cache {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Cache{
		store:    st,
		log:      log,
		cell:     cell,
		pageSize: pageSize,
		rows:     []domain.Bookmark{},
	}
}

// OnChange registers a callback fired after every cache change.
func (c *Cache) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// PageSize returns the fixed page length.
func (c *Cache) PageSize() int { return c.pageSize }

// LoadPage fetches the requested page and replaces the cached contents on
// success. Reports whether the load was admitted: false means another load was
// already in flight and this call was dropped entirely. A query failure leaves
// the cache unchanged and is only logged; loading the same page twice with no
// intervening mutation leaves the cache identical.
func (c *Cache) LoadPage(ctx context.Context, ownerID string, page int) bool {
	if page < 1 {
		page = 1
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return false
	}
	c.inFlight = true
	c.loading = true
	c.mu.Unlock()
	c.changed()

	offset := (page - 1) * c.pageSize
	rows, total, err := c.store.Query(ctx, ownerID, offset, c.pageSize)

	c.mu.Lock()
	c.inFlight = false
	c.loading = false
	if err != nil {
		c.mu.Unlock()
		c.log.Error("failed to load bookmark page",
			logger.Int("page", page),
			logger.Error(err))
		c.changed()
		return true
	}
	c.rows = rows
	c.total = total
	c.totalKnown = true
	c.hasMore = offset+c.pageSize < total
	c.cell.set(page)
	c.mu.Unlock()
	c.changed()
	return true
}

// Snapshot returns a copy of the current cache state.
func (c *Cache) Snapshot() Page {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := make([]domain.Bookmark, len(c.rows))
	copy(rows, c.rows)
	return Page{
		Rows:       rows,
		Number:     c.cell.Get(),
		Total:      c.total,
		TotalKnown: c.totalKnown,
		HasMore:    c.hasMore,
		Loading:    c.loading,
	}
}

// Reset clears the cache to the empty first page. Used when the active owner
// goes away.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.rows = []domain.Bookmark{}
	c.total = 0
	c.totalKnown = false
	c.hasMore = false
	c.loading = false
	c.cell.set(1)
	c.mu.Unlock()
	c.changed()
}

// ApplyInsert applies a feed-delivered insert. The count always goes up; the
// row itself only lands in the list when the user is looking at page 1, where
// it is prepended and the page trimmed back to its fixed size. On any other
// page hasMore turns true unconditionally: a later page may now have more rows
// even if this one didn't change. Deliberately conservative.
func (c *Cache) ApplyInsert(b domain.Bookmark) {
	c.mu.Lock()
	c.total++
	c.totalKnown = true
	if c.cell.Get() == 1 {
		if !containsID(c.rows, b.ID) {
			c.rows = append([]domain.Bookmark{b}, c.rows...)
			if len(c.rows) > c.pageSize {
				c.rows = c.rows[:c.pageSize]
			}
		}
		c.hasMore = c.pageSize < c.total
	} else {
		c.hasMore = true
	}
	c.mu.Unlock()
	c.changed()
}

// ApplyDelete applies a feed-delivered delete: the row vanishes from whatever
// page it was cached on and the count goes down, floored at zero. Applying a
// delete for an absent id only touches the count.
func (c *Cache) ApplyDelete(id string) {
	c.mu.Lock()
	if c.totalKnown && c.total > 0 {
		c.total--
	}
	c.rows, _ = domain.RemoveByID(c.rows, id)
	c.mu.Unlock()
	c.changed()
}

// ApplyUpdate replaces the cached row with matching identity. No count change,
// no position change, no-op when the row is not cached.
func (c *Cache) ApplyUpdate(b domain.Bookmark) {
	c.mu.Lock()
	replaced := false
	for i, r := range c.rows {
		if r.ID == b.ID {
			c.rows[i] = b
			replaced = true
			break
		}
	}
	c.mu.Unlock()
	if replaced {
		c.changed()
	}
}

// Take removes the row with the given id and decrements the count: the
// optimistic half of a delete. The removed row is returned for a possible
// Restore on failure.
func (c *Cache) Take(id string) (domain.Bookmark, bool) {
	c.mu.Lock()
	var taken domain.Bookmark
	found := false
	for _, r := range c.rows {
		if r.ID == id {
			taken = r
			found = true
			break
		}
	}
	if !found {
		c.mu.Unlock()
		return domain.Bookmark{}, false
	}
	c.rows, _ = domain.RemoveByID(c.rows, id)
	if c.totalKnown && c.total > 0 {
		c.total--
	}
	c.mu.Unlock()
	c.changed()
	return taken, true
}

// Restore reverts an optimistic removal: the row goes back at the position its
// CreatedAt dictates and the count goes back up.
func (c *Cache) Restore(b domain.Bookmark) {
	c.mu.Lock()
	c.rows = domain.InsertSorted(c.rows, b)
	c.total++
	c.totalKnown = true
	c.mu.Unlock()
	c.changed()
}

// Drop removes the row by id without touching the count. Used for the delayed
// re-filter after a confirmed delete, where the feed event may already have
// adjusted the count.
func (c *Cache) Drop(id string) {
	c.mu.Lock()
	var removed bool
	c.rows, removed = domain.RemoveByID(c.rows, id)
	c.mu.Unlock()
	if removed {
		c.changed()
	}
}

func (c *Cache) changed() {
	c.mu.Lock()
	fire := c.onChange
	c.mu.Unlock()
	if fire != nil {
		fire()
	}
}

func containsID(rows []domain.Bookmark, id string) bool {
	for _, r := range rows {
		if r.ID == id {
			return true
		}
	}
	return false
}
