package bookmarks

import "sync"

// PageCell is the shared current-page reference. The cache writes it on every
// confirmed page change; the reconciler and coordinator only read it. Keeping
// it in one cell (instead of copies) is what lets feed events and optimistic
// mutations agree on which page the user is looking at.
type PageCell struct {
	mu   sync.Mutex
	page int
}

// NewPageCell returns a cell positioned on page 1.
func NewPageCell() *PageCell {
	return &PageCell{page: 1}
}

// Get returns the current page number.
func (c *PageCell) Get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// set is not exported: only the cache moves the page.
func (c *PageCell) set(page int) {
	c.mu.Lock()
	c.page = page
	c.mu.Unlock()
}
