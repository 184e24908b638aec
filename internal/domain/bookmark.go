package domain

import (
	"sort"
	"strings"
	"time"
)

// Bookmark is a single saved URL belonging to one owner.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the canonical unique identifier, assigned by the store at creation.
	ID string `json:"id"`

	// OwnerID is the authenticated principal that owns this bookmark.
	// All queries and mutations are scoped by it.
	OwnerID string `json:"user_id"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// Title is the display name. Never empty after normalization:
	// a blank title falls back to the URL.
	Title string `json:"title"`

	// URL is the saved address. Required.
	URL string `json:"url"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt is assigned by the store at creation and never changes.
	// It is the sole sort key: lists are ordered by CreatedAt descending.
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeTitle returns the trimmed title, falling back to the URL when blank.
func NormalizeTitle(title, url string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return strings.TrimSpace(url)
	}
	return title
}

// InsertSorted inserts b into rows, keeping CreatedAt-descending order.
// Rows already containing b's ID are returned unchanged, so applying the
// same logical insert twice is safe. Equal timestamps keep existing rows
// ahead of the inserted one.
func InsertSorted(rows []Bookmark, b Bookmark) []Bookmark {
	for _, r := range rows {
		if r.ID == b.ID {
			return rows
		}
	}
	i := sort.Search(len(rows), func(i int) bool {
		return rows[i].CreatedAt.Before(b.CreatedAt)
	})
	rows = append(rows, Bookmark{})
	copy(rows[i+1:], rows[i:])
	rows[i] = b
	return rows
}

// RemoveByID returns rows without the bookmark carrying the given id.
// Removing an absent id is a no-op.
func RemoveByID(rows []Bookmark, id string) ([]Bookmark, bool) {
	for i, r := range rows {
		if r.ID == id {
			return append(rows[:i], rows[i+1:]...), true
		}
	}
	return rows, false
}
