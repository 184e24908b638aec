package store

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// ErrNotFound is returned when a mutation targets a row that does not exist
// for the given owner.
var ErrNotFound = errors.New("bookmark not found")

// EventType identifies a row-level change on the bookmarks table.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is one row-level notification delivered by the change feed.
// New carries the row for inserts and updates. Old carries at least the id
// for deletes; the store may deliver a minimal old row (id only).
type ChangeEvent struct {
	Type EventType        `json:"type"`
	New  *domain.Bookmark `json:"new,omitempty"`
	Old  *domain.Bookmark `json:"old,omitempty"`
}

// RowID returns the row identity attached to the event, or "" when the event
// carries no usable identity and cannot be applied safely.
func (e ChangeEvent) RowID() string {
	if e.Type == EventDelete {
		if e.Old != nil && e.Old.ID != "" {
			return e.Old.ID
		}
		if e.New != nil {
			return e.New.ID
		}
		return ""
	}
	if e.New != nil && e.New.ID != "" {
		return e.New.ID
	}
	if e.Old != nil {
		return e.Old.ID
	}
	return ""
}

// RowOwner returns the owner identity attached to the event, or "" when the
// payload does not carry one.
func (e ChangeEvent) RowOwner() string {
	if e.New != nil && e.New.OwnerID != "" {
		return e.New.OwnerID
	}
	if e.Old != nil {
		return e.Old.OwnerID
	}
	return ""
}

// Status reports the health of an open change-feed subscription.
type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusTimedOut     Status = "TIMED_OUT"
)

// Subscription is one open change-feed channel for a single owner.
// Events are delivered in the order the store committed them; the client
// applies them as received and does no reordering.
type Subscription interface {
	// Events yields row-level change events. The channel is closed when the
	// subscription ends, whether by Close or by a feed disruption.
	Events() <-chan ChangeEvent

	// Status yields connection status transitions, starting with
	// StatusSubscribed once the feed confirms the subscription.
	Status() <-chan Status

	// Close tears the subscription down. Safe to call more than once.
	Close() error
}

// Store is the remote bookmark store this client reconciles against.
type Store interface {
	// Query returns up to limit rows starting at offset, ordered by CreatedAt
	// descending, together with the owner's exact total row count.
	Query(ctx context.Context, ownerID string, offset, limit int) ([]domain.Bookmark, int, error)

	// Insert creates a bookmark for the owner. The store assigns ID and
	// CreatedAt and returns the full row.
	Insert(ctx context.Context, ownerID, title, url string) (domain.Bookmark, error)

	// Delete removes the bookmark scoped by id and owner and returns the
	// removed row. Returns ErrNotFound when no such row exists.
	Delete(ctx context.Context, ownerID, id string) (domain.Bookmark, error)

	// SubscribeChanges opens the owner's change feed.
	SubscribeChanges(ctx context.Context, ownerID string) (Subscription, error)
}
