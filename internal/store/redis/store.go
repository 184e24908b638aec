package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// Store implements store.Store on Redis. Each bookmark row lives under its own
// key as JSON; a per-owner sorted set scored by creation time provides the
// descending order, offset pagination and exact counts; mutations publish
// their own change events on the owner's pub/sub channel.
type Store struct {
	client *redis.Client
	log    logger.Logger

	// injectable for tests
	now   func() time.Time
	newID func() string
}

// NewStore creates a new Redis-backed bookmark store
func NewStore(client *redis.Client, log logger.Logger) *Store {
	return &Store{
		client: client,
		log:    log,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Query returns up to limit rows for the owner starting at offset, ordered by
// CreatedAt descending, plus the owner's exact total row count.
func (s *Store) Query(ctx context.Context, ownerID string, offset, limit int) ([]domain.Bookmark, int, error) {
	if limit <= 0 {
		return nil, 0, fmt.Errorf("invalid query limit: %d", limit)
	}

	timeline := TimelineKey(ownerID)

	pipe := s.client.Pipeline()
	rangeCmd := pipe.ZRevRange(ctx, timeline, int64(offset), int64(offset+limit-1))
	countCmd := pipe.ZCard(ctx, timeline)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, 0, fmt.Errorf("failed to query timeline: %w", err)
	}

	total := int(countCmd.Val())
	ids := rangeCmd.Val()
	if len(ids) == 0 {
		return []domain.Bookmark{}, total, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = BookmarkKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch bookmark rows: %w", err)
	}

	rows := make([]domain.Bookmark, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Timeline member without a row key. Stale entry, skip it.
			s.log.Warn("timeline entry has no bookmark row",
				logger.String("id", ids[i]))
			continue
		}
		var b domain.Bookmark
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			s.log.Warn("failed to unmarshal bookmark row",
				logger.String("id", ids[i]),
				logger.Error(err))
			continue
		}
		rows = append(rows, b)
	}

	return rows, total, nil
}

// Insert creates a bookmark for the owner, assigning its ID and CreatedAt,
// and publishes the corresponding change event.
func (s *Store) Insert(ctx context.Context, ownerID, title, url string) (domain.Bookmark, error) {
	b := domain.Bookmark{
		ID:        s.newID(),
		OwnerID:   ownerID,
		Title:     domain.NormalizeTitle(title, url),
		URL:       url,
		CreatedAt: s.now().UTC(),
	}

	data, err := json.Marshal(b)
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to marshal bookmark: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, BookmarkKey(b.ID), data, 0)
	// Microsecond scores fit a float64 exactly, and keep sub-second ordering.
	pipe.ZAdd(ctx, TimelineKey(ownerID), redis.Z{
		Score:  float64(b.CreatedAt.UnixMicro()),
		Member: b.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to save bookmark: %w", err)
	}

	s.publish(ctx, ownerID, store.ChangeEvent{Type: store.EventInsert, New: &b})

	return b, nil
}

// Delete removes the bookmark scoped by id and owner, returns the removed row,
// and publishes the corresponding change event.
func (s *Store) Delete(ctx context.Context, ownerID, id string) (domain.Bookmark, error) {
	data, err := s.client.Get(ctx, BookmarkKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Bookmark{}, store.ErrNotFound
		}
		return domain.Bookmark{}, fmt.Errorf("failed to get bookmark: %w", err)
	}

	var b domain.Bookmark
	if err := json.Unmarshal(data, &b); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}
	if b.OwnerID != ownerID {
		// Row exists but belongs to someone else. Same answer as absent.
		return domain.Bookmark{}, store.ErrNotFound
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, BookmarkKey(id))
	pipe.ZRem(ctx, TimelineKey(ownerID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to delete bookmark: %w", err)
	}

	s.publish(ctx, ownerID, store.ChangeEvent{Type: store.EventDelete, Old: &b})

	return b, nil
}

// MarkSeeded records url as imported for the owner. Reports whether the url
// was newly recorded, so repeated seed runs stay idempotent.
func (s *Store) MarkSeeded(ctx context.Context, ownerID, url string) (bool, error) {
	added, err := s.client.SAdd(ctx, SeededKey(ownerID), url).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark seeded url: %w", err)
	}
	return added == 1, nil
}

// publish delivers a change event to the owner's feed channel (best effort).
func (s *Store) publish(ctx context.Context, ownerID string, ev store.ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("failed to marshal change event", logger.Error(err))
		return
	}
	if err := s.client.Publish(ctx, ChangesChannel(ownerID), payload).Err(); err != nil {
		s.log.Warn("failed to publish change event",
			logger.String("type", string(ev.Type)),
			logger.Error(err))
	}
}
