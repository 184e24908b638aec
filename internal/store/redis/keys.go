package redis

const (
	// KeyPrefixBookmark is the prefix for bookmark row keys
	KeyPrefixBookmark = "marks:bookmark:"
	// KeyPrefixTimeline is the prefix for per-owner timelines
	// (sorted sets scored by creation time)
	KeyPrefixTimeline = "marks:timeline:"
	// KeyPrefixChanges is the prefix for per-owner change-feed channels
	KeyPrefixChanges = "marks:changes:"
	// KeyPrefixSeeded is the prefix for per-owner sets of seeded URLs
	KeyPrefixSeeded = "marks:seeded:"
)

// BookmarkKey returns the Redis key for a bookmark row
func BookmarkKey(id string) string {
	return KeyPrefixBookmark + id
}

// TimelineKey returns the Redis key for an owner's timeline
func TimelineKey(ownerID string) string {
	return KeyPrefixTimeline + ownerID
}

// ChangesChannel returns the pub/sub channel carrying an owner's change feed
func ChangesChannel(ownerID string) string {
	return KeyPrefixChanges + ownerID
}

// SeededKey returns the Redis key for an owner's set of seeded URLs
func SeededKey(ownerID string) string {
	return KeyPrefixSeeded + ownerID
}
