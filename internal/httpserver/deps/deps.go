package deps

import (
	"time"

	"github.com/MrSnakeDoc/marks/internal/bookmarks"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

type Deps struct {
	Logger      logger.Logger
	StartTime   time.Time
	Version     string
	Commit      string
	BuildDate   string
	GoVersion   string
	TimeNow     func() time.Time   // for testing, defaults to time.Now
	JWTSecret   string             // HS256 key used to verify bearer tokens
	Sessions    *bookmarks.Manager // per-owner live session manager
	SeedTrigger chan struct{}      // Channel to trigger a manual seed import (nil if seeding disabled)
}
