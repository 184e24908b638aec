package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

// Store is the slice of the bookmark store the seeder needs: inserting rows
// and remembering which URLs were already imported per owner.
type Store interface {
	Insert(ctx context.Context, ownerID, title, url string) (domain.Bookmark, error)
	MarkSeeded(ctx context.Context, ownerID, url string) (bool, error)
}

// Seeder imports bookmarks from a YAML file into the store, once at startup
// and then periodically or on manual trigger. Already-imported URLs are
// skipped, so re-running an import is idempotent.
type Seeder struct {
	loader        *Loader
	store         Store
	log           logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewSeeder creates a new seeder for the given file.
func NewSeeder(
	seedFile string,
	st Store,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *Seeder {
	return &Seeder{
		loader:        NewLoader(seedFile),
		store:         st,
		log:           log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start runs an initial import and begins the periodic refresh.
func (s *Seeder) Start(ctx context.Context) error {
	if err := s.Import(ctx); err != nil {
		return fmt.Errorf("initial seed import failed: %w", err)
	}

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.Import(ctx); err != nil {
					s.log.Error("failed to import seed bookmarks",
						logger.Error(err))
				}
			case <-s.manualTrigger:
				s.log.Info("manual seed import triggered")
				if err := s.Import(ctx); err != nil {
					s.log.Error("failed to import seed bookmarks",
						logger.Error(err))
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the periodic refresh.
func (s *Seeder) Stop() {
	close(s.stopCh)
}

// Import loads the seed file and inserts every entry that has not been
// imported before.
func (s *Seeder) Import(ctx context.Context) error {
	entries, err := s.loader.Load()
	if err != nil {
		return err
	}

	imported := 0
	for _, e := range entries {
		fresh, err := s.store.MarkSeeded(ctx, e.Owner, e.URL)
		if err != nil {
			s.log.Warn("failed to check seeded url",
				logger.String("url", e.URL),
				logger.Error(err))
			continue
		}
		if !fresh {
			continue
		}
		if _, err := s.store.Insert(ctx, e.Owner, e.Title, e.URL); err != nil {
			s.log.Warn("failed to insert seed bookmark",
				logger.String("url", e.URL),
				logger.Error(err))
			continue
		}
		imported++
	}

	if imported > 0 {
		s.log.Info("seed bookmarks imported",
			logger.Int("count", imported),
			logger.Int("total_entries", len(entries)))
	} else {
		s.log.Debug("no new seed bookmarks to import",
			logger.Int("total_entries", len(entries)))
	}
	return nil
}
