package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// SubscribeChanges opens the owner's change feed on the corresponding pub/sub
// channel. StatusSubscribed is delivered once the server has confirmed the
// subscription; a receive failure surfaces as CHANNEL_ERROR or TIMED_OUT and
// ends the subscription.
func (s *Store) SubscribeChanges(ctx context.Context, ownerID string) (store.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, ChangesChannel(ownerID))

	// Wait for the server's subscribe confirmation before reporting SUBSCRIBED.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to change feed: %w", err)
	}

	sub := &subscription{
		pubsub: pubsub,
		log:    s.log,
		events: make(chan store.ChangeEvent, 16),
		status: make(chan store.Status, 4),
		done:   make(chan struct{}),
	}
	sub.status <- store.StatusSubscribed
	go sub.run()

	return sub, nil
}

type subscription struct {
	pubsub *redis.PubSub
	log    logger.Logger
	events chan store.ChangeEvent
	status chan store.Status
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Events() <-chan store.ChangeEvent { return s.events }
func (s *subscription) Status() <-chan store.Status      { return s.status }

// Close tears the subscription down. Safe to call more than once.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

func (s *subscription) run() {
	defer close(s.status)
	defer close(s.events)
	for {
		msg, err := s.pubsub.ReceiveMessage(context.Background())
		if err != nil {
			select {
			case <-s.done:
				// Local close, not a feed disruption.
			default:
				st := store.StatusChannelError
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					st = store.StatusTimedOut
				}
				s.log.Warn("change feed receive failed", logger.Error(err))
				select {
				case s.status <- st:
				default:
				}
			}
			return
		}

		var ev store.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			s.log.Debug("dropping malformed change event", logger.Error(err))
			continue
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}
