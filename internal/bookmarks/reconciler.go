package bookmarks

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// DefaultReconnectBackoff is the fixed wait before re-subscribing after a
// feed disruption.
const DefaultReconnectBackoff = 2 * time.Second

// FeedState names the reconciler's position in its subscription lifecycle.
type FeedState int

const (
	StateUnsubscribed FeedState = iota
	StateConnecting
	StateActive
	StateReconnecting
)

func (s FeedState) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Reconciler keeps the cache approximately consistent with remote writes by
// applying change-feed events in delivery order, without re-querying on every
// event. Feed disruptions trigger teardown and a fixed-backoff resubscribe,
// retried without bound; each confirmed subscription triggers one corrective
// reload of the page the user was looking at, which resolves any drift
// accumulated while disconnected.
//
// The reconciler owns at most one subscription at a time. Owner changes tear
// the old one down completely, including any pending reconnect timer; a
// generation counter turns anything that outlives the teardown into a no-op.
type Reconciler struct {
	store   store.Store
	cache   *Cache
	cell    *PageCell
	log     logger.Logger
	backoff time.Duration

	mu      sync.Mutex
	ownerID string
	state   FeedState
	sub     store.Subscription
	timer   *time.Timer
	gen     uint64
}

// NewReconciler creates a reconciler in the Unsubscribed state.
func NewReconciler(st store.Store, cache *Cache, cell *PageCell, backoff time.Duration, log logger.Logger) *Reconciler {
	if backoff <= 0 {
		backoff = DefaultReconnectBackoff
	}
	return &Reconciler{
		store:   st,
		cache:   cache,
		cell:    cell,
		log:     log,
		backoff: backoff,
		state:   StateUnsubscribed,
	}
}

// State returns the current feed state.
func (r *Reconciler) State() FeedState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetOwner switches the active owner. The previous subscription and any
// pending reconnect timer are torn down first; an empty owner leaves the
// reconciler Unsubscribed.
func (r *Reconciler) SetOwner(ownerID string) {
	r.mu.Lock()
	if r.ownerID == ownerID {
		r.mu.Unlock()
		return
	}
	r.teardownLocked()
	r.ownerID = ownerID
	if ownerID == "" {
		r.mu.Unlock()
		return
	}
	r.state = StateConnecting
	gen := r.gen
	r.mu.Unlock()

	go r.connect(ownerID, gen)
}

// Close tears down the subscription and any pending timer.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.teardownLocked()
	r.ownerID = ""
	r.mu.Unlock()
}

// teardownLocked invalidates all outstanding work for the current session.
func (r *Reconciler) teardownLocked() {
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.sub != nil {
		_ = r.sub.Close()
		r.sub = nil
	}
	r.state = StateUnsubscribed
}

func (r *Reconciler) connect(ownerID string, gen uint64) {
	sub, err := r.store.SubscribeChanges(context.Background(), ownerID)

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		if err == nil {
			_ = sub.Close()
		}
		return
	}
	if err != nil {
		r.log.Warn("change feed subscribe failed",
			logger.String("owner", ownerID),
			logger.Error(err))
		r.scheduleReconnectLocked()
		r.mu.Unlock()
		return
	}
	r.sub = sub
	r.mu.Unlock()

	go r.consume(ownerID, sub, gen)
}

func (r *Reconciler) consume(ownerID string, sub store.Subscription, gen uint64) {
	events := sub.Events()
	statuses := sub.Status()

	for {
		select {
		case st, ok := <-statuses:
			if !ok {
				statuses = nil
				continue
			}
			if r.handleStatus(ownerID, st, gen) {
				return
			}
		case ev, ok := <-events:
			if !ok {
				// The events channel closing ends the subscription, whether or
				// not the status channel ever closes. A disruption status sent
				// just before the close is already buffered; drain it so the
				// reconnect still happens.
				select {
				case st, sok := <-statuses:
					if sok {
						r.handleStatus(ownerID, st, gen)
					}
				default:
				}
				return
			}
			r.apply(ownerID, ev, gen)
		}
	}
}

// handleStatus reports whether the consume loop should stop.
func (r *Reconciler) handleStatus(ownerID string, st store.Status, gen uint64) bool {
	switch st {
	case store.StatusSubscribed:
		r.mu.Lock()
		if gen != r.gen {
			r.mu.Unlock()
			return true
		}
		r.state = StateActive
		r.mu.Unlock()
		r.log.Info("change feed subscribed",
			logger.String("owner", ownerID))

		// One corrective reload of the page we were showing, to resolve any
		// drift accumulated while disconnected.
		go r.cache.LoadPage(context.Background(), ownerID, r.cell.Get())
		return false

	case store.StatusChannelError, store.StatusTimedOut:
		r.log.Warn("change feed disrupted",
			logger.String("owner", ownerID),
			logger.String("status", string(st)))
		r.mu.Lock()
		if gen != r.gen {
			r.mu.Unlock()
			return true
		}
		r.scheduleReconnectLocked()
		r.mu.Unlock()
		return true

	default:
		return false
	}
}

func (r *Reconciler) scheduleReconnectLocked() {
	r.state = StateReconnecting
	if r.sub != nil {
		_ = r.sub.Close()
		r.sub = nil
	}
	gen := r.gen
	r.timer = time.AfterFunc(r.backoff, func() {
		r.mu.Lock()
		if gen != r.gen {
			r.mu.Unlock()
			return
		}
		r.timer = nil
		r.state = StateConnecting
		owner := r.ownerID
		r.mu.Unlock()
		r.connect(owner, gen)
	})
}

// apply dispatches one feed event onto the cache. Events for other owners and
// events without a usable row identity are discarded.
func (r *Reconciler) apply(ownerID string, ev store.ChangeEvent, gen uint64) {
	id := ev.RowID()
	if id == "" {
		r.log.Debug("discarding change event without row identity",
			logger.String("type", string(ev.Type)))
		return
	}
	// The feed channel is already scoped per owner; filter anyway.
	if owner := ev.RowOwner(); owner != "" && owner != ownerID {
		return
	}

	r.mu.Lock()
	live := gen == r.gen
	r.mu.Unlock()
	if !live {
		return
	}

	switch ev.Type {
	case store.EventInsert:
		if ev.New == nil {
			return
		}
		r.cache.ApplyInsert(*ev.New)
	case store.EventDelete:
		r.cache.ApplyDelete(id)
	case store.EventUpdate:
		if ev.New == nil {
			return
		}
		r.cache.ApplyUpdate(*ev.New)
	default:
		r.log.Debug("ignoring change event of unknown type",
			logger.String("type", string(ev.Type)))
	}
}
