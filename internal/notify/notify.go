package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a notice stays visible.
const DefaultTTL = 3 * time.Second

// Kind classifies a notice for display.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notice is one short-lived status message.
type Notice struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier holds an ordered queue of auto-expiring notices. Each notice
// expires on its own clock regardless of later notices. Process-local,
// no deduplication, no persistence.
type Notifier struct {
	mu       sync.Mutex
	ttl      time.Duration
	notices  []Notice
	onChange func()
	closed   bool
}

// New creates a notifier whose notices expire after ttl.
func New(ttl time.Duration) *Notifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Notifier{ttl: ttl}
}

// OnChange registers a callback fired after every queue change.
func (n *Notifier) OnChange(fn func()) {
	n.mu.Lock()
	n.onChange = fn
	n.mu.Unlock()
}

// Notify appends a notice and schedules its expiry.
func (n *Notifier) Notify(message string, kind Kind) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	id := uuid.NewString()
	n.notices = append(n.notices, Notice{
		ID:        id,
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now(),
	})
	fire := n.onChange
	n.mu.Unlock()

	time.AfterFunc(n.ttl, func() { n.expire(id) })

	if fire != nil {
		fire()
	}
}

// Active returns the notices currently on display, oldest first.
func (n *Notifier) Active() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Notice, len(n.notices))
	copy(out, n.notices)
	return out
}

// Close drops all notices and ignores further Notify calls. Pending expiry
// timers become no-ops.
func (n *Notifier) Close() {
	n.mu.Lock()
	n.closed = true
	n.notices = nil
	n.mu.Unlock()
}

func (n *Notifier) expire(id string) {
	n.mu.Lock()
	removed := false
	for i, notice := range n.notices {
		if notice.ID == id {
			n.notices = append(n.notices[:i], n.notices[i+1:]...)
			removed = true
			break
		}
	}
	fire := n.onChange
	n.mu.Unlock()

	if removed && fire != nil {
		fire()
	}
}
