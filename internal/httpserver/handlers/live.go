package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/marks/internal/auth"
	"github.com/MrSnakeDoc/marks/internal/bookmarks"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/notify"
	"github.com/MrSnakeDoc/marks/internal/utils"
)

const (
	liveWriteTimeout = 10 * time.Second
	livePingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Bearer-token auth already gates this endpoint.
	CheckOrigin: func(*http.Request) bool { return true },
}

// liveFrame is one push to a connected client: the full page snapshot plus
// the visible notices. Snapshots are small (one page), so re-sending the
// whole frame on every change keeps clients trivially consistent.
type liveFrame struct {
	Page    bookmarks.Page  `json:"page"`
	Notices []notify.Notice `json:"notices"`
}

// Live upgrades to a websocket and pushes a frame whenever the owner's
// session state changes. All open sockets for one owner share the same
// session, which is what makes changes appear live across sessions.
func Live(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := auth.OwnerFrom(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		sess := d.Sessions.Get(owner)
		changed, cancel := sess.Watch()
		defer cancel()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			d.Logger.Debug("websocket upgrade failed", logger.Error(err))
			return
		}
		defer utils.Close(conn)

		// Reader goroutine: we never expect client frames, but reading is
		// what surfaces close/error from the peer.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		send := func() error {
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			return conn.WriteJSON(liveFrame{
				Page:    sess.Cache.Snapshot(),
				Notices: sess.Notices.Active(),
			})
		}

		if err := send(); err != nil {
			return
		}

		ping := time.NewTicker(livePingInterval)
		defer ping.Stop()

		for {
			select {
			case <-changed:
				if err := send(); err != nil {
					return
				}
			case <-ping.C:
				deadline := time.Now().Add(liveWriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-done:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}
