package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marks/internal/auth"
	"github.com/MrSnakeDoc/marks/internal/bookmarks"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
)

type addBookmarkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type mutationResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ListBookmarks returns the owner's cached page, loading it first when the
// requested page differs from the cached one or the cache is still cold.
// A load dropped by the in-flight guard just serves the current snapshot.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := auth.OwnerFrom(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "invalid page number")
				return
			}
			page = n
		}

		sess := d.Sessions.Get(owner)
		snap := sess.Cache.Snapshot()
		if snap.Number != page || !snap.TotalKnown {
			sess.Cache.LoadPage(r.Context(), owner, page)
			snap = sess.Cache.Snapshot()
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

// AddBookmark saves a new bookmark for the owner. The row itself arrives via
// the change feed and the corrective reload, so a success only acknowledges.
func AddBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := auth.OwnerFrom(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req addBookmarkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess := d.Sessions.Get(owner)
		err := sess.Ops.Add(r.Context(), req.Title, req.URL)
		switch {
		case errors.Is(err, bookmarks.ErrNoURL):
			writeError(w, http.StatusUnprocessableEntity, sess.Ops.LastError())
		case err != nil:
			writeError(w, http.StatusBadGateway, sess.Ops.LastError())
		default:
			writeJSON(w, http.StatusAccepted, mutationResponse{Status: "accepted"})
		}
	}
}

// DeleteBookmark removes a bookmark from the owner's current page.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := auth.OwnerFrom(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		id := chi.URLParam(r, "id")
		sess := d.Sessions.Get(owner)
		err := sess.Ops.Delete(r.Context(), id)
		switch {
		case errors.Is(err, bookmarks.ErrNotCached):
			writeError(w, http.StatusNotFound, "bookmark not in current page")
		case err != nil:
			writeError(w, http.StatusBadGateway, sess.Ops.LastError())
		default:
			writeJSON(w, http.StatusAccepted, mutationResponse{Status: "accepted"})
		}
	}
}

// Notices returns the owner's currently visible notifications.
func Notices(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := auth.OwnerFrom(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		writeJSON(w, http.StatusOK, d.Sessions.Get(owner).Notices.Active())
	}
}

// SignOut tears down the owner's live session: the feed unsubscribes, pending
// timers cancel, the cache resets.
func SignOut(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := auth.OwnerFrom(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		d.Sessions.Evict(owner)
		writeJSON(w, http.StatusOK, mutationResponse{Status: "signed_out"})
	}
}
