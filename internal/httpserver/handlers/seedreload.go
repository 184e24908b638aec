package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
)

// SeedReload asks the seeder to run an import now. The trigger channel is
// buffered with capacity 1, so a second request while an import is pending
// gets a 429 instead of queueing.
func SeedReload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.SeedTrigger == nil {
			writeError(w, http.StatusNotFound, "seeding is not configured")
			return
		}

		select {
		case d.SeedTrigger <- struct{}{}:
			writeJSON(w, http.StatusAccepted, mutationResponse{Status: "reload scheduled"})
		default:
			writeError(w, http.StatusTooManyRequests, "a reload is already pending")
		}
	}
}
