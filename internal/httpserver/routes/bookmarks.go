package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
)

func init() { Register(registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	auth := mw.Auth(d.JWTSecret, d.Logger)

	r.With(auth).Get("/api/bookmarks", handlers.ListBookmarks(d))
	r.With(auth).Post("/api/bookmarks", handlers.AddBookmark(d))
	r.With(auth).Delete("/api/bookmarks/{id}", handlers.DeleteBookmark(d))
	r.With(auth).Get("/api/notices", handlers.Notices(d))
	r.With(auth).Get("/api/live", handlers.Live(d))
	r.With(auth).Post("/api/signout", handlers.SignOut(d))
}
