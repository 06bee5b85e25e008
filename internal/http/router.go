package http

import (
	"net/http"

	"planning/internal/auth"
	"planning/internal/config"
	"planning/internal/event"
	"planning/internal/http/handler"
	mw "planning/internal/http/middleware"
	"planning/internal/logging"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(cfg config.Config, authSvc *auth.Service, store event.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger(*logging.HTTP()))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	requireAuth := auth.RequireAuth(authSvc.JWT, authSvc)

	ah := &handler.AuthHandler{Svc: authSvc}
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", ah.Register)
		r.Post("/login", ah.Login)
		r.Post("/federated", ah.Federated)
		r.Post("/reset", ah.Reset)
		r.Post("/reset/confirm", ah.ResetConfirm)
		r.With(requireAuth).Post("/logout", ah.Logout)
	})

	me := &handler.MeHandler{Svc: authSvc}
	r.With(requireAuth).Get("/me", me.Me)
	r.With(requireAuth).Patch("/me", me.Update)

	eh := &handler.EventHandler{Auth: authSvc, Store: store, Location: cfg.Location()}
	r.Route("/events", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/", eh.List)
		r.Post("/", eh.Create)
		r.Get("/stats", eh.Stats)
		r.Get("/export.ics", eh.Export)
		r.Post("/import", eh.Import)

		r.Get("/{id}", eh.Get)
		r.Put("/{id}", eh.Update)
		r.Patch("/{id}", eh.Patch)
		r.Delete("/{id}", eh.Delete)
	})

	ch := &handler.CalendarHandler{Events: eh}
	r.With(requireAuth).Get("/calendar", ch.View)

	return r
}
