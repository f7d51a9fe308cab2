package handlers

import (
	"net/http"
	"os"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r chi.Router) {
	// public routes
	r.Get("/health", h.HealthHandler)

	// reader routes, guarded by the shared api key
	r.Group(func(r chi.Router) {
		r.Use(h.APIKey)

		r.Get("/", h.Index)
		r.Get("/events", h.GetEvents)
		r.Post("/events", h.PostEvent)
		r.Post("/scan", h.Scan)
	})

	// admin routes
	if h.tokenAuth != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)
			r.Use(AdminOnly)

			r.Post("/cards", h.CreateCard)
			r.Post("/allowances", h.GrantAllowance)
			r.Get("/cards/{serial}/allowances", h.ListAllowances)
		})
	} else {
		log.Warn("ADMIN_JWT_SECRET not set, admin routes disabled")
	}

	// static front end assets
	if _, err := os.Stat(h.staticDir); err == nil {
		r.Handle("/*", http.FileServer(http.Dir(h.staticDir)))
	} else {
		log.Warnf("static dir %s not found, front end not served", h.staticDir)
	}
}

// InitAuth enables the admin routes with HS256 tokens signed by secret.
func (h *Handler) InitAuth(secret string) {
	if secret == "" {
		return
	}
	h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
}
