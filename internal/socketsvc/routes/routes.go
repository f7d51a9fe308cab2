package routes

import (
	"github.com/go-chi/chi"
	"github.com/strcr/nfc-meals/internal/socketsvc/handlers"
	"github.com/strcr/nfc-meals/internal/socketsvc/ws"
)

func SetRoutes(r chi.Router, ws *ws.Ws, apiKey, port string) {
	h := handlers.NewHandler(ws, apiKey, port)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/health", h.HealthHandler)
	})
}
