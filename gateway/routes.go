package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oz-collabo-04/Back/observability"
)

func (g *Gateway) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat/", g.ServeChat)
	r.Get("/ws/chat/{room_id}", g.ServeChat)
	r.Get("/ws/chat/{room_id}/", g.ServeChat)
	r.Get("/ws/notifications", g.ServeNotifications)
	r.Get("/ws/notifications/", g.ServeNotifications)
}

// NewRouter mounts the WebSocket endpoints, the operational endpoints and,
// when ingress is not nil, the internal routes.
func NewRouter(gw *Gateway, ingress *Ingress, monitor *observability.Monitor) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, monitor.Snapshot())
	})

	gw.RegisterRoutes(r)

	if ingress != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Logger)
			r.Use(middleware.Timeout(15 * time.Second))
			ingress.RegisterRoutes(r)
		})
	}
	return r
}
