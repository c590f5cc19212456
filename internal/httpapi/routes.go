// Package httpapi assembles the HTTP surface: the websocket upgrade endpoint
// and a liveness probe.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/park285/chess-live/internal/match"
	"github.com/park285/chess-live/internal/ws"
)

func SetupRoutes(wsh *ws.Handler, hub *ws.Hub, rooms *match.Manager) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz(hub, rooms))
	r.Get("/ws", wsh.ServeWS)
	return r
}

func Healthz(hub *ws.Hub, rooms *match.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(struct {
			Status      string `json:"status"`
			Rooms       int    `json:"rooms"`
			Connections int    `json:"connections"`
		}{Status: "ok", Rooms: rooms.RoomCount(), Connections: hub.Len()})
	}
}
