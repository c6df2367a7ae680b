package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/veedran/reelsmith/internal/broadcast"
	"github.com/veedran/reelsmith/internal/jobs"
	"github.com/veedran/reelsmith/pkg/log"
)

// Handler upgrades HTTP requests into hub subscriptions.
type Handler struct {
	hub      *broadcast.Hub
	registry *jobs.Registry
	upgrader websocket.Upgrader
}

func NewHandler(hub *broadcast.Hub, registry *jobs.Registry) *Handler {
	return &Handler{
		hub:      hub,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed: %v", err)
		return
	}

	client := newClient(conn)
	h.hub.Subscribe(client)
	go client.writePump()

	// Listeners that connect mid-pipeline still need the current state.
	if err := client.Send(broadcast.Event{
		Type: broadcast.TypeJobsSnapshot,
		Jobs: h.registry.List(),
	}); err != nil {
		log.Warn("Failed to send jobs snapshot: %v", err)
	}

	client.readPump()
	h.hub.Unsubscribe(client)
}
