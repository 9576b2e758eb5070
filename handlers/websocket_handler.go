package handlers

import (
	"net/http"
	"strconv"

	"github.com/Dosada05/bracket-engine/events"
)

// WebSocketHandler subscribes clients to the live stream of one tournament.
type WebSocketHandler struct {
	hub *events.Hub
}

func NewWebSocketHandler(hub *events.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// SubscribeHandler handles GET /ws/tournaments/{tournamentID}.
func (h *WebSocketHandler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conn, err := events.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	h.hub.ServeClient(conn, strconv.Itoa(tournamentID))
}
