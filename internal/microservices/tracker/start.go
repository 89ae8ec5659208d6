package tracker

import (
	"net/http"

	"github.com/gorilla/mux"

	"restaurant-ordering/internal/microservices/tracker/handler"
)

// Mount registers the tracking lookup and worker list on api and the websocket feed on root.
func Mount(root, api *mux.Router, h *handler.Handler) {
	api.HandleFunc("/tracking/{order_id}", h.TrackerHandler.GetTracking).Methods(http.MethodGet)
	api.HandleFunc("/workers", h.TrackerHandler.ListWorkers).Methods(http.MethodGet)
	root.HandleFunc("/ws/orders", h.Hub.Serve).Methods(http.MethodGet)
}
