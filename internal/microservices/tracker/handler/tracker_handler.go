package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"restaurant-ordering/internal/common/httpx"
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/microservices/tracker/service"
)

type TrackerHandler struct {
	service service.TrackerServiceInterface
	lg      *logger.Logger
}

func NewTrackerHandler(svc service.TrackerServiceInterface, lg *logger.Logger) *TrackerHandler {
	return &TrackerHandler{service: svc, lg: lg}
}

func (h *TrackerHandler) GetTracking(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Tracking(r.Context(), mux.Vars(r)["order_id"])
	if err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

func (h *TrackerHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	ws, err := h.service.Workers(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ws)
}
