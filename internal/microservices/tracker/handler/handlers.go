package handler

import (
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/microservices/tracker/service"
)

type Handler struct {
	TrackerHandler *TrackerHandler
	Hub            *service.Hub
}

func New(svc service.TrackerServiceInterface, hub *service.Hub, lg *logger.Logger) *Handler {
	return &Handler{
		TrackerHandler: NewTrackerHandler(svc, lg),
		Hub:            hub,
	}
}
