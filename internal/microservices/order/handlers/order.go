package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"restaurant-ordering/internal/auth"
	"restaurant-ordering/internal/common/httpx"
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/domain"
	"restaurant-ordering/internal/microservices/order/service"
	"restaurant-ordering/internal/repository"
)

type OrderHandler struct {
	service service.OrderServiceInterface
	lg      *logger.Logger
}

func NewOrderHandler(s service.OrderServiceInterface, lg *logger.Logger) *OrderHandler {
	return &OrderHandler{service: s, lg: lg}
}

func (oh *OrderHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, oh.lg, err)
		return
	}
	q, err := oh.service.Quote(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, oh.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, q.Response())
}

func (oh *OrderHandler) AddOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, oh.lg, err)
		return
	}
	o, err := oh.service.Place(r.Context(), req, auth.Actor(r.Context(), "api"))
	if err != nil {
		httpx.WriteError(w, r, oh.lg, err)
		return
	}
	w.Header().Set("Location", "/api/orders/"+o.ID)
	httpx.WriteJSON(w, http.StatusCreated, o)
}

func (oh *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := oh.service.List(r.Context(), repository.OrderFilter{
		Status: domain.OrderStatus(r.URL.Query().Get("status")),
		Limit:  httpx.QueryInt(r, "limit", 0),
		Offset: httpx.QueryInt(r, "offset", 0),
	})
	if err != nil {
		httpx.WriteError(w, r, oh.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

func (oh *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := oh.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, r, oh.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

func (oh *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	hist, err := oh.service.History(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, r, oh.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, hist)
}

func (oh *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateStatusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, oh.lg, err)
		return
	}
	// An authenticated subject always wins over the body's changed_by.
	fallback := req.ChangedBy
	if fallback == "" {
		fallback = "api"
	}
	actor := auth.Actor(r.Context(), fallback)
	o, err := oh.service.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status, actor)
	if err != nil {
		httpx.WriteError(w, r, oh.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}
