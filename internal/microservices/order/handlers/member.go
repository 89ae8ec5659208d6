package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"restaurant-ordering/internal/auth"
	"restaurant-ordering/internal/common/httpx"
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/domain"
	"restaurant-ordering/internal/microservices/order/service"
)

type MemberHandler struct {
	service service.MemberServiceInterface
	lg      *logger.Logger
}

func NewMemberHandler(s service.MemberServiceInterface, lg *logger.Logger) *MemberHandler {
	return &MemberHandler{service: s, lg: lg}
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.List(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, members)
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Get(r.Context(), mux.Vars(r)["phone"])
	if err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, m)
}

func (h *MemberHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterMemberRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	m, err := h.service.Register(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, m)
}

func (h *MemberHandler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	var req domain.AdjustPointsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	m, err := h.service.AdjustPoints(r.Context(), mux.Vars(r)["phone"], req, auth.Actor(r.Context(), "staff"))
	if err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, m)
}
