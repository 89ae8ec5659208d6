package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"restaurant-ordering/internal/common/httpx"
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/domain"
	"restaurant-ordering/internal/microservices/order/service"
	"restaurant-ordering/internal/repository"
)

type MenuHandler struct {
	service service.MenuServiceInterface
	lg      *logger.Logger
}

func NewMenuHandler(s service.MenuServiceInterface, lg *logger.Logger) *MenuHandler {
	return &MenuHandler{service: s, lg: lg}
}

func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	availableOnly, _ := strconv.ParseBool(q.Get("available"))
	items, err := h.service.List(r.Context(), repository.MenuFilter{
		Category:      q.Get("category"),
		AvailableOnly: availableOnly,
	})
	if err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, item)
}

func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMenuItemRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	item, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	w.Header().Set("Location", "/api/menu/"+item.ID)
	httpx.WriteJSON(w, http.StatusCreated, item)
}

func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateMenuItemRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	item, err := h.service.Update(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, item)
}

func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage takes a multipart form with the file in the "image" field.
func (h *MenuHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxImageBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteProblem(w, http.StatusRequestEntityTooLarge, "too_large", "image must be at most 5 MiB")
			return
		}
		httpx.WriteProblem(w, http.StatusBadRequest, "validation_error", "expected multipart/form-data with an image field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "validation_error", "image: file field is required")
		return
	}
	defer file.Close()

	item, err := h.service.UploadImage(r.Context(), mux.Vars(r)["id"], file)
	if err != nil {
		httpx.WriteError(w, r, h.lg, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, item)
}
