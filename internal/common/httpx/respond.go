package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/domain"
)

const maxBodyBytes = 1 << 20

// WriteJSON sends v with the given status.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteProblem is the single error format (simplified RFC 7807).
func WriteProblem(w http.ResponseWriter, code int, typ, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}

// WriteError maps domain errors onto problem responses. Anything unknown is
// logged and reported as 500 without leaking the cause.
func WriteError(w http.ResponseWriter, r *http.Request, lg *logger.Logger, err error) {
	var verr domain.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteProblem(w, http.StatusBadRequest, "validation_error", verr.Error())
	case errors.Is(err, domain.ErrNotFound):
		WriteProblem(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		WriteProblem(w, http.StatusConflict, "conflict", err.Error())
	default:
		lg.Ctx(r.Context()).Error("request_failed", err, map[string]any{"method": r.Method, "path": r.URL.Path})
		WriteProblem(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// DecodeJSON reads a bounded JSON body into v. Decoding failures come back as
// validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "request body is empty")
		}
		return domain.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// QueryInt parses key from the query string, falling back to d.
func QueryInt(r *http.Request, key string, d int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}
