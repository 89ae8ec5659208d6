package order

import (
	"net/http"

	"github.com/gorilla/mux"

	"restaurant-ordering/internal/microservices/order/handlers"
)

// Guards are applied per route: Staff on catalog, points and status mutations,
// Placement on order creation.
type Guards struct {
	Staff     mux.MiddlewareFunc
	Placement mux.MiddlewareFunc
}

func passthrough(next http.Handler) http.Handler { return next }

// Mount registers the menu, member and order endpoints on api (the /api subrouter).
func Mount(api *mux.Router, h *handlers.Handler, g Guards) {
	if g.Staff == nil {
		g.Staff = passthrough
	}
	if g.Placement == nil {
		g.Placement = passthrough
	}
	staff := func(fn http.HandlerFunc) http.Handler { return g.Staff(fn) }

	mh := h.MenuHandler
	api.HandleFunc("/menu", mh.List).Methods(http.MethodGet)
	api.HandleFunc("/menu/{id}", mh.Get).Methods(http.MethodGet)
	api.Handle("/menu", staff(mh.Create)).Methods(http.MethodPost)
	api.Handle("/menu/{id}", staff(mh.Update)).Methods(http.MethodPut)
	api.Handle("/menu/{id}", staff(mh.Delete)).Methods(http.MethodDelete)
	api.Handle("/menu/{id}/image", staff(mh.UploadImage)).Methods(http.MethodPost)

	mb := h.MemberHandler
	api.HandleFunc("/members", mb.List).Methods(http.MethodGet)
	api.HandleFunc("/members", mb.Register).Methods(http.MethodPost)
	api.HandleFunc("/members/{phone}", mb.Get).Methods(http.MethodGet)
	api.Handle("/members/{phone}/points", staff(mb.AdjustPoints)).Methods(http.MethodPost)

	oh := h.OrderHandler
	api.HandleFunc("/orders/quote", oh.Quote).Methods(http.MethodPost)
	api.Handle("/orders", g.Placement(http.HandlerFunc(oh.AddOrder))).Methods(http.MethodPost)
	api.HandleFunc("/orders", oh.List).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", oh.Get).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/history", oh.History).Methods(http.MethodGet)
	api.Handle("/orders/{id}/status", staff(oh.UpdateStatus)).Methods(http.MethodPatch)
}
