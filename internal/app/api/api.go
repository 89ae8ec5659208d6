// Package api runs the HTTP mode: menu, members, orders, tracking and the
// websocket board behind one router.
package api

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"restaurant-ordering/internal/app"
	"restaurant-ordering/internal/auth"
	"restaurant-ordering/internal/common/httpx"
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/common/metrics"
	"restaurant-ordering/internal/config"
	"restaurant-ordering/internal/connections/rabbitmq"
	"restaurant-ordering/internal/events"
	"restaurant-ordering/internal/microservices/order"
	orderhandlers "restaurant-ordering/internal/microservices/order/handlers"
	orderservice "restaurant-ordering/internal/microservices/order/service"
	"restaurant-ordering/internal/microservices/tracker"
	trackerhandler "restaurant-ordering/internal/microservices/tracker/handler"
	trackerservice "restaurant-ordering/internal/microservices/tracker/service"
	"restaurant-ordering/internal/pricing"
	"restaurant-ordering/internal/repository"
	"restaurant-ordering/internal/ticket"
)

type Deps struct {
	Config    *config.Config
	Store     repository.Store
	Tickets   ticket.Sequencer
	Publisher events.Publisher
	Hub       *trackerservice.Hub
	Auth      *auth.Authenticator
	Rules     pricing.Rules
	Checks    map[string]httpx.Check
	Logger    *logger.Logger
}

// NewRouter builds the complete handler tree, CORS included.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	r := mux.NewRouter()
	r.Use(httpx.RequestLogger(d.Logger))

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", httpx.Health("restaurant-api", d.Checks)).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(httpx.MaxConcurrent(cfg.Server.MaxConcurrent))

	svc := orderservice.New(orderservice.Deps{
		Store:     d.Store,
		Tickets:   d.Tickets,
		Publisher: d.Publisher,
		Rules:     d.Rules,
		UploadDir: cfg.Server.UploadDir,
		Logger:    d.Logger,
	})
	var limiter *rate.Limiter
	if cfg.Server.OrderRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Server.OrderRate), cfg.Server.OrderBurst)
	}
	order.Mount(api, orderhandlers.New(svc, d.Logger), order.Guards{
		Staff:     d.Auth.Require(auth.RoleStaff),
		Placement: httpx.RateLimit(limiter),
	})

	tracker.Mount(r, api, trackerhandler.New(trackerservice.NewTrackerService(d.Store), d.Hub, d.Logger))

	if cfg.Server.UploadDir != "" {
		r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.Server.UploadDir))))
	}
	if cfg.Server.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.Server.StaticDir)))
	}

	return httpx.CORS(cfg.Server.CORSOrigins)(r)
}

// Run opens every configured backend and serves until ctx ends.
func Run(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	res := &app.Resources{}
	defer res.Close()

	if err := app.OpenStore(ctx, cfg, lg, res); err != nil {
		return err
	}
	rules, err := app.Rules(cfg)
	if err != nil {
		return err
	}
	tickets, err := app.Tickets(ctx, cfg, lg, res)
	if err != nil {
		return err
	}
	if cfg.Server.UploadDir != "" {
		if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
			return err
		}
	}

	hub := trackerservice.NewHub(cfg.Server.CORSOrigins, lg)
	checks := map[string]httpx.Check{"store": res.Store.Ping}

	// With a broker the hub is fed from the fanout exchange so every replica
	// sees every change; without one it listens to this process directly.
	var pub events.Publisher = events.Multi{hub}
	if cfg.RabbitMQEnabled() {
		if err := app.DialRabbit(ctx, cfg, lg, res); err != nil {
			return err
		}
		pub = events.NewRabbitPublisher(res.Rabbit, "api")
		deliveries, err := res.Rabbit.SubscribeFanout(rabbitmq.NotificationsExchange, "api-tracker")
		if err != nil {
			return err
		}
		go hub.Relay(ctx, deliveries)
		checks["rabbitmq"] = func(context.Context) error { return res.Rabbit.Ping() }
	}
	if res.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return res.Redis.Ping(ctx).Err() }
	}

	authn := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if !authn.Enabled() {
		lg.Warn("auth_disabled", map[string]any{"reason": "auth.jwt_secret is empty"})
	}

	handler := NewRouter(Deps{
		Config:    cfg,
		Store:     res.Store,
		Tickets:   tickets,
		Publisher: pub,
		Hub:       hub,
		Auth:      authn,
		Rules:     rules,
		Checks:    checks,
		Logger:    lg,
	})

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	lg.Info("service_started", map[string]any{
		"addr":           addr,
		"storage":        cfg.Storage.Driver,
		"rabbitmq":       cfg.RabbitMQEnabled(),
		"max_concurrent": cfg.Server.MaxConcurrent,
	})
	return httpx.New(addr, handler).Run(ctx)
}
