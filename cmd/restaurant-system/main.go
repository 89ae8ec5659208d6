package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restaurant-ordering/internal/app/api"
	"restaurant-ordering/internal/app/kitchen"
	"restaurant-ordering/internal/app/notify"
	"restaurant-ordering/internal/auth"
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/config"
	"restaurant-ordering/internal/connections/database"
)

const modes = "api | kitchen-worker | notification-subscriber | migrate | issue-token"

func main() {
	mode := flag.String("mode", "api", modes)
	configPath := flag.String("config", "", "path to config YAML (default: first of config.yaml, config.yml, deploy/config.example.yaml)")
	port := flag.Int("port", 0, "api: http port (overrides server.port)")
	maxConc := flag.Int("max-concurrent", 0, "api: max concurrent requests (overrides server.max_concurrent)")
	workerName := flag.String("worker-name", "", "kitchen-worker: unique worker name")
	orderTypes := flag.String("order-types", "", "kitchen-worker: comma-separated order types to handle")
	heartbeat := flag.Int("heartbeat-interval", 0, "kitchen-worker: heartbeat interval seconds")
	prefetch := flag.Int("prefetch", 0, "kitchen-worker: RabbitMQ prefetch")
	direction := flag.String("direction", "up", "migrate: up | down")
	steps := flag.Int("steps", 1, "migrate: number of down steps")
	subject := flag.String("subject", "staff", "issue-token: token subject")
	flag.Parse()

	boot := logger.New("bootstrap")

	path := *configPath
	if path == "" {
		if p, err := config.FindConfig(); err == nil {
			path = p
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		boot.Error("config_load_failed", err, map[string]any{"path": path})
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *maxConc != 0 {
		cfg.Server.MaxConcurrent = *maxConc
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "api", "order-service", "tracking-service":
		lg := logger.NewWithLevel("restaurant-api", cfg.Log.Level)
		defer lg.Sync()
		run(lg, api.Run(ctx, cfg, lg))
	case "kitchen-worker":
		if *workerName == "" {
			fmt.Fprintln(os.Stderr, "--worker-name is required for kitchen-worker")
			os.Exit(2)
		}
		lg := logger.NewWithLevel("kitchen-worker", cfg.Log.Level)
		defer lg.Sync()
		run(lg, kitchen.Run(ctx, cfg, kitchen.Options{
			WorkerName: *workerName,
			OrderTypes: *orderTypes,
			Heartbeat:  time.Duration(*heartbeat) * time.Second,
			Prefetch:   *prefetch,
		}, lg))
	case "notification-subscriber":
		lg := logger.NewWithLevel("notification-subscriber", cfg.Log.Level)
		defer lg.Sync()
		run(lg, notify.Run(ctx, cfg, lg))
	case "migrate":
		run(boot, migrate(ctx, cfg, *direction, *steps, boot))
	case "issue-token":
		authn := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if !authn.Enabled() {
			fmt.Fprintln(os.Stderr, "auth.jwt_secret (JWT_SECRET) must be set to issue tokens")
			os.Exit(2)
		}
		token, err := authn.Issue(*subject, auth.RoleStaff)
		run(boot, err)
		fmt.Println(token)
	default:
		fmt.Fprintln(os.Stderr, "--mode must be one of: "+modes)
		os.Exit(2)
	}
}

func run(lg *logger.Logger, err error) {
	if err != nil {
		lg.Error("fatal", err, nil)
		lg.Sync()
		os.Exit(1)
	}
}

func migrate(ctx context.Context, cfg *config.Config, direction string, steps int, lg *logger.Logger) error {
	db, err := database.ConnectDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	switch direction {
	case "up":
		version, err := database.Migrate(db)
		if err != nil {
			return err
		}
		lg.Info("migrated_up", map[string]any{"version": version})
	case "down":
		if err := database.MigrateDown(db, steps); err != nil {
			return err
		}
		lg.Info("migrated_down", map[string]any{"steps": steps})
	default:
		return fmt.Errorf("unknown migrate direction %q", direction)
	}
	return nil
}
