package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every application setting. Values come from the YAML file,
// then from the environment (optionally seeded by a .env file).
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
	Loyalty  LoyaltyConfig  `yaml:"loyalty"`
	Auth     AuthConfig     `yaml:"auth"`
	Kitchen  KitchenConfig  `yaml:"kitchen"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host          string   `yaml:"host" env:"HOST"`
	Port          int      `yaml:"port" env:"PORT"`
	MaxConcurrent int      `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	OrderRate     float64  `yaml:"order_rate" env:"ORDER_RATE"`
	OrderBurst    int      `yaml:"order_burst" env:"ORDER_BURST"`
	UploadDir     string   `yaml:"upload_dir" env:"UPLOAD_DIR"`
	StaticDir     string   `yaml:"static_dir" env:"STATIC_DIR"`
	CORSOrigins   []string `yaml:"cors_origins"`
}

type StorageConfig struct {
	Driver   string `yaml:"driver" env:"STORAGE_DRIVER"` // memory | json | postgres
	JSONPath string `yaml:"json_path" env:"STORAGE_JSON_PATH"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Database string `yaml:"database" env:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSL_MODE"`
	MaxConns int    `yaml:"max_conns" env:"DB_MAX_CONNS"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host" env:"RABBITMQ_HOST"`
	Port     int    `yaml:"port" env:"RABBITMQ_PORT"`
	User     string `yaml:"user" env:"RABBITMQ_USER"`
	Password string `yaml:"password" env:"RABBITMQ_PASSWORD"`
	VHost    string `yaml:"vhost" env:"RABBITMQ_VHOST"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type LoyaltyConfig struct {
	PointValue      string `yaml:"point_value" env:"LOYALTY_POINT_VALUE"`
	PointsPerAmount string `yaml:"points_per_amount" env:"LOYALTY_POINTS_PER_AMOUNT"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL"`
}

type KitchenConfig struct {
	CookTime          time.Duration `yaml:"cook_time" env:"KITCHEN_COOK_TIME"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"KITCHEN_HEARTBEAT_INTERVAL"`
	Prefetch          int           `yaml:"prefetch" env:"KITCHEN_PREFETCH"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:          "",
			Port:          3000,
			MaxConcurrent: 50,
			OrderRate:     20,
			OrderBurst:    40,
			UploadDir:     "uploads",
		},
		Storage:  StorageConfig{Driver: "memory", JSONPath: "data/store.json"},
		Database: DatabaseConfig{Port: 5432, SSLMode: "disable", MaxConns: 10},
		RabbitMQ: RabbitMQConfig{Port: 5672, VHost: "/"},
		Loyalty:  LoyaltyConfig{PointValue: "1", PointsPerAmount: "10"},
		Auth:     AuthConfig{TokenTTL: 12 * time.Hour},
		Kitchen:  KitchenConfig{CookTime: 10 * time.Second, HeartbeatInterval: 30 * time.Second, Prefetch: 1},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads path (a missing file is fine), then .env, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "json":
	case "postgres":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "" {
			return errors.New("invalid config: postgres storage needs database host, user and database")
		}
	default:
		return fmt.Errorf("invalid config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "json" && c.Storage.JSONPath == "" {
		return errors.New("invalid config: json storage needs storage.json_path")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: port %d out of range", c.Server.Port)
	}
	return nil
}

// DatabaseURL returns a postgres URL usable by both the pgx driver and migrate.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database, c.Database.SSLMode)
}

func (c *Config) RabbitMQURL() string {
	vhost := strings.TrimPrefix(c.RabbitMQ.VHost, "/")
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port, vhost)
}

func (c *Config) RabbitMQEnabled() bool { return c.RabbitMQ.Host != "" }

func (c *Config) RedisEnabled() bool { return c.Redis.Addr != "" }

// FindConfig returns the first config file that exists.
func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "config.yml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
