package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Server struct {
	Port int
	// PprofPort enables the debug pprof listener when non-zero
	PprofPort int
	// PprofContention also samples block and mutex contention. Adds
	// overhead to every contended lock.
	PprofContention bool
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type RateLimit struct {
	MaxTokens  int
	RefillRate int
}

type Settlement struct {
	// TransferURL is the payments API payment legs are posted to. Empty
	// means legs are only written to the structured log.
	TransferURL string
}

type Config struct {
	Server         Server
	Redis          Redis
	RateLimit      RateLimit
	Settlement     Settlement
	AllowedOrigins []string
}

func Default() Config {
	return Config{
		Server: Server{Port: 8080},
		Redis: Redis{
			Addr: "localhost:6379",
		},
		RateLimit: RateLimit{
			MaxTokens:  100,
			RefillRate: 10,
		},
		AllowedOrigins: []string{"*"},
	}
}

// LoadFromEnv loads configuration from .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv() Config {
	cfg := Default()

	_ = godotenv.Load()

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if port := os.Getenv("PPROF_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.PprofPort = p
		}
	}
	if contention := os.Getenv("PPROF_CONTENTION"); contention == "true" || contention == "1" {
		cfg.Server.PprofContention = true
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.Redis.DB = n
		}
	}

	if tokens := os.Getenv("RATE_LIMIT_MAX_TOKENS"); tokens != "" {
		if n, err := strconv.Atoi(tokens); err == nil {
			cfg.RateLimit.MaxTokens = n
		}
	}
	if refill := os.Getenv("RATE_LIMIT_REFILL_RATE"); refill != "" {
		if n, err := strconv.Atoi(refill); err == nil {
			cfg.RateLimit.RefillRate = n
		}
	}

	if url := os.Getenv("TRANSFER_URL"); url != "" {
		cfg.Settlement.TransferURL = url
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}

	return cfg
}
