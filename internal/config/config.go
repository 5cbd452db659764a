package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the service
type Config struct {
	Service    ServiceConfig
	Database   DatabaseConfig
	Ledger     LedgerConfig
	Cache      CacheConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	OddsAPI    OddsAPIConfig
	Settlement SettlementConfig
	HTTP       HTTPConfig
	Logging    LoggingConfig
}

// ServiceConfig holds service-level configuration
type ServiceConfig struct {
	Name        string
	Environment string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	URL      string
}

// LedgerConfig selects the wallet/bet storage backend
type LedgerConfig struct {
	Driver         string // "postgres" or "memory"
	InitialBalance decimal.Decimal
}

// CacheConfig selects the odds cache backend
type CacheConfig struct {
	Driver      string // "memory", "redis", "sqlite" or "postgres"
	SQLitePath  string
	StaleWindow time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds Kafka broker configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
}

// OddsAPIConfig holds the remote odds provider settings
type OddsAPIConfig struct {
	BaseURL string
	APIKey  string
	Regions string
	Timeout time.Duration
	Sports  []string // sport keys the markets API serves
}

// SettlementConfig tunes the settlement worker
type SettlementConfig struct {
	PollInterval time.Duration
	Lease        time.Duration
	BatchSize    int
	Concurrency  int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "console"
}

var defaultSports = []string{
	"upcoming",
	"soccer_epl",
	"soccer_spain_la_liga",
	"soccer_germany_bundesliga",
	"soccer_italy_serie_a",
	"soccer_france_ligue_one",
	"soccer_uefa_champs_league",
	"basketball_nba",
	"americanfootball_nfl",
	"icehockey_nhl",
	"baseball_mlb",
	"mma_mixed_martial_arts",
}

// LoadConfig loads configuration from a .env file (if present) and
// environment variables with defaults
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	initialBalance, err := decimal.NewFromString(getEnv("WALLET_INITIAL_BALANCE", "10000"))
	if err != nil {
		return nil, fmt.Errorf("invalid WALLET_INITIAL_BALANCE: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "bet-simulator-service"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "betsim"),
		},
		Ledger: LedgerConfig{
			Driver:         getEnv("LEDGER_DRIVER", "postgres"),
			InitialBalance: initialBalance,
		},
		Cache: CacheConfig{
			Driver:      getEnv("CACHE_DRIVER", "sqlite"),
			SQLitePath:  getEnv("CACHE_SQLITE_PATH", "odds_cache.db"),
			StaleWindow: getEnvDuration("CACHE_STALE_WINDOW", 15*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
		},
		OddsAPI: OddsAPIConfig{
			BaseURL: getEnv("ODDS_API_BASE_URL", "https://api.the-odds-api.com/v4"),
			APIKey:  getEnv("ODDS_API_KEY", ""),
			Regions: getEnv("ODDS_API_REGIONS", "uk,eu"),
			Timeout: getEnvDuration("ODDS_API_TIMEOUT", 30*time.Second),
			Sports:  getEnvSlice("ODDS_API_SPORTS", defaultSports),
		},
		Settlement: SettlementConfig{
			PollInterval: getEnvDuration("SETTLEMENT_POLL_INTERVAL", 10*time.Second),
			Lease:        getEnvDuration("SETTLEMENT_LEASE", 2*time.Minute),
			BatchSize:    getEnvInt("SETTLEMENT_BATCH_SIZE", 50),
			Concurrency:  getEnvInt("SETTLEMENT_CONCURRENCY", 4),
		},
		HTTP: HTTPConfig{
			Port: getEnvInt("HTTP_PORT", 8080),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Build database URL
	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects unsupported driver selections and nonsensical values
func (c *Config) Validate() error {
	switch c.Ledger.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported LEDGER_DRIVER %q", c.Ledger.Driver)
	}

	switch c.Cache.Driver {
	case "memory", "redis", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported CACHE_DRIVER %q", c.Cache.Driver)
	}

	if c.Ledger.InitialBalance.IsNegative() {
		return fmt.Errorf("WALLET_INITIAL_BALANCE must not be negative")
	}
	if !models.FitsMoneyScale(c.Ledger.InitialBalance) {
		return fmt.Errorf("WALLET_INITIAL_BALANCE must have at most %d decimal places", models.MoneyPlaces)
	}
	if len(c.OddsAPI.Sports) == 0 {
		return fmt.Errorf("ODDS_API_SPORTS must list at least one sport")
	}
	if c.Settlement.Concurrency < 1 {
		return fmt.Errorf("SETTLEMENT_CONCURRENCY must be at least 1")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration parses values like "30s" or "15m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvSlice gets a comma-separated environment variable as a slice
func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	return defaultValue
}
