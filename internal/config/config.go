package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Update cycle
	UpdateInterval   time.Duration
	UpdateSchedule   string
	CycleConcurrency int
	HistoryCap       int
	SeedCatalog      bool

	// Simulation
	Simulation SimulationConfig

	// Trading
	StartingBalance   float64
	MaxDeposit        float64
	TransactionsLimit int

	// Admin endpoints
	AdminAPIKey string

	// Redis (graph data cache, optional)
	RedisURL        string
	HistoryCacheTTL time.Duration

	// Kafka (event sink, optional)
	KafkaBrokers []string
	KafkaTopic   string

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int
}

// SimulationConfig holds the price simulator parameters.
type SimulationConfig struct {
	StockVolatility float64
	FundVolatility  float64
	FloorRatio      float64
	CeilingRatio    float64
	StockBaseVolume int64
	FundBaseVolume  int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "papertrade"),
		DBPassword: getEnv("DB_PASSWORD", "papertrade"),
		DBName:     getEnv("DB_NAME", "papertrade"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "papertrade.db"),

		// JWT
		JWTSecret:        getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		JWTExpirationDur: getDuration("JWT_EXPIRES_IN", 24*time.Hour),

		// Update cycle
		UpdateInterval:   getDuration("UPDATE_INTERVAL", 10*time.Minute),
		UpdateSchedule:   getEnv("UPDATE_SCHEDULE", ""),
		CycleConcurrency: getInt("CYCLE_CONCURRENCY", 4),
		HistoryCap:       getInt("HISTORY_CAP", 2000),
		SeedCatalog:      getBool("SEED_CATALOG", true),

		Simulation: SimulationConfig{
			StockVolatility: getFloat("STOCK_VOLATILITY", 0.04),
			FundVolatility:  getFloat("FUND_VOLATILITY", 0.02),
			FloorRatio:      getFloat("PRICE_FLOOR_RATIO", 0.3),
			CeilingRatio:    getFloat("PRICE_CEILING_RATIO", 3.0),
			StockBaseVolume: int64(getInt("STOCK_BASE_VOLUME", 200000)),
			FundBaseVolume:  int64(getInt("FUND_BASE_VOLUME", 75000)),
		},

		// Trading
		StartingBalance:   getFloat("STARTING_BALANCE", 150000),
		MaxDeposit:        getFloat("MAX_DEPOSIT", 1000000),
		TransactionsLimit: getInt("TRANSACTIONS_LIMIT", 50),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		RedisURL:        getEnv("REDIS_URL", ""),
		HistoryCacheTTL: getDuration("HISTORY_CACHE_TTL", time.Minute),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "papertrade.events"),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 10),
	}

	if config.HistoryCap < 1 {
		log.Printf("Warning: HISTORY_CAP must be positive, falling back to 2000\n")
		config.HistoryCap = 2000
	}
	if config.CycleConcurrency < 1 {
		config.CycleConcurrency = 1
	}
	if config.Simulation.FloorRatio <= 0 || config.Simulation.CeilingRatio <= config.Simulation.FloorRatio {
		log.Printf("Warning: invalid price clamp ratios, falling back to 0.3/3.0\n")
		config.Simulation.FloorRatio = 0.3
		config.Simulation.CeilingRatio = 3.0
	}

	return config, nil
}

// PostgresDSN returns the key/value connection string used by gorm.
func (c *Config) PostgresDSN() string {
	return "host=" + c.DBHost + " port=" + c.DBPort + " user=" + c.DBUser +
		" password=" + c.DBPassword + " dbname=" + c.DBName + " sslmode=" + c.DBSSLMode
}

// PostgresURL returns the URL form used by golang-migrate.
func (c *Config) PostgresURL() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort +
		"/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func getFloat(key string, defaultValue float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %g\n", key, raw, defaultValue)
		return defaultValue
	}
	return f
}

func getBool(key string, defaultValue bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %t\n", key, raw, defaultValue)
		return defaultValue
	}
	return b
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
