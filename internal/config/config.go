package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Bookmark view
	PageSize         int           // fixed page length for queries and feed-driven trimming
	ReconnectBackoff time.Duration // wait before re-subscribing after a feed disruption
	ReloadDelay      time.Duration // debounce before corrective reloads after a mutation
	PageBackDelay    time.Duration // wait before navigating back after emptying a page
	NoticeTTL        time.Duration // how long a status notice stays visible

	// Auth
	JWTSecret string // HS256 key used to verify bearer tokens

	// Seeding (optional, empty file = disabled)
	SeedFile     string        // path to a YAML file of bookmarks to import
	SeedInterval time.Duration // interval between seed re-imports

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (grows exponentially)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisWarnThreshold  int           // warn after this many attempts

	// Rate limiting
	RateBurst        int // token bucket capacity per client IP
	RateRefillPerMin int // tokens refilled per minute per client IP
	RateLimitEntries int // max tracked client IPs
	TrustProxy       bool
}

func Load() *Config {
	// Best effort: a missing .env file is fine in production.
	_ = godotenv.Load()

	cfg := &Config{
		// Server settings
		ListenAddr:      getenv("MARKS_LISTEN_ADDR", ":8080"),
		ShutdownTimeout: mustDuration("MARKS_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("MARKS_LOG_LEVEL", "info"),
		PrettyLog: mustBool("MARKS_PRETTY_LOG", false),

		// Bookmark view
		PageSize:         getenvInt("MARKS_PAGE_SIZE", 10),
		ReconnectBackoff: mustDuration("MARKS_RECONNECT_BACKOFF", 2*time.Second),
		ReloadDelay:      mustDuration("MARKS_RELOAD_DELAY", 100*time.Millisecond),
		PageBackDelay:    mustDuration("MARKS_PAGE_BACK_DELAY", 300*time.Millisecond),
		NoticeTTL:        mustDuration("MARKS_NOTICE_TTL", 3*time.Second),

		// Auth
		JWTSecret: requireEnv("MARKS_JWT_SECRET"),

		// Seeding
		SeedFile:     getenv("MARKS_SEED_FILE", ""),
		SeedInterval: mustDuration("MARKS_SEED_INTERVAL", 24*time.Hour),

		// Redis settings
		RedisAddr:           requireEnv("MARKS_REDIS_ADDR"),
		RedisUser:           getenv("MARKS_REDIS_USERNAME", "default"),
		RedisPassword:       getenv("MARKS_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("MARKS_REDIS_DB", 0),
		RedisDT:             mustDuration("MARKS_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("MARKS_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("MARKS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:       getenvInt("MARKS_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("MARKS_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("MARKS_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisMaxWait:        mustDuration("MARKS_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("MARKS_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisWarnThreshold:  getenvInt("MARKS_REDIS_WARN_THRESHOLD", 3),

		// Rate limiting
		RateBurst:        getenvInt("MARKS_RATE_BURST", 30),
		RateRefillPerMin: getenvInt("MARKS_RATE_REFILL_PER_MIN", 60),
		RateLimitEntries: getenvInt("MARKS_RATE_MAX_ENTRIES", 10000),
		TrustProxy:       mustBool("MARKS_TRUST_PROXY", false),
	}

	if cfg.PageSize < 1 {
		panic(fmt.Sprintf("❌ FATAL: MARKS_PAGE_SIZE must be >= 1, got %d", cfg.PageSize))
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
