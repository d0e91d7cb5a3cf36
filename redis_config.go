package mediastore

import (
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions returns redis.Options populated from standard environment variables.
//
// Environment variables read (with defaults):
//   - REDIS_ADDR (default: "localhost:6379")
//   - REDIS_PASSWORD (default: "")
//   - REDIS_DB (default: 0)
//   - REDIS_POOL_SIZE (default: 0 = library default)
//   - REDIS_MIN_IDLE_CONNS (default: 0)
//   - REDIS_DIAL_TIMEOUT_MS (default: 0 = library default)
//   - REDIS_READ_TIMEOUT_MS (default: 0 = library default)
//   - REDIS_WRITE_TIMEOUT_MS (default: 0 = library default)
//
// Unparseable numeric variables fall back to their defaults rather than
// failing startup.
//
// Example usage:
//
//	redisClient := redis.NewClient(mediastore.RedisOptions())
//	defer redisClient.Close()
//
//	// Production deployment:
//	// export REDIS_ADDR=redis.prod.example.com:6379
//	// export REDIS_PASSWORD=secret
//	// export REDIS_DB=0
//
// For more complex setups (Cluster, Sentinel, TLS), construct redis.Options
// directly.
func RedisOptions() *redis.Options {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	opts := &redis.Options{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           getEnvAsInt("REDIS_DB", 0),
		PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 0),
		MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 0),
	}

	if ms := getEnvAsInt("REDIS_DIAL_TIMEOUT_MS", 0); ms > 0 {
		opts.DialTimeout = time.Duration(ms) * time.Millisecond
	}
	if ms := getEnvAsInt("REDIS_READ_TIMEOUT_MS", 0); ms > 0 {
		opts.ReadTimeout = time.Duration(ms) * time.Millisecond
	}
	if ms := getEnvAsInt("REDIS_WRITE_TIMEOUT_MS", 0); ms > 0 {
		opts.WriteTimeout = time.Duration(ms) * time.Millisecond
	}

	return opts
}

// RedisOptionsWithOverrides returns redis.Options with explicit overrides for
// common parameters. Pass empty/zero values to keep the environment-derived
// settings.
//
// Example - application config with environment fallback:
//
//	opts := mediastore.RedisOptionsWithOverrides(
//	    cfg.RedisAddr,     // Use config if present, else env var
//	    cfg.RedisPassword, // Use config if present, else env var
//	    10,                // App-specific pool size
//	    5,                 // App-specific min idle
//	)
//	redisClient := redis.NewClient(opts)
func RedisOptionsWithOverrides(addr, password string, poolSize, minIdleConns int) *redis.Options {
	// Start with environment-based config
	opts := RedisOptions()

	// Override with explicit values if provided
	if addr != "" {
		opts.Addr = addr
	}
	if password != "" {
		opts.Password = password
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	if minIdleConns > 0 {
		opts.MinIdleConns = minIdleConns
	}

	return opts
}

// getEnvAsInt reads an integer environment variable with a default fallback.
func getEnvAsInt(key string, defaultVal int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultVal
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultVal
	}

	return value
}
