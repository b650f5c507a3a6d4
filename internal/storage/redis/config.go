package redis

// Config holds Redis connection configuration
type Config struct {
	// URL is the Redis connection URL (redis://host:port/db)
	URL string

	// PoolSize is the maximum number of connections
	PoolSize int

	// MinIdleConns is the minimum number of idle connections
	MinIdleConns int

	// MaxTxRetries bounds optimistic-transaction retries on contended
	// purchase/credit operations before giving up.
	MaxTxRetries int
}

// DefaultConfig returns default Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379/0",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxTxRetries: 5,
	}
}
