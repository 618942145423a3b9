package redis

import (
	"time"

	"print-order-service/internal/config"

	goredis "github.com/redis/go-redis/v9"
)

// NewClient returns nil when no address is configured; callers treat a nil
// client as "protection disabled".
func NewClient(cfg config.Redis) *goredis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     200,
		MinIdleConns: 20,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
}
