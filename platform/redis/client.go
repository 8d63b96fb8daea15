// Package redis provides the shared redis client infrastructure.
// This is part of the platform layer and contains no business logic.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"healthlens_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// NewClient creates a redis client from the configured URL and verifies
// connectivity with a ping.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := ParseURL(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// ParseURL resolves redis options from config, applying the TLS-insecure
// override used for managed redis with self-signed certificates.
func ParseURL(cfg config.RedisConfig) (*redis.Options, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig != nil {
			opt.TLSConfig.InsecureSkipVerify = true
		} else {
			opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		}
	}

	return opt, nil
}
