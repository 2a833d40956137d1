// Package redis implements the shared external store on Redis Stack: plain keys for
// the consistency flag, checkpoints and token metadata, a sorted set for token ranks
// and RedisTimeSeries for price samples.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Key layout.
const (
	keyFlag           = "indexer_consistency_flag"
	keyRanks          = "token_counter"
	keyInitialized    = "price_cache_initialized"
	keySeriesPrefix   = "ts:price:"
	keyCursorPrefix   = "verifier_cursor:"
	keyMetadataPrefix = "token_details:"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client and verifies the connection.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// isMissingKey reports whether a module command failed because the key does not exist.
func isMissingKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "key does not exist")
}

// isNil reports whether err is a nil reply.
func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// toInt64 converts a RESP2 or RESP3 reply element to an integer.
func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected integer reply %T", v)
	}
}

// toFloat64 converts a RESP2 or RESP3 reply element to a float.
func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("unexpected float reply %T", v)
	}
}
