// Package redis caches access tokens and recent hash rate samples in Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenPrefix    = "token:"
	hashratePrefix = "hashrate:"
	counterPrefix  = "solves:"
)

// Client wraps Redis operations for the IronShield client
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration
type Config struct {
	// URL is a redis:// or rediss:// URL; the fields below override it when set.
	URL          string
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns connection settings for url
func DefaultConfig(url string) *Config {
	return &Config{
		URL:          url,
		PoolSize:     4,
		MinIdleConns: 1,
		MaxRetries:   2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewClient creates a new Redis client
func NewClient(cfg *Config) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

func options(cfg *Config) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks Redis connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Tokens

// SetToken caches a token for an endpoint until ttl elapses
func (c *Client) SetToken(ctx context.Context, endpoint string, token any, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("token already expired")
	}

	jsonData, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := c.rdb.Set(ctx, TokenKey(endpoint), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token: %w", err)
	}

	return nil
}

// GetToken loads the cached token for an endpoint into dest. It reports false
// on a cache miss.
func (c *Client) GetToken(ctx context.Context, endpoint string, dest any) (bool, error) {
	jsonData, err := c.rdb.Get(ctx, TokenKey(endpoint)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get token: %w", err)
	}

	if err := json.Unmarshal([]byte(jsonData), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return true, nil
}

// DeleteToken drops the cached token for an endpoint
func (c *Client) DeleteToken(ctx context.Context, endpoint string) error {
	if err := c.rdb.Del(ctx, TokenKey(endpoint)).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Statistics

// IncrementSolveCount bumps the solve counter for a website
func (c *Client) IncrementSolveCount(ctx context.Context, websiteID string, expiration time.Duration) (int64, error) {
	key := counterPrefix + websiteID
	pipe := c.rdb.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiration)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	return incrCmd.Val(), nil
}

// AddHashrateSample records a hash rate measurement for a website and trims
// samples older than window
func (c *Client) AddHashrateSample(ctx context.Context, websiteID string, hashRate uint64, window time.Duration) error {
	key := HashrateKey(websiteID)
	now := time.Now()

	member := redis.Z{
		Score:  float64(now.Unix()),
		Member: hashrateMember(now, hashRate),
	}

	pipe := c.rdb.Pipeline()
	pipe.ZAdd(ctx, key, member)
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now.Add(-window).Unix(), 10))
	pipe.Expire(ctx, key, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add hashrate sample: %w", err)
	}

	return nil
}

// AverageHashrate averages the samples recorded for a website within window
func (c *Client) AverageHashrate(ctx context.Context, websiteID string, window time.Duration) (float64, error) {
	values, err := c.rdb.ZRangeByScore(ctx, HashrateKey(websiteID), &redis.ZRangeBy{
		Min: strconv.FormatInt(time.Now().Add(-window).Unix(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get hashrate samples: %w", err)
	}

	return averageSamples(values), nil
}

// TokenKey is the cache key for an endpoint's token
func TokenKey(endpoint string) string {
	return tokenPrefix + endpoint
}

// HashrateKey is the sorted set holding a website's hash rate samples
func HashrateKey(websiteID string) string {
	return hashratePrefix + websiteID
}

// Sorted set members must be unique, so each sample carries its timestamp.
func hashrateMember(at time.Time, hashRate uint64) string {
	return strconv.FormatInt(at.UnixNano(), 10) + ":" + strconv.FormatUint(hashRate, 10)
}

func averageSamples(members []string) float64 {
	var total float64
	var n int
	for _, m := range members {
		_, value, ok := strings.Cut(m, ":")
		if !ok {
			continue
		}
		if rate, err := strconv.ParseFloat(value, 64); err == nil {
			total += rate
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
