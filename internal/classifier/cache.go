package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/heart-intake-server/internal/domain"
)

const redisKeyPrefix = "heart-intake:prediction"

// CachedClassifier memoizes predictions of a deterministic classifier in an
// in-process LRU and, when configured, a shared Redis tier.
type CachedClassifier struct {
	inner domain.Classifier
	local *lru.Cache[string, int]
	redis *redis.Client
	ttl   time.Duration
	log   *logrus.Logger
}

// CacheOption configures a CachedClassifier
type CacheOption func(*CachedClassifier)

// WithRedis adds a shared cache tier in front of the local one.
func WithRedis(client *redis.Client, ttl time.Duration) CacheOption {
	return func(c *CachedClassifier) {
		c.redis = client
		c.ttl = ttl
	}
}

// NewCachedClassifier wraps inner with an LRU of the given size.
func NewCachedClassifier(inner domain.Classifier, size int, logger *logrus.Logger, opts ...CacheOption) (*CachedClassifier, error) {
	local, err := lru.New[string, int](size)
	if err != nil {
		return nil, fmt.Errorf("creating prediction cache: %w", err)
	}

	c := &CachedClassifier{
		inner: inner,
		local: local,
		log:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewRedisClient connects to the shared cache described by config.
func NewRedisClient(ctx context.Context, config domain.CacheConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// Predict returns a cached label when one exists, otherwise asks the wrapped
// classifier and stores the answer. Shared cache failures only cost a miss.
func (c *CachedClassifier) Predict(ctx context.Context, features domain.FeatureVector) (int, error) {
	key := vectorKey(features)

	if label, ok := c.local.Get(key); ok {
		return label, nil
	}

	if c.redis != nil {
		if label, ok := c.getShared(ctx, key); ok {
			c.local.Add(key, label)
			return label, nil
		}
	}

	label, err := c.inner.Predict(ctx, features)
	if err != nil {
		return 0, err
	}

	c.local.Add(key, label)
	if c.redis != nil {
		if err := c.redis.Set(ctx, c.sharedKey(key), label, c.ttl).Err(); err != nil {
			c.log.WithError(err).Warn("Failed to store prediction in shared cache")
		}
	}
	return label, nil
}

// Name returns the wrapped model name.
func (c *CachedClassifier) Name() string {
	return c.inner.Name()
}

// Len reports the number of locally cached predictions.
func (c *CachedClassifier) Len() int {
	return c.local.Len()
}

func (c *CachedClassifier) getShared(ctx context.Context, key string) (int, bool) {
	val, err := c.redis.Get(ctx, c.sharedKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false
	}
	if err != nil {
		c.log.WithError(err).Warn("Failed to read prediction from shared cache")
		return 0, false
	}

	label, err := strconv.Atoi(val)
	if err != nil || (label != domain.OutcomeNegative && label != domain.OutcomePositive) {
		c.redis.Del(ctx, c.sharedKey(key))
		return 0, false
	}
	return label, true
}

func (c *CachedClassifier) sharedKey(key string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, c.inner.Name(), key)
}

// vectorKey hashes the exact bit patterns of the features.
func vectorKey(features domain.FeatureVector) string {
	var buf [domain.FeatureCount * 8]byte
	for i, x := range features {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	sum := sha256.Sum256(buf[:])
	return hex.EncodeToString(sum[:16])
}
