package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionPrefix = "ledger:version"

// Cache stores fetched transaction lists in Redis under per-buyer versioned keys.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, logger: slog.Default()}
}

// WithLogger sets the logger used for write failures.
func (c *Cache) WithLogger(logger *slog.Logger) *Cache {
	if c != nil && logger != nil {
		c.logger = logger
	}
	return c
}

// CacheScope names the namespace of cached entries. Sessions without a tenant
// are scoped by a hash of their token so opaque tokens never share entries.
func CacheScope(tenantID, token string) string {
	if tenantID != "" {
		return tenantID
	}
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return "tok-" + hex.EncodeToString(sum[:8])
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Version returns the buyer's cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, scope, buyerID string) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	key := versionKey(scope, buyerID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, key, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// TransactionsKey composes the cache key for a buyer range query.
func (c *Cache) TransactionsKey(ctx context.Context, scope, buyerID string, rng DateRange) (string, error) {
	base := strings.Join([]string{
		"ledger", "txns", scopeToken(scope), buyerID,
		rng.From.Format(time.RFC3339), rng.To.Format(time.RFC3339),
	}, ":")
	if !c.enabled() {
		return base, nil
	}
	ver, err := c.Version(ctx, scope, buyerID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", base, ver), nil
}

// FetchTransactions loads a cached list or populates it using the loader.
func (c *Cache) FetchTransactions(ctx context.Context, key string, loader func(context.Context) ([]Transaction, error)) ([]Transaction, error) {
	if loader == nil {
		return nil, errors.New("ledger: cache loader required")
	}
	if !c.enabled() {
		return loader(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var txns []Transaction
		if err := json.Unmarshal(payload, &txns); err == nil {
			return txns, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}
	txns, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.StoreTransactions(ctx, key, txns); err != nil {
		c.logger.Warn("ledger cache store", slog.String("key", key), slog.Any("error", err))
	}
	return txns, nil
}

// StoreTransactions writes txns under key with the configured TTL.
func (c *Cache) StoreTransactions(ctx context.Context, key string, txns []Transaction) error {
	if !c.enabled() {
		return nil
	}
	raw, err := json.Marshal(txns)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Bump invalidates every cached range of a buyer.
func (c *Cache) Bump(ctx context.Context, scope, buyerID string) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, versionKey(scope, buyerID)).Err()
}

func versionKey(scope, buyerID string) string {
	return strings.Join([]string{cacheVersionPrefix, scopeToken(scope), buyerID}, ":")
}

func scopeToken(scope string) string {
	if scope == "" {
		return "default"
	}
	return scope
}
