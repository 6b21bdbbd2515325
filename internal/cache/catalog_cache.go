package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/almazaya/travel-backend/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// opTimeout bounds every cache round trip so a slow redis never slows the catalog
const opTimeout = 3 * time.Second

const (
	activePackagesKey = "catalog:packages:active"
	packageKeyPrefix  = "catalog:package:"
)

// CatalogCache caches the public package catalog. A miss or a cache error
// is reported as ok=false and the caller reads the database.
type CatalogCache interface {
	GetActivePackages(ctx context.Context) ([]models.TripPackage, bool)
	SetActivePackages(ctx context.Context, packages []models.TripPackage)
	GetPackage(ctx context.Context, id int64) (*models.TripPackage, bool)
	SetPackage(ctx context.Context, pkg *models.TripPackage)
	Invalidate(ctx context.Context, packageIDs ...int64)
}

// RedisCatalogCache stores JSON-encoded catalog entries under a key prefix
type RedisCatalogCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisCatalogCache creates a cache over an existing client
func NewRedisCatalogCache(client *redis.Client, prefix string, ttl time.Duration, logger *logrus.Logger) *RedisCatalogCache {
	return &RedisCatalogCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// Connect parses a redis URL and pings the server
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

func (c *RedisCatalogCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCatalogCache) GetActivePackages(ctx context.Context) ([]models.TripPackage, bool) {
	var packages []models.TripPackage
	if !c.get(ctx, activePackagesKey, &packages) {
		return nil, false
	}
	return packages, true
}

func (c *RedisCatalogCache) SetActivePackages(ctx context.Context, packages []models.TripPackage) {
	c.set(ctx, activePackagesKey, packages)
}

func (c *RedisCatalogCache) GetPackage(ctx context.Context, id int64) (*models.TripPackage, bool) {
	var pkg models.TripPackage
	if !c.get(ctx, packageKeyPrefix+strconv.FormatInt(id, 10), &pkg) {
		return nil, false
	}
	return &pkg, true
}

func (c *RedisCatalogCache) SetPackage(ctx context.Context, pkg *models.TripPackage) {
	c.set(ctx, packageKeyPrefix+strconv.FormatInt(pkg.ID, 10), pkg)
}

// Invalidate drops the active list and the given packages
func (c *RedisCatalogCache) Invalidate(ctx context.Context, packageIDs ...int64) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	keys := []string{c.key(activePackagesKey)}
	for _, id := range packageIDs {
		keys = append(keys, c.key(packageKeyPrefix+strconv.FormatInt(id, 10)))
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WithError(err).WithField("keys", keys).Warn("Failed to invalidate catalog cache")
	}
}

func (c *RedisCatalogCache) get(ctx context.Context, k string, dest interface{}) bool {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, c.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", k).Warn("Catalog cache read failed")
		return false
	}

	if err := json.Unmarshal(val, dest); err != nil {
		c.logger.WithError(err).WithField("key", k).Warn("Catalog cache entry is corrupt")
		return false
	}
	return true
}

func (c *RedisCatalogCache) set(ctx context.Context, k string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", k).Warn("Failed to encode catalog cache entry")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key(k), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", k).Warn("Catalog cache write failed")
	}
}

// NoopCatalogCache is used when REDIS_URL is not set
type NoopCatalogCache struct{}

func (NoopCatalogCache) GetActivePackages(context.Context) ([]models.TripPackage, bool) {
	return nil, false
}

func (NoopCatalogCache) SetActivePackages(context.Context, []models.TripPackage) {}

func (NoopCatalogCache) GetPackage(context.Context, int64) (*models.TripPackage, bool) {
	return nil, false
}

func (NoopCatalogCache) SetPackage(context.Context, *models.TripPackage) {}

func (NoopCatalogCache) Invalidate(context.Context, ...int64) {}
