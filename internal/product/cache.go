package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// CachedRepo serves GetByID through Redis and evicts on every write. The
// cache is best effort: Redis failures fall back to the wrapped repository.
// Stock checks during checkout and reconciliation never read from it.
type CachedRepo struct {
	Repository
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

func NewCachedRepo(repo Repository, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedRepo {
	return &CachedRepo{
		Repository: repo,
		rdb:        rdb,
		ttl:        ttl,
		log:        log.With().Str("component", "product-cache").Logger(),
	}
}

func cacheKey(id string) string { return fmt.Sprintf("product:%s", id) }

func (c *CachedRepo) GetByID(ctx context.Context, id string) (*Product, error) {
	key := cacheKey(id)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Product
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
		c.log.Warn().Str("product_id", id).Msg("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.Error().Err(err).Str("product_id", id).Msg("cache read failed")
	}

	p, err := c.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.Error().Err(err).Str("product_id", id).Msg("cache write failed")
		}
	}
	return p, nil
}

func (c *CachedRepo) Update(ctx context.Context, p *Product, newImages []string) ([]Image, error) {
	added, err := c.Repository.Update(ctx, p, newImages)
	if err != nil {
		return nil, err
	}
	c.Evict(ctx, p.ID)
	return added, nil
}

func (c *CachedRepo) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := c.Repository.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	c.Evict(ctx, id)
	return ok, nil
}

// Evict drops cached entries for ids. Errors are logged only; entries also
// expire after the TTL.
func (c *CachedRepo) Evict(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Error().Err(err).Strs("product_ids", ids).Msg("cache eviction failed")
	}
}
