package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"storefront/internal/dto"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PricingCache holds rendered pricing responses. Misses and cache errors are
// indistinguishable to callers; the database stays the source of truth.
//
// Every product has a generation that Invalidate bumps. Get reports the
// generation it saw and Set only stores when it is still current, so a
// response built from a row read before an invalidation is never cached.
type PricingCache interface {
	Get(ctx context.Context, productID uuid.UUID) (resp *dto.PricingResponse, gen int64, ok bool)
	Set(ctx context.Context, productID uuid.UUID, gen int64, resp *dto.PricingResponse)
	Invalidate(ctx context.Context, productID uuid.UUID) error
}

type redisPricingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisPricingCache stores responses under "pricing:{id}" for ttl, with the
// generation counter under "pricing:gen:{id}".
func NewRedisPricingCache(rdb *redis.Client, ttl time.Duration) PricingCache {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &redisPricingCache{rdb: rdb, ttl: ttl}
}

func pricingKey(id uuid.UUID) string    { return "pricing:" + id.String() }
func generationKey(id uuid.UUID) string { return "pricing:gen:" + id.String() }

// KEYS[1] entry, KEYS[2] generation; ARGV[1] expected generation,
// ARGV[2] payload, ARGV[3] ttl in ms.
var setIfCurrent = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or "0"
if gen == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0`)

func (c *redisPricingCache) Get(ctx context.Context, id uuid.UUID) (*dto.PricingResponse, int64, bool) {
	vals, err := c.rdb.MGet(ctx, pricingKey(id), generationKey(id)).Result()
	if err != nil || len(vals) != 2 {
		// -1 never matches a stored generation, so Set becomes a no-op.
		return nil, -1, false
	}

	var gen int64
	if s, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, -1, false
		}
	}

	cached, ok := vals[0].(string)
	if !ok {
		return nil, gen, false
	}
	var resp dto.PricingResponse
	if err := json.Unmarshal([]byte(cached), &resp); err != nil {
		return nil, gen, false
	}
	return &resp, gen, true
}

// Set is best effort.
func (c *redisPricingCache) Set(ctx context.Context, id uuid.UUID, gen int64, resp *dto.PricingResponse) {
	if gen < 0 {
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	keys := []string{pricingKey(id), generationKey(id)}
	_ = setIfCurrent.Run(context.WithoutCancel(ctx), c.rdb, keys, gen, b, c.ttl.Milliseconds()).Err()
}

// Invalidate bumps the generation before dropping the entry. The counter
// lives at least as long as any entry it guards.
func (c *redisPricingCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(id))
		pipe.Expire(ctx, generationKey(id), 2*c.ttl)
		pipe.Del(ctx, pricingKey(id))
		return nil
	})
	return err
}
