package ratelimit

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// memberSeq disambiguates entries recorded in the same nanosecond; a
// colliding member would overwrite instead of count.
var memberSeq atomic.Uint64

// Redis is the shared sliding-window limiter. Each key is a sorted set of
// request timestamps scored in unix milliseconds; prune, record, and count
// run in one MULTI/EXEC block so concurrent checks from different server
// processes serialize on the store instead of racing between a read and a
// write.
type Redis struct {
	client *redis.Client
	cfg    Config
	prefix string
}

// NewRedis constructs a limiter on an existing client. The prefix namespaces
// keys so independent limiters (posts, votes, auth) don't collide.
func NewRedis(client *redis.Client, prefix string, cfg Config) *Redis {
	return &Redis{client: client, cfg: cfg, prefix: "ratelimit:" + prefix + ":"}
}

// Allow records the request and then checks the count. Add-then-check means
// two racers at the limit both observe counts over it and both reject;
// nobody slips through a gap between reading and writing. A rejected
// request's entry is removed so it does not occupy window space.
func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	windowStart := now.Add(-r.cfg.Window)
	rkey := r.prefix + key
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(memberSeq.Add(1), 10)

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, rkey, "0", strconv.FormatInt(windowStart.UnixMilli(), 10))
	pipe.ZAdd(ctx, rkey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: member,
	})
	countCmd := pipe.ZCard(ctx, rkey)
	oldestCmd := pipe.ZRangeWithScores(ctx, rkey, 0, 0)
	pipe.PExpire(ctx, rkey, r.cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	count := int(countCmd.Val())
	if count > r.cfg.Limit {
		if err := r.client.ZRem(ctx, rkey, member).Err(); err != nil {
			return Result{}, err
		}
		resetAt := now.Add(r.cfg.Window)
		if oldest := oldestCmd.Val(); len(oldest) > 0 {
			resetAt = time.UnixMilli(int64(oldest[0].Score)).Add(r.cfg.Window)
		}
		return Result{Allowed: false, ResetAt: resetAt}, nil
	}

	return Result{Allowed: true, Remaining: r.cfg.Limit - count}, nil
}
