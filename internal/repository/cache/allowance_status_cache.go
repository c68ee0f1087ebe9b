package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// AllowanceStatusCache is best-effort: failures are logged and read as misses.
// Coverage and ledger decisions never read from it.
type AllowanceStatusCache interface {
	Get(ctx context.Context, patientId int64) (*entity.AllowanceStatus, bool)
	Set(ctx context.Context, patientId int64, status *entity.AllowanceStatus)
	Invalidate(ctx context.Context, patientId int64)
}

func statusKey(patientId int64) string {
	return fmt.Sprintf("membership:allowance_status:%d", patientId)
}

type RedisAllowanceStatusCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.ILogger
}

func NewRedisAllowanceStatusCache(rdb *redis.Client, ttl time.Duration, logger logger.ILogger) *RedisAllowanceStatusCache {
	return &RedisAllowanceStatusCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisAllowanceStatusCache) Get(ctx context.Context, patientId int64) (*entity.AllowanceStatus, bool) {
	raw, err := c.rdb.Get(ctx, statusKey(patientId)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("STATUS_CACHE", "Redis get failed", map[string]interface{}{"patient_id": patientId, "error": err.Error()})
		}
		return nil, false
	}

	var status entity.AllowanceStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		c.logger.Warn("STATUS_CACHE", "Dropping undecodable entry", map[string]interface{}{"patient_id": patientId, "error": err.Error()})
		c.Invalidate(ctx, patientId)
		return nil, false
	}
	return &status, true
}

func (c *RedisAllowanceStatusCache) Set(ctx context.Context, patientId int64, status *entity.AllowanceStatus) {
	raw, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, statusKey(patientId), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("STATUS_CACHE", "Redis set failed", map[string]interface{}{"patient_id": patientId, "error": err.Error()})
	}
}

func (c *RedisAllowanceStatusCache) Invalidate(ctx context.Context, patientId int64) {
	if err := c.rdb.Del(ctx, statusKey(patientId)).Err(); err != nil {
		c.logger.Warn("STATUS_CACHE", "Redis delete failed", map[string]interface{}{"patient_id": patientId, "error": err.Error()})
	}
}

// NopAllowanceStatusCache is used when Redis is unavailable.
type NopAllowanceStatusCache struct{}

func (NopAllowanceStatusCache) Get(context.Context, int64) (*entity.AllowanceStatus, bool) {
	return nil, false
}

func (NopAllowanceStatusCache) Set(context.Context, int64, *entity.AllowanceStatus) {}

func (NopAllowanceStatusCache) Invalidate(context.Context, int64) {}
