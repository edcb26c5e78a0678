package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ChatWave/logger"
	"ChatWave/tools/errs"
)

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects and pings.
func NewRedis(cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errs.WrapMsg(err, "redis ping", "addr", cfg.Addr)
	}
	return rdb, nil
}

// presence key: chat:presence:<user>
// value: node id; the TTL bounds staleness if the process dies uncleanly
func presenceKey(userID string) string { return "chat:presence:" + userID }

// RedisPresence mirrors online transitions into Redis so the REST layer can
// answer "who is online" without touching gateway memory. Best-effort only:
// failures are logged and the in-memory registry stays authoritative.
type RedisPresence struct {
	rdb    *redis.Client
	nodeID string
	ttl    time.Duration
}

func NewRedisPresence(rdb *redis.Client, nodeID string, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisPresence{rdb: rdb, nodeID: nodeID, ttl: ttl}
}

func (p *RedisPresence) Online(ctx context.Context, userID string) {
	if err := p.rdb.Set(ctx, presenceKey(userID), p.nodeID, p.ttl).Err(); err != nil {
		logger.Warnf("[presence] mirror online failed user=%s err=%v", userID, err)
	}
}

func (p *RedisPresence) Offline(ctx context.Context, userID string) {
	if err := p.rdb.Del(ctx, presenceKey(userID)).Err(); err != nil {
		logger.Warnf("[presence] mirror offline failed user=%s err=%v", userID, err)
	}
}

// Lookup reports the mirrored state and which node holds the user.
func (p *RedisPresence) Lookup(ctx context.Context, userID string) (nodeID string, online bool, err error) {
	val, err := p.rdb.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.WrapMsg(err, "presence lookup", "user", userID)
	}
	return val, true, nil
}
