package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	logs "github.com/danmuck/thriftsniff/internal/logging"
	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/report"
)

const DefaultRecentLimit = 100

// RedisClient is the part of *redis.Client the sink needs.
type RedisClient interface {
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Close() error
}

// RedisSink keeps per-method and per-error-class counters and a capped
// list of recent event documents:
//
//	<prefix>:methods  hash  method -> count
//	<prefix>:errors   hash  class  -> count
//	<prefix>:recent   list  newest first
type RedisSink struct {
	client RedisClient
	prefix string
	limit  int64
}

// DialRedis connects to addr and pings it, retrying with DefaultBackoff,
// before returning.
func DialRedis(ctx context.Context, addr string, db int, prefix string, limit int) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	err := retry(ctx, DefaultBackoff(), "redis "+addr, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("sink: connect redis %s: %w", addr, err)
	}
	logs.Infof("sink.DialRedis addr=%s db=%d prefix=%s", addr, db, prefix)
	return NewRedisSink(client, prefix, limit), nil
}

func NewRedisSink(client RedisClient, prefix string, limit int) *RedisSink {
	if prefix == "" {
		prefix = "thriftsniff"
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &RedisSink{client: client, prefix: prefix, limit: int64(limit)}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Emit(ctx context.Context, ev report.Event) error {
	if ev.Message != nil {
		if err := s.client.HIncrBy(ctx, s.key("methods"), ev.Method(), 1).Err(); err != nil {
			return fmt.Errorf("sink: redis count method: %w", err)
		}
	}
	if ev.Err != nil {
		if err := s.client.HIncrBy(ctx, s.key("errors"), protocol.Class(ev.Err), 1).Err(); err != nil {
			return fmt.Errorf("sink: redis count error: %w", err)
		}
	}

	data, err := json.Marshal(report.NewDocument(ev))
	if err != nil {
		return fmt.Errorf("sink: encode event %s: %w", ev.ID, err)
	}
	if err := s.client.LPush(ctx, s.key("recent"), data).Err(); err != nil {
		return fmt.Errorf("sink: redis push recent: %w", err)
	}
	if err := s.client.LTrim(ctx, s.key("recent"), 0, s.limit-1).Err(); err != nil {
		return fmt.Errorf("sink: redis trim recent: %w", err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

func (s *RedisSink) key(name string) string {
	return s.prefix + ":" + name
}
