// Package analytics records run outcomes in Redis for the operational
// tooling that watches scrape health. The core works fine without it; a nil
// sink is simply not attached.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Retention bounds how long outcome counters live.
const retention = 90 * 24 * time.Hour

type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

// RecordRun bumps per-adapter daily counters for the run outcome and the
// offer counts it produced.
func (s *RedisSink) RecordRun(ctx context.Context, adapterName string, found, created, modified int, runErr error) {
	outcome := "ok"
	if runErr != nil {
		outcome = "failed"
	}

	day := time.Now().UTC().Format("20060102")

	pipe := s.client.Pipeline()
	key := buildKey(adapterName, outcome, day)
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, retention)

	for field, n := range map[string]int{"found": found, "new": created, "modified": modified} {
		if n == 0 {
			continue
		}
		key := buildKey(adapterName, field, day)
		pipe.IncrBy(ctx, key, int64(n))
		pipe.Expire(ctx, key, retention)
	}

	// Analytics must never affect the run itself.
	_, _ = pipe.Exec(ctx)
}

func buildKey(adapterName, field, day string) string {
	return fmt.Sprintf("lootscraper:runs:%s:%s:%s", adapterName, field, day)
}
