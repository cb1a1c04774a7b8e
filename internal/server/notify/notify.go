// Package notify hands verification messages to out-of-band consumers
// through Redis lists, one list per topic.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoMessage is returned by Pop when the wait timed out.
var ErrNoMessage = errors.New("no message available")

// VerificationMessage is the payload published when a verification token is
// issued.
type VerificationMessage struct {
	Email     string    `json:"email"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers an opaque payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// RedisQueue publishes with LPUSH and consumes with BRPOP, so messages
// published while no consumer is running are kept.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue creates a queue client with address/password.
func NewRedisQueue(addr, password string) *RedisQueue {
	return &RedisQueue{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       0,
		}),
	}
}

// NewRedisQueueWithClient wraps an existing redis.Client.
func NewRedisQueueWithClient(rdb *redis.Client) (*RedisQueue, error) {
	if rdb == nil {
		return nil, errors.New("redis client is nil")
	}
	return &RedisQueue{rdb: rdb}, nil
}

func (q *RedisQueue) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := q.rdb.LPush(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis lpush %s: %w", topic, err)
	}
	return nil
}

// Pop blocks up to timeout for the oldest message on topic.
func (q *RedisQueue) Pop(ctx context.Context, topic string, timeout time.Duration) ([]byte, error) {
	res, err := q.rdb.BRPop(ctx, timeout, topic).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoMessage
		}
		return nil, fmt.Errorf("redis brpop %s: %w", topic, err)
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected brpop reply: %v", res)
	}
	return []byte(res[1]), nil
}

// Depth returns the number of pending messages on topic.
func (q *RedisQueue) Depth(ctx context.Context, topic string) (int64, error) {
	return q.rdb.LLen(ctx, topic).Result()
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
