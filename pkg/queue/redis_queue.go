package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Connect establishes a connection to the Redis server backing the queue.
// It retries up to cfg.RetryAttempts times with cfg.RetryInterval between
// attempts, bounded overall by cfg.ConnectTimeout.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConnString, err)
	}

	for range cfg.RetryAttempts {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		default:
			time.Sleep(cfg.RetryInterval)
		}
	}

	return nil, ErrRedisNotReady
}

// Healthcheck returns a probe reporting whether the queue's Redis connection
// is alive.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := client.Ping(ctx).Result(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

// RedisQueue is a Redis-list backed notification queue. It implements
// notifications.QueueService on the producing side and Dequeuer on the
// consuming side, so the same type serves web processes and workers.
type RedisQueue struct {
	client      redis.UniversalClient
	queueName   string
	pollTimeout time.Duration
}

// NewRedisQueue creates a queue over an established Redis client.
func NewRedisQueue(client redis.UniversalClient, cfg Config) (*RedisQueue, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	if cfg.QueueName == "" {
		return nil, ErrEmptyQueueName
	}

	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}

	return &RedisQueue{
		client:      client,
		queueName:   cfg.QueueName,
		pollTimeout: pollTimeout,
	}, nil
}

// EnqueueNotification pushes a notification id onto the queue.
func (q *RedisQueue) EnqueueNotification(ctx context.Context, id uuid.UUID) error {
	if err := q.client.LPush(ctx, q.queueName, id.String()).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", id, err)
	}
	return nil
}

// Dequeue blocks until a notification id is available or the poll timeout
// elapses. An elapsed timeout returns ErrQueueEmpty so workers can loop and
// re-check their context.
func (q *RedisQueue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	res, err := q.client.BRPop(ctx, q.pollTimeout, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrQueueEmpty
		}
		return uuid.Nil, fmt.Errorf("dequeue: %w", err)
	}

	// BRPop returns [key, value].
	id, err := uuid.Parse(res[1])
	if err != nil {
		return uuid.Nil, fmt.Errorf("dequeue: malformed id %q: %w", res[1], err)
	}
	return id, nil
}

// Len reports the number of queued notification ids.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}
