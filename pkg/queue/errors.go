package queue

import "errors"

var (
	// Connection errors
	ErrFailedToParseConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady           = errors.New("redis did not become ready within the given time period")
	ErrHealthcheckFailed       = errors.New("queue healthcheck failed")

	// Construction errors
	ErrClientNil      = errors.New("redis client is nil")
	ErrEmptyQueueName = errors.New("queue name is empty")
	ErrDispatcherNil  = errors.New("queue dispatcher is nil")
	ErrDequeuerNil    = errors.New("queue dequeuer is nil")

	// Runtime errors
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueEmpty  = errors.New("queue is empty")
)
