package queue

import "time"

// Config holds the queue service configuration.
type Config struct {
	// ConnectionURL should be in the format "redis://:password@localhost:6379/0".
	ConnectionURL  string        `env:"QUEUE_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	QueueName      string        `env:"QUEUE_NAME" envDefault:"notifications:queued"`
	RetryAttempts  int           `env:"QUEUE_REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"QUEUE_REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"QUEUE_REDIS_CONNECT_TIMEOUT" envDefault:"30s"`

	// Worker settings
	PollTimeout        time.Duration `env:"QUEUE_POLL_TIMEOUT" envDefault:"5s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
}
