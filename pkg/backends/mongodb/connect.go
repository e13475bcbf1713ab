package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var (
	ErrFailedToConnect   = errors.New("failed to connect to mongo")
	ErrHealthcheckFailed = errors.New("mongo healthcheck failed")
)

// Connect creates a mongo client, retrying per the configuration.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	for range cfg.RetryAttempts {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.ConnectionURL).
				SetConnectTimeout(cfg.ConnectTimeout).
				SetMaxPoolSize(cfg.MaxPoolSize).
				SetMinPoolSize(cfg.MinPoolSize).
				SetMaxConnIdleTime(cfg.MaxConnIdleTime).
				SetRetryWrites(cfg.RetryWrites).
				SetRetryReads(cfg.RetryReads),
		)
		if err == nil {
			if err := client.Ping(ctx, nil); err == nil {
				return client, nil
			}
		}

		time.Sleep(cfg.RetryInterval)
	}

	return nil, ErrFailedToConnect
}

// ConnectDatabase creates a mongo client and returns the configured database.
func ConnectDatabase(ctx context.Context, cfg Config) (*mongo.Database, error) {
	client, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client.Database(cfg.DatabaseName), nil
}

// Healthcheck returns a probe suitable for readiness and liveness endpoints.
func Healthcheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx, nil); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
