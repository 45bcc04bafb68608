package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrFailedToConnect is returned when every connection attempt failed.
var ErrFailedToConnect = errors.New("failed to connect to mongo")

// Config holds MongoDB connection settings.
type Config struct {
	URL            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	RetryAttempts  int
	RetryInterval  time.Duration
}

// Connect opens a client, retrying until the server answers a ping.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	attempts := max(cfg.RetryAttempts, 1)

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrFailedToConnect, ctx.Err())
			case <-time.After(cfg.RetryInterval):
			}
		}

		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.URL).
				SetConnectTimeout(cfg.ConnectTimeout).
				SetMaxPoolSize(cfg.MaxPoolSize),
		)
		if err != nil {
			lastErr = err
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		err = client.Ping(pingCtx, nil)
		cancel()
		if err == nil {
			return client, nil
		}
		lastErr = err
		_ = client.Disconnect(context.Background())
	}

	return nil, errors.Join(ErrFailedToConnect, lastErr)
}
