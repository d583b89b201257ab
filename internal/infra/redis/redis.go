package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// NewRedis connects to the rate-limit store. clientName tags the connections
// in CLIENT LIST so API and worker traffic can be told apart.
func NewRedis(url, clientName string) (*redis.Client, error) {
	opts, err := clientOptions(url, clientName)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// clientOptions parses url. A client_name query parameter in the url wins
// over clientName.
func clientOptions(url, clientName string) (*redis.Options, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if name := strings.TrimSpace(clientName); name != "" && opts.ClientName == "" {
		opts.ClientName = name
	}
	return opts, nil
}
