// Package redis wires up the client shared by the queue, the ingest
// dedupe keys and the discovery bookmarks.
package redis

import (
	"context"

	redis "github.com/go-redis/redis/v8"
)

var Nil = redis.Nil

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, address string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: "",
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
