package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
)

// Bookmarks records each discoverer's high-water mark in Redis, so a
// restart resumes where the previous run left off instead of replaying
// the whole feed.
type Bookmarks struct {
	client *redis.Client
}

func NewBookmarks(client *redis.Client) *Bookmarks {
	return &Bookmarks{client: client}
}

// GetTime returns the stored bookmark for name, or defaultValue when none
// has been set yet.
func (b *Bookmarks) GetTime(ctx context.Context, name string, defaultValue time.Time) (time.Time, error) {
	val, err := b.client.Get(ctx, bookmarkKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return defaultValue, nil
	}
	if err != nil {
		return defaultValue, err
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return defaultValue, fmt.Errorf("malformed bookmark for %s: %w", name, err)
	}
	return t, nil
}

func (b *Bookmarks) SetTime(ctx context.Context, name string, t time.Time) error {
	return b.client.Set(ctx, bookmarkKey(name), t.Format(time.RFC3339), 0).Err()
}

// GetString and SetString track opaque cursors, like a CouchDB sequence.
func (b *Bookmarks) GetString(ctx context.Context, name, defaultValue string) (string, error) {
	val, err := b.client.Get(ctx, bookmarkKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return defaultValue, nil
	}
	if err != nil {
		return defaultValue, err
	}
	return val, nil
}

func (b *Bookmarks) SetString(ctx context.Context, name, value string) error {
	return b.client.Set(ctx, bookmarkKey(name), value, 0).Err()
}

func bookmarkKey(name string) string {
	return fmt.Sprintf("keeper:bookmark:%s", name)
}
