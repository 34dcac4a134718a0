// Package cache keeps a copy of the last good title snapshot in Redis so a
// restarted server can serve the catalog while the database is unreachable.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"cinehub/internal/models"
)

const DefaultSnapshotKey = "cinehub:titles:snapshot"

// ErrMiss is returned when no snapshot is stored.
var ErrMiss = errors.New("snapshot cache miss")

type snapshotEnvelope struct {
	SavedAt time.Time      `json:"saved_at"`
	Titles  []models.Title `json:"titles"`
}

type RedisSnapshot struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

type Options struct {
	URL      string // redis://host:port/db, or a bare host:port
	Password string
	Key      string
	TTL      time.Duration
}

// NewRedisSnapshot connects and pings Redis.
func NewRedisSnapshot(opts Options) (*RedisSnapshot, error) {
	redisOpts, err := clientOptions(opts)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisSnapshotWithClient(rdb, opts.Key, opts.TTL), nil
}

func NewRedisSnapshotWithClient(client *redis.Client, key string, ttl time.Duration) *RedisSnapshot {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &RedisSnapshot{client: client, key: key, ttl: ttl}
}

func clientOptions(opts Options) (*redis.Options, error) {
	var (
		ro  *redis.Options
		err error
	)
	if strings.HasPrefix(opts.URL, "redis://") || strings.HasPrefix(opts.URL, "rediss://") {
		ro, err = redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
	} else {
		ro = &redis.Options{Addr: opts.URL}
	}
	if opts.Password != "" {
		ro.Password = opts.Password
	}
	ro.DialTimeout = 5 * time.Second
	ro.ReadTimeout = 3 * time.Second
	ro.WriteTimeout = 3 * time.Second
	return ro, nil
}

// Save replaces the stored snapshot.
func (r *RedisSnapshot) Save(ctx context.Context, titles []models.Title) error {
	if r == nil || r.client == nil {
		return nil
	}
	payload, err := encodeSnapshot(titles, time.Now().UTC())
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, payload, r.ttl).Err()
}

// Load returns the stored snapshot and when it was saved.
func (r *RedisSnapshot) Load(ctx context.Context) ([]models.Title, time.Time, error) {
	if r == nil || r.client == nil {
		return nil, time.Time{}, ErrMiss
	}
	payload, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, ErrMiss
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load snapshot: %w", err)
	}
	return decodeSnapshot(payload)
}

func (r *RedisSnapshot) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func encodeSnapshot(titles []models.Title, savedAt time.Time) ([]byte, error) {
	payload, err := json.Marshal(snapshotEnvelope{SavedAt: savedAt, Titles: titles})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return payload, nil
}

func decodeSnapshot(payload []byte) ([]models.Title, time.Time, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if env.Titles == nil {
		env.Titles = []models.Title{}
	}
	return env.Titles, env.SavedAt, nil
}
