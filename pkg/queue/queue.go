// Package queue is the durable store of solutions waiting for delivery.
//
// Entries are opaque byte strings. The store is a Redis list: producers LPUSH
// at one end and the drain RPOPs from the other, so the oldest entry comes out
// first. Redis serializes the commands, so any number of processes may share a
// list without coordinating with each other.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/screa/rbnb-miner/internal/fault"
)

// DefaultKey is the list the miners and the drain share
const DefaultKey = "solution"

// Queue is an ordered store shared by the produce and drain paths
type Queue interface {
	// Push appends entry at the tail
	Push(ctx context.Context, entry []byte) error
	// Pop removes the oldest entry; ok is false when the queue is empty
	Pop(ctx context.Context) (entry []byte, ok bool, err error)
	Close() error
}

// Lener is implemented by queues that can report their backlog
type Lener interface {
	Len(ctx context.Context) (int64, error)
}

var _ Lener = (*Redis)(nil)

// Dialer opens a fresh connection to the queue
type Dialer func(ctx context.Context) (Queue, error)

// Options configures the Redis queue
type Options struct {
	Addr         string // host:port or redis:// URL
	Key          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redis is a Queue backed by a Redis list
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis wraps an existing client
func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{
		client: client,
		key:    key,
	}
}

func (q *Redis) Push(ctx context.Context, entry []byte) error {
	if err := q.client.LPush(ctx, q.key, entry).Err(); err != nil {
		return fmt.Errorf("%w: redis lpush: %v", fault.ErrQueueConnection, err)
	}
	return nil
}

func (q *Redis) Pop(ctx context.Context) ([]byte, bool, error) {
	data, err := q.client.RPop(ctx, q.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: redis rpop: %v", fault.ErrQueueConnection, err)
	}
	return data, true, nil
}

// Len returns the number of pending entries
func (q *Redis) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: redis llen: %v", fault.ErrQueueConnection, err)
	}
	return n, nil
}

func (q *Redis) Close() error {
	return q.client.Close()
}

// clientOptions accepts both a bare address and a redis:// URL
func clientOptions(opts Options) (*redis.Options, error) {
	var ro *redis.Options
	if strings.Contains(opts.Addr, "://") {
		parsed, err := redis.ParseURL(opts.Addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		ro = parsed
	} else {
		ro = &redis.Options{Addr: opts.Addr}
	}

	ro.DialTimeout = orDefault(opts.DialTimeout, 5*time.Second)
	ro.ReadTimeout = orDefault(opts.ReadTimeout, 3*time.Second)
	ro.WriteTimeout = orDefault(opts.WriteTimeout, 3*time.Second)
	return ro, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// RedisDialer returns a Dialer that creates a new client and checks it with PING
func RedisDialer(opts Options) (Dialer, error) {
	ro, err := clientOptions(opts)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) (Queue, error) {
		client := redis.NewClient(ro)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%w: redis ping %s: %v", fault.ErrQueueConnection, ro.Addr, err)
		}
		return NewRedis(client, opts.Key), nil
	}, nil
}
