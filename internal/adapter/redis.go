package adapter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// PubSub is the subset of the redis PubSub API the bridge consumes
type PubSub interface {
	// Channel returns the channel messages are delivered on
	Channel() <-chan *redis.Message

	// Close closes the subscription
	Close() error
}

// RedisClient defines the interface for Redis operations to enable test fakes
type RedisClient interface {
	// Ping checks if Redis is reachable
	Ping(ctx context.Context) error

	// Subscribe subscribes to the given Pub/Sub channels
	Subscribe(ctx context.Context, channels ...string) PubSub

	// Publish publishes a message to a Pub/Sub channel
	Publish(ctx context.Context, channel string, payload []byte) error

	// Close closes the Redis connection
	Close() error
}

// RealRedisClient wraps the actual Redis client
type RealRedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string, db int) RedisClient {
	return &RealRedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}),
	}
}

// Ping checks if Redis is reachable
func (r *RealRedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// realPubSub adapts *redis.PubSub to the PubSub interface
type realPubSub struct {
	ps *redis.PubSub
}

func (p *realPubSub) Channel() <-chan *redis.Message {
	return p.ps.Channel()
}

func (p *realPubSub) Close() error {
	return p.ps.Close()
}

// Subscribe subscribes to the given Pub/Sub channels
func (r *RealRedisClient) Subscribe(ctx context.Context, channels ...string) PubSub {
	return &realPubSub{ps: r.client.Subscribe(ctx, channels...)}
}

// Publish publishes a message to a Pub/Sub channel
func (r *RealRedisClient) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

// Close closes the Redis connection
func (r *RealRedisClient) Close() error {
	return r.client.Close()
}
