package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures a client. Zero timeouts fall back to package defaults.
type Options struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (o Options) validate() error {
	if strings.TrimSpace(o.Addr) == "" {
		return errors.New("redis: addr is empty")
	}
	if o.DB < 0 {
		return errors.New("redis: db index must not be negative")
	}
	return nil
}

func (o Options) client() *redis.Options {
	opts := &redis.Options{
		Addr:         strings.TrimSpace(o.Addr),
		Password:     o.Password,
		DB:           o.DB,
		PoolSize:     o.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	if o.DialTimeout > 0 {
		opts.DialTimeout = o.DialTimeout
	}
	if o.ReadTimeout > 0 {
		opts.ReadTimeout = o.ReadTimeout
	}
	if o.WriteTimeout > 0 {
		opts.WriteTimeout = o.WriteTimeout
	}
	return opts
}

// NewRedisClient connects and checks the server with PING, bounded by ctx and the dial timeout.
func NewRedisClient(ctx context.Context, o Options) (*redis.Client, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	opts := o.client()
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
