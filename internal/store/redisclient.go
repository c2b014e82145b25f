package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultRedisTimeout = 15 * time.Second
	defaultPingRetries  = 5
)

type redisOpts struct {
	masterName  string
	password    string
	timeout     time.Duration
	pingRetries uint64
}

type RedisOpt func(opts *redisOpts)

func WithRedisMasterName(masterName string) RedisOpt {
	return func(opts *redisOpts) {
		opts.masterName = masterName
	}
}

func WithRedisPassword(password string) RedisOpt {
	return func(opts *redisOpts) {
		opts.password = password
	}
}

func WithRedisTimeout(timeout time.Duration) RedisOpt {
	return func(opts *redisOpts) {
		opts.timeout = timeout
	}
}

func WithRedisPingRetries(retries uint64) RedisOpt {
	return func(opts *redisOpts) {
		opts.pingRetries = retries
	}
}

// NewRedisClient returns a redis.UniversalClient once the server answers a ping.
// A sentinel failover client is used when a master name is set, a cluster client for
// two or more addresses, and a single-node client otherwise.
func NewRedisClient(addrs []string, opts ...RedisOpt) (redis.UniversalClient, error) {
	opt := &redisOpts{
		timeout:     defaultRedisTimeout,
		pingRetries: defaultPingRetries,
	}
	for _, f := range opts {
		f(opt)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:                 addrs,
		ContextTimeoutEnabled: true,
		MasterName:            opt.masterName,
		Password:              opt.password,
	})

	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), opt.timeout)
		defer cancel()

		return client.Ping(ctx).Err()
	}
	notify := func(err error, d time.Duration) {
		logger.Warn("redis not reachable, retrying", zap.Error(err), zap.Duration("backoff", d))
	}

	err := backoff.RetryNotify(ping,
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), opt.pingRetries), notify)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
