// Package cache holds Redis-backed short-circuit caches.
package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront/internal/domain/payment"
)

// DefaultTTL bounds how long a processed transaction number is remembered.
const DefaultTTL = 24 * time.Hour

var _ payment.Cache = (*Transactions)(nil)

// Transactions remembers gateway transaction numbers that already produced a
// successful payment.
type Transactions struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewTransactions creates a Transactions cache. A zero ttl uses DefaultTTL.
func NewTransactions(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Transactions {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "storefront"
	}
	return &Transactions{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *Transactions) key(txn string) string {
	return c.prefix + ":payment:txn:" + txn
}

// Lookup reports whether txn was remembered and for which order.
func (c *Transactions) Lookup(ctx context.Context, txn string) (string, bool, error) {
	orderID, err := c.rdb.Get(ctx, c.key(txn)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, errors.Wrap(err, "redis get")
	}
	return orderID, true, nil
}

// Remember stores txn. The first writer wins.
func (c *Transactions) Remember(ctx context.Context, txn, orderID string) error {
	if err := c.rdb.SetNX(ctx, c.key(txn), orderID, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis setnx")
	}
	return nil
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return rdb, nil
}
