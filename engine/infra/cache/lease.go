package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultLeaseKey = "executor:reconciler:lease"

// extendScript refreshes the TTL only while the caller still owns the key.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the key only while the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a single-holder lock with a TTL. Replicas that share a Redis
// instance use it so only one of them runs a reconciliation pass at a time.
type Lease struct {
	client redis.UniversalClient
	key    string
	owner  string
	ttl    time.Duration
}

func NewLease(client redis.UniversalClient, key, owner string, ttl time.Duration) *Lease {
	if key == "" {
		key = DefaultLeaseKey
	}
	return &Lease{client: client, key: key, owner: owner, ttl: ttl}
}

// Acquire takes the lease or extends it when this owner already holds it.
// It returns false when another owner holds an unexpired lease.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if ok {
		return true, nil
	}
	extended, err := extendScript.Run(ctx, l.client, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("extend lease %s: %w", l.key, err)
	}
	return extended == 1, nil
}

// Release drops the lease if this owner holds it.
func (l *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err(); err != nil &&
		!errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}

func (l *Lease) Owner() string { return l.owner }
