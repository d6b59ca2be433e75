package jobexec

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lease elects the node allowed to acquire jobs for one period. A nil client grants
// every request, which is the single node setup.
type Lease struct {
	client redis.UniversalClient
	key    string
	owner  string
	ttl    time.Duration
}

func NewLease(client redis.UniversalClient, key, owner string, ttl time.Duration) *Lease {
	return &Lease{client: client, key: key, owner: owner, ttl: ttl}
}

// Acquire takes the lease with SET NX PX, or extends it when this owner already holds it.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil || ok {
		return ok, err
	}
	holder, err := l.client.Get(ctx, l.key).Result()
	switch {
	case err == redis.Nil:
		// expired between the two calls; next poll retries
		return false, nil
	case err != nil:
		return false, err
	case holder != l.owner:
		return false, nil
	}
	return l.client.PExpire(ctx, l.key, l.ttl).Result()
}

// Release drops the lease if this owner holds it.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)
