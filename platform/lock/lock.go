// Package lock provides a redis-backed run lease used to prevent
// overlapping executions of a named job across process replicas.
// This is part of the platform layer and contains no business logic.
package lock

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only when the caller still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript refreshes the TTL only when the caller still holds the lease.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker acquires leases against a redis instance.
type Locker struct {
	client redis.UniversalClient
}

// New creates a Locker from a redis URL.
func New(redisURL string, tlsInsecure bool) (*Locker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if opt.TLSConfig != nil && tlsInsecure {
		clone := opt.TLSConfig.Clone()
		clone.InsecureSkipVerify = true
		opt.TLSConfig = clone
	} else if opt.TLSConfig == nil && tlsInsecure {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &Locker{client: redis.NewClient(opt)}, nil
}

// NewWithClient creates a Locker over an existing redis client. Used by tests.
func NewWithClient(client redis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// Close releases the underlying redis connection.
func (l *Locker) Close() error {
	return l.client.Close()
}

// Lease is a held run lease.
type Lease struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration
}

// Acquire attempts to take the lease for the named job. The second return
// value is false when another holder currently owns it.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, bool, error) {
	token := uuid.NewString()
	key := "lease:" + name

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	return &Lease{client: l.client, key: key, token: token, ttl: ttl}, true, nil
}

// Extend refreshes the lease TTL. Returns false when the lease was lost.
func (le *Lease) Extend(ctx context.Context) (bool, error) {
	res, err := extendScript.Run(ctx, le.client, []string{le.key}, le.token, le.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Release gives the lease back. Releasing a lost lease is a no-op.
func (le *Lease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, le.client, []string{le.key}, le.token).Err()
}
