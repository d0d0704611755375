package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"studypartner/internal/keys"
)

// seedScript fills the list only when it is empty, in one server-side step,
// so concurrent cold starts cannot both seed.
var seedScript = goredis.NewScript(`
if redis.call('LLEN', KEYS[1]) == 0 then
  redis.call('DEL', KEYS[1])
  redis.call('RPUSH', KEYS[1], unpack(ARGV))
  return 1
end
return 0
`)

// KeyPool is a keys.Store backed by a Redis list.
type KeyPool struct {
	client goredis.UniversalClient
	name   string
}

func NewKeyPool(client goredis.UniversalClient, name string) *KeyPool {
	return &KeyPool{client: client, name: name}
}

func (p *KeyPool) Seed(ctx context.Context, pool []string) (bool, error) {
	if len(pool) == 0 {
		return false, nil
	}
	args := make([]interface{}, len(pool))
	for i, k := range pool {
		args[i] = k
	}
	n, err := seedScript.Run(ctx, p.client, []string{p.name}, args...).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Rotate pops the head of the list and pushes it to the tail with a single LMOVE.
func (p *KeyPool) Rotate(ctx context.Context) (string, error) {
	key, err := p.client.LMove(ctx, p.name, p.name, "LEFT", "RIGHT").Result()
	if errors.Is(err, goredis.Nil) {
		return "", keys.ErrEmpty
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

func (p *KeyPool) List(ctx context.Context) ([]string, error) {
	return p.client.LRange(ctx, p.name, 0, -1).Result()
}

// Reset deletes the pool so the next Seed reloads it from configuration.
func (p *KeyPool) Reset(ctx context.Context) error {
	return p.client.Del(ctx, p.name).Err()
}

// NewClient connects to a redis:// URL, or a bare host:port, and pings it.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	var opt *goredis.Options
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		var err error
		opt, err = goredis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
	} else {
		opt = &goredis.Options{Addr: url}
	}

	rdb := goredis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}
