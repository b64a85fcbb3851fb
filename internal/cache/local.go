package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const defaultLocalTTL = 5 * time.Minute

// Local кэш в памяти процесса на go-cache.
type Local struct {
	c *gocache.Cache
}

// NewLocal создаёт локальный кэш. ttl <= 0 заменяется значением по умолчанию.
func NewLocal(ttl time.Duration) *Local {
	if ttl <= 0 {
		ttl = defaultLocalTTL
	}
	return &Local{c: gocache.New(ttl, 2*ttl)}
}

func (l *Local) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Local.Get"
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	raw, ok := l.c.Get(key)
	if !ok {
		return false, nil
	}
	data, ok := raw.([]byte)
	if !ok {
		return false, fmt.Errorf("%s: unexpected value type %T", op, raw)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение. expiration == 0 означает TTL по умолчанию.
func (l *Local) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "cache.Local.Set"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if expiration == 0 {
		expiration = gocache.DefaultExpiration
	}
	l.c.Set(key, data, expiration)
	return nil
}

func (l *Local) Invalidate(_ context.Context, key string) error {
	l.c.Delete(key)
	return nil
}

func (l *Local) Close() error {
	l.c.Flush()
	return nil
}
