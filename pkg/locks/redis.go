package locks

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker — лизинг по ключу через SET NX. Токен переживает падение
// процесса не дольше ttl, поэтому зависший переход не блокирует товар вечно.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	token  string
	ttl    time.Duration
}

func NewRedisLocker(rdb *redis.Client, prefix, token string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix, token: token, ttl: ttl}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	fullKey := l.prefix + key

	ok, err := l.rdb.SetNX(ctx, fullKey, l.token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Снимаем только свой токен: чужой лизинг (после истечения ttl)
		// трогать нельзя.
		const script = `
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			end
			return 0`
		if err := l.rdb.Eval(context.Background(), script, []string{fullKey}, l.token).Err(); err != nil {
			log.Printf("[RedisLocker] release %s: %v", fullKey, err)
		}
	}
	return release, true, nil
}
