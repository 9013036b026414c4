package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PollLockは同一注文の決済照会を1本に絞るための短命ロック
type PollLock struct {
	rdb *redis.Client
	ttl time.Duration
}

// addrが空ならロックを取らない（常に取得成功）
func NewPollLock(addr string, ttl time.Duration) *PollLock {
	if addr == "" {
		return &PollLock{ttl: ttl}
	}
	return &PollLock{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

func NewPollLockWithClient(rdb *redis.Client, ttl time.Duration) *PollLock {
	return &PollLock{rdb: rdb, ttl: ttl}
}

func pollKey(orderID int64) string {
	return fmt.Sprintf("payment:poll:%d", orderID)
}

// TryLockは取得できたらunlock関数を返す。取れなければok=false。
func (l *PollLock) TryLock(ctx context.Context, orderID int64) (unlock func(), ok bool, err error) {
	if l.rdb == nil {
		return func() {}, true, nil
	}

	token := uuid.NewString()
	key := pollKey(orderID)

	ok, err = l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("poll lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	return func() {
		// 自分のトークンのときだけ消す
		_ = releaseScript.Run(context.Background(), l.rdb, []string{key}, token).Err()
	}, true, nil
}

func (l *PollLock) Ping(ctx context.Context) error {
	if l.rdb == nil {
		return nil
	}
	return l.rdb.Ping(ctx).Err()
}

func (l *PollLock) Close() error {
	if l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
