package distributed

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

// 자신이 잡은 락만 지운다
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// RedisLock 획득한 분산 락
type RedisLock struct {
	client *redis.Client
	key    string
	owner  string
}

// RedisLockManager 인스턴스 단위 분산 락 관리자
type RedisLockManager struct {
	client     *redis.Client
	instanceID string
}

// NewRedisLockManager 인스턴스 ID는 프로세스마다 새로 만든다
func NewRedisLockManager(client *redis.Client) *RedisLockManager {
	return &RedisLockManager{
		client:     client,
		instanceID: uuid.New().String(),
	}
}

// Acquire SET NX로 한 번만 시도. 다른 소유자가 있으면 ErrLockNotAcquired.
func (m *RedisLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (*RedisLock, error) {
	owner := m.instanceID + ":" + uuid.New().String()

	ok, err := m.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &RedisLock{
		client: m.client,
		key:    key,
		owner:  owner,
	}, nil
}

// Release 락 해제. 이미 만료돼 남이 잡았으면 ErrLockNotHeld.
func (l *RedisLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Int()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// IsHeld 락이 아직 이 소유자 것인지
func (l *RedisLock) IsHeld(ctx context.Context) (bool, error) {
	value, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == l.owner, nil
}
