package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lujainibrahim/dyad-study/internal/service"
	"github.com/lujainibrahim/dyad-study/pkg/distributed"
	"github.com/lujainibrahim/dyad-study/pkg/logger"
)

// ScheduleTickLock 여러 인스턴스가 같은 Redis 스케줄을 공유할 때 틱을 하나만 실행
type ScheduleTickLock struct {
	manager *distributed.RedisLockManager
	key     string
	ttl     time.Duration
}

func NewScheduleTickLock(manager *distributed.RedisLockManager, key string, ttl time.Duration) *ScheduleTickLock {
	return &ScheduleTickLock{manager: manager, key: key, ttl: ttl}
}

// TryLock 락을 못 잡으면 service.ErrTickLocked
func (l *ScheduleTickLock) TryLock(ctx context.Context) (func(), error) {
	lock, err := l.manager.Acquire(ctx, l.key, l.ttl)
	if errors.Is(err, distributed.ErrLockNotAcquired) {
		return nil, service.ErrTickLocked
	}
	if err != nil {
		return nil, err
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warn("Failed to release scheduler tick lock", "key", l.key, "error", err)
		}
	}, nil
}
