package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/lujainibrahim/dyad-study/internal/models"
	"github.com/lujainibrahim/dyad-study/pkg/storage"
	"github.com/redis/go-redis/v9"
)

// ScheduleFileRepository 단일 JSON 파일 저장소
type ScheduleFileRepository struct {
	storage *storage.Storage
	name    string
	mu      sync.Mutex
}

func NewScheduleFileRepository(st *storage.Storage, name string) *ScheduleFileRepository {
	return &ScheduleFileRepository{storage: st, name: name}
}

// Load 파일이 없으면 빈 상태
func (r *ScheduleFileRepository) Load(_ context.Context) (*models.ScheduleState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := &models.ScheduleState{}
	err := r.storage.ReadJSON(r.name, state)
	if errors.Is(err, storage.ErrNotFound) {
		return &models.ScheduleState{}, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Save 상태 전체를 원자적으로 교체
func (r *ScheduleFileRepository) Save(_ context.Context, state *models.ScheduleState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.storage.WriteJSON(r.name, state)
}

// ScheduleRedisRepository 상태 전체를 하나의 키에 JSON으로 저장
type ScheduleRedisRepository struct {
	client *redis.Client
	key    string
}

func NewScheduleRedisRepository(client *redis.Client, key string) *ScheduleRedisRepository {
	return &ScheduleRedisRepository{client: client, key: key}
}

// Load 키가 없으면 빈 상태
func (r *ScheduleRedisRepository) Load(ctx context.Context) (*models.ScheduleState, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return &models.ScheduleState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule from redis: %w", err)
	}

	state := &models.ScheduleState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to decode schedule: %w", err)
	}
	return state, nil
}

// Save 만료 없이 저장
func (r *ScheduleRedisRepository) Save(ctx context.Context, state *models.ScheduleState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write schedule to redis: %w", err)
	}
	return nil
}
