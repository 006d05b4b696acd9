package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lujainibrahim/dyad-study/internal/models"
	"github.com/lujainibrahim/dyad-study/pkg/database"
	"github.com/lujainibrahim/dyad-study/pkg/storage"
)

// ChatLogFileRepository 페어마다 <pairId>.json 파일 하나
type ChatLogFileRepository struct {
	storage *storage.Storage
}

func NewChatLogFileRepository(st *storage.Storage) *ChatLogFileRepository {
	return &ChatLogFileRepository{storage: st}
}

// Record 완료 레코드 저장
func (r *ChatLogFileRepository) Record(_ context.Context, record *models.ChatLogRecord) error {
	if record == nil || record.PairID == "" {
		return fmt.Errorf("chat log record without pair id")
	}
	if err := r.storage.WriteJSON(record.PairID+".json", record); err != nil {
		return fmt.Errorf("failed to write chat log %s: %w", record.PairID, err)
	}
	return nil
}

// FindByPairID 저장된 레코드 조회. 없으면 nil.
func (r *ChatLogFileRepository) FindByPairID(pairID string) (*models.ChatLogRecord, error) {
	record := &models.ChatLogRecord{}
	err := r.storage.ReadJSON(pairID+".json", record)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListPairIDs 저장된 페어 ID 목록
func (r *ChatLogFileRepository) ListPairIDs() ([]string, error) {
	names, err := r.storage.List(".json")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(names))
	for _, name := range names {
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// ChatLogPostgresRepository chat_logs 테이블에 JSONB로 저장
type ChatLogPostgresRepository struct {
	db *database.DB
}

func NewChatLogPostgresRepository(db *database.DB) *ChatLogPostgresRepository {
	return &ChatLogPostgresRepository{db: db}
}

// Record 완료 레코드 저장. 같은 pair_id는 덮어쓴다.
func (r *ChatLogPostgresRepository) Record(ctx context.Context, record *models.ChatLogRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode chat log: %w", err)
	}

	query := `
		INSERT INTO chat_logs (pair_id, started_at, ended_at, message_count, record)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (pair_id)
		DO UPDATE SET
			ended_at = EXCLUDED.ended_at,
			message_count = EXCLUDED.message_count,
			record = EXCLUDED.record
	`
	_, err = r.db.ExecContext(ctx, query,
		record.PairID,
		record.StartTime,
		record.EndTime,
		record.MessageCount,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat log: %w", err)
	}
	return nil
}

// CountCompleted 저장된 완료 세션 수
func (r *ChatLogPostgresRepository) CountCompleted(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_logs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chat logs: %w", err)
	}
	return count, nil
}

// ChatLogSummary chat_logs 목록 항목
type ChatLogSummary struct {
	PairID       string
	MessageCount int
	EndedAt      time.Time
}

// ListRecent 최근 종료된 순으로 limit개
func (r *ChatLogPostgresRepository) ListRecent(ctx context.Context, limit int) ([]ChatLogSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pair_id, message_count, ended_at
		FROM chat_logs
		ORDER BY ended_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat logs: %w", err)
	}
	defer rows.Close()

	var summaries []ChatLogSummary
	for rows.Next() {
		var s ChatLogSummary
		if err := rows.Scan(&s.PairID, &s.MessageCount, &s.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat log: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
