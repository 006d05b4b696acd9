package repository

import (
	"context"
	"time"

	"github.com/lujainibrahim/dyad-study/internal/models"
	"github.com/samber/lo"
)

// EventPublisher JSON 이벤트 발행 (pkg/events.Publisher)
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data any) error
}

// SessionCompletedEvent 완료 세션 알림. 메시지 본문은 싣지 않는다.
type SessionCompletedEvent struct {
	PairID         string        `json:"pairId"`
	ParticipantIDs []string      `json:"participantIds"`
	Roles          []models.Role `json:"roles"`
	MessageCount   int           `json:"messageCount"`
	StartTime      time.Time     `json:"startTime"`
	EndTime        time.Time     `json:"endTime"`
	DurationMs     int64         `json:"durationMs"`
}

// ChatLogEventRepository 완료 레코드를 이벤트로 발행하는 싱크
type ChatLogEventRepository struct {
	publisher EventPublisher
	subject   string
}

func NewChatLogEventRepository(publisher EventPublisher, subject string) *ChatLogEventRepository {
	return &ChatLogEventRepository{publisher: publisher, subject: subject}
}

// Record 완료 이벤트 발행
func (r *ChatLogEventRepository) Record(ctx context.Context, record *models.ChatLogRecord) error {
	event := SessionCompletedEvent{
		PairID: record.PairID,
		ParticipantIDs: lo.Map(record.Participants, func(p models.ChatLogParticipant, _ int) string {
			return p.ParticipantID
		}),
		Roles: lo.Map(record.Participants, func(p models.ChatLogParticipant, _ int) models.Role {
			return p.Role
		}),
		MessageCount: record.MessageCount,
		StartTime:    record.StartTime,
		EndTime:      record.EndTime,
		DurationMs:   record.EndTime.Sub(record.StartTime).Milliseconds(),
	}
	return r.publisher.Publish(ctx, r.subject, event)
}
