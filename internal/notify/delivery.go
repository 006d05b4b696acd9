package notify

import (
	"context"
	"fmt"

	"github.com/lujainibrahim/dyad-study/internal/models"
	"go.uber.org/zap"
)

// MessageSender 스터디 메시지 전송 (pkg/prolific.Client)
type MessageSender interface {
	SendMessage(ctx context.Context, studyID, recipientID, body string) error
}

// ProlificDelivery 역할별 스터디로 메시지 전송
type ProlificDelivery struct {
	sender  MessageSender
	studies map[models.Role]string
}

func NewProlificDelivery(sender MessageSender, studyA, studyB string) *ProlificDelivery {
	return &ProlificDelivery{
		sender: sender,
		studies: map[models.Role]string{
			models.RoleA: studyA,
			models.RoleB: studyB,
		},
	}
}

// Deliver 역할에 맞는 스터디 ID가 없으면 에러
func (d *ProlificDelivery) Deliver(ctx context.Context, participantID string, role models.Role, body string) error {
	studyID := d.studies[role]
	if studyID == "" {
		return fmt.Errorf("no study configured for role %q", role)
	}
	return d.sender.SendMessage(ctx, studyID, participantID, body)
}

// LogDelivery 외부 전송 없이 초대 문구를 로그로만 남긴다 (개발용)
type LogDelivery struct {
	logger *zap.Logger
}

func NewLogDelivery(logger *zap.Logger) *LogDelivery {
	return &LogDelivery{logger: logger}
}

func (d *LogDelivery) Deliver(_ context.Context, participantID string, role models.Role, body string) error {
	d.logger.Info("Session invite (not sent)",
		zap.String("participantId", participantID),
		zap.String("role", string(role)),
		zap.String("body", body))
	return nil
}
