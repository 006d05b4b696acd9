package models

import "time"

// ScheduledRegistration 미래 시간대 사전 등록
type ScheduledRegistration struct {
	ParticipantID string     `json:"participantId"`
	Role          Role       `json:"role"`
	RequestedTime time.Time  `json:"requestedTime"`
	RegisteredAt  time.Time  `json:"registeredAt"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// MatchedScheduleEntry 스케줄러가 만든 매칭. 등록은 최대 하나의 엔트리에만 속한다.
type MatchedScheduleEntry struct {
	RegistrationA ScheduledRegistration `json:"registrationA"`
	RegistrationB ScheduledRegistration `json:"registrationB"`
	ResolvedTime  time.Time             `json:"resolvedTime"`
	Notified      bool                  `json:"notified"`
	NotifiedAt    *time.Time            `json:"notifiedAt,omitempty"`
}

// Involves 참가자가 이 엔트리에 속하는지
func (e MatchedScheduleEntry) Involves(participantID string) bool {
	return e.RegistrationA.ParticipantID == participantID || e.RegistrationB.ParticipantID == participantID
}

// ScheduleState 스케줄 저장소 레코드
type ScheduleState struct {
	Pending  []ScheduledRegistration `json:"pending"`
	Matched  []MatchedScheduleEntry  `json:"matched"`
	Notified []MatchedScheduleEntry  `json:"notified"`
	// Missed 통지 전에 예정 시각이 지나버린 매칭
	Missed   []MatchedScheduleEntry  `json:"missed,omitempty"`
}

// Clone 얕은 슬라이스 복사 (엔트리는 값 타입)
func (s *ScheduleState) Clone() *ScheduleState {
	if s == nil {
		return &ScheduleState{}
	}
	return &ScheduleState{
		Pending:  append([]ScheduledRegistration(nil), s.Pending...),
		Matched:  append([]MatchedScheduleEntry(nil), s.Matched...),
		Notified: append([]MatchedScheduleEntry(nil), s.Notified...),
		Missed:   append([]MatchedScheduleEntry(nil), s.Missed...),
	}
}

// ScheduleRequest POST /schedule 요청
type ScheduleRequest struct {
	ParticipantID string     `json:"participantId" validate:"required,max=128"`
	Role          Role       `json:"role" validate:"required,oneof=A B"`
	RequestedTime *time.Time `json:"requestedTime" validate:"required"`
}

// TimeSlot GET /timeslots 항목
type TimeSlot struct {
	Time     time.Time `json:"time"`
	Label    string    `json:"label"`
	PendingA int       `json:"pendingA"`
	PendingB int       `json:"pendingB"`
}
