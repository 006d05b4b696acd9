package models

import "time"

// Slot 페어 내 고정 위치 (1 또는 2)
type Slot int

const (
	Slot1 Slot = 1
	Slot2 Slot = 2
)

// Other 상대 슬롯
func (s Slot) Other() Slot {
	if s == Slot1 {
		return Slot2
	}
	return Slot1
}

func (s Slot) index() int {
	return int(s) - 1
}

// Message 페어 대화 메시지
type Message struct {
	Text       string    `json:"text"`
	SenderSlot Slot      `json:"senderSlot"`
	SentAt     time.Time `json:"sentAt"`
}

// Pair 두 참가자의 대화 세션
type Pair struct {
	ID           string
	Participants [2]*Participant
	Messages     []Message
	Counts       [2]int
	FinishVotes  map[Slot]bool
	StartedAt    time.Time
	TurnGateOpen bool
	MayFinish    bool
	Completed    bool
}

// NewPair 먼저 기다린 참가자가 슬롯 1
func NewPair(id string, first, second *Participant, startedAt time.Time) *Pair {
	return &Pair{
		ID:           id,
		Participants: [2]*Participant{first, second},
		FinishVotes:  make(map[Slot]bool, 2),
		StartedAt:    startedAt,
	}
}

// Participant 슬롯의 참가자
func (p *Pair) Participant(slot Slot) *Participant {
	return p.Participants[slot.index()]
}

// SlotOf 참가자 ID의 슬롯
func (p *Pair) SlotOf(participantID string) (Slot, bool) {
	for i, participant := range p.Participants {
		if participant != nil && participant.ID == participantID {
			return Slot(i + 1), true
		}
	}
	return 0, false
}

// Count 슬롯별 메시지 수
func (p *Pair) Count(slot Slot) int {
	return p.Counts[slot.index()]
}

// Append 메시지 추가 후 발신자 카운트 증가
func (p *Pair) Append(msg Message) {
	p.Messages = append(p.Messages, msg)
	p.Counts[msg.SenderSlot.index()]++
}

// Total 전체 메시지 수
func (p *Pair) Total() int {
	return len(p.Messages)
}

// SlotWithRole 주어진 역할의 슬롯 (없으면 false)
func (p *Pair) SlotWithRole(role Role) (Slot, bool) {
	for i, participant := range p.Participants {
		if participant != nil && participant.Role == role {
			return Slot(i + 1), true
		}
	}
	return 0, false
}

// ChatLogParticipant 로그 레코드의 참가자 항목
type ChatLogParticipant struct {
	ParticipantID  string `json:"participantId"`
	Role           Role   `json:"role"`
	CompletionCode string `json:"completionCode"`
}

// ChatLogMessage 로그 레코드의 메시지 항목
type ChatLogMessage struct {
	Text       string    `json:"text"`
	SenderSlot Slot      `json:"senderSlot"`
	SenderID   string    `json:"senderId"`
	SenderRole Role      `json:"senderRole"`
	Timestamp  time.Time `json:"timestamp"`
}

// ChatLogRecord 완료된 페어의 불변 스냅샷. LogSink로 넘긴 뒤 코어는 보관하지 않는다.
type ChatLogRecord struct {
	PairID       string               `json:"pairId"`
	Participants []ChatLogParticipant `json:"participants"`
	StartTime    time.Time            `json:"startTime"`
	EndTime      time.Time            `json:"endTime"`
	MessageCount int                  `json:"messageCount"`
	Messages     []ChatLogMessage     `json:"messages"`
}

// Snapshot 페어와 발급된 코드로 로그 레코드 생성
func (p *Pair) Snapshot(codes [2]string, endedAt time.Time) *ChatLogRecord {
	record := &ChatLogRecord{
		PairID:       p.ID,
		Participants: make([]ChatLogParticipant, 0, 2),
		StartTime:    p.StartedAt,
		EndTime:      endedAt,
		MessageCount: len(p.Messages),
		Messages:     make([]ChatLogMessage, 0, len(p.Messages)),
	}

	for i, participant := range p.Participants {
		record.Participants = append(record.Participants, ChatLogParticipant{
			ParticipantID:  participant.ID,
			Role:           participant.Role,
			CompletionCode: codes[i],
		})
	}

	for _, msg := range p.Messages {
		sender := p.Participant(msg.SenderSlot)
		record.Messages = append(record.Messages, ChatLogMessage{
			Text:       msg.Text,
			SenderSlot: msg.SenderSlot,
			SenderID:   sender.ID,
			SenderRole: sender.Role,
			Timestamp:  msg.SentAt,
		})
	}

	return record
}
