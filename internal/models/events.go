package models

import "time"

// 인바운드 이벤트 타입 (외부 프로토콜, 이름 변경 금지)
const (
	EventJoin       = "join"
	EventMessage    = "message"
	EventFinished   = "finished"
	EventDisconnect = "disconnect"
)

// 아웃바운드 이벤트 타입
const (
	EventWaiting             = "waiting"
	EventMatched             = "matched"
	EventMayFinish           = "mayFinish"
	EventWaitForPartnerStart = "waitForPartnerStart"
	EventMaxReached          = "maxReached"
	EventYouFinished         = "youFinished"
	EventPartnerFinished     = "partnerFinished"
	EventComplete            = "complete"
	EventPartnerDisconnected = "partnerDisconnected"
	EventWaitingTimedOut     = "waitingTimedOut"
	EventPartnerMayNowSend   = "partnerMayNowSend"
	EventFinishRejected      = "finishRejected"
	EventError               = "error"
)

// JoinRequest join 페이로드
type JoinRequest struct {
	ParticipantID string `json:"participantId" validate:"required,max=128"`
	Role          Role   `json:"role" validate:"omitempty,oneof=A B"`
}

// ChatMessageRequest message 페이로드
type ChatMessageRequest struct {
	Text string `json:"text"`
}

// MatchedPayload matched 이벤트
type MatchedPayload struct {
	PairID      string `json:"pairId"`
	YourSlot    Slot   `json:"yourSlot"`
	PartnerSlot Slot   `json:"partnerSlot"`
	YourRole    Role   `json:"yourRole,omitempty"`
}

// MessagePayload message 브로드캐스트. 수신자마다 자기/상대 카운트가 다르다.
type MessagePayload struct {
	Text         string `json:"text"`
	SenderSlot   Slot   `json:"senderSlot"`
	Timestamp    int64  `json:"timestamp"`
	YourCount    int    `json:"yourCount"`
	PartnerCount int    `json:"partnerCount"`
	MessageCount int    `json:"messageCount"`
	MayFinish    bool   `json:"mayFinish"`
	MaxReached   bool   `json:"maxReached,omitempty"`
}

// CompletePayload complete 이벤트
type CompletePayload struct {
	ParticipantID string `json:"participantId"`
	Code          string `json:"code"`
}

// FinishRejectedPayload finishRejected 이벤트
type FinishRejectedPayload struct {
	Reason string `json:"reason"`
}

// ErrorPayload error 이벤트
type ErrorPayload struct {
	Message string `json:"message"`
}

// Millis JS 호환 타임스탬프
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
