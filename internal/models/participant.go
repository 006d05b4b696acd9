package models

import "time"

// Role 참가자 유형 (typed 정책과 turn-taking에서 사용)
type Role string

const (
	RoleA           Role = "A"
	RoleB           Role = "B"
	RoleUnspecified Role = ""
)

// Valid 닫힌 역할 집합에 속하는지 확인 (unspecified 포함)
func (r Role) Valid() bool {
	return r == RoleA || r == RoleB || r == RoleUnspecified
}

// Typed A/B 중 하나인지 확인
func (r Role) Typed() bool {
	return r == RoleA || r == RoleB
}

// Opposite 반대 역할
func (r Role) Opposite() Role {
	switch r {
	case RoleA:
		return RoleB
	case RoleB:
		return RoleA
	default:
		return RoleUnspecified
	}
}

// Connection 전송 계층이 소유하는 연결 핸들. 코어는 참조만 한다.
type Connection interface {
	Send(eventType string, payload interface{})
}

// Participant 연결된 참가자
type Participant struct {
	ID          string     `json:"participantId"`
	Role        Role       `json:"role"`
	Conn        Connection `json:"-"`
	ConnectedAt time.Time  `json:"connectedAt"`
}

// Connected 연결 핸들이 살아있는지
func (p *Participant) Connected() bool {
	return p.Conn != nil
}

// Send 연결이 없으면 조용히 버린다
func (p *Participant) Send(eventType string, payload interface{}) {
	if p.Conn == nil {
		return
	}
	p.Conn.Send(eventType, payload)
}
