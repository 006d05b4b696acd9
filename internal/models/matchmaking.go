package models

import "time"

// MatchPolicy 호환성 판단 정책
type MatchPolicy string

const (
	MatchPolicyOpen  MatchPolicy = "open"
	MatchPolicyTyped MatchPolicy = "typed"
)

// WaitingEntry 대기열 항목. 참가자 ID는 시스템 전체에서 최대 하나의 큐에만 존재한다.
type WaitingEntry struct {
	Participant *Participant `json:"participant"`
	EnqueuedAt  time.Time    `json:"enqueuedAt"`
	Ticket      uint64       `json:"ticket"`
}

// MatchResult enqueueOrMatch 결과. Pair가 nil이면 대기 중이다.
type MatchResult struct {
	Pair   *Pair
	Ticket uint64
}

// Matched 매칭 성사 여부
func (r MatchResult) Matched() bool {
	return r.Pair != nil
}
