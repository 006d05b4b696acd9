package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type AdminLoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// CheckAdminPassword bcrypt 해시와 비밀번호 비교
func CheckAdminPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashPassword 관리자 비밀번호 해싱 (ADMIN_PASSWORD_HASH 생성용)
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// PairSummary 관리자 화면용 활성 페어 요약
type PairSummary struct {
	PairID       string    `json:"pairId"`
	Participants []string  `json:"participants"`
	Roles        []Role    `json:"roles"`
	Counts       [2]int    `json:"counts"`
	FinishVotes  []Slot    `json:"finishVotes"`
	Disconnected []Slot    `json:"disconnected"`
	MayFinish    bool      `json:"mayFinish"`
	StartedAt    time.Time `json:"startedAt"`
}

// CoordinatorStats 관리자 통계
type CoordinatorStats struct {
	Connected   int            `json:"connected"`
	Waiting     map[string]int `json:"waiting"`
	ActivePairs int            `json:"activePairs"`
	Completed   int            `json:"completed"`
}
