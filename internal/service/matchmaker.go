package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/lujainibrahim/dyad-study/internal/models"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const openQueue = "any"

// Reservations 스케줄러가 예약한 파트너 조회
type Reservations interface {
	ReservedPartner(participantID string, now time.Time) (string, bool)
}

// ExpireFunc 대기 만료 타이머가 호출. ticket이 다르면 무시해야 한다.
type ExpireFunc func(participantID string, ticket uint64)

// Matchmaker FIFO 대기열과 호환성 판단.
// 동기화는 소유자(SessionCoordinator)의 락이 담당한다.
type Matchmaker struct {
	policy       models.MatchPolicy
	queues       map[string][]*models.WaitingEntry
	index        map[string]*models.WaitingEntry
	timers       map[string]*time.Timer
	timeout      time.Duration
	nextTicket   uint64
	onExpire     ExpireFunc
	reservations Reservations
	now          func() time.Time
	newPairID    func() string
	logger       *zap.Logger
}

func NewMatchmaker(policy models.MatchPolicy, timeout time.Duration, logger *zap.Logger) *Matchmaker {
	return &Matchmaker{
		policy:    policy,
		queues:    make(map[string][]*models.WaitingEntry),
		index:     make(map[string]*models.WaitingEntry),
		timers:    make(map[string]*time.Timer),
		timeout:   timeout,
		now:       time.Now,
		newPairID: NewPairID,
		logger:    logger,
	}
}

// NewPairID 시간 순 정렬되는 페어 ID (UUIDv7)
func NewPairID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "pair_" + id.String()
}

// SetExpireHandler 만료 타이머 콜백 설정
func (m *Matchmaker) SetExpireHandler(fn ExpireFunc) {
	m.onExpire = fn
}

// SetReservations 스케줄 예약 조회 연결
func (m *Matchmaker) SetReservations(r Reservations) {
	m.reservations = r
}

func (m *Matchmaker) Policy() models.MatchPolicy {
	return m.policy
}

// queueFor 참가자가 들어갈 큐
func (m *Matchmaker) queueFor(role models.Role) string {
	if m.policy == models.MatchPolicyTyped {
		return string(role)
	}
	return openQueue
}

// candidateQueue 참가자가 파트너를 찾을 큐
func (m *Matchmaker) candidateQueue(role models.Role) string {
	if m.policy == models.MatchPolicyTyped {
		return string(role.Opposite())
	}
	return openQueue
}

// compatible 정책 + 예약 조건을 모두 만족하는지
func (m *Matchmaker) compatible(p, candidate *models.Participant, now time.Time) bool {
	if p.ID == candidate.ID {
		return false
	}
	if m.policy == models.MatchPolicyTyped && candidate.Role != p.Role.Opposite() {
		return false
	}
	if m.reservations == nil {
		return true
	}
	if partner, ok := m.reservations.ReservedPartner(p.ID, now); ok && partner != candidate.ID {
		return false
	}
	if partner, ok := m.reservations.ReservedPartner(candidate.ID, now); ok && partner != p.ID {
		return false
	}
	return true
}

// EnqueueOrMatch 가장 오래 기다린 호환 파트너와 매칭하거나 대기열에 추가
func (m *Matchmaker) EnqueueOrMatch(p *models.Participant) models.MatchResult {
	if entry, ok := m.index[p.ID]; ok {
		return models.MatchResult{Ticket: entry.Ticket}
	}

	now := m.now()
	key := m.candidateQueue(p.Role)
	queue := m.queues[key]

	for i, entry := range queue {
		if !m.compatible(p, entry.Participant, now) {
			continue
		}

		// 타이머 취소가 매칭 알림보다 먼저
		m.dequeue(key, i)

		pair := models.NewPair(m.newPairID(), entry.Participant, p, now)
		m.logger.Info("Participants matched",
			zap.String("pairId", pair.ID),
			zap.String("slot1", entry.Participant.ID),
			zap.String("slot2", p.ID),
			zap.Duration("waited", now.Sub(entry.EnqueuedAt)))
		return models.MatchResult{Pair: pair}
	}

	m.nextTicket++
	entry := &models.WaitingEntry{
		Participant: p,
		EnqueuedAt:  now,
		Ticket:      m.nextTicket,
	}
	own := m.queueFor(p.Role)
	m.queues[own] = append(m.queues[own], entry)
	m.index[p.ID] = entry
	m.armExpiry(p.ID, entry.Ticket)

	m.logger.Info("Participant waiting",
		zap.String("participantId", p.ID),
		zap.String("queue", own),
		zap.Int("queueLength", len(m.queues[own])))

	return models.MatchResult{Ticket: entry.Ticket}
}

func (m *Matchmaker) armExpiry(participantID string, ticket uint64) {
	if m.timeout <= 0 || m.onExpire == nil {
		return
	}
	onExpire := m.onExpire
	m.timers[participantID] = time.AfterFunc(m.timeout, func() {
		onExpire(participantID, ticket)
	})
}

func (m *Matchmaker) cancelExpiry(participantID string) {
	if timer, ok := m.timers[participantID]; ok {
		timer.Stop()
		delete(m.timers, participantID)
	}
}

// dequeue 큐 위치 i의 항목 제거 + 인덱스/타이머 정리
func (m *Matchmaker) dequeue(key string, i int) {
	queue := m.queues[key]
	entry := queue[i]
	m.queues[key] = append(queue[:i:i], queue[i+1:]...)
	delete(m.index, entry.Participant.ID)
	m.cancelExpiry(entry.Participant.ID)
}

// Remove 대기 중인 참가자 제거 (연결 해제). 대기 중이 아니면 false.
func (m *Matchmaker) Remove(participantID string) bool {
	entry, ok := m.index[participantID]
	if !ok {
		return false
	}
	key := m.queueFor(entry.Participant.Role)
	_, i, found := lo.FindIndexOf(m.queues[key], func(e *models.WaitingEntry) bool {
		return e.Participant.ID == participantID
	})
	if !found {
		delete(m.index, participantID)
		m.cancelExpiry(participantID)
		return true
	}
	m.dequeue(key, i)
	return true
}

// Expire 만료 타이머 처리. ticket이 현재 대기 항목과 일치할 때만 제거한다.
func (m *Matchmaker) Expire(participantID string, ticket uint64) bool {
	entry, ok := m.index[participantID]
	if !ok || entry.Ticket != ticket {
		return false
	}
	m.Remove(participantID)
	m.logger.Info("Waiting entry expired",
		zap.String("participantId", participantID),
		zap.Duration("waited", m.now().Sub(entry.EnqueuedAt)))
	return true
}

func (m *Matchmaker) IsWaiting(participantID string) bool {
	_, ok := m.index[participantID]
	return ok
}

// WaitingCounts 큐별 대기 인원
func (m *Matchmaker) WaitingCounts() map[string]int {
	counts := make(map[string]int, len(m.queues))
	for key, queue := range m.queues {
		counts[key] = len(queue)
	}
	return counts
}

// Waiting 큐 순서대로 대기 참가자 ID
func (m *Matchmaker) Waiting(key string) []string {
	return lo.Map(m.queues[key], func(e *models.WaitingEntry, _ int) string {
		return e.Participant.ID
	})
}
