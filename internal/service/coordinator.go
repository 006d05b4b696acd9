package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lujainibrahim/dyad-study/internal/config"
	"github.com/lujainibrahim/dyad-study/internal/models"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const reasonMinimumNotReached = "minimumNotReached"

// SessionPolicy 대화 정책 (메시지 수 임계값, turn-taking)
type SessionPolicy struct {
	TurnTaking    bool
	MinMessages   int
	ThresholdMode config.ThresholdMode
	MaxMessages   int
}

// PolicyFromConfig 설정에서 세션 정책 구성
func PolicyFromConfig(cfg *config.Config) SessionPolicy {
	return SessionPolicy{
		TurnTaking:    cfg.TurnTaking,
		MinMessages:   cfg.MinMessages,
		ThresholdMode: cfg.MinMessagesMode,
		MaxMessages:   cfg.MaxMessages,
	}
}

// SessionCoordinator 활성 페어 소유 및 메시지 흐름 상태 기계.
// 대기열, 페어 테이블, 참가자->페어 인덱스 변경은 모두 mu 아래에서 일어난다.
type SessionCoordinator struct {
	mu            sync.Mutex
	registry      *ParticipantRegistry
	matchmaker    *Matchmaker
	issuer        CompletionCodeIssuer
	sink          LogSink
	policy        SessionPolicy
	pairs         map[string]*models.Pair
	byParticipant map[string]string
	completed     int
	validate      *validator.Validate
	now           func() time.Time
	logger        *zap.Logger
}

func NewSessionCoordinator(
	registry *ParticipantRegistry,
	matchmaker *Matchmaker,
	issuer CompletionCodeIssuer,
	sink LogSink,
	policy SessionPolicy,
	logger *zap.Logger,
) *SessionCoordinator {
	return &SessionCoordinator{
		registry:      registry,
		matchmaker:    matchmaker,
		issuer:        issuer,
		sink:          sink,
		policy:        policy,
		pairs:         make(map[string]*models.Pair),
		byParticipant: make(map[string]string),
		validate:      newValidator(),
		now:           time.Now,
		logger:        logger,
	}
}

// Handle 디스패처 커맨드 라우팅
func (s *SessionCoordinator) Handle(cmd Command) {
	switch c := cmd.(type) {
	case JoinCommand:
		s.OnJoin(c.Request, c.Conn)
	case MessageCommand:
		s.OnMessage(c.ParticipantID, c.Text)
	case FinishCommand:
		s.OnFinish(c.ParticipantID)
	case DisconnectCommand:
		s.OnDisconnect(c.ParticipantID, c.Conn)
	case ExpireCommand:
		s.OnExpire(c.ParticipantID, c.Ticket)
	default:
		s.logger.Warn("Unknown command", zap.Any("command", cmd))
	}
}

// OnJoin 참가자 입장. 검증 실패는 호출자에게만 error 이벤트로 알린다.
func (s *SessionCoordinator) OnJoin(req models.JoinRequest, conn models.Connection) {
	req.ParticipantID = strings.TrimSpace(req.ParticipantID)
	req.Role = models.Role(strings.ToUpper(strings.TrimSpace(string(req.Role))))

	if err := s.validateJoin(req); err != nil {
		s.logger.Info("Rejected join", zap.String("participantId", req.ParticipantID), zap.Error(err))
		if conn != nil {
			conn.Send(models.EventError, models.ErrorPayload{Message: err.Error()})
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.registry.Get(req.ParticipantID); ok {
		if pairID, inPair := s.byParticipant[existing.ID]; inPair {
			s.registry.Bind(existing.ID, existing.Role, conn)
			pair := s.pairs[pairID]
			slot, _ := pair.SlotOf(existing.ID)
			existing.Send(models.EventMatched, matchedPayload(pair, slot))
			s.logger.Info("Participant rejoined pair",
				zap.String("participantId", existing.ID),
				zap.String("pairId", pairID))
			return
		}
		if s.matchmaker.IsWaiting(existing.ID) {
			s.registry.Bind(existing.ID, existing.Role, conn)
			existing.Send(models.EventWaiting, nil)
			return
		}
		s.registry.SetRole(existing.ID, req.Role)
	}

	p, _ := s.registry.Bind(req.ParticipantID, req.Role, conn)
	result := s.matchmaker.EnqueueOrMatch(p)
	if !result.Matched() {
		p.Send(models.EventWaiting, nil)
		return
	}

	s.startPair(result.Pair)
}

func (s *SessionCoordinator) validateJoin(req models.JoinRequest) error {
	if err := validateStruct(s.validate, req); err != nil {
		return err
	}
	if s.matchmaker.Policy() == models.MatchPolicyTyped && !req.Role.Typed() {
		return ErrInvalidRole
	}
	return nil
}

func (s *SessionCoordinator) startPair(pair *models.Pair) {
	pair.TurnGateOpen = !s.gateActive(pair)
	s.pairs[pair.ID] = pair
	for _, participant := range pair.Participants {
		s.byParticipant[participant.ID] = pair.ID
	}

	// 임계값이 0이면 매칭 즉시 종료 가능
	pair.MayFinish = s.mayFinish(pair)

	for i, participant := range pair.Participants {
		participant.Send(models.EventMatched, matchedPayload(pair, models.Slot(i+1)))
	}
	if pair.MayFinish {
		for _, participant := range pair.Participants {
			participant.Send(models.EventMayFinish, nil)
		}
	}
}

func matchedPayload(pair *models.Pair, slot models.Slot) models.MatchedPayload {
	return models.MatchedPayload{
		PairID:      pair.ID,
		YourSlot:    slot,
		PartnerSlot: slot.Other(),
		YourRole:    pair.Participant(slot).Role,
	}
}

// gateActive turn-taking 정책이 켜져 있고 페어에 A, B가 모두 있을 때만 적용
func (s *SessionCoordinator) gateActive(pair *models.Pair) bool {
	if !s.policy.TurnTaking {
		return false
	}
	_, hasA := pair.SlotWithRole(models.RoleA)
	_, hasB := pair.SlotWithRole(models.RoleB)
	return hasA && hasB
}

// lookup 참가자의 활성 페어와 슬롯. 없으면 조용히 무시한다.
func (s *SessionCoordinator) lookup(participantID string) (*models.Pair, models.Slot, bool) {
	pairID, ok := s.byParticipant[participantID]
	if !ok {
		return nil, 0, false
	}
	pair, ok := s.pairs[pairID]
	if !ok || pair.Completed {
		return nil, 0, false
	}
	slot, ok := pair.SlotOf(participantID)
	if !ok {
		return nil, 0, false
	}
	return pair, slot, true
}

// OnMessage 메시지 수신. 정책 거절은 발신자에게만 알리고 상태를 바꾸지 않는다.
func (s *SessionCoordinator) OnMessage(participantID, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pair, slot, ok := s.lookup(participantID)
	if !ok {
		return
	}
	sender := pair.Participant(slot)
	partner := pair.Participant(slot.Other())
	gated := s.gateActive(pair) && !pair.TurnGateOpen

	if gated && sender.Role == models.RoleB {
		sender.Send(models.EventWaitForPartnerStart, nil)
		return
	}

	if s.policy.MaxMessages > 0 && pair.Count(slot) >= s.policy.MaxMessages {
		sender.Send(models.EventMaxReached, nil)
		return
	}

	msg := models.Message{
		Text:       text,
		SenderSlot: slot,
		SentAt:     s.now(),
	}
	pair.Append(msg)

	if gated && sender.Role == models.RoleA {
		pair.TurnGateOpen = true
		partner.Send(models.EventPartnerMayNowSend, nil)
	}

	transition := false
	if !pair.MayFinish && s.mayFinish(pair) {
		pair.MayFinish = true
		transition = true
	}

	for i, recipient := range pair.Participants {
		own := models.Slot(i + 1)
		recipient.Send(models.EventMessage, models.MessagePayload{
			Text:         msg.Text,
			SenderSlot:   msg.SenderSlot,
			Timestamp:    models.Millis(msg.SentAt),
			YourCount:    pair.Count(own),
			PartnerCount: pair.Count(own.Other()),
			MessageCount: pair.Total(),
			MayFinish:    pair.MayFinish,
			MaxReached:   s.policy.MaxMessages > 0 && pair.Count(own) >= s.policy.MaxMessages,
		})
	}

	if transition {
		for _, recipient := range pair.Participants {
			recipient.Send(models.EventMayFinish, nil)
		}
		s.logger.Info("Pair may finish",
			zap.String("pairId", pair.ID),
			zap.Int("messageCount", pair.Total()))
	}
}

// mayFinish 설정된 최소 메시지 임계값 충족 여부
func (s *SessionCoordinator) mayFinish(pair *models.Pair) bool {
	if s.policy.ThresholdMode == config.ThresholdPerParticipant {
		return pair.Count(models.Slot1) >= s.policy.MinMessages &&
			pair.Count(models.Slot2) >= s.policy.MinMessages
	}
	return pair.Total() >= s.policy.MinMessages
}

// OnFinish 종료 투표 (슬롯 집합이라 중복 투표는 세지 않는다)
func (s *SessionCoordinator) OnFinish(participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair, slot, ok := s.lookup(participantID)
	if !ok {
		return
	}
	voter := pair.Participant(slot)

	if !pair.MayFinish {
		voter.Send(models.EventFinishRejected, models.FinishRejectedPayload{Reason: reasonMinimumNotReached})
		return
	}

	if pair.FinishVotes[slot] {
		voter.Send(models.EventYouFinished, nil)
		return
	}

	pair.FinishVotes[slot] = true
	voter.Send(models.EventYouFinished, nil)
	pair.Participant(slot.Other()).Send(models.EventPartnerFinished, nil)

	if len(pair.FinishVotes) == 2 {
		s.complete(pair)
	}
}

// complete 정확히 한 번 실행: 코드 발급, sink 전달, 알림, 인덱스 제거
func (s *SessionCoordinator) complete(pair *models.Pair) {
	pair.Completed = true
	endedAt := s.now()

	var codes [2]string
	for i, participant := range pair.Participants {
		codes[i] = s.issuer.Issue(participant.ID, pair.ID)
	}

	record := pair.Snapshot(codes, endedAt)
	if err := s.sink.Record(context.Background(), record); err != nil {
		s.logger.Error("Failed to hand off chat log",
			zap.String("pairId", pair.ID),
			zap.Error(err))
	}

	for i, participant := range pair.Participants {
		participant.Send(models.EventComplete, models.CompletePayload{
			ParticipantID: participant.ID,
			Code:          codes[i],
		})
	}

	delete(s.pairs, pair.ID)
	for _, participant := range pair.Participants {
		delete(s.byParticipant, participant.ID)
		if !participant.Connected() {
			s.registry.Remove(participant.ID)
		}
	}
	s.completed++

	s.logger.Info("Pair completed conversation",
		zap.String("pairId", pair.ID),
		zap.Int("messageCount", pair.Total()),
		zap.Duration("duration", endedAt.Sub(pair.StartedAt)))
}

// OnDisconnect 연결 종료. 대기 중이면 큐에서 빠지고, 페어 중이면 상대에게만 알린다.
func (s *SessionCoordinator) OnDisconnect(participantID string, conn models.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.registry.Get(participantID)
	if !ok || p.Conn != conn {
		return
	}

	if s.matchmaker.Remove(participantID) {
		s.registry.Remove(participantID)
		s.logger.Info("Removed from waiting room", zap.String("participantId", participantID))
		return
	}

	pair, slot, inPair := s.lookup(participantID)
	if !inPair {
		s.registry.Remove(participantID)
		return
	}

	// 버려진 페어는 회수하지 않는다
	s.registry.Unbind(participantID)
	pair.Participant(slot.Other()).Send(models.EventPartnerDisconnected, nil)
	s.logger.Info("Participant disconnected from active pair",
		zap.String("participantId", participantID),
		zap.String("pairId", pair.ID))
}

// OnExpire 대기 만료. 이미 매칭됐거나 재입장한 경우 ticket 불일치로 무시된다.
func (s *SessionCoordinator) OnExpire(participantID string, ticket uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.matchmaker.Expire(participantID, ticket) {
		return
	}
	if p, ok := s.registry.Get(participantID); ok {
		p.Send(models.EventWaitingTimedOut, nil)
	}
}

// Stats 관리자 통계
func (s *SessionCoordinator) Stats() models.CoordinatorStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.CoordinatorStats{
		Connected:   s.registry.Count(),
		Waiting:     s.matchmaker.WaitingCounts(),
		ActivePairs: len(s.pairs),
		Completed:   s.completed,
	}
}

// Pairs 활성 페어 요약 (시작 시각 순)
func (s *SessionCoordinator) Pairs() []models.PairSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := lo.MapToSlice(s.pairs, func(_ string, pair *models.Pair) models.PairSummary {
		summary := models.PairSummary{
			PairID:    pair.ID,
			Counts:    pair.Counts,
			MayFinish: pair.MayFinish,
			StartedAt: pair.StartedAt,
		}
		for i, participant := range pair.Participants {
			slot := models.Slot(i + 1)
			summary.Participants = append(summary.Participants, participant.ID)
			summary.Roles = append(summary.Roles, participant.Role)
			if pair.FinishVotes[slot] {
				summary.FinishVotes = append(summary.FinishVotes, slot)
			}
			if !participant.Connected() {
				summary.Disconnected = append(summary.Disconnected, slot)
			}
		}
		return summary
	})

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartedAt.Before(summaries[j].StartedAt)
	})
	return summaries
}

// ActivePairOf 참가자의 활성 페어 ID
func (s *SessionCoordinator) ActivePairOf(participantID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pairID, ok := s.byParticipant[participantID]
	return pairID, ok
}
