package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lujainibrahim/dyad-study/internal/models"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ScheduleStore 스케줄 상태 영속화
type ScheduleStore interface {
	Load(ctx context.Context) (*models.ScheduleState, error)
	Save(ctx context.Context, state *models.ScheduleState) error
}

// MessageDelivery 참가자 ID로 메시지 전달 (외부 메시징)
type MessageDelivery interface {
	Deliver(ctx context.Context, participantID string, role models.Role, body string) error
}

// TickLocker 틱 중복 실행 방지용 락 (선택)
type TickLocker interface {
	TryLock(ctx context.Context) (release func(), err error)
}

// ErrTickLocked 다른 프로세스가 틱을 실행 중
var ErrTickLocked = errors.New("scheduler tick already running elsewhere")

type SchedulerConfig struct {
	Interval          time.Duration
	Tolerance         time.Duration
	Lookahead         time.Duration
	ReservationWindow time.Duration
	DeliveryTimeout   time.Duration
	InviteLinks       map[models.Role]string
	Location          *time.Location
	SlotInterval      time.Duration
	SlotHorizon       time.Duration
	SlotStartHour     int
	SlotEndHour       int
}

type reservation struct {
	partnerID    string
	resolvedTime time.Time
}

// Scheduler 사전 등록 매칭 + 알림 발송
type Scheduler struct {
	store    ScheduleStore
	delivery MessageDelivery
	locker   TickLocker
	cfg      SchedulerConfig
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	state *models.ScheduleState
	dirty bool

	resMu        sync.RWMutex
	reservations map[string]reservation

	runMu    sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewScheduler(store ScheduleStore, delivery MessageDelivery, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 15 * time.Second
	}
	return &Scheduler{
		store:        store,
		delivery:     delivery,
		cfg:          cfg,
		validate:     newValidator(),
		logger:       logger,
		now:          time.Now,
		state:        &models.ScheduleState{},
		reservations: make(map[string]reservation),
	}
}

// SetLocker 틱 락 연결 (Redis 저장소일 때)
func (s *Scheduler) SetLocker(locker TickLocker) {
	s.locker = locker
}

// Start 주기 실행 시작
func (s *Scheduler) Start() {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.runMu.Unlock()

	s.logger.Info("Starting Scheduler", zap.Duration("interval", s.cfg.Interval))

	s.wg.Add(1)
	go s.loop()
}

// Stop 주기 실행 중지
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	s.runMu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// 시작 시 한번 실행
	s.Tick(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Tick(context.Background())
		case <-s.stopChan:
			return
		}
	}
}

// Register 사전 등록. 같은 참가자는 대기 항목을 제자리에서 갱신한다.
func (s *Scheduler) Register(ctx context.Context, req models.ScheduleRequest) (models.ScheduledRegistration, bool, error) {
	req.ParticipantID = strings.TrimSpace(req.ParticipantID)
	req.Role = models.Role(strings.ToUpper(strings.TrimSpace(string(req.Role))))

	if err := validateStruct(s.validate, req); err != nil {
		return models.ScheduledRegistration{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh(ctx)
	now := s.now()

	if s.alreadyMatched(req.ParticipantID, now) {
		return models.ScheduledRegistration{}, false, ErrAlreadyScheduled
	}

	requested := req.RequestedTime.UTC()
	reg := models.ScheduledRegistration{
		ParticipantID: req.ParticipantID,
		Role:          req.Role,
		RequestedTime: requested,
		RegisteredAt:  now,
	}

	updated := false
	_, i, found := lo.FindIndexOf(s.state.Pending, func(r models.ScheduledRegistration) bool {
		return r.ParticipantID == req.ParticipantID
	})
	if found {
		updatedAt := now
		reg.RegisteredAt = s.state.Pending[i].RegisteredAt
		reg.UpdatedAt = &updatedAt
		s.state.Pending[i] = reg
		updated = true
	} else {
		s.state.Pending = append(s.state.Pending, reg)
	}

	s.persist(ctx)

	s.logger.Info("Scheduled registration stored",
		zap.String("participantId", reg.ParticipantID),
		zap.String("role", string(reg.Role)),
		zap.Time("requestedTime", reg.RequestedTime),
		zap.Bool("updated", updated))

	return reg, updated, nil
}

// alreadyMatched 예약 창이 아직 열린 매칭(통지 여부 무관)이 있으면 true
func (s *Scheduler) alreadyMatched(participantID string, now time.Time) bool {
	live := func(e models.MatchedScheduleEntry) bool {
		return e.Involves(participantID) && !now.After(e.ResolvedTime.Add(s.cfg.ReservationWindow))
	}
	return lo.ContainsBy(s.state.Matched, live) || lo.ContainsBy(s.state.Notified, live)
}

// Tick 한 주기: 로드 -> 매칭 -> 통지 표시 -> 저장 -> 초대 전달
func (s *Scheduler) Tick(ctx context.Context) {
	if s.locker != nil {
		release, err := s.locker.TryLock(ctx)
		switch {
		case errors.Is(err, ErrTickLocked):
			s.logger.Debug("Scheduler tick skipped, lock held elsewhere")
			return
		case err != nil:
			s.logger.Warn("Scheduler tick lock unavailable, running unlocked", zap.Error(err))
		default:
			defer release()
		}
	}

	s.mu.Lock()
	s.refresh(ctx)
	now := s.now()

	created := s.matchPending()
	due := s.takeDue(now)
	missed := s.dropMissed(now)

	if created > 0 || len(due) > 0 || missed > 0 || s.dirty {
		s.persist(ctx)
	}
	s.rebuildReservations()
	pending := len(s.state.Pending)
	s.mu.Unlock()

	// 전달은 s.mu 밖에서
	for _, entry := range due {
		s.deliverInvite(ctx, entry.RegistrationA)
		s.deliverInvite(ctx, entry.RegistrationB)
	}

	if created > 0 || len(due) > 0 || missed > 0 {
		s.logger.Info("Scheduler tick completed",
			zap.Int("matchesCreated", created),
			zap.Int("entriesNotified", len(due)),
			zap.Int("entriesMissed", missed),
			zap.Int("pending", pending))
	}
}

// refresh 저장소에서 다시 읽는다. 미저장 변경이 있으면 메모리 상태가 더 최신이다.
func (s *Scheduler) refresh(ctx context.Context) {
	if s.dirty {
		return
	}
	state, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("Failed to load schedule store, using in-memory state", zap.Error(err))
		return
	}
	if state == nil {
		state = &models.ScheduleState{}
	}
	s.state = state
}

// persist 실패하면 dirty로 남겨 다음 틱에 재시도
func (s *Scheduler) persist(ctx context.Context) {
	if err := s.store.Save(ctx, s.state); err != nil {
		s.dirty = true
		s.logger.Error("Failed to persist schedule store, will retry next tick", zap.Error(err))
		return
	}
	s.dirty = false
}

// matchPending first-fit: 등록 순서대로 A마다 허용 오차 안의 첫 B와 매칭
func (s *Scheduler) matchPending() int {
	pending := s.state.Pending
	used := make(map[int]bool)
	created := 0

	for i, a := range pending {
		if used[i] || a.Role != models.RoleA {
			continue
		}
		for j, b := range pending {
			if used[j] || b.Role != models.RoleB {
				continue
			}
			if absDuration(a.RequestedTime.Sub(b.RequestedTime)) > s.cfg.Tolerance {
				continue
			}

			resolved := a.RequestedTime
			if b.RequestedTime.After(resolved) {
				resolved = b.RequestedTime
			}
			s.state.Matched = append(s.state.Matched, models.MatchedScheduleEntry{
				RegistrationA: a,
				RegistrationB: b,
				ResolvedTime:  resolved,
			})
			used[i], used[j] = true, true
			created++

			s.logger.Info("Scheduled participants matched",
				zap.String("participantA", a.ParticipantID),
				zap.String("participantB", b.ParticipantID),
				zap.Time("resolvedTime", resolved))
			break
		}
	}

	if created > 0 {
		s.state.Pending = lo.Filter(pending, func(_ models.ScheduledRegistration, i int) bool {
			return !used[i]
		})
	}
	return created
}

// takeDue 예정 시각이 lookahead 안이고 아직 지나지 않은 매칭을 통지 완료로 옮기고 반환한다.
// 전달 결과와 무관하게 통지로 표시한다.
func (s *Scheduler) takeDue(now time.Time) []models.MatchedScheduleEntry {
	var remaining, due []models.MatchedScheduleEntry

	for _, entry := range s.state.Matched {
		if entry.Notified ||
			entry.ResolvedTime.Before(now) ||
			entry.ResolvedTime.After(now.Add(s.cfg.Lookahead)) {
			remaining = append(remaining, entry)
			continue
		}

		notifiedAt := now
		entry.Notified = true
		entry.NotifiedAt = &notifiedAt
		s.state.Notified = append(s.state.Notified, entry)
		due = append(due, entry)
	}

	if len(due) > 0 {
		s.state.Matched = remaining
	}
	return due
}

// dropMissed 통지 전에 예정 시각이 지난 매칭은 Missed로 옮긴다. 초대는 보내지 않는다.
func (s *Scheduler) dropMissed(now time.Time) int {
	missed, remaining := lo.FilterReject(s.state.Matched, func(e models.MatchedScheduleEntry, _ int) bool {
		return !e.Notified && e.ResolvedTime.Before(now)
	})
	if len(missed) == 0 {
		return 0
	}

	for _, e := range missed {
		s.logger.Warn("Scheduled match passed before notification",
			zap.String("participantA", e.RegistrationA.ParticipantID),
			zap.String("participantB", e.RegistrationB.ParticipantID),
			zap.Time("resolvedTime", e.ResolvedTime))
	}
	s.state.Matched = remaining
	s.state.Missed = append(s.state.Missed, missed...)
	return len(missed)
}

// deliverInvite 전달 실패는 로깅만 한다
func (s *Scheduler) deliverInvite(ctx context.Context, reg models.ScheduledRegistration) {
	body := InviteMessage(reg.Role, s.DeepLink(reg.ParticipantID, reg.Role))

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	defer cancel()

	if err := s.delivery.Deliver(ctx, reg.ParticipantID, reg.Role, body); err != nil {
		s.logger.Error("Failed to deliver session invite",
			zap.String("participantId", reg.ParticipantID),
			zap.String("role", string(reg.Role)),
			zap.Error(err))
		return
	}
	s.logger.Info("Session invite delivered",
		zap.String("participantId", reg.ParticipantID),
		zap.String("role", string(reg.Role)))
}

// DeepLink 역할별 링크에 참가자 ID와 역할을 붙인다
func (s *Scheduler) DeepLink(participantID string, role models.Role) string {
	base := s.cfg.InviteLinks[role]
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Sprintf("%s?PROLIFIC_PID=%s&role=%s", base, url.QueryEscape(participantID), role)
	}
	q := u.Query()
	q.Set("PROLIFIC_PID", participantID)
	q.Set("role", string(role))
	u.RawQuery = q.Encode()
	return u.String()
}

// InviteMessage 역할별 초대 문구
func InviteMessage(role models.Role, link string) string {
	if role == models.RoleB {
		return "Hi! Your study session should start soon.\n\n" +
			"Please click the link below to begin:\n" + link + "\n\n" +
			"Note: Your partner needs to complete a short task before joining the chat room, " +
			"so you may need to wait 3-5 minutes in the waiting room. Please be patient - they will join you shortly!\n\n" +
			"The whole session takes about 15-20 minutes."
	}
	return "Hi! Your study session should start soon.\n\n" +
		"Please click the link below to begin:\n" + link + "\n\n" +
		"You'll first interact with an AI chatbot, then chat with your partner. " +
		"The whole session takes about 15-20 minutes."
}

// rebuildReservations 통지된 매칭으로 라이브 예약 인덱스 재구성
func (s *Scheduler) rebuildReservations() {
	next := make(map[string]reservation, len(s.state.Notified)*2)
	for _, e := range s.state.Notified {
		next[e.RegistrationA.ParticipantID] = reservation{partnerID: e.RegistrationB.ParticipantID, resolvedTime: e.ResolvedTime}
		next[e.RegistrationB.ParticipantID] = reservation{partnerID: e.RegistrationA.ParticipantID, resolvedTime: e.ResolvedTime}
	}

	s.resMu.Lock()
	s.reservations = next
	s.resMu.Unlock()
}

// ReservedPartner 예약 창 안이면 예약된 파트너 ID. 라이브 경로에서 호출되므로 s.mu를 잡지 않는다.
func (s *Scheduler) ReservedPartner(participantID string, now time.Time) (string, bool) {
	s.resMu.RLock()
	defer s.resMu.RUnlock()

	r, ok := s.reservations[participantID]
	if !ok || now.After(r.resolvedTime.Add(s.cfg.ReservationWindow)) {
		return "", false
	}
	return r.partnerID, true
}

// TimeSlots 표시 가능한 시간대와 역할별 대기 등록 수
func (s *Scheduler) TimeSlots(now time.Time) []models.TimeSlot {
	s.mu.Lock()
	pending := append([]models.ScheduledRegistration(nil), s.state.Pending...)
	s.mu.Unlock()

	interval := s.cfg.SlotInterval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	local := now.In(s.cfg.Location)
	start := local.Truncate(interval)
	if !start.After(local) {
		start = start.Add(interval)
	}
	end := local.Add(s.cfg.SlotHorizon)

	var slots []models.TimeSlot
	for t := start; !t.After(end); t = t.Add(interval) {
		if t.Hour() < s.cfg.SlotStartHour || t.Hour() >= s.cfg.SlotEndHour {
			continue
		}
		slot := models.TimeSlot{
			Time:  t,
			Label: t.Format("Mon Jan 2, 3:04 PM MST"),
		}
		slotEnd := t.Add(interval)
		for _, reg := range pending {
			if reg.RequestedTime.Before(t) || !reg.RequestedTime.Before(slotEnd) {
				continue
			}
			switch reg.Role {
			case models.RoleA:
				slot.PendingA++
			case models.RoleB:
				slot.PendingB++
			}
		}
		slots = append(slots, slot)
	}
	return slots
}

// Snapshot 관리자 조회용 상태 복사본
func (s *Scheduler) Snapshot() *models.ScheduleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
