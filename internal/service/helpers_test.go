package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lujainibrahim/dyad-study/internal/models"
	"go.uber.org/zap"
)

type sentEvent struct {
	Type    string
	Payload interface{}
}

// recordingConn 보낸 이벤트를 순서대로 기록하는 연결
type recordingConn struct {
	mu     sync.Mutex
	events []sentEvent
}

func (c *recordingConn) Send(eventType string, payload interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, sentEvent{Type: eventType, Payload: payload})
}

func (c *recordingConn) Types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, 0, len(c.events))
	for _, e := range c.events {
		types = append(types, e.Type)
	}
	return types
}

func (c *recordingConn) Count(eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (c *recordingConn) Last(eventType string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == eventType {
			return c.events[i].Payload, true
		}
	}
	return nil, false
}

func (c *recordingConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// recordingSink 완료 레코드 수집
type recordingSink struct {
	mu      sync.Mutex
	records []*models.ChatLogRecord
	err     error
}

func (s *recordingSink) Record(_ context.Context, record *models.ChatLogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return s.err
}

func (s *recordingSink) Records() []*models.ChatLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.ChatLogRecord(nil), s.records...)
}

// testClock 수동으로 진행하는 시계
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type coordinatorFixture struct {
	coordinator *SessionCoordinator
	matchmaker  *Matchmaker
	registry    *ParticipantRegistry
	sink        *recordingSink
	issuer      CompletionCodeIssuer
	clock       *testClock
	conns       map[string]*recordingConn
}

func newCoordinatorFixture(t *testing.T, matchPolicy models.MatchPolicy, policy SessionPolicy) *coordinatorFixture {
	t.Helper()

	clock := newTestClock()
	registry := NewParticipantRegistry()
	registry.now = clock.Now

	matchmaker := NewMatchmaker(matchPolicy, 0, zap.NewNop())
	matchmaker.now = clock.Now
	pairSeq := 0
	matchmaker.newPairID = func() string {
		pairSeq++
		return fmt.Sprintf("pair_%d", pairSeq)
	}

	sink := &recordingSink{}
	issuer := NewHMACCodeIssuer("test-secret", "CHAT-", 8)
	coordinator := NewSessionCoordinator(registry, matchmaker, issuer, sink, policy, zap.NewNop())
	coordinator.now = clock.Now

	return &coordinatorFixture{
		coordinator: coordinator,
		matchmaker:  matchmaker,
		registry:    registry,
		sink:        sink,
		issuer:      issuer,
		clock:       clock,
		conns:       make(map[string]*recordingConn),
	}
}

// join 새 연결로 입장
func (f *coordinatorFixture) join(id string, role models.Role) *recordingConn {
	conn := &recordingConn{}
	f.conns[id] = conn
	f.coordinator.OnJoin(models.JoinRequest{ParticipantID: id, Role: role}, conn)
	return conn
}

func (f *coordinatorFixture) send(id string, n int) {
	for i := 0; i < n; i++ {
		f.coordinator.OnMessage(id, "hello")
	}
}
