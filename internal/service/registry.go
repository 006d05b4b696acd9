package service

import (
	"sync"
	"time"

	"github.com/lujainibrahim/dyad-study/internal/models"
)

// ParticipantRegistry 참가자 ID -> 연결 핸들/역할
type ParticipantRegistry struct {
	mu           sync.RWMutex
	participants map[string]*models.Participant
	now          func() time.Time
}

func NewParticipantRegistry() *ParticipantRegistry {
	return &ParticipantRegistry{
		participants: make(map[string]*models.Participant),
		now:          time.Now,
	}
}

// Bind 참가자 등록. 이미 있으면 같은 포인터에 연결만 교체한다.
func (r *ParticipantRegistry) Bind(id string, role models.Role, conn models.Connection) (*models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.participants[id]; ok {
		existing.Conn = conn
		existing.ConnectedAt = r.now()
		return existing, true
	}

	p := &models.Participant{
		ID:          id,
		Role:        role,
		Conn:        conn,
		ConnectedAt: r.now(),
	}
	r.participants[id] = p
	return p, false
}

func (r *ParticipantRegistry) Get(id string) (*models.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	return p, ok
}

// Unbind 연결만 끊고 참가자 레코드는 유지 (활성 페어 참가자)
func (r *ParticipantRegistry) Unbind(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.participants[id]; ok {
		p.Conn = nil
	}
}

func (r *ParticipantRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, id)
}

// Count 연결된 참가자 수
func (r *ParticipantRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.participants {
		if p.Connected() {
			n++
		}
	}
	return n
}

// SetRole 대기/페어 밖에 있는 참가자의 역할 재선언
func (r *ParticipantRegistry) SetRole(id string, role models.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.participants[id]; ok {
		p.Role = role
	}
}
