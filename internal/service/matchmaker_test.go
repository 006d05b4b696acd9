package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/lujainibrahim/dyad-study/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReservations map[string]string

func (r fakeReservations) ReservedPartner(participantID string, _ time.Time) (string, bool) {
	partner, ok := r[participantID]
	return partner, ok
}

func newTestMatchmaker(policy models.MatchPolicy) *Matchmaker {
	m := NewMatchmaker(policy, 0, zap.NewNop())
	seq := 0
	m.newPairID = func() string {
		seq++
		return fmt.Sprintf("pair_%d", seq)
	}
	return m
}

func participant(id string, role models.Role) *models.Participant {
	return &models.Participant{ID: id, Role: role}
}

func TestMatchmaker_OpenPolicyFIFO(t *testing.T) {
	m := newTestMatchmaker(models.MatchPolicyOpen)

	result := m.EnqueueOrMatch(participant("p1", models.RoleUnspecified))
	assert.False(t, result.Matched())
	assert.Equal(t, uint64(1), result.Ticket)

	m.EnqueueOrMatch(participant("p2", models.RoleA))
	assert.Equal(t, []string{}, m.Waiting(openQueue))

	m.EnqueueOrMatch(participant("p3", models.RoleB))
	m.EnqueueOrMatch(participant("p4", models.RoleB))
	result = m.EnqueueOrMatch(participant("p5", models.RoleUnspecified))
	assert.False(t, result.Matched())
	assert.Equal(t, []string{"p5"}, m.Waiting(openQueue))
}

func TestMatchmaker_OldestWaiterTakesSlotOne(t *testing.T) {
	m := newTestMatchmaker(models.MatchPolicyOpen)

	m.EnqueueOrMatch(participant("p1", models.RoleUnspecified))
	result := m.EnqueueOrMatch(participant("p2", models.RoleUnspecified))

	require.True(t, result.Matched())
	assert.Equal(t, "pair_1", result.Pair.ID)
	assert.Equal(t, "p1", result.Pair.Participant(models.Slot1).ID)
	assert.Equal(t, "p2", result.Pair.Participant(models.Slot2).ID)
	assert.False(t, m.IsWaiting("p1"))
	assert.False(t, m.IsWaiting("p2"))
}

func TestMatchmaker_TypedPolicyNeedsOppositeRole(t *testing.T) {
	m := newTestMatchmaker(models.MatchPolicyTyped)

	m.EnqueueOrMatch(participant("a1", models.RoleA))
	result := m.EnqueueOrMatch(participant("a2", models.RoleA))
	assert.False(t, result.Matched())
	assert.Equal(t, []string{"a1", "a2"}, m.Waiting("A"))

	result = m.EnqueueOrMatch(participant("b1", models.RoleB))
	require.True(t, result.Matched())
	assert.Equal(t, "a1", result.Pair.Participant(models.Slot1).ID)
	assert.Equal(t, []string{"a2"}, m.Waiting("A"))
	assert.Equal(t, map[string]int{"A": 1}, m.WaitingCounts())
}

func TestMatchmaker_EnqueueIsIdempotent(t *testing.T) {
	m := newTestMatchmaker(models.MatchPolicyOpen)
	p := participant("p1", models.RoleUnspecified)

	first := m.EnqueueOrMatch(p)
	second := m.EnqueueOrMatch(p)

	assert.Equal(t, first.Ticket, second.Ticket)
	assert.Equal(t, []string{"p1"}, m.Waiting(openQueue))
}

func TestMatchmaker_Remove(t *testing.T) {
	m := newTestMatchmaker(models.MatchPolicyOpen)
	m.EnqueueOrMatch(participant("p1", models.RoleUnspecified))

	assert.True(t, m.Remove("p1"))
	assert.False(t, m.Remove("p1"))
	assert.False(t, m.IsWaiting("p1"))

	result := m.EnqueueOrMatch(participant("p2", models.RoleUnspecified))
	assert.False(t, result.Matched())
}

func TestMatchmaker_ExpireChecksTicket(t *testing.T) {
	m := newTestMatchmaker(models.MatchPolicyOpen)
	p := participant("p1", models.RoleUnspecified)
	first := m.EnqueueOrMatch(p)
	m.Remove("p1")
	second := m.EnqueueOrMatch(p)
	require.NotEqual(t, first.Ticket, second.Ticket)

	assert.False(t, m.Expire("p1", first.Ticket))
	assert.True(t, m.IsWaiting("p1"))

	assert.True(t, m.Expire("p1", second.Ticket))
	assert.False(t, m.IsWaiting("p1"))
	assert.False(t, m.Expire("p1", second.Ticket))
}

func TestMatchmaker_ExpiryTimer(t *testing.T) {
	m := NewMatchmaker(models.MatchPolicyOpen, 20*time.Millisecond, zap.NewNop())
	expired := make(chan uint64, 2)
	m.SetExpireHandler(func(participantID string, ticket uint64) {
		if participantID == "p1" {
			expired <- ticket
		}
	})

	result := m.EnqueueOrMatch(participant("p1", models.RoleUnspecified))

	select {
	case ticket := <-expired:
		assert.Equal(t, result.Ticket, ticket)
	case <-time.After(time.Second):
		t.Fatal("expiry callback was not fired")
	}
}

func TestMatchmaker_MatchCancelsExpiryTimer(t *testing.T) {
	m := NewMatchmaker(models.MatchPolicyOpen, 30*time.Millisecond, zap.NewNop())
	expired := make(chan string, 2)
	m.SetExpireHandler(func(participantID string, _ uint64) {
		expired <- participantID
	})

	m.EnqueueOrMatch(participant("p1", models.RoleUnspecified))
	result := m.EnqueueOrMatch(participant("p2", models.RoleUnspecified))
	require.True(t, result.Matched())
	assert.Empty(t, m.timers)

	select {
	case id := <-expired:
		t.Fatalf("unexpected expiry for %s", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMatchmaker_ReservedParticipantsWaitForEachOther(t *testing.T) {
	m := newTestMatchmaker(models.MatchPolicyOpen)
	m.SetReservations(fakeReservations{"p1": "p3", "p3": "p1"})

	m.EnqueueOrMatch(participant("p1", models.RoleUnspecified))

	result := m.EnqueueOrMatch(participant("p2", models.RoleUnspecified))
	assert.False(t, result.Matched())
	assert.Equal(t, []string{"p1", "p2"}, m.Waiting(openQueue))

	result = m.EnqueueOrMatch(participant("p3", models.RoleUnspecified))
	require.True(t, result.Matched())
	assert.Equal(t, "p1", result.Pair.Participant(models.Slot1).ID)
	assert.Equal(t, "p3", result.Pair.Participant(models.Slot2).ID)
	assert.Equal(t, []string{"p2"}, m.Waiting(openQueue))
}
