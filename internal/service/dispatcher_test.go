package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lujainibrahim/dyad-study/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu       sync.Mutex
	commands []Command
	panicOn  string
}

func (h *recordingHandler) Handle(cmd Command) {
	if m, ok := cmd.(MessageCommand); ok && m.Text == h.panicOn {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, cmd)
}

func (h *recordingHandler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.commands)
}

func (h *recordingHandler) Commands() []Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Command(nil), h.commands...)
}

func startDispatcher(t *testing.T, handler CommandHandler) (*Dispatcher, context.CancelFunc) {
	t.Helper()
	d := NewDispatcher(handler, 16, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-d.Done()
	})
	return d, cancel
}

func TestDispatcher_ProcessesInOrder(t *testing.T) {
	handler := &recordingHandler{}
	d, _ := startDispatcher(t, handler)

	require.NoError(t, d.Submit(MessageCommand{ParticipantID: "p1", Text: "one"}))
	require.NoError(t, d.Submit(FinishCommand{ParticipantID: "p1"}))
	require.NoError(t, d.Submit(MessageCommand{ParticipantID: "p2", Text: "two"}))

	require.Eventually(t, func() bool { return handler.Len() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Command{
		MessageCommand{ParticipantID: "p1", Text: "one"},
		FinishCommand{ParticipantID: "p1"},
		MessageCommand{ParticipantID: "p2", Text: "two"},
	}, handler.Commands())
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	handler := &recordingHandler{panicOn: "explode"}
	d, _ := startDispatcher(t, handler)

	require.NoError(t, d.Submit(MessageCommand{ParticipantID: "p1", Text: "explode"}))
	require.NoError(t, d.Submit(MessageCommand{ParticipantID: "p1", Text: "after"}))

	require.Eventually(t, func() bool { return handler.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_SubmitAfterStop(t *testing.T) {
	d, cancel := startDispatcher(t, &recordingHandler{})

	cancel()
	<-d.Done()

	assert.ErrorIs(t, d.Submit(FinishCommand{ParticipantID: "p1"}), ErrDispatcherStopped)
}

func TestDispatcher_ExpireHandlerSubmitsCommand(t *testing.T) {
	handler := &recordingHandler{}
	d, _ := startDispatcher(t, handler)

	d.ExpireHandler()("p1", 7)

	require.Eventually(t, func() bool { return handler.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ExpireCommand{ParticipantID: "p1", Ticket: 7}, handler.Commands()[0])
}

func TestDispatcher_DrivesCoordinator(t *testing.T) {
	f := newCoordinatorFixture(t, models.MatchPolicyOpen, totalPolicy(1))
	d, _ := startDispatcher(t, f.coordinator)

	c1, c2 := &recordingConn{}, &recordingConn{}
	require.NoError(t, d.Submit(JoinCommand{Request: models.JoinRequest{ParticipantID: "p1"}, Conn: c1}))
	require.NoError(t, d.Submit(JoinCommand{Request: models.JoinRequest{ParticipantID: "p2"}, Conn: c2}))
	require.NoError(t, d.Submit(MessageCommand{ParticipantID: "p1", Text: "hi"}))
	require.NoError(t, d.Submit(FinishCommand{ParticipantID: "p1"}))
	require.NoError(t, d.Submit(FinishCommand{ParticipantID: "p2"}))

	require.Eventually(t, func() bool {
		return c1.Count(models.EventComplete) == 1 && c2.Count(models.EventComplete) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, f.sink.Records(), 1)
}
