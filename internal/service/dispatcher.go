package service

import (
	"context"
	"fmt"

	"github.com/lujainibrahim/dyad-study/internal/models"
	"go.uber.org/zap"
)

// Command 라이브 경로 이벤트. 디스패처가 하나씩 끝까지 처리한다.
type Command interface {
	command()
}

type JoinCommand struct {
	Request models.JoinRequest
	Conn    models.Connection
}

type MessageCommand struct {
	ParticipantID string
	Text          string
}

type FinishCommand struct {
	ParticipantID string
}

type DisconnectCommand struct {
	ParticipantID string
	Conn          models.Connection
}

type ExpireCommand struct {
	ParticipantID string
	Ticket        uint64
}

func (JoinCommand) command()       {}
func (MessageCommand) command()    {}
func (FinishCommand) command()     {}
func (DisconnectCommand) command() {}
func (ExpireCommand) command()     {}

// CommandHandler 커맨드 처리자 (SessionCoordinator)
type CommandHandler interface {
	Handle(cmd Command)
}

// Dispatcher 단일 고루틴 리액터
type Dispatcher struct {
	handler  CommandHandler
	commands chan Command
	done     chan struct{}
	logger   *zap.Logger
}

func NewDispatcher(handler CommandHandler, buffer int, logger *zap.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		handler:  handler,
		commands: make(chan Command, buffer),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Run ctx가 취소될 때까지 커맨드 처리
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	d.logger.Info("Dispatcher started")
	for {
		select {
		case cmd := <-d.commands:
			d.dispatch(cmd)
		case <-ctx.Done():
			d.logger.Info("Dispatcher stopped")
			return
		}
	}
}

func (d *Dispatcher) dispatch(cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Command handler panicked",
				zap.String("command", fmt.Sprintf("%T", cmd)),
				zap.Any("panic", r))
		}
	}()
	d.handler.Handle(cmd)
}

// Done Run이 끝나면 닫힌다
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Submit 커맨드 큐잉. 디스패처가 멈췄으면 ErrDispatcherStopped.
func (d *Dispatcher) Submit(cmd Command) error {
	select {
	case <-d.done:
		return ErrDispatcherStopped
	default:
	}

	select {
	case d.commands <- cmd:
		return nil
	case <-d.done:
		return ErrDispatcherStopped
	}
}

// ExpireHandler 매치메이커 만료 타이머를 디스패처로 연결
func (d *Dispatcher) ExpireHandler() ExpireFunc {
	return func(participantID string, ticket uint64) {
		if err := d.Submit(ExpireCommand{ParticipantID: participantID, Ticket: ticket}); err != nil {
			d.logger.Debug("Dropped expiry", zap.String("participantId", participantID), zap.Error(err))
		}
	}
}
