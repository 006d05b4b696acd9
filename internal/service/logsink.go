package service

import (
	"context"
	"sync"
	"time"

	"github.com/lujainibrahim/dyad-study/internal/models"
	"go.uber.org/zap"
)

// LogSink 완료된 채팅 로그 수신자 (파일, DB, 메시지 브로커 등)
type LogSink interface {
	Record(ctx context.Context, record *models.ChatLogRecord) error
}

// NamedSink 로그에 표시할 이름이 있는 sink
type NamedSink struct {
	Name string
	Sink LogSink
}

// MultiSink 모든 sink에 전달하고 실패는 sink별로 로깅만 한다
type MultiSink struct {
	sinks  []NamedSink
	logger *zap.Logger
}

func NewMultiSink(logger *zap.Logger, sinks ...NamedSink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: logger}
}

func (m *MultiSink) Record(ctx context.Context, record *models.ChatLogRecord) error {
	for _, s := range m.sinks {
		if err := s.Sink.Record(ctx, record); err != nil {
			m.logger.Error("Failed to record chat log",
				zap.String("sink", s.Name),
				zap.String("pairId", record.PairID),
				zap.Error(err))
			continue
		}
		m.logger.Info("Chat log recorded",
			zap.String("sink", s.Name),
			zap.String("pairId", record.PairID))
	}
	return nil
}

// AsyncSink 완료 경로가 하위 전달을 기다리지 않도록 백그라운드 워커로 넘긴다
type AsyncSink struct {
	inner   LogSink
	records chan *models.ChatLogRecord
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

func NewAsyncSink(inner LogSink, buffer int, timeout time.Duration, logger *zap.Logger) *AsyncSink {
	if buffer <= 0 {
		buffer = 64
	}
	s := &AsyncSink{
		inner:   inner,
		records: make(chan *models.ChatLogRecord, buffer),
		timeout: timeout,
		logger:  logger,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer s.wg.Done()
	for record := range s.records {
		s.deliver(record)
	}
}

func (s *AsyncSink) deliver(record *models.ChatLogRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.inner.Record(ctx, record); err != nil {
		s.logger.Error("Chat log delivery failed",
			zap.String("pairId", record.PairID),
			zap.Error(err))
	}
}

// Record 버퍼가 가득 차면 별도 고루틴으로 전달 (기록은 버리지 않는다)
func (s *AsyncSink) Record(_ context.Context, record *models.ChatLogRecord) error {
	select {
	case s.records <- record:
	default:
		s.logger.Warn("Chat log buffer full, delivering out of band",
			zap.String("pairId", record.PairID))
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.deliver(record)
		}()
	}
	return nil
}

// Close 남은 기록을 모두 전달한 뒤 반환
func (s *AsyncSink) Close() {
	s.once.Do(func() {
		close(s.records)
	})
	s.wg.Wait()
}
