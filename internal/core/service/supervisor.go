package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ohlcvflow/internal/core/domain"
	"ohlcvflow/internal/core/port"
	"ohlcvflow/internal/core/service/workerpool"
)

var (
	ErrAlreadyRegistered = errors.New("exchange already registered")
	ErrAlreadyStarted    = errors.New("supervisor already started")
	ErrNotRegistered     = errors.New("exchange not registered")
)

// Supervisor is the registry of connectors. It owns one connector and one
// write queue per exchange, created at Start and torn down by Shutdown.
type Supervisor struct {
	sink      port.RecordSink
	queueSize int
	logger    *slog.Logger

	mu         sync.RWMutex
	order      []domain.Exchange
	connectors map[domain.Exchange]port.ExchangePort
	pools      map[domain.Exchange]*workerpool.WorkerPool
	stats      map[domain.Exchange]*domain.IngestStats
	started    bool

	aggregator    *workerpool.FanInAggregator
	serviceCtx    context.Context
	serviceCancel context.CancelFunc
	feeders       sync.WaitGroup
	collector     sync.WaitGroup
}

func NewSupervisor(sink port.RecordSink, queueSize int, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		sink:       sink,
		queueSize:  queueSize,
		logger:     logger,
		connectors: make(map[domain.Exchange]port.ExchangePort),
		pools:      make(map[domain.Exchange]*workerpool.WorkerPool),
		stats:      make(map[domain.Exchange]*domain.IngestStats),
	}
}

// Register adds a connector. Registration order is the order States and
// Stats report in.
func (s *Supervisor) Register(connector port.ExchangePort) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	exchange := connector.Exchange()
	if _, ok := s.connectors[exchange]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, exchange)
	}

	s.order = append(s.order, exchange)
	s.connectors[exchange] = connector
	s.stats[exchange] = &domain.IngestStats{Exchange: exchange}

	return nil
}

// Start launches every connector and its write queue. Cancelling ctx has the
// same effect as Shutdown minus the wait.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.logger.Info("starting supervisor", slog.Int("exchanges", len(s.order)))

	s.serviceCtx, s.serviceCancel = context.WithCancel(ctx)
	s.aggregator = workerpool.NewFanInAggregator(s.logger)

	for _, exchange := range s.order {
		pool := workerpool.NewWorkerPool(exchange, s.queueSize, s.sink, s.logger)
		s.pools[exchange] = pool
		s.aggregator.Add(exchange, pool.Start())
	}

	results := s.aggregator.Start()
	s.collector.Add(1)
	go s.collectResults(results)

	for _, exchange := range s.order {
		s.feeders.Add(1)
		go s.handleExchangeData(s.connectors[exchange], s.pools[exchange])
	}

	return nil
}

func (s *Supervisor) handleExchangeData(connector port.ExchangePort, pool *workerpool.WorkerPool) {
	defer s.feeders.Done()
	defer pool.Stop()

	for record := range connector.Start(s.serviceCtx) {
		pool.SubmitJob(record)
	}

	s.logger.Info("exchange data channel closed",
		slog.String("exchange", connector.Exchange().String()),
		slog.String("phase", string(connector.State().Phase)))
}

func (s *Supervisor) collectResults(results <-chan workerpool.Result) {
	defer s.collector.Done()

	for res := range results {
		s.mu.Lock()
		st := s.stats[res.Record.Exchange]
		if st != nil {
			if res.Err != nil {
				st.Failed++
			} else {
				st.Persisted++
				st.LastOpenTime = res.Record.OpenTime
				now := time.Now()
				st.LastWriteAt = &now
			}
		}
		s.mu.Unlock()
	}
}

// Stop stops a single connector. Its queued records are still written; the
// other exchanges are unaffected.
func (s *Supervisor) Stop(exchange domain.Exchange) error {
	s.mu.RLock()
	connector, ok := s.connectors[exchange]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, exchange)
	}

	connector.Stop()
	return nil
}

// Shutdown stops every connector, drains the write queues and waits.
func (s *Supervisor) Shutdown() {
	s.mu.RLock()
	started := s.started
	connectors := make([]port.ExchangePort, 0, len(s.order))
	for _, exchange := range s.order {
		connectors = append(connectors, s.connectors[exchange])
	}
	s.mu.RUnlock()

	if !started {
		return
	}

	s.logger.Info("shutting down supervisor")
	s.serviceCancel()

	for _, c := range connectors {
		c.Stop()
	}

	s.feeders.Wait()
	s.collector.Wait()

	s.logger.Info("supervisor stopped")
}

func (s *Supervisor) Exchanges() []domain.Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Exchange(nil), s.order...)
}

func (s *Supervisor) States() []domain.ConnectorState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]domain.ConnectorState, 0, len(s.order))
	for _, exchange := range s.order {
		states = append(states, s.connectors[exchange].State())
	}
	return states
}

func (s *Supervisor) Stats() []domain.IngestStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]domain.IngestStats, 0, len(s.order))
	for _, exchange := range s.order {
		st := *s.stats[exchange]
		if pool, ok := s.pools[exchange]; ok {
			st.Dropped = pool.Dropped()
		}
		stats = append(stats, st)
	}
	return stats
}
