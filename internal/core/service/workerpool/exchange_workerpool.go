package workerpool

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"ohlcvflow/internal/core/domain"
	"ohlcvflow/internal/core/port"
)

const DefaultQueueSize = 1000

// Result is the outcome of handing one record to the sink.
type Result struct {
	Record domain.Record
	Err    error
}

// WorkerPool is the write queue of a single exchange. One worker drains it,
// so records of an exchange reach the sink in arrival order while other
// exchanges write concurrently through their own pools.
type WorkerPool struct {
	exchange   domain.Exchange
	jobQueue   chan domain.Record
	outputChan chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once

	mu      sync.RWMutex
	stopped bool
	dropped atomic.Int64

	sink   port.RecordSink
	logger *slog.Logger
}

func NewWorkerPool(exchange domain.Exchange, queueSize int, sink port.RecordSink, logger *slog.Logger) *WorkerPool {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		exchange:   exchange,
		jobQueue:   make(chan domain.Record, queueSize),
		outputChan: make(chan Result, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		sink:       sink,
		logger:     logger.With(slog.String("exchange", exchange.String())),
	}
}

// SubmitJob enqueues a record. It reports false when the record was dropped
// because the queue is full or the pool is stopped.
func (p *WorkerPool) SubmitJob(record domain.Record) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return false
	}

	select {
	case p.jobQueue <- record:
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("write queue full, dropping record",
			slog.String("symbol", record.Symbol),
			slog.Int64("open_time", record.OpenTime))
		return false
	}
}

func (p *WorkerPool) Dropped() int64 {
	return p.dropped.Load()
}

func (p *WorkerPool) Start() <-chan Result {
	p.wg.Add(1)
	go p.worker()

	return p.outputChan
}

// Stop refuses new jobs, lets the worker drain what is queued and closes
// the output channel.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.jobQueue)
		p.mu.Unlock()

		p.wg.Wait()
		p.cancel()
		close(p.outputChan)
	})
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for record := range p.jobQueue {
		err := p.sink.PersistAndBroadcast(p.ctx, record)
		p.outputChan <- Result{Record: record, Err: err}
	}
}
