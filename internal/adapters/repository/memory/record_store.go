package memory

import (
	"context"
	"fmt"
	"sync"

	"ohlcvflow/internal/core/domain"
	"ohlcvflow/internal/core/port"
)

var _ port.RecordStore = (*RecordStore)(nil)

type partition struct {
	mu      sync.RWMutex
	records []domain.Record
}

// RecordStore keeps records in process memory. Every exchange has its own
// partition and lock; the partition map is fixed at construction.
type RecordStore struct {
	partitions map[domain.Exchange]*partition
}

func NewRecordStore(exchanges ...domain.Exchange) *RecordStore {
	if len(exchanges) == 0 {
		exchanges = domain.Exchanges
	}

	s := &RecordStore{partitions: make(map[domain.Exchange]*partition, len(exchanges))}
	for _, ex := range exchanges {
		s.partitions[ex] = &partition{}
	}
	return s
}

func (s *RecordStore) partition(exchange domain.Exchange) (*partition, error) {
	p, ok := s.partitions[exchange]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownExchange, exchange)
	}
	return p, nil
}

func (s *RecordStore) Append(ctx context.Context, record domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := s.partition(record.Exchange)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.records = append(p.records, record)
	p.mu.Unlock()

	return nil
}

func (s *RecordStore) FindMany(ctx context.Context, exchange domain.Exchange, filter domain.Filter) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := s.partition(exchange)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []domain.Record
	for _, r := range p.records {
		if filter.Match(r) {
			out = append(out, r)
		}
	}

	if filter.Limit > 0 {
		domain.NewestFirst(out)
		if len(out) > filter.Limit {
			out = out[:filter.Limit]
		}
	}
	return out, nil
}

func (s *RecordStore) Ping(context.Context) string {
	return "up"
}
