package port

import (
	"context"

	"ohlcvflow/internal/core/domain"
)

// RecordStore is an append-only store, logically partitioned per exchange.
type RecordStore interface {
	Append(ctx context.Context, record domain.Record) error
	FindMany(ctx context.Context, exchange domain.Exchange, filter domain.Filter) ([]domain.Record, error)
	Ping(ctx context.Context) string
}

type Broadcaster interface {
	Publish(ctx context.Context, topic string, record domain.Record) error
}

type LatestCache interface {
	GetLatest(ctx context.Context, exchange domain.Exchange, symbol string) (*domain.Record, error)
	GetLatestBySymbol(ctx context.Context, symbol string) ([]domain.Record, error)
	Ping(ctx context.Context) string
}

// LiveFeed delivers every broadcast record until ctx is done.
type LiveFeed interface {
	Subscribe(ctx context.Context) (<-chan domain.Record, error)
}

type ExchangePort interface {
	Exchange() domain.Exchange
	Start(ctx context.Context) <-chan domain.Record
	Stop()
	State() domain.ConnectorState
}

type RecordSink interface {
	PersistAndBroadcast(ctx context.Context, record domain.Record) error
}

type QueryService interface {
	Query(ctx context.Context, filter domain.Filter, limit int) ([]domain.Record, error)
}

// ConnectorRegistry reports connector snapshots and write-path counters.
type ConnectorRegistry interface {
	States() []domain.ConnectorState
	Stats() []domain.IngestStats
}
