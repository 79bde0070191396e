package service

import (
	"context"
	"fmt"
	"log/slog"

	"ohlcvflow/internal/core/domain"
	"ohlcvflow/internal/core/port"

	"golang.org/x/sync/errgroup"
)

var _ port.QueryService = (*QueryService)(nil)

// QueryService merges the records of every configured exchange, newest
// first. Equal openTime values keep exchange order, then store order.
type QueryService struct {
	store     port.RecordStore
	exchanges []domain.Exchange
	logger    *slog.Logger
}

func NewQueryService(store port.RecordStore, exchanges []domain.Exchange, logger *slog.Logger) *QueryService {
	return &QueryService{
		store:     store,
		exchanges: exchanges,
		logger:    logger,
	}
}

// Query returns at most limit records. It returns ErrNoData when no exchange
// holds a matching record and an ErrQueryFailure error when any read fails;
// partial results are never returned.
func (s *QueryService) Query(ctx context.Context, filter domain.Filter, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrQueryFailure, limit)
	}

	// No exchange can contribute more than limit records to the merged
	// result, so each store read is bounded the same way.
	storeFilter := filter
	storeFilter.Limit = limit

	perExchange := make([][]domain.Record, len(s.exchanges))

	g, gctx := errgroup.WithContext(ctx)
	for i, exchange := range s.exchanges {
		g.Go(func() error {
			records, err := s.store.FindMany(gctx, exchange, storeFilter)
			if err != nil {
				return fmt.Errorf("%s: %w", exchange, err)
			}
			perExchange[i] = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("query failed", slog.String("symbol", filter.Symbol), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", domain.ErrQueryFailure, err)
	}

	var merged []domain.Record
	for _, records := range perExchange {
		merged = append(merged, records...)
	}

	if len(merged) == 0 {
		return nil, domain.ErrNoData
	}

	domain.NewestFirst(merged)

	if len(merged) > limit {
		merged = merged[:limit]
	}

	return merged, nil
}
