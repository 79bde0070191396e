package service

import (
	"context"
	"fmt"
	"log/slog"

	"ohlcvflow/internal/core/domain"
	"ohlcvflow/internal/core/port"
)

var _ port.RecordSink = (*Sink)(nil)

// Sink is the write path: append to the store, then publish on the
// exchange's live-update topic. The two steps do not depend on each other.
type Sink struct {
	store       port.RecordStore
	broadcaster port.Broadcaster
	logger      *slog.Logger
}

// NewSink builds a sink. broadcaster may be nil, in which case records are
// only persisted.
func NewSink(store port.RecordStore, broadcaster port.Broadcaster, logger *slog.Logger) *Sink {
	return &Sink{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// PersistAndBroadcast returns an ErrPersist error when the append failed.
// Broadcast failures are logged only. A record that breaks the record
// invariants is neither stored nor published.
func (s *Sink) PersistAndBroadcast(ctx context.Context, record domain.Record) error {
	if err := record.Validate(); err != nil {
		s.logger.Warn("rejecting invalid record",
			slog.String("exchange", record.Exchange.String()),
			slog.Any("error", err))
		return err
	}

	var persistErr error

	if err := s.store.Append(ctx, record); err != nil {
		persistErr = fmt.Errorf("%w: %s %s@%d: %v",
			domain.ErrPersist, record.Exchange, record.Symbol, record.OpenTime, err)
		s.logger.Error("failed to persist record",
			slog.String("exchange", record.Exchange.String()),
			slog.String("symbol", record.Symbol),
			slog.Any("error", err))
	} else {
		s.logger.Debug("record persisted",
			slog.String("exchange", record.Exchange.String()),
			slog.String("symbol", record.Symbol),
			slog.Int64("open_time", record.OpenTime))
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.Publish(ctx, record.Exchange.Topic(), record); err != nil {
			s.logger.Warn("failed to broadcast record",
				slog.String("topic", record.Exchange.Topic()),
				slog.Any("error", err))
		}
	}

	return persistErr
}
