package service

import (
	"context"
	"io"
	"log/slog"

	"ohlcvflow/internal/core/domain"

	"github.com/stretchr/testify/mock"
)

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Append(ctx context.Context, record domain.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRecordStore) FindMany(ctx context.Context, exchange domain.Exchange, filter domain.Filter) ([]domain.Record, error) {
	args := m.Called(ctx, exchange, filter)
	records, _ := args.Get(0).([]domain.Record)
	return records, args.Error(1)
}

func (m *MockRecordStore) Ping(ctx context.Context) string {
	return m.Called(ctx).String(0)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Publish(ctx context.Context, topic string, record domain.Record) error {
	args := m.Called(ctx, topic, record)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rec(ex domain.Exchange, symbol string, openTime int64) domain.Record {
	return domain.Record{
		Exchange: ex, Symbol: symbol, Interval: "1m",
		OpenTime: openTime, CloseTime: openTime + 60000,
		Open: "1", High: "1", Low: "1", Close: "1", Volume: "1",
	}
}
