package service

import (
	"context"
	"errors"
	"testing"

	"ohlcvflow/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSink_PersistsThenBroadcasts(t *testing.T) {
	ctx := context.Background()
	store := &MockRecordStore{}
	broadcaster := &MockBroadcaster{}
	r := rec(domain.ExchangeByBit, "BTCUSDT", 1000)

	var order []string
	store.On("Append", ctx, r).Return(nil).Run(func(mock.Arguments) { order = append(order, "append") })
	broadcaster.On("Publish", ctx, "ohlcv_update:bybit", r).Return(nil).Run(func(mock.Arguments) { order = append(order, "publish") })

	sink := NewSink(store, broadcaster, discardLogger())
	assert.NoError(t, sink.PersistAndBroadcast(ctx, r))

	assert.Equal(t, []string{"append", "publish"}, order)
	store.AssertExpectations(t)
	broadcaster.AssertExpectations(t)
}

func TestSink_PersistFailureStillBroadcasts(t *testing.T) {
	ctx := context.Background()
	store := &MockRecordStore{}
	broadcaster := &MockBroadcaster{}
	r := rec(domain.ExchangeMexc, "BTCUSDT", 1000)

	store.On("Append", ctx, r).Return(errors.New("connection reset"))
	broadcaster.On("Publish", ctx, "ohlcv_update:mexc", r).Return(nil)

	sink := NewSink(store, broadcaster, discardLogger())
	err := sink.PersistAndBroadcast(ctx, r)

	assert.ErrorIs(t, err, domain.ErrPersist)
	broadcaster.AssertExpectations(t)
}

func TestSink_BroadcastFailureIsNotAnError(t *testing.T) {
	ctx := context.Background()
	store := &MockRecordStore{}
	broadcaster := &MockBroadcaster{}
	r := rec(domain.ExchangeKuCoin, "BTC-USDT", 1000)

	store.On("Append", ctx, r).Return(nil)
	broadcaster.On("Publish", ctx, "ohlcv_update:kucoin", r).Return(errors.New("redis down"))

	sink := NewSink(store, broadcaster, discardLogger())
	assert.NoError(t, sink.PersistAndBroadcast(ctx, r))

	store.AssertExpectations(t)
	broadcaster.AssertExpectations(t)
}

func TestSink_WithoutBroadcaster(t *testing.T) {
	ctx := context.Background()
	store := &MockRecordStore{}
	r := rec(domain.ExchangeBinance, "BTCUSDT", 1000)
	store.On("Append", ctx, r).Return(nil)

	sink := NewSink(store, nil, discardLogger())
	assert.NoError(t, sink.PersistAndBroadcast(ctx, r))
	store.AssertExpectations(t)
}

func TestSink_RejectsInvalidRecord(t *testing.T) {
	store := &MockRecordStore{}
	broadcaster := &MockBroadcaster{}
	r := rec(domain.ExchangeBinance, "BTCUSDT", 1000)
	r.CloseTime = r.OpenTime - 1

	sink := NewSink(store, broadcaster, discardLogger())
	err := sink.PersistAndBroadcast(context.Background(), r)

	assert.ErrorIs(t, err, domain.ErrMalformedMessage)
	store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	broadcaster.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}
