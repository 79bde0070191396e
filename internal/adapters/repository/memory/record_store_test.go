package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"ohlcvflow/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(ex domain.Exchange, symbol string, openTime int64) domain.Record {
	return domain.Record{
		Exchange: ex, Symbol: symbol, Interval: "1m",
		OpenTime: openTime, CloseTime: openTime + 60000,
		Open: "1", High: "1", Low: "1", Close: "1", Volume: "1",
	}
}

func TestRecordStore_AppendAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore()

	require.NoError(t, store.Append(ctx, record(domain.ExchangeBinance, "BTCUSDT", 1)))
	require.NoError(t, store.Append(ctx, record(domain.ExchangeBinance, "ETHUSDT", 2)))
	require.NoError(t, store.Append(ctx, record(domain.ExchangeBinance, "BTCUSDT", 3)))
	require.NoError(t, store.Append(ctx, record(domain.ExchangeKuCoin, "BTC-USDT", 4)))

	got, err := store.FindMany(ctx, domain.ExchangeBinance, domain.Filter{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].OpenTime)
	assert.Equal(t, int64(3), got[1].OpenTime)

	all, err := store.FindMany(ctx, domain.ExchangeBinance, domain.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Symbols are compared verbatim across exchanges.
	none, err := store.FindMany(ctx, domain.ExchangeKuCoin, domain.Filter{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordStore_AcceptsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore()

	r := record(domain.ExchangeMexc, "BTCUSDT", 100)
	require.NoError(t, store.Append(ctx, r))
	require.NoError(t, store.Append(ctx, r))

	// A kline update for the still-open candle shares the natural key.
	update := r
	update.Close = "1.5"
	require.NoError(t, store.Append(ctx, update))

	got, err := store.FindMany(ctx, domain.ExchangeMexc, domain.Filter{})
	require.NoError(t, err)
	require.Equal(t, []domain.Record{r, r, update}, got)
	for _, g := range got {
		assert.Equal(t, r.Key(), g.Key())
	}
}

func TestRecordStore_FindNewestWithLimit(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore()

	for _, openTime := range []int64{100, 400, 200, 400, 300} {
		require.NoError(t, store.Append(ctx, record(domain.ExchangeByBit, "BTCUSDT", openTime)))
	}
	require.NoError(t, store.Append(ctx, record(domain.ExchangeByBit, "ETHUSDT", 999)))

	got, err := store.FindMany(ctx, domain.ExchangeByBit, domain.Filter{Symbol: "BTCUSDT", Limit: 3})
	require.NoError(t, err)

	openTimes := make([]int64, len(got))
	for i, r := range got {
		openTimes[i] = r.OpenTime
	}
	assert.Equal(t, []int64{400, 400, 300}, openTimes)

	all, err := store.FindMany(ctx, domain.ExchangeByBit, domain.Filter{Symbol: "BTCUSDT", Limit: 50})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestRecordStore_UnknownExchange(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(domain.ExchangeBinance)

	err := store.Append(ctx, record(domain.ExchangeByBit, "BTCUSDT", 1))
	assert.ErrorIs(t, err, domain.ErrUnknownExchange)

	_, err = store.FindMany(ctx, domain.ExchangeByBit, domain.Filter{})
	assert.ErrorIs(t, err, domain.ErrUnknownExchange)
}

func TestRecordStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewRecordStore()
	assert.ErrorIs(t, store.Append(ctx, record(domain.ExchangeBinance, "BTCUSDT", 1)), context.Canceled)
}

func TestRecordStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore()

	const perExchange = 200
	var wg sync.WaitGroup
	for _, ex := range domain.Exchanges {
		wg.Add(1)
		go func(ex domain.Exchange) {
			defer wg.Done()
			for i := 0; i < perExchange; i++ {
				assert.NoError(t, store.Append(ctx, record(ex, fmt.Sprintf("SYM%d", i%3), int64(i))))
			}
		}(ex)
	}
	wg.Wait()

	for _, ex := range domain.Exchanges {
		got, err := store.FindMany(ctx, ex, domain.Filter{})
		require.NoError(t, err)
		require.Len(t, got, perExchange)
		for i, r := range got {
			assert.Equal(t, ex, r.Exchange)
			assert.Equal(t, int64(i), r.OpenTime, "appends of one exchange keep their order")
		}
	}
}
