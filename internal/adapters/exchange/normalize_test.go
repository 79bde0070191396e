package exchange

import (
	"testing"

	"ohlcvflow/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	binanceKlineFrame  = `{"e":"kline","E":1638747660000,"s":"BTCUSDT","k":{"t":1638747660000,"T":1638747719999,"s":"BTCUSDT","i":"1m","f":100,"L":200,"o":"57000.10","c":"57050.25","h":"57100.00","l":"56950.5","v":"12.345","n":100,"x":false,"q":"703000.12","V":"6.1","Q":"348000.5","B":"0"}}`
	byBitTradeSample   = `{"topic":"publicTrade.BTCUSDT","type":"snapshot","ts":1672304486868,"data":[{"T":1672304486865,"s":"BTCUSDT","S":"Buy","v":"0.001","p":"16578.50","L":"PlusTick","i":"20f43950-d8dd-5b31-9112-a178eb6023af","BT":false},{"T":1672304486866,"s":"BTCUSDT","S":"Sell","v":"0.25","p":"16578.00","L":"MinusTick","i":"20f43950-d8dd-5b31-9112-a178eb6023b0","BT":false}]}`
	kuCoinCandleSample = `{"type":"message","topic":"/market/candles:BTC-USDT_1min","subject":"trade.candles.update","data":{"symbol":"BTC-USDT","candles":["1589968800","9786.9","9740.8","9806.1","9732","27.45649579","268280.09830877"],"time":1589970010253893337}}`
	mexcDealsSample    = `{"c":"spot@public.deals.v3.api@BTCUSDT","d":{"deals":[{"S":2,"p":"20233.84","t":1678089171633,"v":"0.001028"}],"e":"spot@public.deals.v3.api"},"s":"BTCUSDT","t":1678089171645}`
)

func TestNormalize_ValidFrames(t *testing.T) {
	tests := []struct {
		name      string
		normalize func([]byte) ([]domain.Record, error)
		raw       string
		want      []domain.Record
	}{
		{
			name:      "binance kline",
			normalize: NormalizeBinance,
			raw:       binanceKlineFrame,
			want: []domain.Record{{
				Exchange: domain.ExchangeBinance, Symbol: "BTCUSDT", Interval: "1m",
				OpenTime: 1638747660000, CloseTime: 1638747719999,
				Open: "57000.10", High: "57100.00", Low: "56950.5", Close: "57050.25", Volume: "12.345",
			}},
		},
		{
			name:      "bybit public trades",
			normalize: NormalizeByBit,
			raw:       byBitTradeSample,
			want: []domain.Record{
				{
					Exchange: domain.ExchangeByBit, Symbol: "BTCUSDT", Interval: "1m",
					OpenTime: 1672304486865, CloseTime: 1672304546865,
					Open: "16578.50", High: "16578.50", Low: "16578.50", Close: "16578.50", Volume: "0.001",
				},
				{
					Exchange: domain.ExchangeByBit, Symbol: "BTCUSDT", Interval: "1m",
					OpenTime: 1672304486866, CloseTime: 1672304546866,
					Open: "16578.00", High: "16578.00", Low: "16578.00", Close: "16578.00", Volume: "0.25",
				},
			},
		},
		{
			name:      "kucoin candle",
			normalize: NormalizeKuCoin,
			raw:       kuCoinCandleSample,
			want: []domain.Record{{
				Exchange: domain.ExchangeKuCoin, Symbol: "BTC-USDT", Interval: "1min",
				OpenTime: 1589968800000, CloseTime: 1589968860000,
				Open: "9786.9", High: "9806.1", Low: "9732", Close: "9740.8", Volume: "27.45649579",
			}},
		},
		{
			name:      "mexc deals",
			normalize: NormalizeMexc,
			raw:       mexcDealsSample,
			want: []domain.Record{{
				Exchange: domain.ExchangeMexc, Symbol: "BTCUSDT", Interval: "1m",
				OpenTime: 1678089171633, CloseTime: 1678089231633,
				Open: "20233.84", High: "20233.84", Low: "20233.84", Close: "20233.84", Volume: "0.001028",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.normalize([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			for _, r := range got {
				assert.NoError(t, r.Validate())
				assert.GreaterOrEqual(t, r.CloseTime, r.OpenTime)
			}
		})
	}
}

func TestNormalize_KeepsDecimalText(t *testing.T) {
	raw := `{"e":"kline","E":1,"s":"SHIBUSDT","k":{"t":1700000000000,"T":1700000059999,"i":"1m","L":9,"o":"0.0000123456789","c":"0.0000123456790","h":"0.0000123456791","l":"0.0000123456788","v":"1000000000.00000001","V":"1"}}`

	got, err := NormalizeBinance([]byte(raw))
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "0.0000123456789", got[0].Open)
	assert.Equal(t, "0.0000123456790", got[0].Close)
	assert.Equal(t, "0.0000123456791", got[0].High)
	assert.Equal(t, "0.0000123456788", got[0].Low)
	assert.Equal(t, "1000000000.00000001", got[0].Volume)
}

func TestNormalize_SkipsControlFrames(t *testing.T) {
	tests := []struct {
		name      string
		normalize func([]byte) ([]domain.Record, error)
		raw       string
	}{
		{"binance subscribe result", NormalizeBinance, `{"result":null,"id":1}`},
		{"binance other event", NormalizeBinance, `{"e":"aggTrade","E":123,"s":"BTCUSDT","p":"1"}`},
		{"bybit subscribe ack", NormalizeByBit, `{"success":true,"ret_msg":"subscribe","conn_id":"abc","op":"subscribe"}`},
		{"bybit pong", NormalizeByBit, `{"success":true,"ret_msg":"pong","conn_id":"abc","op":"ping"}`},
		{"bybit other topic", NormalizeByBit, `{"topic":"orderbook.1.BTCUSDT","type":"snapshot","data":{}}`},
		{"kucoin welcome", NormalizeKuCoin, `{"id":"hQvf8jkno","type":"welcome"}`},
		{"kucoin ack", NormalizeKuCoin, `{"id":"1545910660739","type":"ack"}`},
		{"kucoin pong", NormalizeKuCoin, `{"id":"1545910590801","type":"pong"}`},
		{"kucoin ticker", NormalizeKuCoin, `{"type":"message","topic":"/market/ticker:BTC-USDT","subject":"trade.ticker","data":{}}`},
		{"mexc subscribe result", NormalizeMexc, `{"id":1,"code":0,"msg":"spot@public.deals.v3.api@BTCUSDT"}`},
		{"mexc pong", NormalizeMexc, `{"id":0,"code":0,"msg":"PONG"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.normalize([]byte(tt.raw))
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestNormalize_RejectsMalformedFrames(t *testing.T) {
	tests := []struct {
		name      string
		normalize func([]byte) ([]domain.Record, error)
		raw       string
	}{
		{"binance not json", NormalizeBinance, `{not json`},
		{"binance missing open", NormalizeBinance, `{"e":"kline","s":"BTCUSDT","k":{"t":1,"T":2,"i":"1m","c":"1","h":"1","l":"1","v":"1"}}`},
		{"binance close before open", NormalizeBinance, `{"e":"kline","s":"BTCUSDT","k":{"t":2000,"T":1000,"i":"1m","o":"1","c":"1","h":"1","l":"1","v":"1"}}`},
		{"binance numeric price", NormalizeBinance, `{"e":"kline","s":"BTCUSDT","k":{"t":1,"T":2,"i":"1m","o":1.5,"c":"1","h":"1","l":"1","v":"1"}}`},
		{"bybit empty data", NormalizeByBit, `{"topic":"publicTrade.BTCUSDT","type":"snapshot","data":[]}`},
		{"bybit bad price", NormalizeByBit, `{"topic":"publicTrade.BTCUSDT","type":"snapshot","data":[{"T":1,"s":"BTCUSDT","S":"Buy","v":"1","p":"abc"}]}`},
		{"kucoin short candle", NormalizeKuCoin, `{"type":"message","topic":"/market/candles:BTC-USDT_1min","subject":"trade.candles.update","data":{"symbol":"BTC-USDT","candles":["1589968800","1","1","1","1","1"]}}`},
		{"kucoin unknown interval", NormalizeKuCoin, `{"type":"message","topic":"/market/candles:BTC-USDT_7min","subject":"trade.candles.update","data":{"symbol":"BTC-USDT","candles":["1589968800","1","1","1","1","1","1"]}}`},
		{"kucoin fractional start", NormalizeKuCoin, `{"type":"message","topic":"/market/candles:BTC-USDT_1min","subject":"trade.candles.update","data":{"symbol":"BTC-USDT","candles":["1589968800.5","1","1","1","1","1","1"]}}`},
		{"mexc bad volume", NormalizeMexc, `{"c":"spot@public.deals.v3.api@BTCUSDT","d":{"deals":[{"S":1,"p":"1","t":1,"v":"x"}],"e":"spot@public.deals.v3.api"},"s":"BTCUSDT"}`},
		{"mexc missing symbol", NormalizeMexc, `{"c":"spot@public.deals.v3.api@BTCUSDT","d":{"deals":[{"S":1,"p":"1","t":1,"v":"1"}],"e":"spot@public.deals.v3.api"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.normalize([]byte(tt.raw))
			assert.ErrorIs(t, err, domain.ErrMalformedMessage)
			assert.Empty(t, got)
		})
	}
}

func TestProtocols_Subscriptions(t *testing.T) {
	binance := NewBinanceProtocol([]string{"BTCUSDT", "ETHUSDT"}, "1m")
	assert.Equal(t, []any{binanceSubscribe{
		Method: "SUBSCRIBE",
		Params: []string{"btcusdt@kline_1m", "ethusdt@kline_1m"},
		ID:     1,
	}}, binance.Subscriptions())

	bybit := NewByBitProtocol([]string{"BTCUSDT"})
	assert.Equal(t, []any{byBitRequest{Op: "subscribe", Args: []string{"publicTrade.BTCUSDT"}}}, bybit.Subscriptions())

	mexc := NewMexcProtocol([]string{"BTCUSDT"})
	assert.Equal(t, []any{mexcRequest{Method: "SUBSCRIPTION", Params: []string{"spot@public.deals.v3.api@BTCUSDT"}, ID: 1}}, mexc.Subscriptions())

	kucoin := NewKuCoinProtocol([]string{"BTC-USDT"}, "1min")
	subs := kucoin.Subscriptions()
	require.Len(t, subs, 1)
	req, ok := subs[0].(kuCoinRequest)
	require.True(t, ok)
	assert.Equal(t, "subscribe", req.Type)
	assert.Equal(t, "/market/candles:BTC-USDT_1min", req.Topic)
	assert.NotEmpty(t, req.ID)
}

func TestKuCoinProtocol_HandshakeAnswersWelcome(t *testing.T) {
	p := NewKuCoinProtocol([]string{"BTC-USDT", "ETH-USDT"}, "1min")

	assert.Len(t, p.Handshake([]byte(`{"id":"x","type":"welcome"}`)), 2)
	assert.Empty(t, p.Handshake([]byte(`{"id":"x","type":"ack"}`)))
	assert.Empty(t, p.Handshake([]byte(kuCoinCandleSample)))
}

func TestKuCoinProtocol_Endpoint(t *testing.T) {
	p := NewKuCoinProtocol([]string{"BTC-USDT"}, "1min")

	_, err := p.Endpoint(nil)
	assert.Error(t, err)

	endpoint, err := p.Endpoint(&Token{Value: "tok", Endpoint: "wss://ws-api-spot.kucoin.com/"})
	require.NoError(t, err)
	assert.Contains(t, endpoint, "wss://ws-api-spot.kucoin.com/?")
	assert.Contains(t, endpoint, "token=tok")
	assert.Contains(t, endpoint, "connectId=")
}

func TestNewProtocol(t *testing.T) {
	for _, ex := range domain.Exchanges {
		p, err := NewProtocol(ex, []string{"BTCUSDT"})
		require.NoError(t, err)
		assert.Equal(t, ex, p.Exchange())
	}

	_, err := NewProtocol("okx", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownExchange)
}
