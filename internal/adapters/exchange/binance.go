package exchange

import (
	"strings"
	"time"

	"ohlcvflow/internal/core/domain"
)

const (
	BinanceFuturesURL      = "wss://fstream.binance.com/ws"
	BinanceDefaultInterval = "1m"

	// The server pings every 3 minutes and expects no client pings.
	binanceIdleTimeout = 5 * time.Minute
)

// Binance reuses keys that differ only in case ("e"/"E", "l"/"L", "v"/"V").
// encoding/json falls back to case-insensitive matching, so both spellings
// are declared even when only one is used.
type binanceEnvelope struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
}

type binanceKlineEvent struct {
	Event     string       `json:"e" validate:"eq=kline"`
	EventTime int64        `json:"E"`
	Symbol    string       `json:"s" validate:"required"`
	Kline     binanceKline `json:"k" validate:"required"`
}

type binanceKline struct {
	OpenTime       int64  `json:"t" validate:"required"`
	CloseTime      int64  `json:"T" validate:"required,gtefield=OpenTime"`
	Interval       string `json:"i" validate:"required"`
	Open           string `json:"o" validate:"decimal"`
	High           string `json:"h" validate:"decimal"`
	Low            string `json:"l" validate:"decimal"`
	Close          string `json:"c" validate:"decimal"`
	Volume         string `json:"v" validate:"decimal"`
	LastTradeID    int64  `json:"L"`
	TakerBuyVolume string `json:"V"`
	QuoteVolume    string `json:"q"`
	TakerBuyQuote  string `json:"Q"`
}

type binanceSubscribe struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// NormalizeBinance maps a futures kline event. Subscription results
// ({"result":null,"id":1}) and other events are skipped.
func NormalizeBinance(raw []byte) ([]domain.Record, error) {
	var env binanceEnvelope
	if err := decodeEnvelope(raw, &env); err != nil {
		return nil, err
	}
	if env.Event != "kline" {
		return nil, nil
	}

	var ev binanceKlineEvent
	if err := decodeStrict(raw, &ev); err != nil {
		return nil, err
	}

	return []domain.Record{{
		Exchange:  domain.ExchangeBinance,
		Symbol:    ev.Symbol,
		Interval:  ev.Kline.Interval,
		OpenTime:  ev.Kline.OpenTime,
		CloseTime: ev.Kline.CloseTime,
		Open:      ev.Kline.Open,
		High:      ev.Kline.High,
		Low:       ev.Kline.Low,
		Close:     ev.Kline.Close,
		Volume:    ev.Kline.Volume,
	}}, nil
}

type BinanceProtocol struct {
	URL      string
	Symbols  []string
	Interval string
}

func NewBinanceProtocol(symbols []string, interval string) *BinanceProtocol {
	return &BinanceProtocol{URL: BinanceFuturesURL, Symbols: symbols, Interval: interval}
}

func (p *BinanceProtocol) Exchange() domain.Exchange { return domain.ExchangeBinance }

func (p *BinanceProtocol) Endpoint(_ *Token) (string, error) { return p.URL, nil }

func (p *BinanceProtocol) Subscriptions() []any {
	streams := make([]string, len(p.Symbols))
	for i, symbol := range p.Symbols {
		streams[i] = strings.ToLower(symbol) + "@kline_" + p.Interval
	}
	return []any{binanceSubscribe{Method: "SUBSCRIBE", Params: streams, ID: 1}}
}

func (p *BinanceProtocol) Handshake(_ []byte) []any { return nil }

func (p *BinanceProtocol) IdleTimeout() time.Duration { return binanceIdleTimeout }

func (p *BinanceProtocol) Normalize(raw []byte) ([]domain.Record, error) {
	return NormalizeBinance(raw)
}
