package exchange

import (
	"time"

	"ohlcvflow/internal/core/domain"
)

// Protocol is the wire dialect of one exchange. Implementations hold only
// configuration; Normalize must stay free of I/O and state.
type Protocol interface {
	Exchange() domain.Exchange
	// Endpoint returns the stream URL. token is nil for exchanges without auth.
	Endpoint(token *Token) (string, error)
	Subscriptions() []any
	// Handshake returns the replies a control frame demands, if any.
	Handshake(raw []byte) []any
	// Normalize maps one frame to records. An empty result means Skip.
	Normalize(raw []byte) ([]domain.Record, error)
}

// Keepalive is implemented by exchanges that drop silent clients.
type Keepalive interface {
	PingMessage() any
	PingInterval() time.Duration
}

// IdleTimeout is implemented by exchanges whose streams may stay silent
// longer than the connector's default read timeout.
type IdleTimeout interface {
	IdleTimeout() time.Duration
}

const (
	tradeInterval      = "1m"
	tradeIntervalWidth = int64(time.Minute / time.Millisecond)
)

// tradeCandle turns a single trade into a degenerate candle.
func tradeCandle(exchange domain.Exchange, symbol, price, size string, ts int64) domain.Record {
	return domain.Record{
		Exchange:  exchange,
		Symbol:    symbol,
		Interval:  tradeInterval,
		OpenTime:  ts,
		CloseTime: ts + tradeIntervalWidth,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    size,
	}
}

// NewProtocol builds the protocol of the given exchange for symbols.
func NewProtocol(exchange domain.Exchange, symbols []string) (Protocol, error) {
	switch exchange {
	case domain.ExchangeBinance:
		return NewBinanceProtocol(symbols, BinanceDefaultInterval), nil
	case domain.ExchangeByBit:
		return NewByBitProtocol(symbols), nil
	case domain.ExchangeKuCoin:
		return NewKuCoinProtocol(symbols, KuCoinDefaultInterval), nil
	case domain.ExchangeMexc:
		return NewMexcProtocol(symbols), nil
	default:
		return nil, domain.ErrUnknownExchange
	}
}
