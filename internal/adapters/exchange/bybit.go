package exchange

import (
	"strings"
	"time"

	"ohlcvflow/internal/core/domain"
)

const (
	ByBitSpotURL      = "wss://stream.bybit.com/v5/public/spot"
	byBitTradeTopic   = "publicTrade."
	byBitPingInterval = 20 * time.Second
)

type byBitEnvelope struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
}

type byBitTradeFrame struct {
	Topic string       `json:"topic" validate:"required"`
	Type  string       `json:"type" validate:"oneof=snapshot delta"`
	Data  []byBitTrade `json:"data" validate:"required,min=1,dive"`
}

type byBitTrade struct {
	Time   int64  `json:"T" validate:"required"`
	Symbol string `json:"s" validate:"required"`
	Side   string `json:"S"`
	Size   string `json:"v" validate:"decimal"`
	Price  string `json:"p" validate:"decimal"`
}

type byBitRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

// NormalizeByBit maps a publicTrade frame to one degenerate candle per trade.
// Operation responses (subscribe, pong) carry "op" and are skipped.
func NormalizeByBit(raw []byte) ([]domain.Record, error) {
	var env byBitEnvelope
	if err := decodeEnvelope(raw, &env); err != nil {
		return nil, err
	}
	if env.Op != "" || !strings.HasPrefix(env.Topic, byBitTradeTopic) {
		return nil, nil
	}

	var frame byBitTradeFrame
	if err := decodeStrict(raw, &frame); err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(frame.Data))
	for _, trade := range frame.Data {
		records = append(records, tradeCandle(domain.ExchangeByBit, trade.Symbol, trade.Price, trade.Size, trade.Time))
	}
	return records, nil
}

type ByBitProtocol struct {
	URL     string
	Symbols []string
}

func NewByBitProtocol(symbols []string) *ByBitProtocol {
	return &ByBitProtocol{URL: ByBitSpotURL, Symbols: symbols}
}

func (p *ByBitProtocol) Exchange() domain.Exchange { return domain.ExchangeByBit }

func (p *ByBitProtocol) Endpoint(_ *Token) (string, error) { return p.URL, nil }

func (p *ByBitProtocol) Subscriptions() []any {
	args := make([]string, len(p.Symbols))
	for i, symbol := range p.Symbols {
		args[i] = byBitTradeTopic + symbol
	}
	return []any{byBitRequest{Op: "subscribe", Args: args}}
}

func (p *ByBitProtocol) Handshake(_ []byte) []any { return nil }

func (p *ByBitProtocol) Normalize(raw []byte) ([]domain.Record, error) {
	return NormalizeByBit(raw)
}

func (p *ByBitProtocol) PingMessage() any { return byBitRequest{Op: "ping"} }

func (p *ByBitProtocol) PingInterval() time.Duration { return byBitPingInterval }
