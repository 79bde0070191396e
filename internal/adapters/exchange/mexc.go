package exchange

import (
	"time"

	"ohlcvflow/internal/core/domain"
)

const (
	MexcURL          = "wss://wbs.mexc.com/ws"
	mexcDealsChannel = "spot@public.deals.v3.api"
	mexcPingInterval = 20 * time.Second
)

type mexcEnvelope struct {
	Channel string `json:"c"`
	Data    struct {
		Event string `json:"e"`
	} `json:"d"`
}

type mexcDealsFrame struct {
	Channel string        `json:"c" validate:"required"`
	Symbol  string        `json:"s" validate:"required"`
	Data    mexcDealsData `json:"d" validate:"required"`
}

type mexcDealsData struct {
	Event string     `json:"e" validate:"eq=spot@public.deals.v3.api"`
	Deals []mexcDeal `json:"deals" validate:"required,min=1,dive"`
}

type mexcDeal struct {
	Side   int    `json:"S"`
	Price  string `json:"p" validate:"decimal"`
	Time   int64  `json:"t" validate:"required"`
	Volume string `json:"v" validate:"decimal"`
}

type mexcRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params,omitempty"`
	ID     int      `json:"id,omitempty"`
}

// NormalizeMexc maps a spot deals push to one degenerate candle per deal.
// Subscription responses and PONG ({"id":..,"code":0,"msg":..}) have no channel.
func NormalizeMexc(raw []byte) ([]domain.Record, error) {
	var env mexcEnvelope
	if err := decodeEnvelope(raw, &env); err != nil {
		return nil, err
	}
	if env.Channel == "" || env.Data.Event != mexcDealsChannel {
		return nil, nil
	}

	var frame mexcDealsFrame
	if err := decodeStrict(raw, &frame); err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(frame.Data.Deals))
	for _, deal := range frame.Data.Deals {
		records = append(records, tradeCandle(domain.ExchangeMexc, frame.Symbol, deal.Price, deal.Volume, deal.Time))
	}
	return records, nil
}

type MexcProtocol struct {
	URL     string
	Symbols []string
}

func NewMexcProtocol(symbols []string) *MexcProtocol {
	return &MexcProtocol{URL: MexcURL, Symbols: symbols}
}

func (p *MexcProtocol) Exchange() domain.Exchange { return domain.ExchangeMexc }

func (p *MexcProtocol) Endpoint(_ *Token) (string, error) { return p.URL, nil }

func (p *MexcProtocol) Subscriptions() []any {
	params := make([]string, len(p.Symbols))
	for i, symbol := range p.Symbols {
		params[i] = mexcDealsChannel + "@" + symbol
	}
	return []any{mexcRequest{Method: "SUBSCRIPTION", Params: params, ID: 1}}
}

func (p *MexcProtocol) Handshake(_ []byte) []any { return nil }

func (p *MexcProtocol) Normalize(raw []byte) ([]domain.Record, error) {
	return NormalizeMexc(raw)
}

func (p *MexcProtocol) PingMessage() any { return mexcRequest{Method: "PING"} }

func (p *MexcProtocol) PingInterval() time.Duration { return mexcPingInterval }
