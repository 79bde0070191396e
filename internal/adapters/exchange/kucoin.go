package exchange

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ohlcvflow/internal/core/domain"

	"github.com/google/uuid"
)

const (
	KuCoinDefaultInterval = "1min"
	kuCoinCandleTopic     = "/market/candles:"
	kuCoinPingInterval    = 18 * time.Second
)

// kuCoinIntervalWidth maps KuCoin candle types to their width in milliseconds.
var kuCoinIntervalWidth = map[string]int64{
	"1min":   60_000,
	"3min":   3 * 60_000,
	"5min":   5 * 60_000,
	"15min":  15 * 60_000,
	"30min":  30 * 60_000,
	"1hour":  3_600_000,
	"2hour":  2 * 3_600_000,
	"4hour":  4 * 3_600_000,
	"6hour":  6 * 3_600_000,
	"8hour":  8 * 3_600_000,
	"12hour": 12 * 3_600_000,
	"1day":   86_400_000,
	"1week":  7 * 86_400_000,
}

type kuCoinEnvelope struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
}

type kuCoinCandleFrame struct {
	Type    string           `json:"type" validate:"eq=message"`
	Topic   string           `json:"topic" validate:"required,startswith=/market/candles:"`
	Subject string           `json:"subject" validate:"required"`
	Data    kuCoinCandleData `json:"data" validate:"required"`
}

// Candles is [start(s), open, close, high, low, volume, turnover].
type kuCoinCandleData struct {
	Symbol  string   `json:"symbol" validate:"required"`
	Candles []string `json:"candles" validate:"len=7,dive,decimal"`
	Time    int64    `json:"time"`
}

type kuCoinRequest struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Topic          string `json:"topic,omitempty"`
	PrivateChannel bool   `json:"privateChannel"`
	Response       bool   `json:"response"`
}

// NormalizeKuCoin maps a candle update. welcome, ack, pong and error frames
// are skipped.
func NormalizeKuCoin(raw []byte) ([]domain.Record, error) {
	var env kuCoinEnvelope
	if err := decodeEnvelope(raw, &env); err != nil {
		return nil, err
	}
	if env.Type != "message" || !strings.HasPrefix(env.Subject, "trade.candles.") {
		return nil, nil
	}

	var frame kuCoinCandleFrame
	if err := decodeStrict(raw, &frame); err != nil {
		return nil, err
	}

	interval, err := kuCoinTopicInterval(frame.Topic)
	if err != nil {
		return nil, err
	}
	width := kuCoinIntervalWidth[interval]

	startSec, err := strconv.ParseInt(frame.Data.Candles[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: candle start %q", domain.ErrMalformedMessage, frame.Data.Candles[0])
	}
	openTime := startSec * 1000
	c := frame.Data.Candles

	return []domain.Record{{
		Exchange:  domain.ExchangeKuCoin,
		Symbol:    frame.Data.Symbol,
		Interval:  interval,
		OpenTime:  openTime,
		CloseTime: openTime + width,
		Open:      c[1],
		Close:     c[2],
		High:      c[3],
		Low:       c[4],
		Volume:    c[5],
	}}, nil
}

func kuCoinTopicInterval(topic string) (string, error) {
	i := strings.LastIndexByte(topic, '_')
	if i < 0 {
		return "", fmt.Errorf("%w: topic %q has no candle type", domain.ErrMalformedMessage, topic)
	}
	interval := topic[i+1:]
	if _, ok := kuCoinIntervalWidth[interval]; !ok {
		return "", fmt.Errorf("%w: unknown candle type %q", domain.ErrMalformedMessage, interval)
	}
	return interval, nil
}

type KuCoinProtocol struct {
	Symbols  []string
	Interval string
}

func NewKuCoinProtocol(symbols []string, interval string) *KuCoinProtocol {
	return &KuCoinProtocol{Symbols: symbols, Interval: interval}
}

func (p *KuCoinProtocol) Exchange() domain.Exchange { return domain.ExchangeKuCoin }

// Endpoint needs the bullet token; the connect id is fresh per connection.
func (p *KuCoinProtocol) Endpoint(token *Token) (string, error) {
	if token == nil || token.Value == "" || token.Endpoint == "" {
		return "", errors.New("kucoin: endpoint requires a token")
	}
	u, err := url.Parse(token.Endpoint)
	if err != nil {
		return "", fmt.Errorf("kucoin: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("token", token.Value)
	q.Set("connectId", uuid.NewString())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *KuCoinProtocol) Subscriptions() []any {
	reqs := make([]any, len(p.Symbols))
	for i, symbol := range p.Symbols {
		reqs[i] = kuCoinRequest{
			ID:       uuid.NewString(),
			Type:     "subscribe",
			Topic:    kuCoinCandleTopic + symbol + "_" + p.Interval,
			Response: true,
		}
	}
	return reqs
}

// Handshake answers the welcome frame with a fresh subscription, which is
// what gets candles flowing on a new session.
func (p *KuCoinProtocol) Handshake(raw []byte) []any {
	var env kuCoinEnvelope
	if err := decodeEnvelope(raw, &env); err != nil || env.Type != "welcome" {
		return nil
	}
	return p.Subscriptions()
}

func (p *KuCoinProtocol) Normalize(raw []byte) ([]domain.Record, error) {
	return NormalizeKuCoin(raw)
}

func (p *KuCoinProtocol) PingMessage() any {
	return kuCoinRequest{ID: strconv.FormatInt(time.Now().UnixMilli(), 10), Type: "ping"}
}

func (p *KuCoinProtocol) PingInterval() time.Duration { return kuCoinPingInterval }
