package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type Exchange string

const (
	ExchangeBinance Exchange = "binance"
	ExchangeByBit   Exchange = "bybit"
	ExchangeKuCoin  Exchange = "kucoin"
	ExchangeMexc    Exchange = "mexc"
)

// Exchanges lists every supported exchange in default merge order.
var Exchanges = []Exchange{ExchangeBinance, ExchangeByBit, ExchangeKuCoin, ExchangeMexc}

func ParseExchange(s string) (Exchange, error) {
	ex := Exchange(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Exchanges {
		if ex == known {
			return ex, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownExchange, s)
}

func (e Exchange) String() string {
	return string(e)
}

// Topic is the live-update channel a record of this exchange is published on.
func (e Exchange) Topic() string {
	return TopicPrefix + string(e)
}

const TopicPrefix = "ohlcv_update:"

// Record is one OHLCV observation of one exchange. Prices and volume keep the
// exact text the exchange sent.
type Record struct {
	Exchange  Exchange `json:"exchange"`
	Symbol    string   `json:"symbol"`
	Interval  string   `json:"interval"`
	OpenTime  int64    `json:"openTime"`
	CloseTime int64    `json:"closeTime"`
	Open      string   `json:"open"`
	High      string   `json:"high"`
	Low       string   `json:"low"`
	Close     string   `json:"close"`
	Volume    string   `json:"volume"`
}

// Key is the natural identity of a record. Uniqueness is not enforced.
type Key struct {
	Exchange Exchange
	Symbol   string
	Interval string
	OpenTime int64
}

func (r Record) Key() Key {
	return Key{Exchange: r.Exchange, Symbol: r.Symbol, Interval: r.Interval, OpenTime: r.OpenTime}
}

// ClosePrice returns the close as a decimal for downstream arithmetic.
func (r Record) ClosePrice() (decimal.Decimal, error) {
	return decimal.NewFromString(r.Close)
}

func (r Record) Validate() error {
	if r.Exchange == "" || r.Symbol == "" || r.Interval == "" {
		return fmt.Errorf("%w: missing identity field", ErrMalformedMessage)
	}
	if r.CloseTime < r.OpenTime {
		return fmt.Errorf("%w: closeTime %d before openTime %d", ErrMalformedMessage, r.CloseTime, r.OpenTime)
	}
	for _, v := range []string{r.Open, r.High, r.Low, r.Close, r.Volume} {
		if _, err := decimal.NewFromString(v); err != nil {
			return fmt.Errorf("%w: %q is not a decimal", ErrMalformedMessage, v)
		}
	}
	return nil
}

// Filter selects records from a store. An empty Symbol matches everything.
// A positive Limit asks the store for only the Limit newest records, in
// NewestFirst order; zero returns every match in append order.
type Filter struct {
	Symbol string
	Limit  int
}

func (f Filter) Match(r Record) bool {
	return f.Symbol == "" || f.Symbol == r.Symbol
}

// NewestFirst sorts records by openTime descending. Equal openTimes keep
// their relative order.
func NewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].OpenTime > records[j].OpenTime
	})
}

type HealthResponse struct {
	Status     string           `json:"status"`
	Redis      string           `json:"redis"`
	Store      string           `json:"store"`
	Connectors []ConnectorState `json:"connectors"`
	Ingest     []IngestStats    `json:"ingest"`
}
