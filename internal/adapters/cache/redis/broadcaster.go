package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ohlcvflow/internal/core/domain"
	"ohlcvflow/internal/core/port"

	"github.com/redis/go-redis/v9"
)

var (
	_ port.Broadcaster = (*Broadcaster)(nil)
	_ port.LatestCache = (*Broadcaster)(nil)
)

const (
	latestTTL = 5 * time.Minute
)

// Broadcaster publishes records on their exchange topic and keeps the last
// published record per exchange and symbol.
type Broadcaster struct {
	client    *redis.Client
	exchanges []domain.Exchange
	logger    *slog.Logger
}

// NewBroadcaster builds a broadcaster. exchanges sets the order of
// snapshots returned for a symbol; when empty every supported exchange is used.
func NewBroadcaster(client *redis.Client, logger *slog.Logger, exchanges ...domain.Exchange) *Broadcaster {
	if len(exchanges) == 0 {
		exchanges = domain.Exchanges
	}
	return &Broadcaster{
		client:    client,
		exchanges: exchanges,
		logger:    logger,
	}
}

// Ping checks the connection to the Redis server.
func (b *Broadcaster) Ping(ctx context.Context) string {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Sprintf("down: %v", err)
	}
	return "up"
}

// keyForLatest returns the snapshot key for an exchange and symbol.
func (b *Broadcaster) keyForLatest(exchange domain.Exchange, symbol string) string {
	return fmt.Sprintf("ohlcv:latest:%s:%s", exchange, symbol)
}

// Publish sends the record to topic subscribers and refreshes the latest
// snapshot in one round trip. Having no subscribers is not an error.
func (b *Broadcaster) Publish(ctx context.Context, topic string, record domain.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := b.client.Pipeline()
	pipe.Publish(ctx, topic, payload)
	pipe.Set(ctx, b.keyForLatest(record.Exchange, record.Symbol), payload, latestTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		b.logger.Error("failed to publish record", slog.String("topic", topic), slog.Any("error", err))
		return err
	}

	return nil
}

// GetLatest returns the last record published for the exchange and symbol,
// or nil when there is none.
func (b *Broadcaster) GetLatest(ctx context.Context, exchange domain.Exchange, symbol string) (*domain.Record, error) {
	raw, err := b.client.Get(ctx, b.keyForLatest(exchange, symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record domain.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("could not decode latest record: %w", err)
	}
	return &record, nil
}

// GetLatestBySymbol returns the snapshot of every exchange that has one for
// symbol, in configured exchange order. An empty result is not an error.
func (b *Broadcaster) GetLatestBySymbol(ctx context.Context, symbol string) ([]domain.Record, error) {
	keys := make([]string, len(b.exchanges))
	for i, ex := range b.exchanges {
		keys[i] = b.keyForLatest(ex, symbol)
	}

	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}

		var record domain.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			b.logger.Warn("could not decode latest record", slog.String("key", keys[i]), slog.Any("error", err))
			continue
		}
		records = append(records, record)
	}

	return records, nil
}
