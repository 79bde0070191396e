package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"ohlcvflow/internal/core/domain"
	"ohlcvflow/internal/core/port"

	"github.com/redis/go-redis/v9"
)

var _ port.LiveFeed = (*Feed)(nil)

// Feed follows every exchange's live-update topic.
type Feed struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewFeed(rdb *redis.Client, logger *slog.Logger) *Feed {
	return &Feed{
		rdb:    rdb,
		logger: logger,
	}
}

// Subscribe returns once the subscription is confirmed. The channel closes
// when ctx is done.
func (f *Feed) Subscribe(ctx context.Context) (<-chan domain.Record, error) {
	pubsub := f.rdb.PSubscribe(ctx, domain.TopicPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan domain.Record, 100)

	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}

				var record domain.Record
				if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
					f.logger.Warn("failed to decode live update",
						slog.String("channel", msg.Channel),
						slog.Any("err", err))
					continue
				}

				select {
				case out <- record:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
