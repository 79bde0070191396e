package workerpool

import (
	"log/slog"
	"sync"

	"ohlcvflow/internal/core/domain"
)

// FanInAggregator merges the result streams of the per-exchange pools.
// Its output closes after every input has closed, so the pools decide when
// the merged stream ends.
type FanInAggregator struct {
	inputs map[domain.Exchange]<-chan Result
	order  []domain.Exchange
	out    chan Result
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewFanInAggregator(logger *slog.Logger) *FanInAggregator {
	return &FanInAggregator{
		inputs: make(map[domain.Exchange]<-chan Result),
		out:    make(chan Result, DefaultQueueSize),
		logger: logger,
	}
}

// Add registers the results of one exchange. Adding the same exchange twice
// replaces the earlier stream. Must be called before Start.
func (f *FanInAggregator) Add(exchange domain.Exchange, results <-chan Result) {
	if _, ok := f.inputs[exchange]; !ok {
		f.order = append(f.order, exchange)
	}
	f.inputs[exchange] = results
}

func (f *FanInAggregator) Start() <-chan Result {
	f.logger.Info("starting fan-in aggregator", slog.Int("inputs", len(f.order)))

	for _, exchange := range f.order {
		f.wg.Add(1)
		go f.forward(exchange, f.inputs[exchange])
	}

	go func() {
		f.wg.Wait()
		close(f.out)
		f.logger.Info("fan-in aggregator stopped")
	}()

	return f.out
}

func (f *FanInAggregator) forward(exchange domain.Exchange, in <-chan Result) {
	defer f.wg.Done()

	var n int64
	for res := range in {
		f.out <- res
		n++
	}
	f.logger.Debug("exchange results drained",
		slog.String("exchange", exchange.String()),
		slog.Int64("results", n))
}
