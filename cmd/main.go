package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ohlcvflow/config"
	rediscache "ohlcvflow/internal/adapters/cache/redis"
	"ohlcvflow/internal/adapters/exchange"
	httpserver "ohlcvflow/internal/adapters/handlers/http"
	"ohlcvflow/internal/adapters/handlers/http/handler"
	"ohlcvflow/internal/adapters/handlers/ws"
	"ohlcvflow/internal/adapters/repository/memory"
	"ohlcvflow/internal/adapters/repository/postgres"
	"ohlcvflow/internal/core/domain"
	"ohlcvflow/internal/core/port"
	"ohlcvflow/internal/core/service"
	"ohlcvflow/internal/core/service/workerpool"
	deps "ohlcvflow/pkg/config"

	"github.com/gin-gonic/gin"
)

func init() {
	initialLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(initialLogger)
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("ohlcvflow stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts := []deps.Option{
		deps.WithLogger(cfg.Server.LogLvl, cfg.Server.LogFormat),
		deps.WithRedis(cfg.Redis.Addr, cfg.Redis.DB),
	}
	if cfg.StoreDriver == config.StoreDriverPostgres {
		dsn := deps.PostgresDSN(
			cfg.Postgres.User,
			cfg.Postgres.Pass,
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.DBName,
		)
		opts = append(opts, deps.WithPostgres(dsn, int32(cfg.Postgres.MaxConns)))
	}

	d, err := deps.NewDependencies(ctx, opts...)
	if err != nil {
		return fmt.Errorf("load dependencies: %w", err)
	}
	defer d.Close()
	logger := d.Logger

	if cfg.Server.LogLvl != deps.EnvDev {
		gin.SetMode(gin.ReleaseMode)
	}

	exchanges, err := enabledExchanges(cfg)
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg, d, exchanges, logger)
	if err != nil {
		return err
	}

	broadcaster := rediscache.NewBroadcaster(d.Redis, logger, exchanges...)
	sink := service.NewSink(store, broadcaster, logger)
	supervisor := service.NewSupervisor(sink, workerpool.DefaultQueueSize, logger)

	for _, ex := range exchanges {
		connector, err := newConnector(cfg, ex, logger)
		if err != nil {
			return err
		}
		if err := supervisor.Register(connector); err != nil {
			return err
		}
	}

	query := service.NewQueryService(store, exchanges, logger)
	hub := ws.NewHub(rediscache.NewFeed(d.Redis, logger), logger)
	ohlcvHandler := handler.NewOHLCVHandler(logger, query, broadcaster, store, supervisor, handler.Limits{
		Default: cfg.Query.DefaultLimit,
		Max:     cfg.Query.MaxLimit,
	})

	srv := httpserver.NewServer(logger, ohlcvHandler, hub.ServeWS)

	if err := supervisor.Start(ctx); err != nil {
		return err
	}
	defer supervisor.Shutdown()

	go func() {
		if err := hub.Run(ctx); err != nil {
			logger.Error("live feed stopped", slog.Any("error", err))
		}
	}()

	return serve(ctx, cfg, srv, logger)
}

func enabledExchanges(cfg *config.Config) ([]domain.Exchange, error) {
	exchanges := make([]domain.Exchange, 0, len(cfg.Exchanges.Enabled))
	for _, name := range cfg.Exchanges.Enabled {
		ex, err := domain.ParseExchange(name)
		if err != nil {
			return nil, fmt.Errorf("EXCHANGES: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, nil
}

func newStore(ctx context.Context, cfg *config.Config, d *deps.Dependencies, exchanges []domain.Exchange, logger *slog.Logger) (port.RecordStore, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory record store; records are lost on restart")
		return memory.NewRecordStore(exchanges...), nil
	}

	repo := postgres.NewRecordRepository(d.Postgres, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func newConnector(cfg *config.Config, ex domain.Exchange, logger *slog.Logger) (*exchange.Connector, error) {
	protocol, err := exchange.NewProtocol(ex, cfg.Exchanges.Symbols[ex.String()])
	if err != nil {
		return nil, err
	}

	opts := []exchange.Option{
		exchange.WithLogger(logger),
		exchange.WithReconnectPolicy(exchange.ReconnectPolicy{Delay: cfg.Connector.ReconnectDelay}),
	}

	if ex == domain.ExchangeKuCoin {
		policy, err := exchange.ParseAuthPolicy(cfg.Connector.AuthExhaustedPolicy)
		if err != nil {
			return nil, fmt.Errorf("AUTH_EXHAUSTED_POLICY: %w", err)
		}
		auth := exchange.NewKuCoinTokenClient(
			cfg.Connector.KuCoinAPIURL,
			cfg.Connector.TokenAttempts,
			cfg.Connector.TokenRetryDelay,
			logger,
		)
		opts = append(opts, exchange.WithAuthenticator(auth, policy, cfg.Connector.TokenTTL))
	}

	return exchange.NewConnector(protocol, opts...), nil
}

func serve(ctx context.Context, cfg *config.Config, srv http.Handler, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("gracefully shutting down...")

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", slog.Any("error", err))
	}
	return nil
}
