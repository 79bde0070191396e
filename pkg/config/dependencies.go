package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Dependencies holds the process-wide clients. Any field may be nil when
// its option was not requested.
type Dependencies struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	Logger   *slog.Logger
}

type Option func(context.Context, *Dependencies) error

func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	if d.Postgres != nil {
		d.Postgres.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}

// NewDependencies applies opts in order. On the first failure everything
// opened so far is closed.
func NewDependencies(ctx context.Context, opts ...Option) (*Dependencies, error) {
	deps := &Dependencies{}

	for _, opt := range opts {
		if err := opt(ctx, deps); err != nil {
			deps.Close()
			return nil, err
		}
	}

	return deps, nil
}

// PostgresDSN builds a connection URL; credentials are escaped.
func PostgresDSN(user, password, host, port, dbName string) string {
	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + dbName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// WithPostgres opens a pool and pings it. maxConns <= 0 keeps the pgx default.
func WithPostgres(dsn string, maxConns int32) Option {
	return func(ctx context.Context, d *Dependencies) error {
		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return fmt.Errorf("postgres: parse dsn: %w", err)
		}
		if maxConns > 0 {
			poolCfg.MaxConns = maxConns
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("postgres: %w", err)
		}

		d.Postgres = pool
		return nil
	}
}

func WithRedis(addr string, db int) Option {
	return func(ctx context.Context, d *Dependencies) error {
		client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("redis %s: %w", addr, err)
		}

		d.Redis = client
		return nil
	}
}

const (
	EnvDev  = "dev"
	EnvProd = "prod"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

// WithLogger installs the default logger. level is dev, prod or any slog
// level name; format is text or json.
func WithLogger(level, format string) Option {
	return func(_ context.Context, d *Dependencies) error {
		logger, err := newLogger(os.Stdout, level, format)
		if err != nil {
			return err
		}

		slog.SetDefault(logger)
		d.Logger = logger
		return nil
	}
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case EnvDev:
		lvl = slog.LevelDebug
	case EnvProd:
		lvl = slog.LevelInfo
	default:
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "", LogFormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case LogFormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format: unknown %q", format)
	}
}
