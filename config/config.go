package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type (
	Postgres struct {
		User     string
		Pass     string
		Host     string
		Port     string
		DBName   string
		MaxConns int
	}

	Redis struct {
		Addr string
		DB   int
	}

	ServerConfig struct {
		Port      string
		Host      string
		LogLvl    string
		LogFormat string
	}

	// Exchanges lists the enabled exchanges in query merge order, with the
	// symbols each one subscribes to in its own spelling.
	Exchanges struct {
		Enabled []string
		Symbols map[string][]string
	}

	Connector struct {
		ReconnectDelay      time.Duration
		TokenAttempts       int
		TokenRetryDelay     time.Duration
		TokenTTL            time.Duration
		AuthExhaustedPolicy string
		KuCoinAPIURL        string
	}

	Query struct {
		DefaultLimit int
		MaxLimit     int
	}

	Config struct {
		Postgres    Postgres
		Redis       Redis
		Server      ServerConfig
		StoreDriver string
		Exchanges   Exchanges
		Connector   Connector
		Query       Query
	}
)

var defaultSymbols = map[string]string{
	"binance": "BTCUSDT",
	"bybit":   "BTCUSDT",
	"kucoin":  "BTC-USDT",
	"mexc":    "BTCUSDT",
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.Postgres.User = getEnv("DB_USER", "postgres")
	cfg.Postgres.Pass = getEnv("DB_PASS", "postgres")
	cfg.Postgres.Host = getEnv("DB_HOST", "localhost")
	cfg.Postgres.Port = getEnv("DB_PORT", "5432")
	cfg.Postgres.DBName = getEnv("DB_NAME", "ohlcv")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")

	cfg.Server.LogLvl = getEnv("LOG_LVL", "dev")
	cfg.Server.LogFormat = getEnv("LOG_FORMAT", "text")
	cfg.Server.Port = getEnv("PORT", "8080")
	cfg.Server.Host = getEnv("HOST", "0.0.0.0")

	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres))
	if cfg.StoreDriver != StoreDriverPostgres && cfg.StoreDriver != StoreDriverMemory {
		return nil, fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver)
	}

	cfg.Exchanges.Enabled = splitList(strings.ToLower(getEnv("EXCHANGES", "binance,bybit,kucoin,mexc")))
	cfg.Exchanges.Symbols = make(map[string][]string, len(cfg.Exchanges.Enabled))
	for _, name := range cfg.Exchanges.Enabled {
		key := strings.ToUpper(name) + "_SYMBOLS"
		cfg.Exchanges.Symbols[name] = splitList(getEnv(key, defaultSymbols[name]))
		if len(cfg.Exchanges.Symbols[name]) == 0 {
			return nil, fmt.Errorf("%s: no symbols configured", key)
		}
	}

	var err error
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Redis.DB < 0 {
		return nil, fmt.Errorf("REDIS_DB: must not be negative, got %d", cfg.Redis.DB)
	}
	if cfg.Postgres.MaxConns, err = getInt("DB_MAX_CONNS", 0); err != nil {
		return nil, err
	}
	if cfg.Connector.ReconnectDelay, err = getDuration("RECONNECT_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Connector.ReconnectDelay <= 0 {
		return nil, fmt.Errorf("RECONNECT_DELAY: must be positive, got %s", cfg.Connector.ReconnectDelay)
	}
	if cfg.Connector.TokenAttempts, err = getInt("KUCOIN_TOKEN_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.Connector.TokenRetryDelay, err = getDuration("KUCOIN_TOKEN_RETRY_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.Connector.TokenTTL, err = getDuration("KUCOIN_TOKEN_TTL", 12*time.Hour); err != nil {
		return nil, err
	}
	cfg.Connector.AuthExhaustedPolicy = getEnv("AUTH_EXHAUSTED_POLICY", "disable")
	cfg.Connector.KuCoinAPIURL = getEnv("KUCOIN_API_URL", "https://api.kucoin.com")

	if cfg.Query.DefaultLimit, err = getInt("QUERY_DEFAULT_LIMIT", 100); err != nil {
		return nil, err
	}
	if cfg.Query.MaxLimit, err = getInt("QUERY_MAX_LIMIT", 1000); err != nil {
		return nil, err
	}
	if cfg.Query.DefaultLimit <= 0 {
		return nil, fmt.Errorf("QUERY_DEFAULT_LIMIT: must be positive, got %d", cfg.Query.DefaultLimit)
	}
	if cfg.Query.MaxLimit < cfg.Query.DefaultLimit {
		return nil, fmt.Errorf("QUERY_MAX_LIMIT: %d is below QUERY_DEFAULT_LIMIT %d", cfg.Query.MaxLimit, cfg.Query.DefaultLimit)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}

	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
