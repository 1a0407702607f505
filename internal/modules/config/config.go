package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"trend_bot/internal/indicator"
	"trend_bot/internal/outcome"
	"trend_bot/internal/strategy"
	"trend_bot/pkg/logger"
	"trend_bot/pkg/tracing"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	chatTelegramENV   = "TELEGRAM_CHAT_ID"
	databaseDSN       = "DATABASE_DSN"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	DB struct {
		// postgres | sqlite | memory
		Driver     string `yaml:"driver"`
		DSN        string `yaml:"dsn"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"db"`

	Service struct {
		Name      string `yaml:"name"`
		AdminAddr string `yaml:"admin_addr"`
	} `yaml:"service"`

	Log     logger.Config  `yaml:"log"`
	Tracing tracing.Config `yaml:"tracing"`

	Market struct {
		Timeframe string `yaml:"timeframe"`
		RESTURL   string `yaml:"rest_url"`
		WSURL     string `yaml:"ws_url"`
		// пауза между REST-запросами, чтобы не словить rate limit
		RequestGap time.Duration `yaml:"request_gap"`
	} `yaml:"market"`

	Watchlist struct {
		Static  []string      `yaml:"static"`
		TopN    int           `yaml:"top_n"`
		Refresh time.Duration `yaml:"refresh"`
	} `yaml:"watchlist"`

	Indicators indicator.Params     `yaml:"indicators"`
	Levels     strategy.Multipliers `yaml:"levels"`

	Filters struct {
		MinATRPercent float64 `yaml:"min_atr_percent"`
		VolumeRatio   float64 `yaml:"volume_ratio"`
	} `yaml:"filters"`

	Analysis struct {
		Interval    time.Duration `yaml:"interval"`
		Candles     int           `yaml:"candles"`
		Concurrency int           `yaml:"concurrency"`
		// запускать цикл по закрытию свечи clock_symbol из WS, а не по таймеру
		AlignToBarClose bool   `yaml:"align_to_bar_close"`
		ClockSymbol     string `yaml:"clock_symbol"`
	} `yaml:"analysis"`

	Reconcile struct {
		Interval     time.Duration `yaml:"interval"`
		Window       int           `yaml:"window"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
		Concurrency  int           `yaml:"concurrency"`
		TieBreak     string        `yaml:"tie_break"`
		Leverage     float64       `yaml:"leverage"`
	} `yaml:"reconcile"`

	Report struct {
		Interval          time.Duration `yaml:"interval"`
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	} `yaml:"report"`
}

// Default - значения по умолчанию, часть можно переопределить через env.
func Default() Config {
	var c Config
	c.DB.Driver = getenvDefault("DB_DRIVER", "sqlite")
	c.DB.SQLitePath = getenvDefault("SQLITE_PATH", "signals.db")
	c.Service.Name = "trend_bot"
	c.Service.AdminAddr = getenvDefault("ADMIN_ADDR", ":8080")
	c.Log.Level = getenvDefault("LOG_LEVEL", "info")
	c.Tracing.Host = "localhost"
	c.Tracing.Port = 6831

	c.Market.Timeframe = getenvDefault("TIMEFRAME", "15m")
	c.Market.RESTURL = "https://www.okx.com"
	c.Market.WSURL = "wss://ws.okx.com:8443/ws/v5/business"
	c.Market.RequestGap = durationFromEnv("REQUEST_GAP", "100ms")

	c.Watchlist.Static = []string{"BTC-USDT-SWAP", "ETH-USDT-SWAP", "BNB-USDT-SWAP", "SOL-USDT-SWAP", "XRP-USDT-SWAP"}
	c.Watchlist.TopN = intFromEnv("WATCHLIST_TOP_N", 0)
	c.Watchlist.Refresh = 6 * time.Hour

	c.Indicators = indicator.DefaultParams()
	c.Levels = strategy.DefaultMultipliers()
	c.Filters.MinATRPercent = floatFromEnv("MIN_ATR_PERCENT", 0.5)
	c.Filters.VolumeRatio = 1.0

	c.Analysis.Interval = durationFromEnv("ANALYSIS_INTERVAL", "10m")
	c.Analysis.Candles = 500
	c.Analysis.Concurrency = intFromEnv("CONCURRENT_REQUESTS", 8)
	c.Analysis.ClockSymbol = "BTC-USDT-SWAP"

	c.Reconcile.Interval = durationFromEnv("RECONCILE_INTERVAL", "10m")
	c.Reconcile.Window = 15
	c.Reconcile.FetchTimeout = 10 * time.Second
	c.Reconcile.Concurrency = 8
	c.Reconcile.TieBreak = string(outcome.SLFirst)
	c.Reconcile.Leverage = floatFromEnv("LEVERAGE", 10)

	c.Report.Interval = time.Hour
	c.Report.HeartbeatInterval = durationFromEnv("HEARTBEAT_INTERVAL", "6h")
	return c
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := getenvDefault(configFilePathENV, "values_local.yaml")
	dir := getenvDefault(configDirENV, "configs")
	return Load(dir + "/" + configFileName)
}

// Load читает YAML поверх Default и применяет секреты из env.
func Load(path string) (*Config, error) {
	config := Default()

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// без файла работаем на дефолтах и env
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.UnmarshalStrict(raw, &config); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if v := os.Getenv(chatTelegramENV); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", chatTelegramENV, err)
		}
		config.Telegram.ChatID = id
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB.DSN = dsn
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	var errs []error
	if err := c.Indicators.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Levels.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := outcome.ParseTieBreak(c.Reconcile.TieBreak); err != nil {
		errs = append(errs, err)
	}
	switch c.DB.Driver {
	case "postgres":
		if c.DB.DSN == "" {
			errs = append(errs, fmt.Errorf("db.dsn (or %s) is required for postgres", databaseDSN))
		}
	case "sqlite":
		if c.DB.SQLitePath == "" {
			errs = append(errs, errors.New("db.sqlite_path is required for sqlite"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown db.driver %q", c.DB.Driver))
	}
	if c.Filters.MinATRPercent < 0 {
		errs = append(errs, errors.New("filters.min_atr_percent must be >= 0"))
	}
	if c.Analysis.Candles < c.Indicators.Warmup() {
		errs = append(errs, fmt.Errorf("analysis.candles=%d is less than indicator warmup %d",
			c.Analysis.Candles, c.Indicators.Warmup()))
	}
	if c.Analysis.Interval <= 0 || c.Reconcile.Interval <= 0 {
		errs = append(errs, errors.New("analysis and reconcile intervals must be positive"))
	}
	if c.Report.Interval <= 0 || c.Report.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("report intervals must be positive"))
	}
	if c.Reconcile.Window <= 0 {
		errs = append(errs, errors.New("reconcile.window must be positive"))
	}
	if len(c.Watchlist.Static) == 0 && c.Watchlist.TopN <= 0 {
		errs = append(errs, errors.New("watchlist is empty: set watchlist.static or watchlist.top_n"))
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		errs = append(errs, fmt.Errorf("%s is required when telegram token is set", chatTelegramENV))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Symbols - нормализованный статический список.
func (c *Config) Symbols() []string {
	out := make([]string, 0, len(c.Watchlist.Static))
	seen := make(map[string]struct{})
	for _, s := range c.Watchlist.Static {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
