package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_ShippedLocalValues(t *testing.T) {
	cfg, err := Load("../../../configs/values_local.yaml")
	require.NoError(t, err)
	assert.Equal(t, "15m", cfg.Market.Timeframe)
	assert.Equal(t, 200, cfg.Indicators.SlowPeriod)
	assert.Equal(t, 10*time.Minute, cfg.Reconcile.Interval)
	assert.Equal(t, 15, cfg.Reconcile.Window)
	assert.Equal(t, 3.2, cfg.Levels.TP3)
	assert.Len(t, cfg.Symbols(), 5)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 0.5, cfg.Filters.MinATRPercent)
	assert.Equal(t, "sl_first", cfg.Reconcile.TieBreak)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(tokenTelegramENV, "123:abc")
	t.Setenv(chatTelegramENV, "-100500")
	t.Setenv(databaseDSN, "postgres://u:p@localhost:5432/signals")

	cfg, err := Load(writeFile(t, "db:\n  driver: postgres\n"))
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, int64(-100500), cfg.Telegram.ChatID)
	assert.Equal(t, "postgres://u:p@localhost:5432/signals", cfg.DB.DSN)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"ema order":      "indicators:\n  ema_fast: 90\n  ema_medium: 89\n  ema_slow: 200\n  rsi_period: 13\n  bb_period: 20\n  bb_std: 2\n  atr_period: 14\n  volume_sma_period: 20\n",
		"tp order":       "levels:\n  sl: 1\n  tp1: 2\n  tp2: 1.5\n  tp3: 3\n",
		"tie break":      "reconcile:\n  tie_break: coin_flip\n",
		"postgres dsn":   "db:\n  driver: postgres\n",
		"driver":         "db:\n  driver: mongo\n",
		"unknown field":  "analysis:\n  speed: 11\n",
		"few candles":    "analysis:\n  candles: 50\n",
		"empty symbols":  "watchlist:\n  static: []\n  top_n: 0\n",
		"chat id needed": "telegram:\n  token: abc\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(databaseDSN, "")
			t.Setenv(tokenTelegramENV, "")
			t.Setenv(chatTelegramENV, "")
			_, err := Load(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestSymbolsNormalized(t *testing.T) {
	c := Default()
	c.Watchlist.Static = []string{" btc-usdt-swap", "BTC-USDT-SWAP", "", "eth-usdt-swap"}
	assert.Equal(t, []string{"BTC-USDT-SWAP", "ETH-USDT-SWAP"}, c.Symbols())
}
