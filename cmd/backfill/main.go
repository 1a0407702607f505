package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"trend_bot/internal/backfill"
	"trend_bot/internal/models"
	"trend_bot/internal/modules/config"
	okx "trend_bot/internal/modules/okx/service"
	"trend_bot/internal/modules/storage"
	strategymod "trend_bot/internal/modules/strategy"
	"trend_bot/internal/notify"
	"trend_bot/internal/outcome"
	"trend_bot/pkg/logger"
)

func flags() *viper.Viper {
	fs := pflag.NewFlagSet("backfill", pflag.ExitOnError)
	fs.String("config", "configs/values_local.yaml", "path to yaml config")
	fs.StringSlice("symbols", nil, "instruments, default: watchlist.static from config")
	fs.String("timeframe", "", "bar, default: market.timeframe from config")
	fs.Int("candles", 1000, "history depth per symbol")
	fs.Int("horizon", outcome.DefaultHorizon, "bars to look forward before CLOSED_MANUAL")
	fs.String("levels", string(backfill.LevelsATR), "atr | percent")
	fs.Int("max-trades", 0, "max signals per symbol, 0 = unlimited")
	fs.Bool("dry-run", false, "do not write to the store")
	_ = fs.Parse(os.Args[1:])

	v := viper.New()
	v.SetEnvPrefix("BACKFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(fs)
	return v
}

func run(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	log, err := logger.Init("backfill", cfg.Log)
	if err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer func() { _ = log.Sync() }()

	symbols := v.GetStringSlice("symbols")
	if len(symbols) == 0 {
		symbols = cfg.Watchlist.Static
	}
	timeframe := v.GetString("timeframe")
	if timeframe == "" {
		timeframe = cfg.Market.Timeframe
	}
	mode := backfill.LevelsMode(v.GetString("levels"))
	if mode != backfill.LevelsATR && mode != backfill.LevelsPercent {
		return errors.Errorf("unknown levels mode %q", mode)
	}
	tb, err := outcome.ParseTieBreak(cfg.Reconcile.TieBreak)
	if err != nil {
		return errors.Wrap(err, "tie break")
	}

	clf, err := strategymod.NewClassifier(cfg, log)
	if err != nil {
		return errors.Wrap(err, "classifier")
	}
	st, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer st.Close()

	client := okx.NewClient(okx.Config{
		RESTURL:    cfg.Market.RESTURL,
		RequestGap: cfg.Market.RequestGap,
		Timeout:    cfg.Reconcile.FetchTimeout,
	}, log.Named("okx"), nil)

	var all []models.Signal
	for _, sym := range symbols {
		candles, err := client.GetCandles(ctx, sym, timeframe, v.GetInt("candles"))
		if err != nil {
			return errors.Wrapf(err, "fetch %s", sym)
		}
		res, err := backfill.Run(ctx, okx.ClosedOnly(candles), clf, st, backfill.Options{
			Symbol:    sym,
			Timeframe: timeframe,
			Mode:      mode,
			Percent:   backfill.DefaultPercentBrackets(),
			Sim: outcome.SimConfig{
				Horizon:  v.GetInt("horizon"),
				Leverage: cfg.Reconcile.Leverage,
				TieBreak: tb,
			},
			MaxTrades: v.GetInt("max-trades"),
			DryRun:    v.GetBool("dry-run"),
		}, log)
		if err != nil {
			return errors.Wrapf(err, "backfill %s", sym)
		}
		sum := outcome.Stats(res.Signals)
		all = append(all, res.Signals...)
		log.Info("symbol done",
			zap.String("symbol", sym),
			zap.Int("candles", len(candles)),
			zap.Int("signals", len(res.Signals)),
			zap.Int("skipped", res.Skipped),
		)
		fmt.Println(notify.FormatReport(sym, sum))
		fmt.Println()
	}
	if len(symbols) > 1 {
		fmt.Println(notify.FormatReport("Итого", outcome.Stats(all)))
	}
	log.Info("backfill finished", zap.Int("symbols", len(symbols)), zap.Int("signals", len(all)))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags()); err != nil {
		fmt.Fprintf(os.Stderr, "backfill: %+v\n", err)
		os.Exit(1)
	}
}
