package main

import (
	"context"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"trend_bot/internal/modules/analysis"
	"trend_bot/internal/modules/config"
	"trend_bot/internal/modules/health"
	"trend_bot/internal/modules/okx"
	"trend_bot/internal/modules/reconcile"
	"trend_bot/internal/modules/report"
	"trend_bot/internal/modules/storage"
	"trend_bot/internal/modules/strategy"
	telegram "trend_bot/internal/modules/telegram_bot"
	"trend_bot/pkg/logger"
	"trend_bot/pkg/metrics"
	"trend_bot/pkg/tracing"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.Init(cfg.Service.Name, cfg.Log)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newRecorder(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) error {
	tracing.SetServiceName(cfg.Service.Name)
	_, closer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			return nil
		},
	})
	return nil
}

func main() {
	app := fx.New(
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		config.Module(),
		fx.Provide(
			newLogger,
			newRegistry,
			newRecorder,
		),
		fx.Invoke(initTracing),
		health.Module(),
		okx.Module(),
		storage.Module(),
		strategy.Module(),
		telegram.Module(),
		analysis.Module(),
		reconcile.Module(),
		report.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
