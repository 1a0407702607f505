package okx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"trend_bot/internal/modules/config"
	health "trend_bot/internal/modules/health/service"
	"trend_bot/internal/modules/okx/service"
)

func newClient(cfg *config.Config, log *zap.Logger, state *health.State) *service.Client {
	return service.NewClient(service.Config{
		RESTURL:    cfg.Market.RESTURL,
		WSURL:      cfg.Market.WSURL,
		RequestGap: cfg.Market.RequestGap,
		Timeout:    cfg.Reconcile.FetchTimeout,
	}, log.Named("okx"), state)
}

// Module - публичный маркет-дата клиент OKX (REST свечи, тикеры, WS закрытых свечей).
func Module() fx.Option {
	return fx.Module("okx",
		fx.Provide(
			newClient,
		),
	)
}
