package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"trend_bot/internal/models"
	"trend_bot/internal/outcome"
)

// SignalReader - то, что нужно командам от стора.
type SignalReader interface {
	QueryTradable(ctx context.Context, symbol string) ([]models.Signal, error)
	Closed(ctx context.Context, since time.Time) ([]models.Signal, error)
}

// Start: long-polling, отвечаем только на команды из своего чата.
// /active - открытые сигналы с уровнями, /stats - сводка за сутки.
func (t *Telegram) Start(ctx context.Context, st SignalReader) {
	if t == nil || t.api == nil {
		return
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.api.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				cmd := upd.Message.Command()
				go func() {
					t.Send(ctx, HandleCommand(ctx, cmd, st, time.Now().UTC(), t.log))
				}()
			}
		}
	}()
}

func (t *Telegram) Stop() {
	if t == nil || t.api == nil {
		return
	}
	t.api.StopReceivingUpdates()
}

// HandleCommand собирает ответ на команду. Неизвестная команда - пустой ответ.
func HandleCommand(ctx context.Context, cmd string, st SignalReader, now time.Time, log *zap.Logger) string {
	switch cmd {
	case "active":
		active, err := st.QueryTradable(ctx, "")
		if err != nil {
			log.Error("command active failed", zap.Error(err))
			return fmt.Sprintf("❗️ Ошибка чтения сигналов: %v", err)
		}
		return formatActive(active)
	case "stats":
		closed, err := st.Closed(ctx, now.Add(-24*time.Hour))
		if err != nil {
			log.Error("command stats failed", zap.Error(err))
			return fmt.Sprintf("❗️ Ошибка чтения сигналов: %v", err)
		}
		return FormatReport("Итоги за 24ч", outcome.Stats(closed))
	}
	return ""
}

func formatActive(active []models.Signal) string {
	if len(active) == 0 {
		return "📭 Открытых сигналов нет"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Открытые сигналы: %d", len(active))
	for _, s := range active {
		fmt.Fprintf(&b, "\n- #%d %s %s %s", s.ID, trendEmoji(s.Trend), s.Symbol, trendTitle(s.Trend))
		if s.Levels != nil {
			fmt.Fprintf(&b, " @ %s", price(s.Levels.Entry))
		}
	}
	return b.String()
}
