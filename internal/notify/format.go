package notify

import (
	"fmt"
	"strings"

	"trend_bot/internal/models"
	"trend_bot/internal/outcome"
)

const separator = "────────────"

func FormatStartup(symbols int, timeframe string) string {
	return fmt.Sprintf("🚀 Бот запущен\nСимволов: %d, таймфрейм: %s", symbols, timeframe)
}

// FormatSignals - одна пачка новых сигналов. Пустая пачка - пустая строка.
func FormatSignals(signals []models.Signal) string {
	if len(signals) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Новых сигналов: %d 🔥", len(signals))
	for _, s := range signals {
		b.WriteString("\n\n" + separator + "\n")
		fmt.Fprintf(&b, "%s %s %s (%s)\n", trendEmoji(s.Trend), s.Symbol, trendTitle(s.Trend), s.Timeframe)
		if s.Levels == nil {
			fmt.Fprintf(&b, "Цена: %s", price(s.LastPrice))
			continue
		}
		fmt.Fprintf(&b, "Entry: %s\nSL: %s\nTP1: %s\nTP2: %s\nTP3: %s",
			price(s.Levels.Entry), price(s.Levels.StopLoss),
			price(s.Levels.TP1), price(s.Levels.TP2), price(s.Levels.TP3))
	}
	return b.String()
}

func FormatResolved(s models.Signal) string {
	emoji := "❌"
	if s.Status.IsTakeProfit() || (s.PnLPercentage != nil && *s.PnLPercentage > 0) {
		emoji = "🎯"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s #%d %s\n", emoji, s.Symbol, s.ID, s.Status)
	fmt.Fprintf(&b, "%s %s\n", trendEmoji(s.Trend), trendTitle(s.Trend))
	if s.Levels != nil {
		fmt.Fprintf(&b, "Entry: %s\n", price(s.Levels.Entry))
	}
	if s.ExitPrice != nil {
		fmt.Fprintf(&b, "Exit: %s\n", price(*s.ExitPrice))
	}
	if s.PnLPercentage != nil && s.PnLWithLeverage != nil {
		fmt.Fprintf(&b, "PnL: %+.2f%% (с плечом %+.2f%%)", *s.PnLPercentage, *s.PnLWithLeverage)
	} else {
		b.WriteString("PnL: N/A")
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatReport(title string, sum outcome.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 %s\n", title)
	if sum.Total == 0 {
		b.WriteString("Закрытых сигналов пока нет.")
		return b.String()
	}
	fmt.Fprintf(&b, "✅ Win rate: %.2f%%\n", sum.WinRate())
	fmt.Fprintf(&b, "📊 Закрыто: %d\n", sum.Total)
	fmt.Fprintf(&b, "👍 Wins: %d\n👎 Losses: %d\n", sum.Wins, sum.Losses)
	fmt.Fprintf(&b, "Σ PnL: %+.2f%% (best %+.2f%%, worst %+.2f%%)", sum.NetPnL, sum.BestPnL, sum.WorstPnL)

	limit := len(sum.BySymbol)
	if limit > 5 {
		limit = 5
	}
	for _, st := range sum.BySymbol[:limit] {
		fmt.Fprintf(&b, "\n- %s: %d/%d, %+.2f%%", st.Symbol, st.Wins, st.Total, st.NetPnL)
	}
	return b.String()
}

func FormatHeartbeat(symbols int) string {
	return fmt.Sprintf("✅ Бот жив\nОтслеживается символов: %d", symbols)
}

func trendEmoji(t models.Trend) string {
	switch t.Direction() {
	case models.DirectionLong:
		return "🔼"
	case models.DirectionShort:
		return "🔽"
	default:
		return "⏸"
	}
}

// trendTitle: STRONG_BULLISH -> Strong Bullish
func trendTitle(t models.Trend) string {
	parts := strings.Split(strings.ToLower(string(t)), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

func price(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
