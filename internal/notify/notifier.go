package notify

import (
	"context"
	"net/http"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"trend_bot/internal/models"
	"trend_bot/internal/outcome"
)

// Notifier - куда уходят сообщения бота. Ошибки отправки только логируются.
type Notifier interface {
	Send(ctx context.Context, msg string)
	Startup(ctx context.Context, symbols int, timeframe string)
	SignalsCreated(ctx context.Context, signals []models.Signal)
	SignalResolved(ctx context.Context, sig models.Signal)
	Report(ctx context.Context, title string, sum outcome.Summary)
	Heartbeat(ctx context.Context, symbols int)
}

// sender - то, что нужно от *tgbot.BotAPI.
type sender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

const (
	// long polling держит getUpdates до 30с, у клиента должен быть запас
	clientTimeout = 45 * time.Second
	sendTimeout   = 15 * time.Second
)

// Telegram - пассивный нотифайер в один чат.
type Telegram struct {
	api    *tgbot.BotAPI
	bot    sender
	chatID int64
	log    *zap.Logger
}

func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	return newTelegram(token, tgbot.APIEndpoint, chatID, log)
}

func newTelegram(token, endpoint string, chatID int64, log *zap.Logger) (*Telegram, error) {
	b, err := tgbot.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: clientTimeout})
	if err != nil {
		return nil, err
	}
	return &Telegram{api: b, bot: b, chatID: chatID, log: log}, nil
}

func (t *Telegram) Send(ctx context.Context, msg string) {
	t.send(ctx, msg, false)
}

func (t *Telegram) send(ctx context.Context, text string, silent bool) {
	if t == nil || t.bot == nil || t.chatID == 0 || text == "" {
		return
	}
	if ctx.Err() != nil {
		return
	}
	m := tgbot.NewMessage(t.chatID, text)
	m.DisableNotification = silent
	m.DisableWebPagePreview = true

	// BotAPI.Send не принимает контекст, поэтому ждём его не дольше дедлайна
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(m)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.log.Error("telegram send failed", zap.Error(err))
		}
	case <-ctx.Done():
		t.log.Error("telegram send timed out", zap.Error(ctx.Err()))
	}
}

func (t *Telegram) Startup(ctx context.Context, symbols int, timeframe string) {
	t.send(ctx, FormatStartup(symbols, timeframe), false)
}

func (t *Telegram) SignalsCreated(ctx context.Context, signals []models.Signal) {
	t.send(ctx, FormatSignals(signals), false)
}

func (t *Telegram) SignalResolved(ctx context.Context, sig models.Signal) {
	t.send(ctx, FormatResolved(sig), false)
}

func (t *Telegram) Report(ctx context.Context, title string, sum outcome.Summary) {
	t.send(ctx, FormatReport(title, sum), false)
}

func (t *Telegram) Heartbeat(ctx context.Context, symbols int) {
	t.send(ctx, FormatHeartbeat(symbols), true)
}

// Stdout - без телеграма всё уходит в лог.
type Stdout struct {
	log *zap.Logger
}

func NewStdout(log *zap.Logger) *Stdout { return &Stdout{log: log} }

func (s *Stdout) Send(_ context.Context, msg string) {
	if msg == "" {
		return
	}
	s.log.Info("notify", zap.String("text", msg))
}

func (s *Stdout) Startup(ctx context.Context, symbols int, timeframe string) {
	s.Send(ctx, FormatStartup(symbols, timeframe))
}

func (s *Stdout) SignalsCreated(ctx context.Context, signals []models.Signal) {
	s.Send(ctx, FormatSignals(signals))
}

func (s *Stdout) SignalResolved(ctx context.Context, sig models.Signal) {
	s.Send(ctx, FormatResolved(sig))
}

func (s *Stdout) Report(ctx context.Context, title string, sum outcome.Summary) {
	s.Send(ctx, FormatReport(title, sum))
}

func (s *Stdout) Heartbeat(ctx context.Context, symbols int) {
	s.Send(ctx, FormatHeartbeat(symbols))
}
