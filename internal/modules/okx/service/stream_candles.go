package service

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trend_bot/internal/models"
)

const (
	wsPingEvery    = 20 * time.Second
	wsReconnectGap = time.Second
)

type wsFrame struct {
	Event string `json:"event"`
	Msg   string `json:"msg"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data [][]string `json:"data"`
}

// StreamClosedCandles - один WebSocket на таймфрейм с пачкой инструментов.
// Отдаёт только закрытые свечи (confirm=1). Переподключается сам, канал
// закрывается после отмены ctx.
func (c *Client) StreamClosedCandles(ctx context.Context, instIDs []string, timeframe string) <-chan models.Candle {
	ch := make(chan models.Candle)

	go func() {
		defer close(ch)
		if len(instIDs) == 0 {
			return
		}

		bar, err := okxBar(timeframe)
		if err != nil {
			c.log.Error("ws: bad timeframe", zap.String("timeframe", timeframe), zap.Error(err))
			return
		}
		channel := "candle" + bar // "15m" -> "candle15m"

		args := make([]map[string]string, 0, len(instIDs))
		for _, id := range instIDs {
			args = append(args, map[string]string{
				"channel": channel,
				"instId":  id,
			})
		}

		for {
			if err := c.streamOnce(ctx, channel, args, ch); err != nil {
				c.log.Warn("ws: stream dropped", zap.String("channel", channel), zap.Error(err))
			}
			c.setConnected(false)

			select {
			case <-ctx.Done():
				return
			case <-time.After(wsReconnectGap):
			}
		}
	}()

	return ch
}

func (c *Client) streamOnce(ctx context.Context, channel string, args []map[string]string, out chan<- models.Candle) error {
	c.log.Info("ws: connect", zap.String("channel", channel), zap.Int("symbols", len(args)))
	conn, _, err := c.wsDialer.DialContext(ctx, c.cfg.WSURL, nil)
	if err != nil {
		return err
	}

	var once sync.Once
	closeConn := func() { once.Do(func() { _ = conn.Close() }) }
	defer closeConn()

	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if err := write(map[string]any{"op": "subscribe", "args": args}); err != nil {
		return err
	}
	c.setConnected(true)

	// keepalive ping каждые 20s, иначе OKX рвёт соединение с 4004
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(wsPingEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				closeConn()
				return
			case <-stop:
				return
			case <-t.C:
				writeMu.Lock()
				_ = conn.WriteMessage(websocket.TextMessage, []byte("ping"))
				writeMu.Unlock()
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if string(msg) == "pong" {
			continue
		}

		var frame wsFrame
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			continue
		}
		if frame.Event == "error" {
			c.log.Warn("ws: okx error event", zap.String("msg", frame.Msg))
			continue
		}
		if frame.Arg.Channel != channel || len(frame.Data) == 0 {
			continue
		}

		for _, row := range frame.Data {
			cd, ok := parseCandleRow(frame.Arg.InstID, row)
			if !ok || !cd.Confirmed {
				continue // ждём закрытую свечу
			}
			if c.state != nil {
				c.state.TouchTick(time.Now())
			}
			select {
			case out <- cd:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (c *Client) setConnected(v bool) {
	if c.state != nil {
		c.state.SetWSConnected(v)
	}
}
