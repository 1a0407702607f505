package service

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnState - куда отдаём состояние WS (health-модуль).
type ConnState interface {
	SetWSConnected(v bool)
	TouchTick(t time.Time)
}

type Config struct {
	RESTURL    string
	WSURL      string
	RequestGap time.Duration
	Timeout    time.Duration
}

// Client - публичные REST и WS ручки OKX, без ключей: торговли нет.
type Client struct {
	cfg      Config
	http     *http.Client
	wsDialer *websocket.Dialer
	log      *zap.Logger
	state    ConnState

	mu       sync.Mutex
	nextSlot time.Time
}

func NewClient(cfg Config, log *zap.Logger, state ConnState) *Client {
	if cfg.RESTURL == "" {
		cfg.RESTURL = "https://www.okx.com"
	}
	if cfg.WSURL == "" {
		cfg.WSURL = "wss://ws.okx.com:8443/ws/v5/business"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		wsDialer: &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
		log:      log,
		state:    state,
	}
}

// throttle выдерживает паузу RequestGap между REST-запросами.
func (c *Client) throttle(ctx context.Context) error {
	if c.cfg.RequestGap <= 0 {
		return nil
	}
	c.mu.Lock()
	now := time.Now()
	slot := c.nextSlot
	if slot.Before(now) {
		slot = now
	}
	c.nextSlot = slot.Add(c.cfg.RequestGap)
	c.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.RESTURL, "/") + path
}
