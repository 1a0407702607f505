package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"trend_bot/internal/models"
)

// лимиты OKX на страницу: candles - 300, history-candles - 100
const (
	maxCandlesPerPage = 300
	maxHistoryPerPage = 100
)

type candlesResp struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// GetCandles - последние limit свечей по времени (старые первыми). Последняя
// может быть незакрытой (Confirmed=false). Пустой ответ - не ошибка.
func (c *Client) GetCandles(ctx context.Context, instID, timeframe string, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	bar, err := okxBar(timeframe)
	if err != nil {
		return nil, err
	}

	// OKX newest-first; листаем назад через after=<ts самой старой свечи>
	var newestFirst []models.Candle
	after := ""
	for len(newestFirst) < limit {
		page := limit - len(newestFirst)
		maxPage := maxCandlesPerPage
		if after != "" {
			maxPage = maxHistoryPerPage
		}
		if page > maxPage {
			page = maxPage
		}
		rows, err := c.fetchCandlesPage(ctx, instID, bar, page, after)
		if err != nil {
			return nil, fmt.Errorf("okx.GetCandles %s %s: %w", instID, bar, err)
		}
		if len(rows) == 0 {
			break
		}
		newestFirst = append(newestFirst, rows...)
		after = strconv.FormatInt(rows[len(rows)-1].OpenTime.UnixMilli(), 10)
		if len(rows) < page {
			break
		}
	}

	// разворачиваем, чтобы серия шла по времени
	out := make([]models.Candle, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		cd := newestFirst[i]
		if n := len(out); n > 0 && !cd.OpenTime.After(out[n-1].OpenTime) {
			continue
		}
		out = append(out, cd)
	}
	return out, nil
}

func (c *Client) fetchCandlesPage(ctx context.Context, instID, bar string, limit int, after string) ([]models.Candle, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("instId", instID)
	q.Set("bar", bar)
	q.Set("limit", strconv.Itoa(limit))
	path := "/api/v5/market/candles"
	if after != "" {
		q.Set("after", after)
		path = "/api/v5/market/history-candles"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path)+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
	}

	var r candlesResp
	if err := sonic.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	if r.Code != "0" {
		return nil, fmt.Errorf("okx candles error: code=%s msg=%s", r.Code, r.Msg)
	}

	out := make([]models.Candle, 0, len(r.Data))
	for _, row := range r.Data {
		cd, ok := parseCandleRow(instID, row)
		if !ok {
			continue
		}
		out = append(out, cd)
	}
	return out, nil
}

// parseCandleRow: [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm]
func parseCandleRow(instID string, row []string) (models.Candle, bool) {
	if len(row) < 5 {
		return models.Candle{}, false
	}
	tsMs, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Candle{}, false
	}
	open, err1 := strconv.ParseFloat(row[1], 64)
	high, err2 := strconv.ParseFloat(row[2], 64)
	low, err3 := strconv.ParseFloat(row[3], 64)
	closep, err4 := strconv.ParseFloat(row[4], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || closep <= 0 {
		return models.Candle{}, false
	}
	var vol float64
	if len(row) >= 6 {
		vol, _ = strconv.ParseFloat(row[5], 64)
	}
	// confirm всегда последний элемент
	confirmed := true
	if len(row) >= 9 {
		confirmed = row[len(row)-1] == "1"
	}
	return models.Candle{
		InstID:    instID,
		OpenTime:  time.UnixMilli(tsMs).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closep,
		Volume:    vol,
		Confirmed: confirmed,
	}, true
}

// ClosedOnly отрезает незакрытый хвост серии.
func ClosedOnly(candles []models.Candle) []models.Candle {
	n := len(candles)
	for n > 0 && !candles[n-1].Confirmed {
		n--
	}
	return candles[:n]
}
