package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

type okxTicker struct {
	InstType string `json:"instType"`
	InstID   string `json:"instId"`
	Last     string `json:"last"`
	High24h  string `json:"high24h"`
	Low24h   string `json:"low24h"`
}

type okxTickerResp struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data []okxTicker `json:"data"`
}

// TopVolatile - n самых волатильных USDT-перпов по (high24h-low24h)/last.
func (c *Client) TopVolatile(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	tickers, err := c.fetchSwapTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("okx.TopVolatile: %w", err)
	}

	type rec struct {
		sym   string
		score float64
	}

	arr := make([]rec, 0, len(tickers))
	for _, t := range tickers {
		// берём только USDT-perp SWAP, вида BTC-USDT-SWAP
		if !strings.HasSuffix(t.InstID, "-USDT-SWAP") {
			continue
		}

		last, err1 := strconv.ParseFloat(t.Last, 64)
		high, err2 := strconv.ParseFloat(t.High24h, 64)
		low, err3 := strconv.ParseFloat(t.Low24h, 64)
		if err1 != nil || err2 != nil || err3 != nil || last <= 0 {
			continue
		}
		range24 := high - low
		if range24 <= 0 {
			continue
		}
		arr = append(arr, rec{sym: t.InstID, score: range24 / last})
	}

	sort.SliceStable(arr, func(i, j int) bool { return arr[i].score > arr[j].score })
	if n > len(arr) {
		n = len(arr)
	}
	res := make([]string, 0, n)
	for i := 0; i < n; i++ {
		res = append(res, arr[i].sym)
	}
	return res, nil
}

func (c *Client) fetchSwapTickers(ctx context.Context) ([]okxTicker, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/v5/market/tickers?instType=SWAP"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("non-2xx: %d %s", resp.StatusCode, string(body))
	}

	var wrap okxTickerResp
	if err := sonic.Unmarshal(body, &wrap); err != nil {
		return nil, err
	}
	if wrap.Code != "0" {
		return nil, fmt.Errorf("okx error: code=%s msg=%s", wrap.Code, wrap.Msg)
	}
	return wrap.Data, nil
}
