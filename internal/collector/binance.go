package collector

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"

	"SignalSentinel/internal/fault"
	"SignalSentinel/internal/model"
)

// DefaultBinanceURL is the public spot REST endpoint.
const DefaultBinanceURL = "https://api.binance.com"

// maxKlineLimit is the largest page the klines endpoint serves.
const maxKlineLimit = 1000

// BinanceFetcher implements Fetcher using the Binance spot REST API.
type BinanceFetcher struct {
	BaseURL string
	Timeout time.Duration
	Client  *fasthttp.Client
}

// NewBinanceFetcher creates a new fetcher with optional proxy support.
func NewBinanceFetcher(baseURL, proxyURL string) *BinanceFetcher {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	client := &fasthttp.Client{
		Name:         "signal-sentinel",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil && u.Host != "" {
			addr := u.Host
			if u.User != nil {
				addr = u.User.String() + "@" + u.Host
			}
			client.Dial = fasthttpproxy.FasthttpHTTPDialer(addr)
		}
	}
	return &BinanceFetcher{BaseURL: baseURL, Timeout: 30 * time.Second, Client: client}
}

func (f *BinanceFetcher) Name() string { return "binance" }

// FetchBars calls /api/v3/klines. The last row may be the still-forming bar.
func (f *BinanceFetcher) FetchBars(ctx context.Context, instrument, timeframe string, limit int) ([]model.OHLCV, error) {
	op := fmt.Sprintf("fetch bars %s %s", instrument, timeframe)
	args := url.Values{}
	args.Set("symbol", instrument)
	args.Set("interval", timeframe)
	args.Set("limit", strconv.Itoa(min(limit, maxKlineLimit)))

	body, err := f.get(ctx, "/api/v3/klines", args)
	if err != nil {
		return nil, fault.IO(op, err)
	}

	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		return nil, fault.IO(op, fmt.Errorf("unexpected kline response: %.200s", body))
	}
	rows := result.Array()
	bars := make([]model.OHLCV, 0, len(rows))
	for _, v := range rows {
		row := v.Array()
		if len(row) < 6 {
			return nil, fault.IO(op, fmt.Errorf("short kline row: %s", v.Raw))
		}
		bars = append(bars, model.OHLCV{
			Time:   time.UnixMilli(row[0].Int()).UTC(),
			Open:   row[1].Float(),
			High:   row[2].Float(),
			Low:    row[3].Float(),
			Close:  row[4].Float(),
			Volume: row[5].Float(),
		})
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// ListInstruments returns trading symbols whose quote asset equals quote.
func (f *BinanceFetcher) ListInstruments(ctx context.Context, quote string) ([]string, error) {
	body, err := f.get(ctx, "/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, fault.IO("list instruments", err)
	}
	var symbols []string
	gjson.GetBytes(body, "symbols").ForEach(func(_, s gjson.Result) bool {
		if s.Get("status").String() == "TRADING" && s.Get("quoteAsset").String() == quote {
			symbols = append(symbols, s.Get("symbol").String())
		}
		return true
	})
	if len(symbols) == 0 {
		return nil, fault.IO("list instruments", fmt.Errorf("no trading symbols quoted in %s", quote))
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (f *BinanceFetcher) get(ctx context.Context, path string, args url.Values) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	uri := f.BaseURL + path
	if len(args) > 0 {
		uri += "?" + args.Encode()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)

	timeout := f.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}
	if err := f.Client.DoTimeout(req, resp, timeout); err != nil {
		return nil, err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("status %d, body: %.200s (%s)", resp.StatusCode(),
			resp.Body(), gjson.GetBytes(resp.Body(), "msg").String())
	}
	// The response is released on return.
	return append([]byte(nil), resp.Body()...), nil
}
