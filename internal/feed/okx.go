package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ballast/internal/core"
)

const (
	okxBaseURL = "https://www.okx.com"
	// Hard per-request cap of the candles endpoint.
	okxPageLimit = 300
)

// Quote suffixes recognized when splitting a pair into an OKX
// instrument id, longest match first.
var okxQuotes = []string{"USDT", "BUSD", "USDC", "BTC", "ETH", "BNB"}

// OKX fetches candles from the public v5 market endpoint. OKX serves
// pages newest-first, so the range is walked backwards from end and
// reassembled in ascending order.
type OKX struct {
	client  *http.Client
	baseURL string
	limit   int
}

func NewOKX() *OKX {
	return &OKX{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: okxBaseURL,
		limit:   okxPageLimit,
	}
}

// NewOKXWithBaseURL points the provider at a custom endpoint (tests).
func NewOKXWithBaseURL(url string) *OKX {
	o := NewOKX()
	o.baseURL = url
	return o
}

func (o *OKX) Name() string { return "okx" }

// Candles walks the range backwards from end. The cursor moves to the
// open time of the oldest candle of each page, which the endpoint
// treats as an exclusive bound; a short page ends the loop.
func (o *OKX) Candles(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Candle, error) {
	var newestFirst []core.Candle
	// The after bound is exclusive; widen it so a candle exactly at end
	// is kept.
	cursor := end.Add(time.Millisecond)

	for cursor.After(start) {
		page, err := o.fetchPage(ctx, symbol, o.toInterval(interval), start, cursor)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		newestFirst = append(newestFirst, page...)
		if len(page) < o.limit {
			break
		}
		cursor = page[len(page)-1].Time
	}

	candles := make([]core.Candle, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		c := newestFirst[i]
		if c.Time.Before(start) || c.Time.After(end) {
			continue
		}
		candles = append(candles, c)
	}

	if len(candles) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("okx returned no %s candles for %s in range", interval, symbol))
	}
	return candles, nil
}

func (o *OKX) fetchPage(ctx context.Context, symbol, bar string, start, before time.Time) ([]core.Candle, error) {
	// Both bounds are exclusive, so start is widened a millisecond to
	// keep a candle exactly at start.
	url := fmt.Sprintf("%s/api/v5/market/candles?instId=%s&bar=%s&before=%d&after=%d&limit=%d",
		o.baseURL, toInstID(symbol), bar, start.UnixMilli()-1, before.UnixMilli(), o.limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("fetching candles: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("okx status %d", resp.StatusCode))
	}

	var payload struct {
		Code string     `json:"code"`
		Msg  string     `json:"msg"`
		Data [][]string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("decoding candles: %w", err))
	}
	if payload.Code != "0" {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("okx error %s: %s", payload.Code, payload.Msg))
	}

	candles := make([]core.Candle, 0, len(payload.Data))
	for _, row := range payload.Data {
		if len(row) < 6 {
			continue
		}

		ts, _ := strconv.ParseInt(row[0], 10, 64)
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		closePrice, _ := strconv.ParseFloat(row[4], 64)
		volume, _ := strconv.ParseFloat(row[5], 64)

		candles = append(candles, core.Candle{
			Time:   time.UnixMilli(ts).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	return candles, nil
}

// toInstID converts a pair like BTCUSDT to the dashed instrument id
// OKX expects, BTC-USDT. Unknown quotes fall back to a 4-char split.
func toInstID(symbol string) string {
	s := strings.ToUpper(symbol)
	for _, quote := range okxQuotes {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return strings.TrimSuffix(s, quote) + "-" + quote
		}
	}
	if len(s) > 4 {
		return s[:len(s)-4] + "-" + s[len(s)-4:]
	}
	return s
}

func (o *OKX) toInterval(interval string) string {
	switch interval {
	case "1m", "5m", "15m", "30m":
		return interval
	case "1h":
		return "1H"
	case "2h":
		return "2H"
	case "4h":
		return "4H"
	case "1w":
		return "1W"
	default:
		return "1D"
	}
}
