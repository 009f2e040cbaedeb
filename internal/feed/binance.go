package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ballast/internal/core"
)

const (
	binanceBaseURL = "https://api.binance.com"
	// Hard per-request cap of the klines endpoint.
	binancePageLimit = 1000
)

// Binance fetches candles from the public klines endpoint, paging
// through the range in chunks of up to 1000.
type Binance struct {
	client  *http.Client
	baseURL string
	limit   int
}

func NewBinance() *Binance {
	return &Binance{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: binanceBaseURL,
		limit:   binancePageLimit,
	}
}

// NewBinanceWithBaseURL points the provider at a custom endpoint
// (tests, mirrors).
func NewBinanceWithBaseURL(url string) *Binance {
	b := NewBinance()
	b.baseURL = url
	return b
}

func (b *Binance) Name() string { return "binance" }

// Candles pages through the klines endpoint from start to end. The
// cursor advances past the open time of the last candle of each page;
// a short page ends the loop.
func (b *Binance) Candles(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Candle, error) {
	var candles []core.Candle
	cursor := start

	for !cursor.After(end) {
		page, err := b.fetchPage(ctx, symbol, b.toInterval(interval), cursor, end)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		candles = append(candles, page...)
		if len(page) < b.limit {
			break
		}
		cursor = page[len(page)-1].Time.Add(time.Millisecond)
	}

	if len(candles) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("binance returned no %s candles for %s in range", interval, symbol))
	}
	return candles, nil
}

func (b *Binance) fetchPage(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Candle, error) {
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&endTime=%d&limit=%d",
		b.baseURL, symbol, interval, start.UnixMilli(), end.UnixMilli(), b.limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("fetching klines: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("binance status %d", resp.StatusCode))
	}

	var klines [][]any
	if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("decoding klines: %w", err))
	}

	candles := make([]core.Candle, 0, len(klines))
	for _, k := range klines {
		if len(k) < 6 {
			continue
		}

		openTime, _ := k[0].(float64)
		openStr, _ := k[1].(string)
		highStr, _ := k[2].(string)
		lowStr, _ := k[3].(string)
		closeStr, _ := k[4].(string)
		volumeStr, _ := k[5].(string)

		open, _ := strconv.ParseFloat(openStr, 64)
		high, _ := strconv.ParseFloat(highStr, 64)
		low, _ := strconv.ParseFloat(lowStr, 64)
		closePrice, _ := strconv.ParseFloat(closeStr, 64)
		volume, _ := strconv.ParseFloat(volumeStr, 64)

		candles = append(candles, core.Candle{
			Time:   time.UnixMilli(int64(openTime)).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	return candles, nil
}

func (b *Binance) toInterval(interval string) string {
	switch interval {
	case "1m", "5m", "15m", "30m", "1h", "2h", "4h", "1d", "1w":
		return interval
	default:
		return "1d"
	}
}
