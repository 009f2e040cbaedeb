package feed

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"ballast/internal/core"
)

const (
	fearGreedBaseURL = "https://api.alternative.me"
	// Index value used when no reading exists for a day.
	neutralSentiment = 50
)

// FearGreed serves the alternative.me crypto fear & greed index. The
// full history is fetched once and cached to a date,value CSV so
// repeated backtests stay offline. Days without a reading resolve to
// the neutral value 50.
type FearGreed struct {
	client    *http.Client
	baseURL   string
	cachePath string

	mu     sync.Mutex
	byDay  map[string]float64
	loaded bool
}

func NewFearGreed(cachePath string) *FearGreed {
	return &FearGreed{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:   fearGreedBaseURL,
		cachePath: cachePath,
	}
}

// NewFearGreedWithBaseURL points the provider at a custom endpoint
// (tests).
func NewFearGreedWithBaseURL(baseURL, cachePath string) *FearGreed {
	f := NewFearGreed(cachePath)
	f.baseURL = baseURL
	return f
}

// Index returns the fear & greed value for the day containing ts.
func (f *FearGreed) Index(ctx context.Context, ts time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		if err := f.load(ctx); err != nil {
			return 0, err
		}
		f.loaded = true
	}

	if v, ok := f.byDay[dayKey(ts)]; ok {
		return v, nil
	}
	return neutralSentiment, nil
}

// Refresh refetches the full history from the API and rewrites the
// cache, replacing whatever was loaded before. It returns the number of
// days now covered.
func (f *FearGreed) Refresh(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	byDay, err := f.fetch(ctx)
	if err != nil {
		return 0, err
	}
	f.byDay = byDay
	f.loaded = true

	if f.cachePath != "" {
		if err := f.writeCache(byDay); err != nil {
			return 0, fmt.Errorf("caching fear & greed history: %w", err)
		}
	}
	return len(byDay), nil
}

// load fills byDay from the cache file, falling back to the API (and
// writing the cache) when no usable cache exists.
func (f *FearGreed) load(ctx context.Context) error {
	if byDay, err := f.readCache(); err == nil && len(byDay) > 0 {
		f.byDay = byDay
		return nil
	}

	byDay, err := f.fetch(ctx)
	if err != nil {
		return err
	}
	f.byDay = byDay

	if f.cachePath != "" {
		if err := f.writeCache(byDay); err != nil {
			return fmt.Errorf("caching fear & greed history: %w", err)
		}
	}
	return nil
}

func (f *FearGreed) fetch(ctx context.Context) (map[string]float64, error) {
	url := f.baseURL + "/fng/?limit=0&format=json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("fetching fear & greed index: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("alternative.me status %d", resp.StatusCode))
	}

	var payload struct {
		Data []struct {
			Value     string `json:"value"`
			Timestamp string `json:"timestamp"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("decoding fear & greed response: %w", err))
	}

	byDay := make(map[string]float64, len(payload.Data))
	for _, entry := range payload.Data {
		secs, err := strconv.ParseInt(entry.Timestamp, 10, 64)
		if err != nil {
			continue
		}
		value, err := strconv.ParseFloat(entry.Value, 64)
		if err != nil {
			continue
		}
		byDay[dayKey(time.Unix(secs, 0))] = value
	}

	if len(byDay) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("alternative.me returned no index values"))
	}
	return byDay, nil
}

func (f *FearGreed) readCache() (map[string]float64, error) {
	if f.cachePath == "" {
		return nil, os.ErrNotExist
	}
	file, err := os.Open(f.cachePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]float64, len(records))
	for i, record := range records {
		if len(record) != 2 {
			continue
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("cache row %d: %w", i+1, err)
		}
		byDay[record[0]] = value
	}
	return byDay, nil
}

func (f *FearGreed) writeCache(byDay map[string]float64) error {
	if err := os.MkdirAll(filepath.Dir(f.cachePath), 0o755); err != nil {
		return err
	}
	file, err := os.Create(f.cachePath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"date", "value"}); err != nil {
		return err
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		if err := writer.Write([]string{day, strconv.FormatFloat(byDay[day], 'f', -1, 64)}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func dayKey(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}
