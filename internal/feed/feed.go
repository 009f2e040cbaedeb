// Package feed loads market candles and sentiment and assembles the
// decision-ready snapshot sequence the simulation consumes.
package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ballast/internal/core"
)

// CandleProvider fetches historical candles for a symbol. Implementations
// must return candles in ascending time order.
type CandleProvider interface {
	Name() string
	Candles(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Candle, error)
}

// SentimentProvider resolves a fear & greed style index value for a
// point in time, on a 0-100 scale.
type SentimentProvider interface {
	Index(ctx context.Context, ts time.Time) (float64, error)
}

// Registry holds candle providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]CandleProvider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]CandleProvider),
	}
}

// Register adds a provider under its own name, replacing any previous
// registration.
func (r *Registry) Register(p CandleProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (CandleProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("no feed provider named %q", name))
	}
	return p, nil
}

// Providers returns the registered names, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
