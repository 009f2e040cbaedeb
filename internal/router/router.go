// Package router fans events out to the notifiers of matching routes.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ballast/internal/core"
	"ballast/internal/notifier"

	"go.uber.org/zap"
)

// Route binds an event filter to a set of notifier names.
type Route struct {
	Name        string
	EventTypes  []core.EventType // empty matches every type
	Tags        []core.Tag       // empty matches every tag
	MinNotional float64          // trade events below this are skipped
	Cooldown    time.Duration    // minimum gap between deliveries, zero disables
	Notifiers   []string
}

// Matches reports whether the event passes the route's filters.
func (r Route) Matches(event core.Event) bool {
	if len(r.EventTypes) > 0 && !containsType(r.EventTypes, event.Type) {
		return false
	}
	if len(r.Tags) > 0 && !containsTag(r.Tags, event.Tag) {
		return false
	}
	if event.Type == core.EventTrade && event.Notional < r.MinNotional {
		return false
	}
	return true
}

func containsType(types []core.EventType, t core.EventType) bool {
	for _, et := range types {
		if et == t {
			return true
		}
	}
	return false
}

func containsTag(tags []core.Tag, t core.Tag) bool {
	for _, tag := range tags {
		if tag == t {
			return true
		}
	}
	return false
}

// Router dispatches events to every matching route's notifiers.
type Router struct {
	registry *notifier.Registry
	logger   *zap.Logger
	routes   []Route

	mu       sync.Mutex
	lastSent map[string]time.Time // route name -> last delivery

	// For testing: allow time injection
	now func() time.Time
}

// New creates an event router on top of a notifier registry.
func New(registry *notifier.Registry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		registry: registry,
		logger:   logger,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// AddRoute appends a route. Routes are checked in registration order.
func (r *Router) AddRoute(route Route) {
	r.routes = append(r.routes, route)
}

// Routes returns the configured routes.
func (r *Router) Routes() []Route {
	return r.routes
}

// Dispatch delivers the event through every matching route. Delivery
// errors are aggregated; one failing notifier never blocks the others.
func (r *Router) Dispatch(ctx context.Context, event core.Event) error {
	var errs []error

	for _, route := range r.routes {
		if !route.Matches(event) {
			r.logger.Debug("event filtered out",
				zap.String("route", route.Name),
				zap.String("type", string(event.Type)),
				zap.String("symbol", event.Symbol),
			)
			continue
		}

		if r.inCooldown(route) {
			r.logger.Debug("route in cooldown",
				zap.String("route", route.Name),
				zap.String("type", string(event.Type)),
			)
			continue
		}

		// The cooldown clock starts when the route fires, not when
		// delivery succeeds, so a failing notifier is not hammered.
		r.markSent(route)

		delivered := 0
		for _, name := range route.Notifiers {
			n, err := r.registry.Get(name)
			if err != nil {
				errs = append(errs, fmt.Errorf("route %s: %w", route.Name, err))
				continue
			}
			if err := n.Notify(ctx, event); err != nil {
				r.logger.Error("notifier failed",
					zap.String("route", route.Name),
					zap.String("notifier", name),
					zap.Error(err),
				)
				errs = append(errs, fmt.Errorf("route %s: %s: %w", route.Name, name, err))
				continue
			}
			delivered++
		}

		r.logger.Info("event routed",
			zap.String("route", route.Name),
			zap.String("type", string(event.Type)),
			zap.String("symbol", event.Symbol),
			zap.Int("delivered", delivered),
			zap.Int("errors", len(route.Notifiers)-delivered),
		)
	}

	return errors.Join(errs...)
}

func (r *Router) inCooldown(route Route) bool {
	if route.Cooldown <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.lastSent[route.Name]
	return ok && r.now().Sub(last) < route.Cooldown
}

func (r *Router) markSent(route Route) {
	r.mu.Lock()
	r.lastSent[route.Name] = r.now()
	r.mu.Unlock()
}

// ClearCooldown removes the cooldown state for one route.
func (r *Router) ClearCooldown(name string) {
	r.mu.Lock()
	delete(r.lastSent, name)
	r.mu.Unlock()
}

// ClearAllCooldowns removes all recorded delivery times.
func (r *Router) ClearAllCooldowns() {
	r.mu.Lock()
	r.lastSent = make(map[string]time.Time)
	r.mu.Unlock()
}
